package tsinfergo

import "sort"

// TreeSequenceBuilder holds the append-only node table, edge set, and
// per-site mutation list of the currently inferred tree sequence
// (spec.md §4.2). Nodes and edges are appended by Update in batches and
// never removed or mutated; mutations may gain new entries at an
// existing site.
//
// Node 0 is not created automatically -- per spec.md §3 it is the
// implicit root ("the virtual root / ultimate ancestor") and is expected
// to be the first node an external driver adds, at the oldest time in
// the sequence, with is_sample = false.
type TreeSequenceBuilder struct {
	positions         []float64
	recombinationRate []float64
	numSites          int

	time  []float64
	flags []uint32

	edges []Edge
	// removalOrder is a permutation of edge indices, lexicographic on
	// (right, -time[parent]) ascending (spec.md §3). edges itself is
	// kept in insertion order: lexicographic on (left, time[parent]).
	removalOrder []int32

	mutations map[int32][]Mutation
}

// NewTreeSequenceBuilder creates an empty builder over a fixed set of
// site positions and per-site recombination rates.
func NewTreeSequenceBuilder(positions, recombinationRate []float64) *TreeSequenceBuilder {
	if len(positions) != len(recombinationRate) {
		violate("site-table-shape", "%d positions but %d recombination rates", len(positions), len(recombinationRate))
	}
	for i := 1; i < len(positions); i++ {
		if !(positions[i] > positions[i-1]) {
			violate("site-positions", "position %v of site %d does not exceed position %v of site %d",
				positions[i], i, positions[i-1], i-1)
		}
	}
	return &TreeSequenceBuilder{
		positions:         positions,
		recombinationRate: recombinationRate,
		numSites:          len(positions),
		mutations:         make(map[int32][]Mutation),
	}
}

// NumNodes returns the current number of nodes.
func (t *TreeSequenceBuilder) NumNodes() int { return len(t.time) }

// NumEdges returns the current number of edges.
func (t *TreeSequenceBuilder) NumEdges() int { return len(t.edges) }

// NumMutations returns the total number of (node, derived_state) entries
// across all sites.
func (t *TreeSequenceBuilder) NumMutations() int {
	n := 0
	for _, ms := range t.mutations {
		n += len(ms)
	}
	return n
}

// NumSites returns the fixed number of sites.
func (t *TreeSequenceBuilder) NumSites() int { return t.numSites }

// Time returns the time of node u.
func (t *TreeSequenceBuilder) Time(u int32) float64 { return t.time[u] }

// Flags returns the flags of node u (bit 0 set iff u is a sample).
func (t *TreeSequenceBuilder) Flags(u int32) uint32 { return t.flags[u] }

// Positions returns the per-site physical positions.
func (t *TreeSequenceBuilder) Positions() []float64 { return t.positions }

// RecombinationRate returns the per-site recombination rate parameters.
func (t *TreeSequenceBuilder) RecombinationRate() []float64 { return t.recombinationRate }

// Edges returns the edge list in insertion order: lexicographic on
// (left, time[parent]) ascending.
func (t *TreeSequenceBuilder) Edges() []Edge { return t.edges }

// RemovalOrder returns the permutation of edge indices in removal order:
// lexicographic on (right, -time[parent]) ascending.
func (t *TreeSequenceBuilder) RemovalOrder() []int32 { return t.removalOrder }

// Mutations returns the ordered (node, derived_state) list at a site, and
// whether the site has any mutation at all.
func (t *TreeSequenceBuilder) Mutations(site int32) ([]Mutation, bool) {
	ms, ok := t.mutations[site]
	return ms, ok
}

// AddNode appends a new node at the given time and returns its id.
func (t *TreeSequenceBuilder) AddNode(time float64, isSample bool) int32 {
	id := int32(len(t.time))
	t.time = append(t.time, time)
	var flag uint32
	if isSample {
		flag = 1
	}
	t.flags = append(t.flags, flag)
	return id
}

// RestoreNodes bulk-reloads nodes from a dumped time array, all flagged
// as samples (matching the reference implementation's restore_nodes,
// which does not carry flag information).
func (t *TreeSequenceBuilder) RestoreNodes(times []float64) {
	for _, tm := range times {
		t.AddNode(tm, true)
	}
}

// RestoreEdges bulk-reloads edges from dumped columns and re-indexes.
func (t *TreeSequenceBuilder) RestoreEdges(left, right, parent, child []int32) {
	for i := range left {
		t.edges = append(t.edges, Edge{Left: left[i], Right: right[i], Parent: parent[i], Child: child[i]})
	}
	t.indexEdges()
}

// RestoreMutations bulk-reloads mutations from dumped columns. parent is
// accepted for symmetry with DumpMutations but is not itself stored: the
// per-site back-reference is reconstructed implicitly from list order
// and entry position, exactly as dumped.
func (t *TreeSequenceBuilder) RestoreMutations(site, node []int32, derivedState []int8, parent []int32) {
	for i := range site {
		t.mutations[site[i]] = append(t.mutations[site[i]], Mutation{Node: node[i], DerivedState: derivedState[i]})
	}
}

// Update atomically appends numNewNodes nodes at the given time, appends
// the given edges and mutations, and re-indexes both edge orderings
// (spec.md §4.2). New nodes are flagged as samples, matching the
// reference implementation's default.
func (t *TreeSequenceBuilder) Update(
	numNewNodes int, time float64,
	left, right, parent, child []int32,
	site, node []int32, derivedState []int8,
) {
	for i := 0; i < numNewNodes; i++ {
		t.AddNode(time, true)
	}
	for i := range left {
		e := Edge{Left: left[i], Right: right[i], Parent: parent[i], Child: child[i]}
		if t.time[e.Parent] <= t.time[e.Child] {
			violate("edge-time", "edge parent %d (time %v) does not strictly postdate child %d (time %v)",
				e.Parent, t.time[e.Parent], e.Child, t.time[e.Child])
		}
		t.edges = append(t.edges, e)
	}
	for i := range site {
		if site[i] < 0 || int(site[i]) >= t.numSites {
			violate("site-range", "mutation site %d is outside [0, %d)", site[i], t.numSites)
		}
		t.mutations[site[i]] = append(t.mutations[site[i]], Mutation{Node: node[i], DerivedState: derivedState[i]})
	}
	t.indexEdges()
}

// indexEdges recomputes the two derived orderings described in spec.md
// §3: edges themselves sorted by (left, time[parent]) ascending, and
// removalOrder as a permutation over (the now-sorted) edges sorted by
// (right, -time[parent]) ascending.
func (t *TreeSequenceBuilder) indexEdges() {
	sort.SliceStable(t.edges, func(i, j int) bool {
		a, b := t.edges[i], t.edges[j]
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		return t.time[a.Parent] < t.time[b.Parent]
	})
	order := make([]int32, len(t.edges))
	for i := range order {
		order[i] = int32(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		ei, ej := t.edges[order[i]], t.edges[order[j]]
		if ei.Right != ej.Right {
			return ei.Right < ej.Right
		}
		return t.time[ei.Parent] > t.time[ej.Parent]
	})
	t.removalOrder = order
}

// DumpNodes returns array-form columns for the node table.
func (t *TreeSequenceBuilder) DumpNodes() (flags []uint32, time []float64) {
	flags = append([]uint32(nil), t.flags...)
	time = append([]float64(nil), t.time...)
	return flags, time
}

// DumpEdges returns array-form columns for the edge table, in current
// insertion order.
func (t *TreeSequenceBuilder) DumpEdges() (left, right, parent, child []int32) {
	n := len(t.edges)
	left = make([]int32, n)
	right = make([]int32, n)
	parent = make([]int32, n)
	child = make([]int32, n)
	for i, e := range t.edges {
		left[i], right[i], parent[i], child[i] = e.Left, e.Right, e.Parent, e.Child
	}
	return
}

// DumpMutations returns array-form columns for the mutation table,
// ordered by ascending site id. parent[i] is -1 for the first mutation
// row at a site, and the row index of that site's first mutation for
// every subsequent back-mutation at the same site (spec.md §4.2).
func (t *TreeSequenceBuilder) DumpMutations() (site, node []int32, derivedState []int8, parent []int32) {
	siteIDs := make([]int32, 0, len(t.mutations))
	for s := range t.mutations {
		siteIDs = append(siteIDs, s)
	}
	sort.Slice(siteIDs, func(i, j int) bool { return siteIDs[i] < siteIDs[j] })

	n := t.NumMutations()
	site = make([]int32, 0, n)
	node = make([]int32, 0, n)
	derivedState = make([]int8, 0, n)
	parent = make([]int32, 0, n)

	j := int32(0)
	for _, s := range siteIDs {
		p := j
		for _, m := range t.mutations[s] {
			site = append(site, s)
			node = append(node, m.Node)
			derivedState = append(derivedState, m.DerivedState)
			par := int32(-1)
			if m.DerivedState == 0 {
				par = p
			}
			parent = append(parent, par)
			j++
		}
	}
	return
}
