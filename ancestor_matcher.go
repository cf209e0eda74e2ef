package tsinfergo

import "math"

// tracebackEntry is one site's snapshot of likelihood_nodes/likelihood,
// taken just before update_site changes the likelihoods for that site
// (spec.md §4.3.3). order
// preserves the insertion order likelihood_nodes had at snapshot time, so
// get_max_likelihood_traceback_node's tie-break is deterministic.
type tracebackEntry struct {
	order []int32
	value map[int32]float64
}

func (t *tracebackEntry) lookup(u int32) (float64, bool) {
	v, ok := t.value[u]
	return v, ok
}

// AncestorMatcher runs the Li-Stephens forward sweep and traceback of
// spec.md §4.3 against a TreeSequenceBuilder's node set and edge/mutation
// tables, for a single haplotype at a time.
type AncestorMatcher struct {
	builder   *TreeSequenceBuilder
	errorRate float64

	parent, leftChild, rightChild, leftSib, rightSib []int32

	likelihood      []float64
	likelihoodNodes *nodeSet
	traceback       []*tracebackEntry

	lastSiteNoMutationNoError bool

	meanTracebackSize float64
}

// NewAncestorMatcher creates a matcher over a builder's current tables,
// using a uniform per-site genotyping error rate.
func NewAncestorMatcher(builder *TreeSequenceBuilder, errorRate float64) *AncestorMatcher {
	return &AncestorMatcher{builder: builder, errorRate: errorRate}
}

// MeanTracebackSize returns the mean traceback map size over all sites
// after the most recent FindPath call (sites outside [start, end) count
// as empty entries), a diagnostic of how
// compressed the matched path was (supplements spec.md with a metric
// the reference implementation tracks per find_path call).
func (m *AncestorMatcher) MeanTracebackSize() float64 { return m.meanTracebackSize }

func (m *AncestorMatcher) removeEdge(e Edge) {
	p, c := e.Parent, e.Child
	lsib := m.leftSib[c]
	rsib := m.rightSib[c]
	if lsib == NullNode {
		m.leftChild[p] = rsib
	} else {
		m.rightSib[lsib] = rsib
	}
	if rsib == NullNode {
		m.rightChild[p] = lsib
	} else {
		m.leftSib[rsib] = lsib
	}
	m.parent[c] = NullNode
	m.leftSib[c] = NullNode
	m.rightSib[c] = NullNode
}

func (m *AncestorMatcher) insertEdge(e Edge) {
	p, c := e.Parent, e.Child
	m.parent[c] = p
	u := m.rightChild[p]
	if u == NullNode {
		m.leftChild[p] = c
		m.leftSib[c] = NullNode
	} else {
		m.rightSib[u] = c
		m.leftSib[c] = u
	}
	m.rightSib[c] = NullNode
	m.rightChild[p] = c
}

// isNonZeroRoot reports whether u is a node other than node 0 (the
// virtual ancestor that is always a root, spec.md §3) that has neither a
// parent nor any children in the current tree.
func (m *AncestorMatcher) isNonZeroRoot(u int32) bool {
	return u != 0 && m.parent[u] == NullNode && m.leftChild[u] == NullNode
}

// isDescendantInTree is the plain, cache-free subtree test used during
// traceback, where the tree is rebuilt incrementally and queried once
// per (site, node) pair rather than scanned repeatedly.
func (m *AncestorMatcher) isDescendantInTree(u, v int32) bool {
	if v == NullNode {
		return false
	}
	w := u
	for w != v && w != NullNode {
		w = m.parent[w]
	}
	return w == v
}

func (m *AncestorMatcher) getMaxLikelihoodNode() int32 {
	u := NullNode
	maxL := -1.0
	for _, v := range m.likelihoodNodes.Nodes() {
		if m.likelihood[v] > maxL {
			maxL = m.likelihood[v]
			u = v
		}
	}
	if u == NullNode {
		violate("likelihood-nodes-nonempty", "no likelihood nodes present when choosing the starting traceback node")
	}
	return u
}

func (m *AncestorMatcher) getMaxLikelihoodTracebackNode(t *tracebackEntry) int32 {
	u := NullNode
	maxL := -1.0
	for _, v := range t.order {
		if t.value[v] > maxL {
			maxL = t.value[v]
			u = v
		}
	}
	if u == NullNode {
		violate("traceback-nonempty", "no nodes present in traceback map when choosing the next path node")
	}
	return u
}

func (m *AncestorMatcher) snapshotTraceback() *tracebackEntry {
	nodes := m.likelihoodNodes.Nodes()
	te := &tracebackEntry{
		order: append([]int32(nil), nodes...),
		value: make(map[int32]float64, len(nodes)),
	}
	for _, u := range nodes {
		te.value[u] = m.likelihood[u]
	}
	return te
}

// storeTracebackNoMutation records a traceback entry for a site that has
// no mutation and whose error rate is exactly zero, the one case where
// update_site leaves likelihoods untouched. Consecutive sites that both
// take this path share the same snapshot rather than copying it again
// (spec.md §4.3.3's invited storage optimisation).
func (m *AncestorMatcher) storeTracebackNoMutation(site int32) {
	if site > 0 && m.lastSiteNoMutationNoError {
		m.traceback[site] = m.traceback[site-1]
	} else {
		m.traceback[site] = m.snapshotTraceback()
	}
	m.lastSiteNoMutationNoError = true
}

// computeDescendant answers "is u in the subtree rooted at mutationNode"
// using pathCache to memoize the answer along ancestor chains walked
// within a single updateSite call (spec.md §4.3.2). mutationNode ==
// NullNode means the site has no mutation at all, in which case no node
// is a descendant of it by definition.
func (m *AncestorMatcher) computeDescendant(u, mutationNode int32, pathCache []int8) bool {
	if mutationNode == NullNode {
		return false
	}
	v := u
	for v != NullNode && v != mutationNode && pathCache[v] == -1 {
		v = m.parent[v]
	}
	var d int8
	if v != NullNode && pathCache[v] != -1 {
		d = pathCache[v]
	} else if v == mutationNode {
		d = 1
	}
	v = u
	for v != NullNode && v != mutationNode && pathCache[v] == -1 {
		pathCache[v] = d
		v = m.parent[v]
	}
	return d == 1
}

// updateSite runs one column of the forward sweep: emission, recombination
// mixing, renormalization and compression (spec.md §4.3.2).
func (m *AncestorMatcher) updateSite(site int32, state int8) {
	tsb := m.builder
	n := int32(len(m.parent))

	mutations, hasMutation := tsb.Mutations(site)
	mutationNode := NullNode
	if hasMutation {
		mutationNode = mutations[0].Node
	} else if m.errorRate == 0 {
		m.storeTracebackNoMutation(site)
		return
	}
	m.lastSiteNoMutationNoError = false

	if hasMutation && m.likelihood[mutationNode] == -1 {
		u := mutationNode
		for m.likelihood[u] == -1 {
			u = m.parent[u]
		}
		m.likelihood[mutationNode] = m.likelihood[u]
		m.likelihoodNodes.Add(mutationNode)
	}

	m.traceback[site] = m.snapshotTraceback()

	recomb := tsb.RecombinationRate()[site]
	r := 1 - math.Exp(-recomb/float64(n))
	recombProba := r / float64(n)
	noRecombProba := 1 - r + r/float64(n)

	distance := 1.0
	if site > 0 {
		distance = tsb.Positions()[site] - tsb.Positions()[site-1]
	}

	err := m.errorRate
	pathCache := fillInt8(n, -1)
	maxL := -1.0
	for _, u := range m.likelihoodNodes.Nodes() {
		d := m.computeDescendant(u, mutationNode, pathCache)
		x := m.likelihood[u] * noRecombProba * distance
		y := recombProba * distance
		z := x
		if y > z {
			z = y
		}
		var emission float64
		if state == 1 {
			emission = (1-err)*boolToFloat(d) + err*boolToFloat(!d)
		} else {
			emission = err*boolToFloat(d) + (1-err)*boolToFloat(!d)
		}
		m.likelihood[u] = z * emission
		if m.likelihood[u] > maxL {
			maxL = m.likelihood[u]
		}
	}
	if maxL <= 0 {
		violate("max-likelihood-positive", "update_site %d: max likelihood %v is not strictly positive", site, maxL)
	}
	for _, u := range m.likelihoodNodes.Nodes() {
		m.likelihood[u] /= maxL
		v := u
		for v != NullNode && pathCache[v] != -1 {
			pathCache[v] = -1
			v = m.parent[v]
		}
	}
	assertPathCacheCleared(pathCache)

	m.compressLikelihoods()
	m.checkLikelihoods()
}

// debugAssertions gates the internal consistency checks spec.md §9 calls a
// "valuable debug assertion" (verifying a per-call scratch cache is fully
// cleared before the next call). Off by default: these walk the whole
// array and are not meant to run in production matching.
const debugAssertions = false

func assertPathCacheCleared(pathCache []int8) {
	if !debugAssertions {
		return
	}
	for v, c := range pathCache {
		if c != -1 {
			violate("path-cache-cleared", "path cache entry %d left at %d after update_site", v, c)
		}
	}
}

// checkLikelihoods is the Go counterpart of algorithm.py's
// check_likelihoods: every likelihood_nodes member must hold a
// non-negative value, and every non-root node outside the current tree
// (indegree 0, not node 0) must hold exactly -2.
func (m *AncestorMatcher) checkLikelihoods() {
	if !debugAssertions {
		return
	}
	for _, u := range m.likelihoodNodes.Nodes() {
		if m.likelihood[u] < 0 {
			violate("likelihood-nodes-nonnegative", "likelihood_nodes member %d holds negative likelihood %v", u, m.likelihood[u])
		}
	}
	for u := int32(1); u < int32(len(m.likelihood)); u++ {
		if m.parent[u] == NullNode && m.leftChild[u] == NullNode && m.likelihood[u] != -2 {
			violate("likelihood-outside-tree", "node %d is outside the current tree but likelihood is %v, want -2", u, m.likelihood[u])
		}
	}
}

// compressLikelihoods folds every node whose likelihood equals its
// parent's (tree-walking through already-compressed ancestors) back to
// the -1 "inherit" sentinel, and drops it from likelihoodNodes
// (spec.md §4.3.2, "Likelihood compression").
func (m *AncestorMatcher) compressLikelihoods() {
	n := int32(len(m.likelihood))
	lCache := fillFloat64(n, -1)
	var touched []int32

	old := append([]int32(nil), m.likelihoodNodes.Nodes()...)
	m.likelihoodNodes = newNodeSet()
	for _, u := range old {
		p := m.parent[u]
		if p != NullNode {
			touched = append(touched, p)
			v := p
			for m.likelihood[v] == -1 && lCache[v] == -1 {
				v = m.parent[v]
			}
			lp := lCache[v]
			if lp == -1 {
				lp = m.likelihood[v]
			}
			v = p
			for m.likelihood[v] == -1 && lCache[v] == -1 {
				lCache[v] = lp
				v = m.parent[v]
			}
			if m.likelihood[u] == lp {
				m.likelihood[u] = -1
			}
		}
		if m.likelihood[u] >= 0 {
			m.likelihoodNodes.Add(u)
		}
	}
	for _, u := range touched {
		v := u
		for v != NullNode && lCache[v] != -1 {
			lCache[v] = -1
			v = m.parent[v]
		}
	}
}

type outputEdge struct {
	left, right, parent int32
}

// FindPath matches haplotype h[start:end] against the current tree
// sequence and returns the matched path as parallel edge arrays plus the
// per-site inferred allele, UnknownAllele outside [start, end) (spec.md
// §4.3.1/§4.3.3). h must have one entry per site.
func (m *AncestorMatcher) FindPath(h []int8, start, end int32) (left, right, parent []int32, match []int8) {
	tsb := m.builder
	n := int32(tsb.NumNodes())
	numSites := int32(tsb.NumSites())
	edges := tsb.Edges()
	M := int32(len(edges))
	removalOrder := tsb.RemovalOrder()

	m.parent = fillInt32(n, NullNode)
	m.leftChild = fillInt32(n, NullNode)
	m.rightChild = fillInt32(n, NullNode)
	m.leftSib = fillInt32(n, NullNode)
	m.rightSib = fillInt32(n, NullNode)
	m.traceback = make([]*tracebackEntry, numSites)
	for i := range m.traceback {
		m.traceback[i] = &tracebackEntry{}
	}
	m.likelihood = fillFloat64(n, -2)
	m.likelihoodNodes = newNodeSet()
	m.lastSiteNoMutationNoError = false

	var j, k int32
	var leftPos, pos, rightPos int32 = 0, 0, numSites
	for j < M && k < M && edges[j].Left <= start {
		for k < M && edges[removalOrder[k]].Right == pos {
			m.removeEdge(edges[removalOrder[k]])
			k++
		}
		for j < M && edges[j].Left == pos {
			m.insertEdge(edges[j])
			j++
		}
		leftPos = pos
		rightPos = numSites
		if j < M && edges[j].Left < rightPos {
			rightPos = edges[j].Left
		}
		if k < M && edges[removalOrder[k]].Right < rightPos {
			rightPos = edges[removalOrder[k]].Right
		}
		pos = rightPos
	}
	if !(leftPos < rightPos) {
		violate("tree-interval", "initial tree interval malformed: left=%d right=%d", leftPos, rightPos)
	}

	m.likelihoodNodes.Add(0)
	m.likelihood[0] = 1
	for u := int32(0); u < n; u++ {
		if m.parent[u] != NullNode {
			m.likelihood[u] = -1
		}
	}

	removeStart := k
	lCache := fillFloat64(n, -1)
	for leftPos < end {
		if !(leftPos < rightPos) {
			violate("tree-interval", "tree interval malformed: left=%d right=%d", leftPos, rightPos)
		}

		normalizationRequired := false
		for l := removeStart; l < k; l++ {
			edge := edges[removalOrder[l]]
			for _, u := range [2]int32{edge.Parent, edge.Child} {
				if m.isNonZeroRoot(u) {
					if approximatelyOne(m.likelihood[u]) {
						normalizationRequired = true
					}
					m.likelihood[u] = -2
					m.likelihoodNodes.Remove(u)
				}
			}
		}
		if normalizationRequired {
			maxL := -1.0
			for _, u := range m.likelihoodNodes.Nodes() {
				if m.likelihood[u] > maxL {
					maxL = m.likelihood[u]
				}
			}
			for _, u := range m.likelihoodNodes.Nodes() {
				m.likelihood[u] /= maxL
			}
		}

		for site := maxInt32(leftPos, start); site < minInt32(rightPos, end); site++ {
			m.updateSite(site, h[site])
		}

		removeStart = k
		for k < M && edges[removalOrder[k]].Right == rightPos {
			edge := edges[removalOrder[k]]
			m.removeEdge(edge)
			k++
			if m.likelihood[edge.Child] == -1 {
				u := edge.Parent
				for m.likelihood[u] == -1 && lCache[u] == -1 {
					u = m.parent[u]
				}
				lp := lCache[u]
				if lp == -1 {
					lp = m.likelihood[u]
				}
				u = edge.Parent
				for m.likelihood[u] == -1 && lCache[u] == -1 {
					lCache[u] = lp
					u = m.parent[u]
				}
				m.likelihood[edge.Child] = lp
				m.likelihoodNodes.Add(edge.Child)
			}
		}
		for l := removeStart; l < k; l++ {
			u := edges[removalOrder[l]].Parent
			for lCache[u] != -1 {
				lCache[u] = -1
				u = m.parent[u]
			}
		}

		leftPos = rightPos
		for j < M && edges[j].Left == leftPos {
			edge := edges[j]
			m.insertEdge(edge)
			j++
			for _, u := range [2]int32{edge.Parent, edge.Child} {
				if m.likelihood[u] == -2 {
					m.likelihood[u] = 0
					m.likelihoodNodes.Add(u)
				}
			}
		}
		rightPos = numSites
		if j < M && edges[j].Left < rightPos {
			rightPos = edges[j].Left
		}
		if k < M && edges[removalOrder[k]].Right < rightPos {
			rightPos = edges[removalOrder[k]].Right
		}
	}

	return m.runTraceback(start, end, numSites)
}

// runTraceback walks the genome right to left, following the traceback
// snapshots built during the forward sweep to recover the single
// maximum-likelihood path (spec.md §4.3.3).
func (m *AncestorMatcher) runTraceback(start, end, numSites int32) (left, right, parent []int32, match []int8) {
	tsb := m.builder
	edges := tsb.Edges()
	M := int32(len(edges))
	removalOrder := tsb.RemovalOrder()

	u := m.getMaxLikelihoodNode()
	outputEdges := []outputEdge{{left: -1, right: end, parent: u}}

	match = make([]int8, numSites)
	for i := int32(0); i < start; i++ {
		match[i] = UnknownAllele
	}
	for i := end; i < numSites; i++ {
		match[i] = UnknownAllele
	}

	n := int32(len(m.parent))
	m.parent = fillInt32(n, NullNode)

	j := M - 1
	k := M - 1
	pos := numSites
	for pos > start {
		for k >= 0 && edges[k].Left == pos {
			m.parent[edges[k].Child] = NullNode
			k--
		}
		for j >= 0 && edges[removalOrder[j]].Right == pos {
			e := edges[removalOrder[j]]
			m.parent[e.Child] = e.Parent
			j--
		}
		rightPos := pos
		leftPos := int32(0)
		if k >= 0 && edges[k].Left > leftPos {
			leftPos = edges[k].Left
		}
		if j >= 0 && edges[removalOrder[j]].Right > leftPos {
			leftPos = edges[removalOrder[j]].Right
		}
		pos = leftPos
		if !(leftPos < rightPos) {
			violate("tree-interval", "traceback tree interval malformed: left=%d right=%d", leftPos, rightPos)
		}

		hi := rightPos
		if end < hi {
			hi = end
		}
		lo := leftPos
		if start > lo {
			lo = start
		}
		for l := hi - 1; l >= lo; l-- {
			cur := &outputEdges[len(outputEdges)-1]
			curU := cur.parent
			if mutations, ok := tsb.Mutations(l); ok {
				if m.isDescendantInTree(curU, mutations[0].Node) {
					match[l] = 1
				}
			}
			te := m.traceback[l]
			if len(te.order) == 0 {
				violate("traceback-nonempty", "traceback at site %d is empty", l)
			}
			v := curU
			for {
				if x, ok := te.lookup(v); ok {
					if !approximatelyOne(x) {
						cur.left = l
						next := m.getMaxLikelihoodTracebackNode(te)
						outputEdges = append(outputEdges, outputEdge{right: l, parent: next})
					}
					break
				}
				v = m.parent[v]
				if v == NullNode {
					violate("traceback-ancestor", "no ancestor of %d found in traceback map at site %d", curU, l)
				}
			}
		}
	}
	outputEdges[len(outputEdges)-1].left = start

	m.meanTracebackSize = 0
	for _, te := range m.traceback {
		m.meanTracebackSize += float64(len(te.order))
	}
	if numSites > 0 {
		m.meanTracebackSize /= float64(numSites)
	}

	count := len(outputEdges)
	left = make([]int32, count)
	right = make([]int32, count)
	parent = make([]int32, count)
	for i, e := range outputEdges {
		if !(e.left < e.right) {
			violate("output-edge", "output edge %d has left=%d >= right=%d", i, e.left, e.right)
		}
		left[i], right[i], parent[i] = e.left, e.right, e.parent
	}
	return left, right, parent, match
}

func fillInt8(n int32, v int8) []int8 {
	s := make([]int8, n)
	for i := range s {
		s[i] = v
	}
	return s
}
