package tsinfergo

// nodeSet is the likelihood_nodes container from spec.md §4.3.1: the set
// of node ids currently carrying an explicit (>= 0) likelihood value.
// Spec.md allows any container with insertion, membership test, and
// iteration, as long as iteration order is deterministic -- this keeps
// insertion order so that tie-breaking in argmax scans (get_max_
// likelihood_node, get_max_likelihood_traceback_node) is reproducible
// across runs, matching spec.md §8's determinism property.
type nodeSet struct {
	order []int32
	has   map[int32]bool
}

func newNodeSet() *nodeSet {
	return &nodeSet{has: make(map[int32]bool)}
}

func (s *nodeSet) Add(u int32) {
	if s.has[u] {
		return
	}
	s.has[u] = true
	s.order = append(s.order, u)
}

func (s *nodeSet) Remove(u int32) {
	if !s.has[u] {
		return
	}
	delete(s.has, u)
	for i, v := range s.order {
		if v == u {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *nodeSet) Contains(u int32) bool { return s.has[u] }

func (s *nodeSet) Nodes() []int32 { return s.order }

func (s *nodeSet) Len() int { return len(s.order) }
