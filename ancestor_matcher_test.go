package tsinfergo

import "testing"

func TestAncestorMatcher_FindPath_EmptyTreeSequence(t *testing.T) {
	tsb := NewTreeSequenceBuilder([]float64{0, 1, 2}, []float64{0, 1e-8, 1e-8})
	tsb.AddNode(1, false) // node 0, the virtual root

	m := NewAncestorMatcher(tsb, 0)
	left, right, parent, match := m.FindPath([]int8{1, 1, 1}, 0, 3)

	if l := len(left); l != 1 {
		t.Fatalf(UnequalIntParameterError, "number of output edges against an empty tree sequence", 1, l)
	}
	if left[0] != 0 || right[0] != 3 || parent[0] != 0 {
		t.Errorf(UnequalStringParameterError, "output edge", "(0, 3, 0)", edgeString(left[0], right[0], parent[0]))
	}
	for i, a := range match {
		if a != 0 {
			t.Errorf(UnequalIntParameterError, "matched allele against an empty tree sequence at site", i, int(a))
		}
	}
}

func TestAncestorMatcher_FindPath_WellFormedAgainstNonTrivialTree(t *testing.T) {
	tsb := NewTreeSequenceBuilder([]float64{0, 1, 2}, []float64{0, 1e-8, 1e-8})
	tsb.AddNode(2, false) // node 0

	seed := NewAncestorMatcher(tsb, 0)
	left, right, parent, _ := seed.FindPath([]int8{1, 1, 1}, 0, 3)
	tsb.Update(1, 1, left, right, parent, fullLength(len(left), 1),
		[]int32{0, 1, 2}, []int32{1, 1, 1}, []int8{1, 1, 1})

	m := NewAncestorMatcher(tsb, 0.01)
	outLeft, outRight, outParent, match := m.FindPath([]int8{1, 0, 1}, 0, 3)

	if len(outLeft) == 0 {
		t.Fatalf(UnequalIntParameterError, "number of output edges", 1, 0)
	}
	for i := range outLeft {
		if outLeft[i] >= outRight[i] {
			t.Errorf(InvalidIntParameterError, "output edge left", int(outLeft[i]), "must be strictly less than right")
		}
		if outParent[i] != 0 && outParent[i] != 1 {
			t.Errorf(InvalidIntParameterError, "output edge parent", int(outParent[i]), "must reference an existing node")
		}
	}
	if len(outLeft) > 1 {
		for i := 1; i < len(outLeft); i++ {
			if outLeft[i] != outRight[i-1] {
				t.Errorf(UnequalIntParameterError, "adjacent output edge boundary", int(outRight[i-1]), int(outLeft[i]))
			}
		}
	}
	for _, a := range match {
		if a != 0 && a != 1 {
			t.Errorf(InvalidIntParameterError, "matched allele", int(a), "must be 0 or 1 within the matched window")
		}
	}
	if mean := m.MeanTracebackSize(); mean <= 0 {
		t.Errorf(InvalidFloatParameterError, "mean traceback size", mean, "must be strictly positive after a completed match")
	}
}

func TestAncestorMatcher_FindPath_PartialWindow(t *testing.T) {
	positions := []float64{0, 1, 2, 3, 4}
	recomb := []float64{0, 1e-8, 1e-8, 1e-8, 1e-8}
	tsb := NewTreeSequenceBuilder(positions, recomb)
	tsb.AddNode(2, false) // node 0

	seed := NewAncestorMatcher(tsb, 0)
	left, right, parent, _ := seed.FindPath([]int8{1, 1, 1, 1, 1}, 0, 5)
	tsb.Update(1, 1, left, right, parent, fullLength(len(left), 1),
		[]int32{0, 1, 2, 3, 4}, []int32{1, 1, 1, 1, 1}, []int8{1, 1, 1, 1, 1})

	const start, end = int32(1), int32(4)
	m := NewAncestorMatcher(tsb, 0.01)
	outLeft, outRight, outParent, match := m.FindPath([]int8{-1, 1, 0, 1, -1}, start, end)

	if len(outLeft) == 0 {
		t.Fatalf(UnequalIntParameterError, "number of output edges", 1, 0)
	}
	if outLeft[0] != start {
		t.Errorf(UnequalIntParameterError, "first output edge left", int(start), int(outLeft[0]))
	}
	if outRight[len(outRight)-1] != end {
		t.Errorf(UnequalIntParameterError, "last output edge right", int(end), int(outRight[len(outRight)-1]))
	}
	for i := range outLeft {
		if outLeft[i] >= outRight[i] {
			t.Errorf(InvalidIntParameterError, "output edge left", int(outLeft[i]), "must be strictly less than right")
		}
		if outParent[i] != 0 && outParent[i] != 1 {
			t.Errorf(InvalidIntParameterError, "output edge parent", int(outParent[i]), "must reference an existing node")
		}
	}
	for i := int32(0); i < start; i++ {
		if match[i] != UnknownAllele {
			t.Errorf(UnequalIntParameterError, "matched allele before the matched window at site", int(i), int(match[i]))
		}
	}
	for i := end; i < int32(len(match)); i++ {
		if match[i] != UnknownAllele {
			t.Errorf(UnequalIntParameterError, "matched allele after the matched window at site", int(i), int(match[i]))
		}
	}
	for i := start; i < end; i++ {
		if match[i] != 0 && match[i] != 1 {
			t.Errorf(InvalidIntParameterError, "matched allele", int(match[i]), "must be 0 or 1 within the matched window")
		}
	}
	if mean := m.MeanTracebackSize(); mean <= 0 {
		t.Errorf(InvalidFloatParameterError, "mean traceback size", mean, "must be strictly positive after a partial-window match")
	}
}

func TestViolate_PanicsOnUnclearedPathCacheEntry(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf(ExpectedErrorWhileError, "reporting an uncleared path cache entry through violate")
		}
	}()
	cache := []int8{-1, -1, 1, -1}
	for v, c := range cache {
		if c != -1 {
			violate("path-cache-cleared", "path cache entry %d left at %d after update_site", v, c)
		}
	}
}

func edgeString(left, right, parent int32) string {
	return "(" + itoa(left) + ", " + itoa(right) + ", " + itoa(parent) + ")"
}

func itoa(v int32) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func fullLength(n, child int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(child)
	}
	return out
}
