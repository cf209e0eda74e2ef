package tsinfergo

import (
	"testing"

	"pgregory.net/rapid"
)

// TestProperty_FindPath_OutputWellFormed grows a tree sequence one matched
// haplotype at a time and checks that every FindPath call, regardless of
// how tangled the tree underneath it has become or whether the call covers
// the whole haplotype or only a sweep-bounded window (spec.md §4.1's
// ancestors almost always have UNKNOWN margins -- the common case
// cmd/tsinfergo's driver actually runs), returns a structurally valid
// path: contiguous, non-degenerate edges with a seen parent node, a match
// array whose defined window holds only {0, 1}, and margins outside
// [start, end) holding only UnknownAllele (spec.md §4.3.1, §4.3.3, §7).
func TestProperty_FindPath_OutputWellFormed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numSites := rapid.IntRange(2, 10).Draw(t, "numSites").(int)
		positions := make([]float64, numSites)
		recomb := make([]float64, numSites)
		for i := range positions {
			positions[i] = float64(i)
			recomb[i] = 1e-8
		}
		tsb := NewTreeSequenceBuilder(positions, recomb)
		tsb.AddNode(100, false) // node 0, the virtual root

		errorRate := rapid.SampledFrom([]float64{0, 1e-4, 0.01}).Draw(t, "errorRate").(float64)

		numHaplotypes := rapid.IntRange(1, 5).Draw(t, "numHaplotypes").(int)
		for i := 0; i < numHaplotypes; i++ {
			start := int32(rapid.IntRange(0, numSites-1).Draw(t, "start").(int))
			end := int32(rapid.IntRange(int(start)+1, numSites).Draw(t, "end").(int))

			h := make([]int8, numSites)
			for s := range h {
				h[s] = UnknownAllele
			}
			for s := start; s < end; s++ {
				h[s] = int8(rapid.IntRange(0, 1).Draw(t, "allele").(int))
			}

			matcher := NewAncestorMatcher(tsb, errorRate)
			left, right, parent, match := matcher.FindPath(h, start, end)

			if len(left) == 0 {
				t.Fatalf("FindPath returned no output edges")
			}
			if left[0] != start {
				t.Fatalf("first output edge does not start at %d: %d", start, left[0])
			}
			if right[len(right)-1] != end {
				t.Fatalf("last output edge does not reach %d: %d", end, right[len(right)-1])
			}
			for e := 0; e < len(left); e++ {
				if !(left[e] < right[e]) {
					t.Fatalf("output edge %d is degenerate: left=%d right=%d", e, left[e], right[e])
				}
				if parent[e] < 0 || parent[e] >= int32(tsb.NumNodes()) {
					t.Fatalf("output edge %d has out-of-range parent %d", e, parent[e])
				}
				if e > 0 && left[e] != right[e-1] {
					t.Fatalf("output edges %d and %d are not contiguous: %d != %d", e-1, e, right[e-1], left[e])
				}
			}
			if len(match) != numSites {
				t.Fatalf("match has %d entries, want %d", len(match), numSites)
			}
			for s := int32(0); s < start; s++ {
				if match[s] != UnknownAllele {
					t.Fatalf("match[%d] = %d, want UnknownAllele before the matched window", s, match[s])
				}
			}
			for s := end; s < int32(numSites); s++ {
				if match[s] != UnknownAllele {
					t.Fatalf("match[%d] = %d, want UnknownAllele after the matched window", s, match[s])
				}
			}
			for s := start; s < end; s++ {
				if match[s] != 0 && match[s] != 1 {
					t.Fatalf("match[%d] = %d, want 0 or 1 within the matched window", s, match[s])
				}
			}
			if m := matcher.MeanTracebackSize(); m <= 0 {
				t.Fatalf("MeanTracebackSize() = %v, want > 0", m)
			}

			child := make([]int32, len(left))
			for e := range child {
				child[e] = int32(tsb.NumNodes())
			}
			tsb.Update(1, float64(100-i-1), left, right, parent, child, nil, nil, nil)
		}
	})
}
