package tsinfergo

import (
	"testing"

	"pgregory.net/rapid"
)

// TestProperty_AncestorDescriptors_DeterministicAndOrdered checks spec.md
// §4.1/§8: AncestorDescriptors is deterministic given the input order,
// and its frequencies are non-increasing.
func TestProperty_AncestorDescriptors_DeterministicAndOrdered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numSamples := rapid.IntRange(3, 8).Draw(t, "numSamples").(int)
		numSites := rapid.IntRange(1, 10).Draw(t, "numSites").(int)

		type siteInput struct {
			freq int
			geno []int8
		}
		sites := make([]siteInput, numSites)
		for i := range sites {
			ones := rapid.IntRange(0, numSamples).Draw(t, "ones").(int)
			geno := make([]int8, numSamples)
			for j := 0; j < ones; j++ {
				geno[j] = 1
			}
			sites[i] = siteInput{freq: ones, geno: geno}
		}

		build := func() []AncestorDescriptor {
			b := NewAncestorBuilder(numSamples, numSites)
			for i, s := range sites {
				b.AddSite(int32(i), float64(i), s.freq, append([]int8(nil), s.geno...))
			}
			return b.AncestorDescriptors()
		}

		first := build()
		second := build()
		if len(first) != len(second) {
			t.Fatalf("descriptor count not deterministic: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].Frequency != second[i].Frequency {
				t.Fatalf("descriptor %d frequency not deterministic: %d vs %d", i, first[i].Frequency, second[i].Frequency)
			}
			if len(first[i].FocalSites) != len(second[i].FocalSites) {
				t.Fatalf("descriptor %d focal site count not deterministic", i)
			}
			for j := range first[i].FocalSites {
				if first[i].FocalSites[j] != second[i].FocalSites[j] {
					t.Fatalf("descriptor %d focal site %d not deterministic: %d vs %d", i, j, first[i].FocalSites[j], second[i].FocalSites[j])
				}
			}
		}
		for i := 1; i < len(first); i++ {
			if first[i].Frequency > first[i-1].Frequency {
				t.Fatalf("descriptor frequencies not non-increasing at %d: %d > %d", i, first[i].Frequency, first[i-1].Frequency)
			}
		}
	})
}
