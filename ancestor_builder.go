package tsinfergo

import (
	"sort"

	"github.com/fredericlemoine/bitset"
)

// AncestorBuilder materializes ancestor haplotypes from frequency-grouped
// site patterns (spec.md §4.1). Sites sharing an identical genotype
// vector at the same derived-allele frequency collapse into a single
// ancestor descriptor.
type AncestorBuilder struct {
	numSamples int
	numSites   int
	sites      []*Site

	// frequencyMap[f] maps a canonical genotype-pattern key to the
	// ascending-by-insertion list of site ids sharing that pattern, for
	// frequency f in [2, numSamples).
	frequencyMap []map[string][]int32
	// patternOrder[f] records the insertion order of pattern keys first
	// seen at frequency f, so AncestorDescriptors is deterministic given
	// the input order even though Go map iteration is not.
	patternOrder [][]string
}

// NewAncestorBuilder creates a builder for a fixed number of samples and
// sites.
func NewAncestorBuilder(numSamples, numSites int) *AncestorBuilder {
	b := &AncestorBuilder{
		numSamples:   numSamples,
		numSites:     numSites,
		sites:        make([]*Site, numSites),
		frequencyMap: make([]map[string][]int32, numSamples),
		patternOrder: make([][]string, numSamples),
	}
	for f := range b.frequencyMap {
		b.frequencyMap[f] = make(map[string][]int32)
	}
	return b
}

// AddSite records a site's genotype pattern. A site with frequency 0 or
// numSamples is a degenerate (non-variant or fixed) column; per spec.md
// §7 it is silently skipped and never added. A site with frequency 1 is
// retained (it can still appear within another ancestor's sweep range)
// but contributes no pattern bucket of its own, and its genotype vector
// is discarded to save memory (spec.md §3).
func (b *AncestorBuilder) AddSite(id int32, position float64, frequency int, genotypes []int8) {
	if id < 0 || int(id) >= b.numSites {
		violate("site-range", "site id %d is outside [0, %d)", id, b.numSites)
	}
	if frequency <= 0 || frequency >= b.numSamples {
		return
	}
	site := &Site{ID: id, Position: position, Frequency: frequency}
	if frequency > 1 {
		site.Genotypes = genotypes
		key := genotypePatternKey(genotypes)
		if _, ok := b.frequencyMap[frequency][key]; !ok {
			b.patternOrder[frequency] = append(b.patternOrder[frequency], key)
		}
		b.frequencyMap[frequency][key] = append(b.frequencyMap[frequency][key], id)
	}
	b.sites[id] = site
}

// genotypePatternKey packs a genotype vector into a bitset and returns
// its canonical bit dump as a map key -- a concrete realization of
// spec.md's "canonical byte encoding of the genotype vector".
func genotypePatternKey(genotypes []int8) string {
	bs := bitset.New(uint(len(genotypes)))
	for i, g := range genotypes {
		if g == 1 {
			bs.Set(uint(i))
		}
	}
	return bs.DumpAsBits()
}

// AncestorDescriptors enumerates ancestor descriptors in descending
// frequency order. Within one frequency level, bucket order follows the
// insertion order of the first site in each bucket, so the result is
// deterministic given the input order (spec.md §4.1).
func (b *AncestorBuilder) AncestorDescriptors() []AncestorDescriptor {
	var out []AncestorDescriptor
	for f := b.numSamples - 1; f >= 2; f-- {
		for _, key := range b.patternOrder[f] {
			sites := append([]int32(nil), b.frequencyMap[f][key]...)
			sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
			out = append(out, AncestorDescriptor{Frequency: f, FocalSites: sites})
		}
	}
	return out
}

// MakeAncestor fills a[0:numSites) with the synthesized ancestor
// haplotype for the given focal sites and returns the [start, end) window
// of defined (non-UnknownAllele) entries (spec.md §4.1).
func (b *AncestorBuilder) MakeAncestor(focalSites []int32, a []int8) (start, end int32) {
	for i := range a {
		a[i] = UnknownAllele
	}

	first := focalSites[0]
	last := focalSites[len(focalSites)-1]

	rightSweep := make([]int32, 0, b.numSites)
	for s := last + 1; s < int32(b.numSites); s++ {
		rightSweep = append(rightSweep, s)
	}
	b.buildAncestorSites(first, rightSweep, a)

	leftSweep := make([]int32, 0, b.numSites)
	for s := first - 1; s >= 0; s-- {
		leftSweep = append(leftSweep, s)
	}
	b.buildAncestorSites(last, leftSweep, a)

	focalSet := make(map[int32]bool, len(focalSites))
	for _, s := range focalSites {
		focalSet[s] = true
	}
	for j := first; j <= last; j++ {
		if focalSet[j] {
			a[j] = 1
		} else {
			b.buildAncestorSites(last, []int32{j}, a)
		}
	}

	start, end = -1, -1
	for i := int32(0); i < int32(b.numSites); i++ {
		if a[i] != UnknownAllele {
			start = i
			break
		}
	}
	for i := int32(b.numSites) - 1; i >= 0; i-- {
		if a[i] != UnknownAllele {
			end = i + 1
			break
		}
	}
	return start, end
}

// buildAncestorSites runs one consensus sweep anchored at anchor over
// sites in the given order, writing results into a (spec.md §4.1,
// "Sweep (consensus) rule").
func (b *AncestorBuilder) buildAncestorSites(anchor int32, sites []int32, a []int8) {
	anchorSite := b.sites[anchor]
	samples := make(map[int]bool, anchorSite.Frequency)
	for j := 0; j < b.numSamples; j++ {
		if anchorSite.Genotypes[j] == 1 {
			samples[j] = true
		}
	}

	for _, l := range sites {
		a[l] = 0
		site := b.sites[l]
		// A site never recorded by AddSite was a degenerate (non-variant
		// or fixed) column; treat it as uninformative, same as any site
		// whose frequency does not exceed the anchor's.
		if site == nil || site.Frequency <= anchorSite.Frequency {
			if len(samples) == 1 {
				break
			}
			continue
		}
		numOnes, numZeros := 0, 0
		for j := range samples {
			if site.Genotypes[j] == 1 {
				numOnes++
			} else {
				numZeros++
			}
		}
		if numOnes >= numZeros {
			a[l] = 1
			for j := range samples {
				if site.Genotypes[j] != 1 {
					delete(samples, j)
				}
			}
		} else {
			for j := range samples {
				if site.Genotypes[j] != 0 {
					delete(samples, j)
				}
			}
		}
		if len(samples) == 1 {
			break
		}
	}
}
