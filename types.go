package tsinfergo

// UnknownAllele is the sentinel allele value used to mark positions of an
// ancestor haplotype that lie outside its defined [start, end) window.
const UnknownAllele int8 = -1

// NullNode is the sentinel used in parent/child/sibling arrays for "no
// such node".
const NullNode int32 = -1

// Site describes one column of the input genotype matrix.
type Site struct {
	ID        int32
	Position  float64
	Frequency int
	// Genotypes holds one entry per sample, each in {0, 1}. Retained only
	// for sites with Frequency > 1; nil otherwise (spec.md §3: "vectors
	// retained only for sites with frequency > 1").
	Genotypes []int8
}

// Edge is a parent-child relationship over a half-open genomic interval
// of site indices. Edges are immutable once appended to a
// TreeSequenceBuilder.
type Edge struct {
	Left, Right   int32
	Parent, Child int32
}

// Mutation is one (node, derived_state) entry in a site's mutation list.
// The first entry at a site is the canonical mutation to state 1;
// subsequent entries are back-mutations to state 0.
type Mutation struct {
	Node         int32
	DerivedState int8
}

// AncestorDescriptor names one synthesizable ancestor: a derived-allele
// frequency and the ascending list of focal sites that define it.
type AncestorDescriptor struct {
	Frequency  int
	FocalSites []int32
}
