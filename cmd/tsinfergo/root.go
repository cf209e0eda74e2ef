package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kentwait/tsinfergo"
	"github.com/kentwait/tsinfergo/tsconfig"
	"github.com/kentwait/tsinfergo/tsio"
)

var rootCmd = &cobra.Command{
	Use:   "tsinfergo <config.toml>",
	Short: "Reconstruct a tree sequence from a genotype matrix",
	Long: `tsinfergo synthesizes ancestor haplotypes from a genotype matrix,
matches each ancestor and then each sample against the tree sequence
being built, and writes the resulting node, edge, and mutation tables.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMatch(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	conf, err := tsconfig.Load(configPath)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	start := time.Now()
	log.Printf("reading genotype matrix from %s\n", conf.GenotypeMatrixPath)
	samples, numSites, err := tsio.ReadGenotypeMatrix(conf.GenotypeMatrixPath)
	if err != nil {
		return err
	}
	positions, err := tsio.ReadFloatColumn(conf.PositionsPath)
	if err != nil {
		return err
	}
	if len(positions) != numSites {
		return fmt.Errorf("%d positions but %d sites in genotype matrix", len(positions), numSites)
	}

	var recombRate []float64
	if conf.RecombinationMapPath != "" {
		recombRate, err = tsio.ReadFloatColumn(conf.RecombinationMapPath)
		if err != nil {
			return err
		}
	} else {
		recombRate = make([]float64, numSites)
		for i := range recombRate {
			recombRate[i] = conf.RecombinationRate
		}
	}

	numSamples := len(samples)
	builder := tsinfergo.NewAncestorBuilder(numSamples, numSites)
	for site := 0; site < numSites; site++ {
		genotypes := make([]int8, numSamples)
		freq := 0
		for s, sample := range samples {
			genotypes[s] = sample.Genotypes[site]
			if sample.Genotypes[site] == 1 {
				freq++
			}
		}
		builder.AddSite(int32(site), positions[site], freq, genotypes)
	}

	tsb := tsinfergo.NewTreeSequenceBuilder(positions, recombRate)
	tsb.AddNode(float64(numSamples)+1, false) // node 0, the virtual root

	descriptors := builder.AncestorDescriptors()
	log.Printf("synthesized %d ancestor descriptors\n", len(descriptors))
	ancestor := make([]int8, numSites)
	for i, d := range descriptors {
		start, end := builder.MakeAncestor(d.FocalSites, ancestor)
		matcher := tsinfergo.NewAncestorMatcher(tsb, conf.ErrorRate)
		left, right, parent, _ := matcher.FindPath(ancestor, start, end)
		derivedState := make([]int8, len(d.FocalSites))
		for s := range derivedState {
			derivedState[s] = 1
		}
		tsb.Update(1, float64(numSamples-i), left, right, parent, childOf(len(left), tsb.NumNodes()),
			d.FocalSites, childOf(len(d.FocalSites), tsb.NumNodes()), derivedState)
	}

	log.Printf("matching %d samples\n", numSamples)
	for i, sample := range samples {
		matcher := tsinfergo.NewAncestorMatcher(tsb, conf.ErrorRate)
		left, right, parent, match := matcher.FindPath(sample.Genotypes, 0, int32(numSites))
		var site, node []int32
		var derivedState []int8
		for s, allele := range match {
			if allele != sample.Genotypes[s] {
				site = append(site, int32(s))
				node = append(node, int32(tsb.NumNodes()))
				derivedState = append(derivedState, sample.Genotypes[s])
			}
		}
		tsb.Update(1, -float64(i)-1, left, right, parent, childOf(len(left), tsb.NumNodes()), site, node, derivedState)
	}

	if err := writeTables(conf, tsb); err != nil {
		return err
	}
	log.Printf("completed match run in %s\n", time.Since(start))
	return nil
}

// childOf fills an edge-count-sized array with a single newly-created
// node id, the common case when committing one haplotype's matched path
// as edges all pointing at the same new child node.
func childOf(numEdges, child int) []int32 {
	out := make([]int32, numEdges)
	for i := range out {
		out[i] = int32(child)
	}
	return out
}

func writeTables(conf *tsconfig.Config, tsb *tsinfergo.TreeSequenceBuilder) error {
	var consumer tsio.Consumer
	switch strings.ToLower(conf.OutputFormat) {
	case "csv":
		consumer = tsio.NewCSVConsumer(conf.OutputPath)
	case "sqlite":
		consumer = tsio.NewSQLiteConsumer(conf.OutputPath)
	default:
		return fmt.Errorf("%s is not a valid output format (csv|sqlite)", conf.OutputFormat)
	}
	if err := consumer.Init(); err != nil {
		return err
	}
	flags, nodeTime := tsb.DumpNodes()
	if err := consumer.WriteNodes(flags, nodeTime); err != nil {
		return err
	}
	left, right, parent, child := tsb.DumpEdges()
	if err := consumer.WriteEdges(left, right, parent, child); err != nil {
		return err
	}
	site, node, derivedState, mutParent := tsb.DumpMutations()
	return consumer.WriteMutations(site, node, derivedState, mutParent)
}
