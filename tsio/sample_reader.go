// Package tsio provides the file-format readers and table consumers that
// sit around the pure in-memory tsinfergo core: parsing genotype
// matrices and position/recombination maps on the way in, and writing
// matched node/edge/mutation tables to CSV or SQLite on the way out.
package tsio

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// Sample is one row of the input genotype matrix, tagged with an opaque
// external identifier so downstream tables can be joined back to the
// caller's own sample bookkeeping.
type Sample struct {
	ID        ksuid.KSUID
	Genotypes []int8
}

// ReadGenotypeMatrix parses a sample-major text matrix: one line per
// sample, each line a whitespace-separated list of 0/1 alleles, one
// entry per site. All rows must have the same length.
func ReadGenotypeMatrix(path string) ([]Sample, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "opening genotype matrix %s", path)
	}
	defer f.Close()

	var samples []Sample
	numSites := -1
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if numSites == -1 {
			numSites = len(fields)
		} else if len(fields) != numSites {
			return nil, 0, errors.Errorf("genotype matrix line %d: expected %d sites, got %d", lineNum, numSites, len(fields))
		}
		genotypes := make([]int8, len(fields))
		for i, field := range fields {
			v, err := strconv.Atoi(field)
			if err != nil || (v != 0 && v != 1) {
				return nil, 0, errors.Errorf("genotype matrix line %d, site %d: %q is not a 0/1 allele", lineNum, i, field)
			}
			genotypes[i] = int8(v)
		}
		samples = append(samples, Sample{ID: ksuid.New(), Genotypes: genotypes})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Wrapf(err, "reading genotype matrix %s", path)
	}
	if numSites == -1 {
		return nil, 0, errors.Errorf("genotype matrix %s has no data rows", path)
	}
	return samples, numSites, nil
}

// ReadFloatColumn parses a whitespace-separated list of floats, one
// entry per site -- the shared format for both a positions file and a
// per-site recombination map.
func ReadFloatColumn(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s line %d: %q is not a number", path, lineNum, field)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return values, nil
}
