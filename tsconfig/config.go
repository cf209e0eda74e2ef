// Package tsconfig loads the TOML configuration that drives one
// inference run: where the genotype matrix and recombination map live,
// the genotyping error rate, and where the resulting tables are written.
package tsconfig

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// MatchRunError formats a config validation failure, in the teacher's
// message-constant-as-format-string style.
const MatchRunError = "invalid %s %v, %s"

// Config is the top-level TOML document for a tsinfergo run.
type Config struct {
	// GenotypeMatrixPath is a sample-major text matrix of 0/1 alleles,
	// one row per sample, one column per site.
	GenotypeMatrixPath string `toml:"genotype_matrix_path"`
	// PositionsPath is a whitespace-separated list of site physical
	// positions, one per site, ascending.
	PositionsPath string `toml:"positions_path"`

	// RecombinationRate is a uniform per-site recombination probability
	// used when RecombinationMapPath is empty.
	RecombinationRate float64 `toml:"recombination_rate"`
	// RecombinationMapPath optionally overrides RecombinationRate with a
	// per-site rate loaded from file.
	RecombinationMapPath string `toml:"recombination_map_path"`

	// ErrorRate is the uniform per-site genotyping error rate fed to
	// every AncestorMatcher.FindPath call.
	ErrorRate float64 `toml:"error_rate"`

	// OutputFormat selects how matched tables are persisted: "csv" or
	// "sqlite".
	OutputFormat string `toml:"output_format"`
	// OutputPath is the base path consumed by the selected output
	// format's Consumer.
	OutputPath string `toml:"output_path"`

	validated bool
}

// Load parses a TOML config file into a Config.
func Load(path string) (*Config, error) {
	c := new(Config)
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "loading tsinfergo config from %s", path)
	}
	return c, nil
}

// Validate checks the validity of the configuration.
func (c *Config) Validate() error {
	if c.GenotypeMatrixPath == "" {
		return errors.Errorf(MatchRunError, "genotype_matrix_path", c.GenotypeMatrixPath, "must be set")
	}
	if c.PositionsPath == "" {
		return errors.Errorf(MatchRunError, "positions_path", c.PositionsPath, "must be set")
	}
	if c.ErrorRate < 0 || c.ErrorRate >= 1 {
		return errors.Errorf(MatchRunError, "error_rate", c.ErrorRate, "must lie in [0, 1)")
	}
	if c.RecombinationMapPath == "" && c.RecombinationRate < 0 {
		return errors.Errorf(MatchRunError, "recombination_rate", c.RecombinationRate, "must be non-negative")
	}
	switch strings.ToLower(c.OutputFormat) {
	case "csv":
	case "sqlite":
	default:
		return errors.Errorf(MatchRunError, "output_format", c.OutputFormat, "must be \"csv\" or \"sqlite\"")
	}
	if c.OutputPath == "" {
		return errors.Errorf(MatchRunError, "output_path", c.OutputPath, "must be set")
	}
	c.validated = true
	return nil
}
