package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig describes one simulation segment. Paths are resolved relative to
// the working directory. All fields must be listed to satisfy
// KnownFields(true) strict parsing.
type RunConfig struct {
	Catalog      string  `yaml:"catalog"`
	SLO          string  `yaml:"slo"`
	Behavior     string  `yaml:"behavior"`
	Init         string  `yaml:"init"`
	OtherInit    string  `yaml:"other_init"`
	Measurements string  `yaml:"measurements"`
	MaxDuration  float64 `yaml:"max_duration"`
	OutputDir    string  `yaml:"output_dir"`
	Adjuster     string  `yaml:"adjuster"`
	TraceLevel   string  `yaml:"trace_level"`
	// SkipUnencodable drops events referencing unwritable model objects
	// from the snapshot instead of failing the run.
	SkipUnencodable bool   `yaml:"skip_unencodable"`
	MetricsFile     string `yaml:"metrics_file"`
}

// defaultRunConfig returns the configuration used for unset fields.
func defaultRunConfig() RunConfig {
	return RunConfig{
		MaxDuration: 100,
		OutputDir:   "out",
		Adjuster:    "groups",
		TraceLevel:  "none",
	}
}

// loadRunConfig parses a run configuration file with strict field checking
// on top of the defaults.
func loadRunConfig(path string) (RunConfig, error) {
	cfg := defaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading run config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing run config: %w", err)
	}
	return cfg, nil
}

func (c RunConfig) validate() error {
	if c.Catalog == "" {
		return fmt.Errorf("no catalog given")
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be positive, got %g", c.MaxDuration)
	}
	if c.Adjuster != "groups" && c.Adjuster != "frozen" {
		return fmt.Errorf("unknown adjuster %q; valid adjusters: [groups, frozen]", c.Adjuster)
	}
	return nil
}
