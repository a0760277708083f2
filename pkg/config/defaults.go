// Package config defines default analysis parameters and loads overrides.
package config

import (
	"fmt"
	"strings"
)

// Config is the effective configuration of one kgexplain run.
type Config struct {
	Graph     GraphConfig     `mapstructure:"graph" yaml:"graph"`
	Rank      RankConfig      `mapstructure:"rank" yaml:"rank"`
	Steiner   SteinerConfig   `mapstructure:"steiner" yaml:"steiner"`
	Enrich    EnrichConfig    `mapstructure:"enrich" yaml:"enrich"`
	NullModel NullModelConfig `mapstructure:"null_model" yaml:"null_model"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// GraphConfig locates the edge list.
type GraphConfig struct {
	// Path is a CSV or TSV edge list, optionally gzipped.
	Path     string `mapstructure:"path" yaml:"path"`
	Directed bool   `mapstructure:"directed" yaml:"directed"`
	// Mock generates a Barabasi-Albert graph of this many nodes instead of loading Path.
	Mock int `mapstructure:"mock" yaml:"mock"`
}

// RankConfig holds personalized PageRank parameters.
type RankConfig struct {
	// Damping is the probability of following an edge (0 < d < 1).
	Damping       float64 `mapstructure:"damping" yaml:"damping"`
	MaxIterations int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	// Tolerance enables early exit on L1 change. Zero disables it.
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`
	Top       int     `mapstructure:"top" yaml:"top"`
}

// SteinerConfig selects the tree heuristic.
type SteinerConfig struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
}

// EnrichConfig controls how enrichment results are filtered.
type EnrichConfig struct {
	Alpha float64 `mapstructure:"alpha" yaml:"alpha"`
	// Adjust applies Benjamini-Hochberg before filtering.
	Adjust bool `mapstructure:"adjust" yaml:"adjust"`
}

// NullModelConfig holds sampler defaults.
type NullModelConfig struct {
	SetSize int    `mapstructure:"set_size" yaml:"set_size"`
	Samples int    `mapstructure:"samples" yaml:"samples"`
	Workers int    `mapstructure:"workers" yaml:"workers"`
	Seed    uint64 `mapstructure:"seed" yaml:"seed"`
}

// OutputConfig controls report export.
type OutputConfig struct {
	// Dir is a local directory or an s3://bucket/prefix target. Empty prints only.
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	JSON  bool   `mapstructure:"json" yaml:"json"`
	Level string `mapstructure:"level" yaml:"level"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	// Endpoint is an OTLP HTTP URL. Empty falls back to OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`
}

// Defaults.
const (
	DefaultDamping       = 0.7
	DefaultMaxIterations = 50
	DefaultStrategy      = "nearest-fragment"
	DefaultAlpha         = 0.05
	DefaultSetSize       = 20
	DefaultSamples       = 100
	DefaultFormat        = "json"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Rank: RankConfig{
			Damping:       DefaultDamping,
			MaxIterations: DefaultMaxIterations,
		},
		Steiner: SteinerConfig{Strategy: DefaultStrategy},
		Enrich:  EnrichConfig{Alpha: DefaultAlpha},
		NullModel: NullModelConfig{
			SetSize: DefaultSetSize,
			Samples: DefaultSamples,
			Workers: 1,
		},
		Output:  OutputConfig{Format: DefaultFormat},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Validate reports the first out-of-range value.
func (c Config) Validate() error {
	switch {
	case !(c.Rank.Damping > 0 && c.Rank.Damping < 1):
		return fmt.Errorf("rank.damping must be in (0,1), got %v", c.Rank.Damping)
	case c.Rank.MaxIterations < 1:
		return fmt.Errorf("rank.max_iterations must be >= 1, got %d", c.Rank.MaxIterations)
	case c.Enrich.Alpha <= 0 || c.Enrich.Alpha > 1:
		return fmt.Errorf("enrich.alpha must be in (0,1], got %v", c.Enrich.Alpha)
	case c.NullModel.SetSize < 1:
		return fmt.Errorf("null_model.set_size must be >= 1, got %d", c.NullModel.SetSize)
	case c.NullModel.Samples < 0:
		return fmt.Errorf("null_model.samples must be >= 0, got %d", c.NullModel.Samples)
	case c.Graph.Mock < 0:
		return fmt.Errorf("graph.mock must be >= 0, got %d", c.Graph.Mock)
	}
	switch strings.ToLower(c.Output.Format) {
	case "json", "csv":
	default:
		return fmt.Errorf("output.format must be json or csv, got %q", c.Output.Format)
	}
	return nil
}
