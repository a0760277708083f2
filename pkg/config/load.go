package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. KGEXPLAIN_RANK_DAMPING.
const EnvPrefix = "KGEXPLAIN"

// Load merges the defaults, the YAML file at path (optional) and environment
// overrides, then validates the result.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-owned viper instance, so flags bound to v win.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Dump writes cfg as YAML.
func Dump(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("graph.path", d.Graph.Path)
	v.SetDefault("graph.directed", d.Graph.Directed)
	v.SetDefault("graph.mock", d.Graph.Mock)
	v.SetDefault("rank.damping", d.Rank.Damping)
	v.SetDefault("rank.max_iterations", d.Rank.MaxIterations)
	v.SetDefault("rank.tolerance", d.Rank.Tolerance)
	v.SetDefault("rank.top", d.Rank.Top)
	v.SetDefault("steiner.strategy", d.Steiner.Strategy)
	v.SetDefault("enrich.alpha", d.Enrich.Alpha)
	v.SetDefault("enrich.adjust", d.Enrich.Adjust)
	v.SetDefault("null_model.set_size", d.NullModel.SetSize)
	v.SetDefault("null_model.samples", d.NullModel.Samples)
	v.SetDefault("null_model.workers", d.NullModel.Workers)
	v.SetDefault("null_model.seed", d.NullModel.Seed)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.disabled", d.Telemetry.Disabled)
}
