package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/benoitkugler/favigen/svgraster"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// config gathers the settings of a run. It may be read from a YAML
// file, and command line flags take precedence over the file.
type config struct {
	Output      string `yaml:"output"`
	Supersample int    `yaml:"supersample"`
	Workers     int    `yaml:"workers"`
	Strict      bool   `yaml:"strict"`
	LogLevel    string `yaml:"log_level"`
}

func defaultConfig() config {
	return config{Output: ".", Supersample: 1, LogLevel: "info"}
}

func readConfigFile(path string) (config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// mergeFlags overrides `cfg` with the flags explicitly set.
func mergeFlags(cfg config, flags *pflag.FlagSet, fromFlags config) config {
	if flags.Changed("output") {
		cfg.Output = fromFlags.Output
	}
	if flags.Changed("supersample") {
		cfg.Supersample = fromFlags.Supersample
	}
	if flags.Changed("workers") {
		cfg.Workers = fromFlags.Workers
	}
	if flags.Changed("strict") {
		cfg.Strict = fromFlags.Strict
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = fromFlags.LogLevel
	}
	return cfg
}

func (cfg config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	return level, nil
}

func (cfg config) validate() error {
	if cfg.Supersample < 1 || cfg.Supersample > svgraster.MaxSupersample {
		return fmt.Errorf("supersample must be between 1 and %d, got %d", svgraster.MaxSupersample, cfg.Supersample)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Output == "" {
		return fmt.Errorf("output must not be empty")
	}
	_, err := cfg.level()
	return err
}
