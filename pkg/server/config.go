package server

import (
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config values can be written as "10s"
// in both YAML and environment variables.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	td, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", value.Value, err)
	}
	*d = Duration(td)
	return nil
}

// UnmarshalEnvironmentValue implements env.Unmarshaler.
func (d *Duration) UnmarshalEnvironmentValue(data string) error {
	td, err := time.ParseDuration(data)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", data, err)
	}
	*d = Duration(td)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds server configuration. Bind has no default on purpose: the
// listen address is a required parameter, never guessed.
type Config struct {
	Bind            string   `yaml:"bind" env:"PARLEY_BIND" validate:"required"`
	JoinTimeout     Duration `yaml:"join_timeout" env:"PARLEY_JOIN_TIMEOUT"`
	IdleTimeout     Duration `yaml:"idle_timeout" env:"PARLEY_IDLE_TIMEOUT"`
	WriteTimeout    Duration `yaml:"write_timeout" env:"PARLEY_WRITE_TIMEOUT"`
	MetricsInterval Duration `yaml:"metrics_interval" env:"PARLEY_METRICS_INTERVAL"`
	LogLevel        string   `yaml:"log_level" env:"PARLEY_LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	LogFormat       string   `yaml:"log_format" env:"PARLEY_LOG_FORMAT" validate:"omitempty,oneof=text json"`
}

// DefaultConfig returns a config with sensible defaults for everything
// but the bind address.
func DefaultConfig() Config {
	return Config{
		JoinTimeout:     Duration(10 * time.Second),
		IdleTimeout:     Duration(60 * time.Second),
		WriteTimeout:    Duration(10 * time.Second),
		MetricsInterval: Duration(60 * time.Second),
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// environment overrides, in that order. Call Validate after any further
// flag-level overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for structural errors.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
