// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads and validates the soak-harness configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownConfigField classifies strict YAML decode failures of the
	// config file. Unknown keys are reported through it, and so are
	// syntax and type errors. Use errors.Is instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrInvalidConfig classifies semantic validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)

// BusConfig selects the delivery discipline for the soak run.
type BusConfig struct {
	Workers  int  `yaml:"workers"`
	Coalesce bool `yaml:"coalesce"`
}

// ThrottleConfig bounds the admission rate.
type ThrottleConfig struct {
	MaxOps int           `yaml:"maxOps"`
	Window time.Duration `yaml:"window"`
}

// SoakConfig shapes the generated load.
type SoakConfig struct {
	Producers int           `yaml:"producers"`
	Rate      float64       `yaml:"rate"` // publishes per second, per producer
	Duration  time.Duration `yaml:"duration"`
	Symbols   []string      `yaml:"symbols"`
}

// Config is the root of the soak-harness configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Bus      BusConfig      `yaml:"bus"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Soak     SoakConfig     `yaml:"soak"`
}

// Defaults returns a runnable baseline configuration.
func Defaults() Config {
	return Config{
		Listen: ":8099",
		Bus: BusConfig{
			Workers:  4,
			Coalesce: false,
		},
		Throttle: ThrottleConfig{
			MaxOps: 500,
			Window: time.Second,
		},
		Soak: SoakConfig{
			Producers: 4,
			Rate:      250,
			Duration:  30 * time.Second,
			Symbols:   []string{"AAPL", "MSFT", "NVDA", "TSLA"},
		},
	}
}

// fileConfig is the YAML schema. Durations are strings in the file
// ("500ms", "2s") and converted during merge.
type fileConfig struct {
	Listen string `yaml:"listen"`
	Bus    struct {
		Workers  *int  `yaml:"workers"`
		Coalesce *bool `yaml:"coalesce"`
	} `yaml:"bus"`
	Throttle struct {
		MaxOps *int   `yaml:"maxOps"`
		Window string `yaml:"window"`
	} `yaml:"throttle"`
	Soak struct {
		Producers *int     `yaml:"producers"`
		Rate      *float64 `yaml:"rate"`
		Duration  string   `yaml:"duration"`
		Symbols   []string `yaml:"symbols"`
	} `yaml:"soak"`
}

// Load reads path (when non-empty) over the defaults and applies
// environment overrides. Unknown YAML keys are rejected.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var file fileConfig
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		if err := mergeFile(&cfg, file); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks semantic constraints the types cannot express.
func (c Config) Validate() error {
	if c.Throttle.MaxOps <= 0 {
		return fmt.Errorf("%w: throttle.maxOps must be positive, got %d", ErrInvalidConfig, c.Throttle.MaxOps)
	}
	if c.Throttle.Window <= 0 {
		return fmt.Errorf("%w: throttle.window must be positive, got %s", ErrInvalidConfig, c.Throttle.Window)
	}
	if c.Soak.Producers <= 0 {
		return fmt.Errorf("%w: soak.producers must be positive, got %d", ErrInvalidConfig, c.Soak.Producers)
	}
	if c.Soak.Rate <= 0 {
		return fmt.Errorf("%w: soak.rate must be positive, got %g", ErrInvalidConfig, c.Soak.Rate)
	}
	if c.Soak.Duration <= 0 {
		return fmt.Errorf("%w: soak.duration must be positive, got %s", ErrInvalidConfig, c.Soak.Duration)
	}
	if len(c.Soak.Symbols) == 0 {
		return fmt.Errorf("%w: soak.symbols must not be empty", ErrInvalidConfig)
	}
	return nil
}

// mergeFile overlays explicitly set file values onto cfg.
func mergeFile(cfg *Config, file fileConfig) error {
	if file.Listen != "" {
		cfg.Listen = file.Listen
	}
	if file.Bus.Workers != nil {
		cfg.Bus.Workers = *file.Bus.Workers
	}
	if file.Bus.Coalesce != nil {
		cfg.Bus.Coalesce = *file.Bus.Coalesce
	}
	if file.Throttle.MaxOps != nil {
		cfg.Throttle.MaxOps = *file.Throttle.MaxOps
	}
	if file.Throttle.Window != "" {
		d, err := time.ParseDuration(file.Throttle.Window)
		if err != nil {
			return fmt.Errorf("%w: throttle.window: %v", ErrInvalidConfig, err)
		}
		cfg.Throttle.Window = d
	}
	if file.Soak.Producers != nil {
		cfg.Soak.Producers = *file.Soak.Producers
	}
	if file.Soak.Rate != nil {
		cfg.Soak.Rate = *file.Soak.Rate
	}
	if file.Soak.Duration != "" {
		d, err := time.ParseDuration(file.Soak.Duration)
		if err != nil {
			return fmt.Errorf("%w: soak.duration: %v", ErrInvalidConfig, err)
		}
		cfg.Soak.Duration = d
	}
	if len(file.Soak.Symbols) > 0 {
		cfg.Soak.Symbols = file.Soak.Symbols
	}
	return nil
}

// applyEnv overlays TICKBUS_* environment variables. Malformed values
// are ignored; the defaults or file values stand.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TICKBUS_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("TICKBUS_BUS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bus.Workers = n
		}
	}
	if v := os.Getenv("TICKBUS_BUS_COALESCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Bus.Coalesce = b
		}
	}
	if v := os.Getenv("TICKBUS_THROTTLE_MAX_OPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Throttle.MaxOps = n
		}
	}
	if v := os.Getenv("TICKBUS_THROTTLE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Throttle.Window = d
		}
	}
	if v := os.Getenv("TICKBUS_SOAK_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Soak.Duration = d
		}
	}
}
