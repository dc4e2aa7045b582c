// Package config loads the engine settings used by recurctl from a YAML file and RECUR_*
// environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/cyp0633/librecur/pattern"
	"github.com/cyp0633/librecur/recurrence"
)

// EnvPrefix prefixes every environment override, e.g. RECUR_FLOATING_ZONE.
const EnvPrefix = "RECUR"

// Config is the file and environment view of the engine settings. Zero fields keep the
// preset's value.
type Config struct {
	// Preset is one of "default", "high-performance", "low-memory" or "no-cache".
	Preset string `yaml:"preset" envconfig:"PRESET"`

	// FloatingZone is the zone floating times are read in (e.g. "Europe/Paris").
	FloatingZone string `yaml:"floating_zone" envconfig:"FLOATING_ZONE"`

	// Restriction limits rule frequencies: "default", "hourly", "minutely", "secondly"
	// or "none".
	Restriction string `yaml:"restriction" envconfig:"RESTRICTION"`

	// Adjust evaluates restricted rules anyway instead of failing.
	Adjust bool `yaml:"adjust" envconfig:"ADJUST"`

	MaxIterations int `yaml:"max_iterations" envconfig:"MAX_ITERATIONS"`
	Workers       int `yaml:"workers" envconfig:"WORKERS"`

	// ZoneHorizon is the last year calendar time zone rules are expanded to.
	ZoneHorizon int `yaml:"zone_horizon" envconfig:"ZONE_HORIZON"`

	CacheEnabled    *bool         `yaml:"cache_enabled" envconfig:"CACHE_ENABLED"`
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	CacheMaxEntries int           `yaml:"cache_max_entries" envconfig:"CACHE_MAX_ENTRIES"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Preset:      "default",
		Restriction: pattern.RestrictDefault.String(),
	}
}

// Load reads path, when non-empty, and then applies environment overrides. A missing
// file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Normalize fills in empty values.
func (c *Config) Normalize() {
	if c.Preset == "" {
		c.Preset = "default"
	}
	if c.Restriction == "" {
		c.Restriction = pattern.RestrictDefault.String()
	}
}

// Validate checks the names and ranges in c.
func (c *Config) Validate() error {
	if _, ok := recurrence.PresetConfig(c.Preset); !ok {
		return fmt.Errorf("unknown preset %q", c.Preset)
	}
	if _, err := pattern.ParseRestriction(c.Restriction); err != nil {
		return err
	}
	if c.MaxIterations < 0 || c.Workers < 0 || c.CacheMaxEntries < 0 || c.ZoneHorizon < 0 {
		return errors.New("numeric settings must not be negative")
	}
	if c.CacheTTL < 0 {
		return errors.New("cache_ttl must not be negative")
	}
	return nil
}

// RestrictionLevel returns the parsed restriction.
func (c *Config) RestrictionLevel() pattern.Restriction {
	r, err := pattern.ParseRestriction(c.Restriction)
	if err != nil {
		return pattern.RestrictDefault
	}
	return r
}

// EvaluationMode returns the mode rules are evaluated in.
func (c *Config) EvaluationMode() pattern.EvaluationMode {
	if c.Adjust {
		return pattern.AdjustAutomatically
	}
	return pattern.Strict
}

// EngineConfig applies c on top of its preset.
func (c *Config) EngineConfig() recurrence.EngineConfig {
	ec, ok := recurrence.PresetConfig(c.Preset)
	if !ok {
		ec = recurrence.DefaultEngineConfig
	}
	ec.FloatingZone = c.FloatingZone
	if c.MaxIterations > 0 {
		ec.MaxIterations = c.MaxIterations
	}
	if c.Workers > 0 {
		ec.Workers = c.Workers
	}
	if c.CacheEnabled != nil {
		ec.CacheEnabled = *c.CacheEnabled
	}
	if c.CacheTTL > 0 {
		ec.CacheConfig.TTL = c.CacheTTL
	}
	if c.CacheMaxEntries > 0 {
		ec.CacheConfig.MaxEntries = c.CacheMaxEntries
	}
	return ec
}
