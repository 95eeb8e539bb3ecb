// Package config loads the settings of a neoql deployment from a YAML file
// and NEOQL_* environment variables. Environment variables take precedence
// over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/syssam/neoql"
)

// Config holds the settings of a neoql deployment.
type Config struct {
	// Schema is the path of the SDL file.
	Schema string `yaml:"schema" env:"NEOQL_SCHEMA"`
	// Watch reloads the schema file when it changes.
	Watch bool `yaml:"watch" env:"NEOQL_WATCH"`

	Features neoql.Features `yaml:"features"`

	// SlowThreshold is the execution duration above which statements are
	// logged as slow.
	SlowThreshold time.Duration `yaml:"slowThreshold" env:"NEOQL_SLOW_THRESHOLD"`
	LogLevel      string        `yaml:"logLevel" env:"NEOQL_LOG_LEVEL"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig holds the bearer token verification settings.
type AuthConfig struct {
	// Secret is the HMAC key tokens are signed with.
	Secret   string `yaml:"secret" env:"NEOQL_JWT_SECRET"`
	Issuer   string `yaml:"issuer" env:"NEOQL_JWT_ISSUER"`
	Audience string `yaml:"audience" env:"NEOQL_JWT_AUDIENCE"`
}

// Default returns the settings used for anything the file and the
// environment leave unset.
func Default() *Config {
	return &Config{
		SlowThreshold: 100 * time.Millisecond,
		LogLevel:      "info",
	}
}

// Load reads the YAML file at path and applies environment overrides. An
// empty path reads the environment only.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	p := c.Features.Pagination
	if p.DefaultLimit < 0 || p.MaxLimit < 0 {
		return errors.New("config: negative pagination limit")
	}
	if p.MaxLimit > 0 && p.DefaultLimit > p.MaxLimit {
		return fmt.Errorf("config: default limit %d exceeds max limit %d", p.DefaultLimit, p.MaxLimit)
	}
	if c.SlowThreshold < 0 {
		return errors.New("config: negative slow threshold")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return l, nil
}
