package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables.
const (
	EnvPrefix = "TAGGER_"
	EnvFile   = "TAGGER_CONFIG"
)

const keyDelim = "/"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TAGGER_CONFIG is set
//  3. env (prefix TAGGER_)
func Load(_ context.Context) (*Config, error) {
	// Index keys contain dots, so they cannot be the path delimiter.
	k := koanf.New(keyDelim)

	if path := os.Getenv(EnvFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// TAGGER_EXPORT_PARALLELISM -> export_parallelism. List values are
	// comma separated, e.g. TAGGER_BIN_THRESHOLDS=0.3,0.7.
	envProvider := env.ProviderWithValue(EnvPrefix, keyDelim, func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "config" {
			return "", nil
		}
		if strings.Contains(value, ",") {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	// Decoding into a populated slice would keep stale trailing defaults.
	defaults := cfg.BinThresholds
	cfg.BinThresholds = nil
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if cfg.BinThresholds == nil {
		cfg.BinThresholds = defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.BinThresholds[0] >= c.BinThresholds[1] {
		return fmt.Errorf("%w: bin_thresholds must ascend, got %v", ErrInvalidConfig, c.BinThresholds)
	}
	return nil
}
