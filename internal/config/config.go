// Package config defines service configuration structures and loading hooks.
package config

import (
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/domain/composite"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// StoreDriver selects the feature store backend.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory sqlite"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=StoreDriver sqlite"`

	// CatalogPath optionally names a YAML file of extra catalog entries.
	// Extension entries tagged vlm pass stored values through; other
	// candidate entries need a rule in code.
	CatalogPath string `koanf:"catalog_path"`

	// BinThresholds are the low/high cut points of the built-in three-level bins.
	BinThresholds []float64 `koanf:"bin_thresholds" validate:"len=2,dive,gt=0,lt=1"`

	// ExportSource is stamped on every exported row.
	ExportSource string `koanf:"export_source" validate:"required"`

	// ExportParallelism bounds concurrent row builds per export.
	ExportParallelism int `koanf:"export_parallelism" validate:"min=1"`

	// CacheSize is the number of per-image results kept; 0 disables the cache.
	CacheSize int `koanf:"cache_size" validate:"min=0"`

	// IngestQueueSize bounds the number of pending ingest batches.
	IngestQueueSize int `koanf:"ingest_queue_size" validate:"min=1"`

	// IngestDedupeSize is the number of batch ids remembered for replay
	// detection; 0 or less remembers every id.
	IngestDedupeSize int `koanf:"ingest_dedupe_size"`

	// IngestWorkers sets the number of ingest workers; 0 means one per CPU.
	IngestWorkers int `koanf:"ingest_workers" validate:"min=0"`

	// VLMProvider is auto, stub, gemini, openai or anthropic.
	VLMProvider string `koanf:"vlm_provider" validate:"oneof=auto stub gemini openai anthropic"`

	// VLMTimeoutMS bounds a single VLM call.
	VLMTimeoutMS int `koanf:"vlm_timeout_ms" validate:"min=1"`

	// RuleOverrides tunes composite rules by index key.
	RuleOverrides map[string]composite.Override `koanf:"rule_overrides"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		StoreDriver:       DriverMemory,
		SQLitePath:        "tagger.db",
		BinThresholds:     []float64{0.33, 0.66},
		ExportSource:      "bn_export_v1",
		ExportParallelism: 4,
		CacheSize:         10_000,
		IngestQueueSize:   1024,
		IngestDedupeSize:  50_000,
		IngestWorkers:     0,
		VLMProvider:       "auto",
		VLMTimeoutMS:      30_000,
		RuleOverrides:     map[string]composite.Override{},
	}
}

// VLMTimeout returns VLMTimeoutMS as a duration.
func (c *Config) VLMTimeout() time.Duration {
	return time.Duration(c.VLMTimeoutMS) * time.Millisecond
}
