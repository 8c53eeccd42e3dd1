package bnexport

import (
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/domain/resultcache"
	"github.com/Tag-UCSD/image-tagger/pkg/logger"
)

// Option applies a configuration option to the Exporter.
type Option func(*Exporter)

// WithSource sets the exporter version string stamped on every row.
func WithSource(source string) Option {
	return func(e *Exporter) {
		if source != "" {
			e.source = source
		}
	}
}

// WithParallelism bounds how many images are exported concurrently.
func WithParallelism(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithCache sets the composite result cache.
func WithCache(c resultcache.Cache) Option {
	return func(e *Exporter) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithLogger sets the exporter logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the clock used for codebook timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}
