package vlm

import (
	"time"

	"github.com/Tag-UCSD/image-tagger/pkg/logger"
)

// Option configures a Producer.
type Option func(*Producer)

// WithScorer replaces the scorer resolved from the provider config.
func WithScorer(s Scorer) Option {
	return func(p *Producer) {
		if s != nil {
			p.scorer = s
		}
	}
}

// WithLogger sets the producer logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Producer) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Producer) {
		if now != nil {
			p.now = now
		}
	}
}
