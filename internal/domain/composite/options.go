package composite

import (
	"fmt"
	"maps"

	"github.com/Tag-UCSD/image-tagger/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// Override retunes a rule without changing its shape.
type Override struct {
	// MinTerms replaces the rule minimum when positive.
	MinTerms int `koanf:"min_terms"`
	// Weights replaces term weights by term name.
	Weights map[string]float64 `koanf:"weights"`
}

func (o Override) apply(r Rule) (Rule, error) {
	if o.MinTerms > 0 {
		r.MinTerms = o.MinTerms
	}
	for name, w := range o.Weights {
		found := false
		for i := range r.Terms {
			if r.Terms[i].Name == name {
				r.Terms[i].Weight = w
				found = true
			}
		}
		if !found {
			return r, fmt.Errorf("%w: %s has no term %q", ErrInvalidRule, r.Key, name)
		}
	}
	return r, nil
}

// WithOverrides sets per-rule tuning keyed by index key.
func WithOverrides(overrides map[string]Override) Option {
	return func(e *Engine) {
		if len(overrides) > 0 {
			e.overrides = maps.Clone(overrides)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
