package vlm

import (
	"fmt"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderAuto      = "auto"
	ProviderStub      = "stub"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const defaultTimeout = 30 * time.Second

// ProviderConfig selects the scorer and bounds each call.
type ProviderConfig struct {
	Provider string
	Timeout  time.Duration
}

// Normalize lower-cases the provider and fills defaults.
func (c ProviderConfig) Normalize() ProviderConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderAuto
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// NewScorer resolves cfg to a scorer. auto falls back to the stub scorer;
// named remote providers report ErrProviderUnavailable.
func NewScorer(cfg ProviderConfig) (Scorer, error) {
	cfg = cfg.Normalize()
	switch cfg.Provider {
	case ProviderAuto, ProviderStub:
		return StubScorer{}, nil
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, cfg.Provider)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
