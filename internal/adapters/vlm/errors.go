package vlm

import "errors"

var (
	// ErrProviderUnavailable is returned for remote providers that have no
	// in-process client.
	ErrProviderUnavailable = errors.New("vlm provider unavailable")
	// ErrUnknownProvider is returned for provider names outside the known set.
	ErrUnknownProvider = errors.New("unknown vlm provider")
	// ErrNoScores is returned by the stub scorer.
	ErrNoScores = errors.New("no vlm scores available")
	// ErrMalformedResponse is returned when a response has no JSON object.
	ErrMalformedResponse = errors.New("malformed vlm response")
)
