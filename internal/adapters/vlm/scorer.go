package vlm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
)

// Scores is one VLM response: dimension name to value, plus the confidence
// the producer records for every value.
type Scores struct {
	Values     map[string]float64
	Confidence float64
}

// Scorer rates an image on the prompt's dimensions.
type Scorer interface {
	Score(ctx context.Context, image []byte, prompt string) (Scores, error)
}

// StubScorer is used when no remote provider is configured. It never
// returns scores.
type StubScorer struct{}

// Score implements Scorer.
func (StubScorer) Score(context.Context, []byte, string) (Scores, error) {
	return Scores{}, ErrNoScores
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, image []byte, prompt string) (Scores, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, image []byte, prompt string) (Scores, error) {
	return f(ctx, image, prompt)
}

// ReplyFunc returns a model's raw reply to prompt for image.
type ReplyFunc func(ctx context.Context, image []byte, prompt string) ([]byte, error)

// ReplyScorer adapts a raw reply source to Scorer. Replies are read with
// ParseScores and every value is recorded at confidence.
func ReplyScorer(reply ReplyFunc, confidence float64) Scorer {
	return ScorerFunc(func(ctx context.Context, image []byte, prompt string) (Scores, error) {
		raw, err := reply(ctx, image, prompt)
		if err != nil {
			return Scores{}, err
		}
		values, err := ParseScores(raw)
		if err != nil {
			return Scores{}, err
		}
		if len(values) == 0 {
			return Scores{}, fmt.Errorf("%w: no numeric values", ErrMalformedResponse)
		}
		return Scores{Values: values, Confidence: confidence}, nil
	})
}

// Prompt asks for every cognitive and affective dimension as one JSON object.
func Prompt() string {
	var b strings.Builder
	b.WriteString("Analyze this architectural space as an environmental psychologist.\n")
	b.WriteString("Rate each attribute from 0.0 (very low) to 1.0 (very high):\n")
	for i, key := range catalog.VLMDimensions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, Dimension(key))
	}
	b.WriteString("Return ONLY a JSON object mapping each attribute name to a float.\n")
	return b.String()
}

// Dimension returns the prompt name of a catalog key, e.g. "mystery" for
// "cognitive.mystery".
func Dimension(key string) string {
	_, name, ok := strings.Cut(key, ".")
	if !ok {
		return key
	}
	return name
}

// ParseScores extracts the dimension values from a model reply. Markdown
// fences and surrounding prose are tolerated; non-numeric values are dropped.
func ParseScores(raw []byte) (map[string]float64, error) {
	cleaned := bytes.TrimSpace(raw)
	if _, after, ok := bytes.Cut(cleaned, []byte("```")); ok {
		after = bytes.TrimPrefix(after, []byte("json"))
		body, _, _ := bytes.Cut(after, []byte("```"))
		cleaned = bytes.TrimSpace(body)
	}

	var obj map[string]any
	if err := json.Unmarshal(cleaned, &obj); err != nil {
		start := bytes.IndexByte(cleaned, '{')
		end := bytes.LastIndexByte(cleaned, '}')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if err := json.Unmarshal(cleaned[start:end+1], &obj); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
	}

	out := make(map[string]float64, len(obj))
	for k, v := range obj {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out, nil
}
