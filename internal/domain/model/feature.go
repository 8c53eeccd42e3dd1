// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Source prefixes used to classify record provenance.
const (
	SourcePipelinePrefix = "science_pipeline"
	SourceHuman          = "human"
	SourceVLM            = "vlm"

	humanSourceSep = ":"
)

// ValueKind distinguishes numeric from categorical feature values.
type ValueKind uint8

// Value kinds.
const (
	KindNumber ValueKind = iota + 1
	KindText
)

// Value is a numeric or categorical scalar.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
}

// Number builds a numeric Value.
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// Text builds a categorical Value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Float returns the numeric value and whether the value is numeric.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Number, true
}

// String renders the value for display and categorical comparison.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// MarshalJSON encodes numbers as JSON numbers and text as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Number)
	case KindText:
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON number or string. null leaves v unset.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*v = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("feature value must be a number or string: %w", err)
	}
	*v = Text(s)
	return nil
}

// FeatureRecord is one atomic measurement of an image. Records are immutable
// once appended; corrections are new records under a different source.
type FeatureRecord struct {
	ImageID    int64
	Key        string
	Value      Value
	Source     string
	Confidence float64
	// DurationMS is the dwell time of a human validation, zero otherwise.
	DurationMS int64
	CreatedAt  time.Time
}

// Validate checks the record shape before it is stored.
func (r FeatureRecord) Validate() error {
	switch {
	case r.ImageID <= 0:
		return errors.New("image_id must be positive")
	case strings.TrimSpace(r.Key) == "":
		return errors.New("missing key")
	case strings.TrimSpace(r.Source) == "":
		return errors.New("missing source")
	case r.Value.Kind != KindNumber && r.Value.Kind != KindText:
		return errors.New("missing value")
	case math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1:
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	if f, ok := r.Value.Float(); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return errors.New("value must be finite")
	}
	return nil
}

// IsHuman reports whether the record is a human validation.
func (r FeatureRecord) IsHuman() bool {
	return r.Source == SourceHuman || strings.HasPrefix(r.Source, SourceHuman+humanSourceSep)
}

// IsStub reports whether the record is a placeholder emitted instead of a
// real measurement.
func (r FeatureRecord) IsStub() bool { return r.Confidence == 0 }

// Rater returns the contributor identifier of a human record, or "" for
// machine records.
func (r FeatureRecord) Rater() string {
	if !r.IsHuman() {
		return ""
	}
	if rater, ok := strings.CutPrefix(r.Source, SourceHuman+humanSourceSep); ok && rater != "" {
		return rater
	}
	return SourceHuman
}

// HumanSource returns the source tag for a validation by the given rater.
// Each rater gets a distinct source so several raters can judge the same
// (image, key) without colliding.
func HumanSource(rater string) string {
	return SourceHuman + humanSourceSep + rater
}

// SourceKind buckets a source tag for metrics labels.
func SourceKind(source string) string {
	switch {
	case strings.HasPrefix(source, SourcePipelinePrefix):
		return "pipeline"
	case source == SourceHuman || strings.HasPrefix(source, SourceHuman+humanSourceSep):
		return "human"
	case strings.HasPrefix(source, SourceVLM):
		return "vlm"
	default:
		return "other"
	}
}
