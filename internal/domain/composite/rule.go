// Package composite computes composite index scores from raw feature
// records. Every index is a named rule: a weighted combination of shaped
// input terms, renormalized over the terms present, clamped to [0,1] and
// binned through the catalog. Rules are pure; identical inputs always give
// identical results.
package composite

import (
	"fmt"
	"math"
	"strings"
)

// Shape maps a raw input onto a [0,1] contribution.
type Shape int

// Supported shapes.
const (
	// Linear clamps the input to [0,1].
	Linear Shape = iota
	// Inverse scores 1 - clamp(x): lower input, higher contribution.
	Inverse
	// Peaked is highest at 0.5 and falls to 0 at both ends.
	Peaked
)

func (s Shape) String() string {
	switch s {
	case Linear:
		return "linear"
	case Inverse:
		return "inverse"
	case Peaked:
		return "peaked"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Apply returns the shaped contribution of x.
func (s Shape) Apply(x float64) float64 {
	x = clamp01(x)
	switch s {
	case Inverse:
		return 1 - x
	case Peaked:
		return math.Max(0, 1-2*math.Abs(x-0.5))
	default:
		return x
	}
}

// Term is one weighted input of a rule. A term with several keys scores the
// mean of the shaped values present; it counts as present when any key is.
type Term struct {
	Name   string
	Keys   []string
	Weight float64
	Shape  Shape
}

// Rule derives one composite index.
type Rule struct {
	Key      string
	Terms    []Term
	MinTerms int
	// Heuristic marks uncalibrated rules; the inspector reports them as derived.
	Heuristic bool
}

// Validate reports structural problems with the rule.
func (r Rule) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidRule)
	}
	if len(r.Terms) == 0 {
		return fmt.Errorf("%w: %s has no terms", ErrInvalidRule, r.Key)
	}
	if r.MinTerms < 1 || r.MinTerms > len(r.Terms) {
		return fmt.Errorf("%w: %s min_terms %d outside [1,%d]", ErrInvalidRule, r.Key, r.MinTerms, len(r.Terms))
	}
	for _, t := range r.Terms {
		if t.Name == "" || len(t.Keys) == 0 {
			return fmt.Errorf("%w: %s has an unnamed or empty term", ErrInvalidRule, r.Key)
		}
		if !(t.Weight > 0) || math.IsInf(t.Weight, 0) {
			return fmt.Errorf("%w: %s term %s weight %v must be positive", ErrInvalidRule, r.Key, t.Name, t.Weight)
		}
	}
	return nil
}

// InputKeys returns every feature key the rule reads, in term order.
func (r Rule) InputKeys() []string {
	var out []string
	for _, t := range r.Terms {
		out = append(out, t.Keys...)
	}
	return out
}

// Score applies the rule to features. ok is false when fewer than MinTerms
// terms have a numeric input.
func (r Rule) Score(features Features) (score float64, coverage int, inputs []string, notes string, ok bool) {
	var sum, weights float64
	var parts []string
	for _, t := range r.Terms {
		var tsum float64
		var n int
		for _, k := range t.Keys {
			rec, found := features[k]
			if !found {
				continue
			}
			v, numeric := rec.Value.Float()
			if !numeric || math.IsNaN(v) {
				continue
			}
			tsum += t.Shape.Apply(v)
			n++
			inputs = append(inputs, k)
		}
		if n == 0 {
			continue
		}
		tv := tsum / float64(n)
		sum += t.Weight * tv
		weights += t.Weight
		coverage++
		parts = append(parts, fmt.Sprintf("%s=%.3f", t.Name, tv))
	}
	if coverage < r.MinTerms || weights == 0 {
		return 0, coverage, nil, "", false
	}
	return clamp01(sum / weights), coverage, inputs, strings.Join(parts, ", "), true
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
