package composite

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/pkg/logger"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

// Evaluation outcomes reported to metrics.
const (
	outcomeComputed = "computed"
	outcomeOmitted  = "omitted"
)

// Features maps a feature key to the record selected for it.
type Features map[string]model.FeatureRecord

// Collect selects one machine record per key from an image's records. Human
// validations never feed composite rules. Among machine records sharing a
// key the highest confidence wins, ties going to the later record. Stubs
// are kept and count toward coverage.
func Collect(records []model.FeatureRecord) Features {
	out := make(Features, len(records))
	for _, r := range records {
		if r.IsHuman() {
			continue
		}
		if cur, ok := out[r.Key]; ok && cur.Confidence > r.Confidence {
			continue
		}
		out[r.Key] = r
	}
	return out
}

// Result is the outcome of evaluating one index for one image.
type Result struct {
	Key      string  `json:"key"`
	RawValue float64 `json:"raw_value"`
	// Bin is "" when the catalog entry declares no bins.
	Bin       string   `json:"bin,omitempty"`
	BinField  string   `json:"bin_field,omitempty"`
	Coverage  int      `json:"coverage"`
	Required  int      `json:"required"`
	Inputs    []string `json:"inputs"`
	Heuristic bool     `json:"heuristic"`
	Notes     string   `json:"notes"`
}

// Engine evaluates registered rules against the catalog's bin specs.
type Engine struct {
	catalog   *catalog.Catalog
	mu        sync.RWMutex
	rules     map[string]Rule
	overrides map[string]Override
	logger    logger.Logger
}

// New creates an engine over cat with the default rules registered.
func New(cat *catalog.Catalog, opts ...Option) (*Engine, error) {
	e := &Engine{
		catalog: cat,
		rules:   make(map[string]Rule),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Named("composite")
	}
	for _, r := range DefaultRules() {
		if err := e.Register(r); err != nil {
			return nil, err
		}
	}
	for key := range e.overrides {
		if _, ok := e.rules[key]; !ok {
			return nil, fmt.Errorf("%w: override for unknown rule %s", ErrInvalidRule, key)
		}
	}
	return e, nil
}

// Register adds or replaces the rule for r.Key after applying any configured
// override.
func (e *Engine) Register(r Rule) error {
	r = cloneRule(r)
	if o, ok := e.overrides[r.Key]; ok {
		var err error
		if r, err = o.apply(r); err != nil {
			return err
		}
	}
	if err := r.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.rules[r.Key] = r
	e.mu.Unlock()
	return nil
}

// Rule returns the registered rule for key.
func (e *Engine) Rule(key string) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[key]
	if !ok {
		return Rule{}, false
	}
	return cloneRule(r), true
}

// Missing returns the keys that have no registered rule.
func (e *Engine) Missing(keys []string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for _, k := range keys {
		if _, ok := e.rules[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// Evaluate computes the index key from features. ok is false when the key
// has no rule or catalog entry, or when coverage is below the rule minimum;
// no value is fabricated in that case.
func (e *Engine) Evaluate(key string, features Features) (Result, bool) {
	e.mu.RLock()
	rule, ok := e.rules[key]
	e.mu.RUnlock()
	if !ok {
		return Result{}, false
	}
	entry, ok := e.catalog.Get(key)
	if !ok {
		return Result{}, false
	}

	score, coverage, inputs, notes, ok := rule.Score(features)
	if !ok {
		metrics.RecordCompositeEvaluation(key, outcomeOmitted)
		e.logger.Debug(context.Background(), "composite omitted",
			logger.String("index", key),
			logger.Int("coverage", coverage),
			logger.Int("required", rule.MinTerms))
		return Result{}, false
	}
	metrics.RecordCompositeEvaluation(key, outcomeComputed)

	res := Result{
		Key:       key,
		RawValue:  score,
		Coverage:  coverage,
		Required:  rule.MinTerms,
		Inputs:    inputs,
		Heuristic: rule.Heuristic,
		Notes:     notes,
	}
	if entry.Bins != nil {
		res.Bin = entry.Bins.Label(score)
		res.BinField = entry.Bins.Field
	}
	return res, true
}

// EvaluateAll evaluates keys in order and returns the results that could be
// computed.
func (e *Engine) EvaluateAll(keys []string, features Features) []Result {
	out := make([]Result, 0, len(keys))
	for _, k := range keys {
		if r, ok := e.Evaluate(k, features); ok {
			out = append(out, r)
		}
	}
	return out
}

func cloneRule(r Rule) Rule {
	r.Terms = slices.Clone(r.Terms)
	for i := range r.Terms {
		r.Terms[i].Keys = slices.Clone(r.Terms[i].Keys)
	}
	return r
}
