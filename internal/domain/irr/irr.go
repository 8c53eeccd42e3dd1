// Package irr computes inter-rater agreement over human validations.
package irr

import (
	"context"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

// Agreement bin labels and cut points.
const (
	BinLow    = "low"
	BinMedium = "medium"
	BinHigh   = "high"

	lowCut  = 0.4
	highCut = 0.7
)

// binaryThreshold splits numeric judgments into positive and negative.
const binaryThreshold = 0.5

const (
	labelPositive = "1"
	labelNegative = "0"
)

// KeyAgreement is the agreement on one attribute.
type KeyAgreement struct {
	Key       string  `json:"key"`
	Raters    int     `json:"raters"`
	Majority  string  `json:"majority"`
	Agreeing  int     `json:"agreeing"`
	Agreement float64 `json:"agreement"`
}

// Result summarizes agreement for one image. AgreementScore is nil when no
// attribute has two or more raters.
type Result struct {
	ImageID        int64          `json:"image_id"`
	AgreementScore *float64       `json:"agreement_score"`
	ConflictCount  int            `json:"conflict_count"`
	Raters         []string       `json:"raters"`
	Keys           []KeyAgreement `json:"keys"`
}

// Compute derives the agreement for imageID from its records. Machine
// records and records of other images are ignored.
func Compute(imageID int64, records []model.FeatureRecord) Result {
	res := Result{ImageID: imageID, Raters: []string{}, Keys: []KeyAgreement{}}

	byKey := make(map[string]map[string]string)
	var keyOrder []string
	for _, r := range records {
		if r.ImageID != imageID || !r.IsHuman() {
			continue
		}
		rater := r.Rater()
		if !slices.Contains(res.Raters, rater) {
			res.Raters = append(res.Raters, rater)
		}
		votes, ok := byKey[r.Key]
		if !ok {
			votes = make(map[string]string)
			byKey[r.Key] = votes
			keyOrder = append(keyOrder, r.Key)
		}
		votes[rater] = label(r.Value)
	}
	slices.Sort(res.Raters)
	slices.Sort(keyOrder)

	var scores []float64
	for _, key := range keyOrder {
		votes := byKey[key]
		if len(votes) < 2 {
			continue
		}
		majority, agreeing := majorityOf(votes)
		ka := KeyAgreement{
			Key:       key,
			Raters:    len(votes),
			Majority:  majority,
			Agreeing:  agreeing,
			Agreement: float64(agreeing) / float64(len(votes)),
		}
		if agreeing < len(votes) {
			res.ConflictCount++
		}
		res.Keys = append(res.Keys, ka)
		scores = append(scores, ka.Agreement)
	}

	if len(scores) > 0 {
		mean := stat.Mean(scores, nil)
		res.AgreementScore = &mean
		metrics.RecordIRRComputation("scored")
	} else {
		metrics.RecordIRRComputation("insufficient")
	}
	return res
}

// label maps a judgment onto a comparable vote. Numeric judgments are
// binary at binaryThreshold; text judgments compare exactly.
func label(v model.Value) string {
	if f, ok := v.Float(); ok {
		if f >= binaryThreshold {
			return labelPositive
		}
		return labelNegative
	}
	return v.String()
}

// majorityOf returns the most common vote and its count. Ties prefer the
// positive vote, then the lexically smallest label.
func majorityOf(votes map[string]string) (string, int) {
	counts := make(map[string]int)
	for _, v := range votes {
		counts[v]++
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	slices.Sort(labels)

	best, bestN := "", -1
	for _, l := range labels {
		n := counts[l]
		if n > bestN || (n == bestN && l == labelPositive) {
			best, bestN = l, n
		}
	}
	return best, bestN
}

// Bin labels an agreement score; it returns "" for a nil score.
func Bin(score *float64) string {
	if score == nil {
		return ""
	}
	switch {
	case *score < lowCut:
		return BinLow
	case *score < highCut:
		return BinMedium
	default:
		return BinHigh
	}
}

// RecordSource supplies the records of one image.
type RecordSource interface {
	Query(ctx context.Context, imageID int64, keys ...string) ([]model.FeatureRecord, error)
}

// Aggregator computes agreement over a feature store.
type Aggregator struct {
	source RecordSource
}

// NewAggregator creates an aggregator reading from source.
func NewAggregator(source RecordSource) *Aggregator {
	return &Aggregator{source: source}
}

// Compute returns the agreement for imageID, computed fresh from the store.
func (a *Aggregator) Compute(ctx context.Context, imageID int64) (Result, error) {
	records, err := a.source.Query(ctx, imageID)
	if err != nil {
		return Result{}, fmt.Errorf("query human records: %w", err)
	}
	return Compute(imageID, records), nil
}
