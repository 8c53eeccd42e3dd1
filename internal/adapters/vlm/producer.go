// Package vlm turns VLM scores into cognitive and affective feature records.
package vlm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/adapters/repository"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/pkg/logger"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

// Stub values.
const (
	StubValue         = 0.5
	defaultConfidence = 0.9
)

// Stub reasons.
const (
	ReasonStub    = "stub"
	ReasonTimeout = "timeout"
	ReasonError   = "error"
)

// Appender is the write side of the feature store.
type Appender interface {
	Append(ctx context.Context, rec model.FeatureRecord) error
}

// Report summarizes one Produce call.
type Report struct {
	ImageID    int64    `json:"image_id"`
	Written    []string `json:"written"`
	Duplicates []string `json:"duplicates"`
	Stubbed    bool     `json:"stubbed"`
	Reason     string   `json:"reason,omitempty"`
}

// Producer scores images and appends the results with source "vlm".
type Producer struct {
	cfg      ProviderConfig
	appender Appender
	scorer   Scorer
	logger   logger.Logger
	now      func() time.Time
}

// NewProducer resolves the scorer from cfg unless WithScorer is given.
func NewProducer(cfg ProviderConfig, appender Appender, opts ...Option) (*Producer, error) {
	p := &Producer{cfg: cfg.Normalize(), appender: appender, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Named("vlm")
	}
	if p.scorer == nil {
		s, err := NewScorer(p.cfg)
		if err != nil {
			return nil, err
		}
		p.scorer = s
	}
	return p, nil
}

// Provider returns the configured provider name.
func (p *Producer) Provider() string { return p.cfg.Provider }

// Produce scores image and writes one record per dimension. When the scorer
// fails or times out every dimension gets a neutral stub with confidence 0,
// so the failure never reaches the caller. Only store errors other than
// duplicates are returned.
func (p *Producer) Produce(ctx context.Context, imageID int64, image []byte) (Report, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	scores, err := p.scorer.Score(callCtx, image, Prompt())
	cancel()

	rep := Report{ImageID: imageID, Written: []string{}, Duplicates: []string{}}
	values := map[string]float64{}
	confidence := scores.Confidence
	if err != nil {
		rep.Stubbed = true
		rep.Reason = reason(err)
		confidence = 0
		for _, key := range catalog.VLMDimensions {
			values[key] = StubValue
		}
		metrics.RecordVLMStub(rep.Reason, len(values))
		p.logger.Warn(ctx, "vlm scoring failed, writing stubs",
			logger.Int64("image_id", imageID),
			logger.String("provider", p.cfg.Provider),
			logger.String("reason", rep.Reason),
			logger.Error(err))
	} else {
		if !(confidence > 0 && confidence <= 1) {
			confidence = defaultConfidence
		}
		for _, key := range catalog.VLMDimensions {
			if v, ok := scores.Values[Dimension(key)]; ok && !math.IsNaN(v) {
				values[key] = clamp(v)
			}
		}
	}

	at := p.now().UTC()
	for _, key := range catalog.VLMDimensions {
		v, ok := values[key]
		if !ok {
			continue
		}
		err := p.appender.Append(ctx, model.FeatureRecord{
			ImageID:    imageID,
			Key:        key,
			Value:      model.Number(v),
			Source:     model.SourceVLM,
			Confidence: confidence,
			CreatedAt:  at,
		})
		switch {
		case err == nil:
			rep.Written = append(rep.Written, key)
		case errors.Is(err, repository.ErrDuplicateKey):
			rep.Duplicates = append(rep.Duplicates, key)
		default:
			return rep, fmt.Errorf("write %s for image %d: %w", key, imageID, err)
		}
	}
	p.logger.Debug(ctx, "vlm features produced",
		logger.Int64("image_id", imageID),
		logger.Int("written", len(rep.Written)),
		logger.Int("duplicates", len(rep.Duplicates)),
		logger.Bool("stubbed", rep.Stubbed))
	return rep, nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrNoScores):
		return ReasonStub
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonError
	}
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
