// Package bnexport assembles fixed-shape BN snapshot rows, the matching
// codebook and the flattened validation table.
package bnexport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/composite"
	"github.com/Tag-UCSD/image-tagger/internal/domain/irr"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/internal/domain/resultcache"
	"github.com/Tag-UCSD/image-tagger/internal/domain/types"
	"github.com/Tag-UCSD/image-tagger/pkg/logger"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

// Defaults.
const (
	DefaultSource      = "bn_export_v1"
	defaultParallelism = 4
)

// FeatureReader is the part of the feature store the exporter reads.
type FeatureReader interface {
	Query(ctx context.Context, imageID int64, keys ...string) ([]model.FeatureRecord, error)
	Revision(ctx context.Context, imageID int64) (uint64, error)
	Records(ctx context.Context) ([]model.FeatureRecord, error)
}

// ImageLookup resolves image identifiers.
type ImageLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
	ImageIDs(ctx context.Context) ([]int64, error)
}

// Snapshot is everything derived for one image in a single read.
type Snapshot struct {
	Records []model.FeatureRecord
	Indices []composite.Result
	IRR     irr.Result
}

// Exporter builds snapshot rows from the feature store.
type Exporter struct {
	catalog     *catalog.Catalog
	engine      *composite.Engine
	features    FeatureReader
	images      ImageLookup
	cache       resultcache.Cache
	source      string
	parallelism int
	logger      logger.Logger
	now         func() time.Time

	candidates []string
	binFields  []string
}

// New creates an exporter. It validates the catalog and checks every
// candidate index has a rule; on failure it returns ErrCatalogGate and no
// exporter, so nothing can be served from a malformed schema.
func New(cat *catalog.Catalog, engine *composite.Engine, features FeatureReader, images ImageLookup, opts ...Option) (*Exporter, error) {
	e := &Exporter{
		catalog:     cat,
		engine:      engine,
		features:    features,
		images:      images,
		source:      DefaultSource,
		parallelism: defaultParallelism,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Named("bnexport")
	}
	if e.cache == nil {
		e.cache, _ = resultcache.New(0)
	}

	if err := CheckCatalog(cat, engine); err != nil {
		return nil, err
	}
	metrics.UpdateCatalogEntries(cat.Len())

	e.candidates = cat.CandidateBNKeys()
	for _, k := range e.candidates {
		entry, _ := cat.Get(k)
		e.binFields = append(e.binFields, entry.BinField())
	}
	return e, nil
}

// CheckCatalog runs the catalog validation and the rule coverage check.
func CheckCatalog(cat *catalog.Catalog, engine *composite.Engine) error {
	err := cat.Validate()
	var violations catalog.Violations
	if errors.As(err, &violations) {
		metrics.UpdateCatalogViolations(len(violations))
	} else {
		metrics.UpdateCatalogViolations(0)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCatalogGate, err)
	}
	if missing := engine.Missing(cat.CandidateBNKeys()); len(missing) > 0 {
		return fmt.Errorf("%w: no rule registered for %s", ErrCatalogGate, strings.Join(missing, ", "))
	}
	return nil
}

// Source returns the exporter version string.
func (e *Exporter) Source() string { return e.source }

// Snapshot reads the records of imageID and derives its composite indices
// and agreement. It does not check that the image is registered.
func (e *Exporter) Snapshot(ctx context.Context, imageID int64) (Snapshot, error) {
	// Read the revision first: a concurrent append then only makes the
	// cached entry unreachable, never stale.
	rev, err := e.features.Revision(ctx, imageID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read revision of image %d: %w", imageID, err)
	}
	records, err := e.features.Query(ctx, imageID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query image %d: %w", imageID, err)
	}

	indices, ok := e.cache.Get(ctx, imageID, rev)
	if !ok {
		indices = e.evaluate(composite.Collect(records))
		e.cache.Put(ctx, imageID, rev, indices)
	}
	return Snapshot{Records: records, Indices: indices, IRR: irr.Compute(imageID, records)}, nil
}

// evaluate runs every catalog entry that has a rule, in catalog order.
func (e *Exporter) evaluate(features composite.Features) []composite.Result {
	entries := e.catalog.Entries()
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	return e.engine.EvaluateAll(keys, features)
}

// Export returns one row per id, in order. An unregistered id fails the
// whole export with model.ErrNotFound; a registered id without data yields
// an all-null row.
func (e *Exporter) Export(ctx context.Context, ids []int64) ([]types.BNRow, error) {
	start := time.Now()
	runID := uuid.NewString()

	rows := make([]types.BNRow, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			row, err := e.row(gCtx, id)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn(ctx, "export failed",
			logger.String("run_id", runID),
			logger.Error(err))
		return nil, err
	}

	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordExportRows(len(rows))
	metrics.RecordExportLatency(ms)
	e.logger.Info(ctx, "bn snapshot exported",
		logger.String("run_id", runID),
		logger.String("source", e.source),
		logger.Int("rows", len(rows)),
		logger.Float64("duration_ms", ms))
	return rows, nil
}

// ExportAll exports every registered image in id order.
func (e *Exporter) ExportAll(ctx context.Context) ([]types.BNRow, error) {
	ids, err := e.images.ImageIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return e.Export(ctx, ids)
}

func (e *Exporter) row(ctx context.Context, id int64) (types.BNRow, error) {
	exists, err := e.images.Exists(ctx, id)
	if err != nil {
		return types.BNRow{}, fmt.Errorf("lookup image %d: %w", id, err)
	}
	if !exists {
		return types.BNRow{}, fmt.Errorf("%w: %d", model.ErrNotFound, id)
	}
	snap, err := e.Snapshot(ctx, id)
	if err != nil {
		return types.BNRow{}, err
	}

	row := types.NewBNRow(id, e.source, e.candidates, e.binFields)
	for _, res := range snap.Indices {
		if _, ok := row.Indices[res.Key]; !ok {
			continue
		}
		v := res.RawValue
		row.Indices[res.Key] = &v
		if res.Bin != "" {
			if _, ok := row.Bins[res.BinField]; ok {
				b := res.Bin
				row.Bins[res.BinField] = &b
			}
		}
	}
	if snap.IRR.AgreementScore != nil {
		score := *snap.IRR.AgreementScore
		bin := irr.Bin(&score)
		row.AgreementScore = &score
		row.IRRBin = &bin
	}
	return row, nil
}

// Codebook describes the snapshot columns.
func (e *Exporter) Codebook() types.Codebook {
	vars := []types.CodebookVariable{
		{Name: "image_id", Role: types.RoleID, VarType: types.VarDiscrete, Description: "Image identifier"},
		{Name: "source", Role: types.RoleMeta, VarType: types.VarDiscrete, Description: "Exporter version"},
	}
	for _, k := range e.candidates {
		entry, _ := e.catalog.Get(k)
		varType := types.VarContinuous
		if entry.Type == catalog.TypeStr {
			varType = types.VarDiscrete
		}
		vars = append(vars, types.CodebookVariable{
			Name:        k,
			Role:        types.RoleIndex,
			VarType:     varType,
			Description: entry.Description,
		})
		if entry.Bins != nil {
			vars = append(vars, types.CodebookVariable{
				Name:        entry.Bins.Field,
				Role:        types.RoleBin,
				VarType:     types.VarOrdinal,
				States:      append([]string(nil), entry.Bins.Values...),
				Description: "Binned " + entry.Label,
				Index:       k,
			})
		}
	}
	vars = append(vars,
		types.CodebookVariable{Name: "agreement_score", Role: types.RoleMeta, VarType: types.VarContinuous, Description: "Inter-rater agreement, null without two raters on any attribute"},
		types.CodebookVariable{Name: "irr_bin", Role: types.RoleMeta, VarType: types.VarOrdinal, States: []string{irr.BinLow, irr.BinMedium, irr.BinHigh}, Description: "Binned inter-rater agreement", Index: "agreement_score"},
	)
	return types.Codebook{Source: e.source, GeneratedAt: e.now().UTC(), Variables: vars}
}

// ValidationRows flattens every stored record, human and machine, in
// insertion order.
func (e *Exporter) ValidationRows(ctx context.Context) ([]types.ValidationRow, error) {
	records, err := e.features.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	rows := make([]types.ValidationRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, types.ValidationRow{
			ImageID:      r.ImageID,
			AttributeKey: r.Key,
			Value:        r.Value,
			Source:       r.Source,
			SourceKind:   model.SourceKind(r.Source),
			Rater:        r.Rater(),
			Confidence:   r.Confidence,
			DurationMS:   r.DurationMS,
			CreatedAt:    r.CreatedAt,
		})
	}
	return rows, nil
}

// Glossary describes every candidate index.
func (e *Exporter) Glossary() map[string]catalog.GlossaryEntry {
	return e.catalog.Glossary()
}
