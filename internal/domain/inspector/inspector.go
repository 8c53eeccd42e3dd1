// Package inspector composes the consolidated per-image view used by the
// monitor UI.
package inspector

import (
	"context"
	"fmt"
	"slices"

	"github.com/Tag-UCSD/image-tagger/internal/domain/bnexport"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/irr"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/internal/domain/types"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

// Registry resolves image metadata.
type Registry interface {
	Image(ctx context.Context, id int64) (model.Image, error)
}

// Snapshotter derives records, indices and agreement for one image.
type Snapshotter interface {
	Snapshot(ctx context.Context, imageID int64) (bnexport.Snapshot, error)
}

// Inspector builds inspector payloads.
type Inspector struct {
	catalog  *catalog.Catalog
	registry Registry
	snapshot Snapshotter
}

// New creates an inspector.
func New(cat *catalog.Catalog, registry Registry, snapshot Snapshotter) *Inspector {
	return &Inspector{catalog: cat, registry: registry, snapshot: snapshot}
}

// Inspect returns the payload for imageID, or model.ErrNotFound when the
// image is not registered. Missing data renders as empty lists.
func (in *Inspector) Inspect(ctx context.Context, imageID int64) (types.InspectorPayload, error) {
	img, err := in.registry.Image(ctx, imageID)
	if err != nil {
		return types.InspectorPayload{}, err
	}
	snap, err := in.snapshot.Snapshot(ctx, imageID)
	if err != nil {
		return types.InspectorPayload{}, fmt.Errorf("inspect image %d: %w", imageID, err)
	}

	p := types.NewInspectorPayload(types.ImageInfo{
		ID:             img.ID,
		Filename:       img.Filename,
		StorageLocator: img.StorageLocator,
		DisplayURL:     img.DisplayURL,
		CreatedAt:      img.CreatedAt,
	})

	for _, r := range snap.Records {
		if r.IsHuman() {
			p.Validations = append(p.Validations, types.Validation{
				UserID:       r.Rater(),
				AttributeKey: r.Key,
				Value:        r.Value,
				DurationMS:   r.DurationMS,
				CreatedAt:    r.CreatedAt,
			})
			continue
		}
		p.Features = append(p.Features, types.Feature{
			Key:        r.Key,
			Value:      r.Value,
			Source:     r.Source,
			Confidence: r.Confidence,
		})
	}
	// Newest first; insertion order breaks timestamp ties.
	slices.Reverse(p.Validations)
	slices.SortStableFunc(p.Validations, func(a, b types.Validation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	for _, res := range snap.Indices {
		entry, _ := in.catalog.Get(res.Key)
		label := entry.Label
		if label == "" {
			label = res.Key
		}
		status := types.StatusMachine
		if res.Heuristic {
			status = types.StatusDerived
		}
		var bin *string
		if res.Bin != "" {
			b := res.Bin
			bin = &b
		}
		p.Tags = append(p.Tags, types.Tag{
			Key:      res.Key,
			Label:    label,
			RawValue: res.RawValue,
			Bin:      bin,
			Status:   status,
		})
		if bin != nil {
			p.BN.Nodes = append(p.BN.Nodes, types.Node{
				Name:      res.BinField,
				Label:     label,
				Posterior: map[string]float64{res.Bin: 1.0},
				Notes:     nodeNotes(res.Notes, res.Coverage, res.Required),
			})
		}
	}

	if score := snap.IRR.AgreementScore; score != nil {
		v := *score
		b := irr.Bin(&v)
		p.BN.IRR = &v
		p.BN.IRRBin = &b
	}
	metrics.RecordInspection()
	return p, nil
}

func nodeNotes(evidence string, coverage, required int) string {
	return fmt.Sprintf("%s (inputs %d, min %d)", evidence, coverage, required)
}
