package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Tag-UCSD/image-tagger/internal/adapters/repository"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/vlm"
	"github.com/Tag-UCSD/image-tagger/internal/app"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/composite"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

const (
	seedPipelineSource = "science_pipeline_seed"
	seedVLMConfidence  = 0.6
)

// seedAttributes are the human-judged attributes written by seed.
var seedAttributes = []string{"global.relevance", "style.modern"}

// seedInputs are the pipeline features written by seed.
var seedInputs = []string{
	composite.KeyNaturalMaterialRatio,
	composite.KeySpatialEntropy,
	composite.KeyClutterDensity,
	composite.KeyProcessingLoad,
	composite.KeyColorLabVolume,
	composite.KeyColorWarmthRatio,
	composite.KeyTextureMicroContrast,
	composite.KeyComplexityEdges,
	composite.KeyFractalDimension,
}

type seedResult struct {
	ImageID  int64  `json:"image_id"`
	Filename string `json:"filename"`
	Pipeline int    `json:"pipeline"`
	Human    int    `json:"human"`
	VLM      int    `json:"vlm"`
	Stubbed  bool   `json:"stubbed"`
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var images, raters int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register demo images with pipeline, human and VLM records",
		Long: "seed registers images and writes deterministic pipeline features, human\n" +
			"validations and VLM scores for them. Use it with --db to populate a database.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if images < 1 || raters < 0 {
				return fmt.Errorf("need at least one image and a non-negative rater count")
			}
			return opts.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				results := make([]seedResult, 0, images)
				for i := range images {
					res, err := seedImage(ctx, svc, i, raters)
					if err != nil {
						return err
					}
					results = append(results, res)
				}

				out := cmd.OutOrStdout()
				if opts.json() {
					return writeJSON(out, results)
				}
				rows := make([]table.Row, len(results))
				for i, r := range results {
					rows[i] = table.Row{r.ImageID, r.Filename, r.Pipeline, r.Human, r.VLM, r.Stubbed}
				}
				renderTable(out, []string{"IMAGE", "FILE", "PIPELINE", "HUMAN", "VLM", "STUBBED"}, rows, 1, 3, 4, 5)
				return nil
			}, app.WithVLMScorer(vlm.ReplyScorer(seedReply, seedVLMConfidence)))
		},
	}
	cmd.Flags().IntVar(&images, "images", 3, "Number of images to register")
	cmd.Flags().IntVar(&raters, "raters", 3, "Human raters per image")
	return cmd
}

func seedImage(ctx context.Context, svc *app.Service, n, raters int) (seedResult, error) {
	img, err := svc.RegisterImage(ctx, model.Image{
		Filename:       fmt.Sprintf("seed_%03d.jpg", n+1),
		StorageLocator: fmt.Sprintf("seed/seed_%03d.jpg", n+1),
	})
	if err != nil {
		return seedResult{}, err
	}
	res := seedResult{ImageID: img.ID, Filename: img.Filename}

	for j, key := range seedInputs {
		rec := model.FeatureRecord{
			ImageID:    img.ID,
			Key:        key,
			Value:      model.Number(seedValue(n, j)),
			Source:     seedPipelineSource,
			Confidence: 0.9,
		}
		if err := appendIgnoringDuplicates(ctx, svc, rec); err != nil {
			return res, err
		}
		res.Pipeline++
	}

	for r := range raters {
		for a, attr := range seedAttributes {
			vote := 0.0
			if (n+r+a)%3 != 0 {
				vote = 1
			}
			rec := model.FeatureRecord{
				ImageID:    img.ID,
				Key:        attr,
				Value:      model.Number(vote),
				Source:     model.HumanSource(fmt.Sprintf("rater%d", r+1)),
				Confidence: 1,
				DurationMS: int64(800 + 150*r),
			}
			if err := appendIgnoringDuplicates(ctx, svc, rec); err != nil {
				return res, err
			}
			res.Human++
		}
	}

	report, err := svc.ProduceVLM(ctx, img.ID, []byte(img.StorageLocator))
	if err != nil {
		return res, err
	}
	res.VLM = len(report.Written)
	res.Stubbed = report.Stubbed
	return res, nil
}

func appendIgnoringDuplicates(ctx context.Context, svc *app.Service, rec model.FeatureRecord) error {
	err := svc.AppendFeature(ctx, rec)
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil
	}
	return err
}

// seedValue spreads values over [0, 1] so the images land in different bins.
func seedValue(image, feature int) float64 {
	v := math.Mod(0.37*float64(image+1)+0.23*float64(feature), 1)
	return math.Round(v*1000) / 1000
}

// seedReply answers the VLM prompt with a fenced JSON object whose values
// depend only on the image bytes.
func seedReply(_ context.Context, image []byte, _ string) ([]byte, error) {
	h := fnv.New32a()
	_, _ = h.Write(image)
	n := int(h.Sum32() % 97)
	scores := make(map[string]float64, len(catalog.VLMDimensions))
	for i, key := range catalog.VLMDimensions {
		scores[vlm.Dimension(key)] = seedValue(n, len(seedInputs)+i)
	}
	body, err := json.Marshal(scores)
	if err != nil {
		return nil, err
	}
	return append(append([]byte("```json\n"), body...), "\n```"...), nil
}
