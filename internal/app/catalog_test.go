package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Tag-UCSD/image-tagger/internal/app"
	"github.com/Tag-UCSD/image-tagger/internal/config"
	"github.com/Tag-UCSD/image-tagger/internal/domain/bnexport"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/composite"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

func TestBuildCatalog(t *testing.T) {
	Convey("Given configured thresholds", t, func() {
		cfg := config.New()
		cfg.BinThresholds = []float64{0.2, 0.8}

		Convey("When the catalog is built", func() {
			cat, n, err := app.BuildCatalog(cfg)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)

			Convey("Then built-in bins use them", func() {
				e, ok := cat.Get(catalog.KeyAffectCozy)
				So(ok, ShouldBeTrue)
				So(e.Bins.Thresholds, ShouldResemble, []float64{0.2, 0.8})
			})
		})
	})

	Convey("Given an extension file", t, func() {
		path := filepath.Join(t.TempDir(), "extra.yaml")
		So(os.WriteFile(path, []byte(`entries:
  - key: science.daylight
    label: Daylight
    description: Share of daylight in the scene.
    type: float
    candidate_bn_input: true
    bins:
      field: science.daylight_bin
      values: [low, mid, high]
      thresholds: [0.33, 0.66]
`), 0o600), ShouldBeNil)
		cfg := config.New()
		cfg.CatalogPath = path

		Convey("When the gate runs", func() {
			cat, err := app.CheckCatalog(cfg)

			Convey("Then the entry loads but has no rule", func() {
				So(cat.Len(), ShouldEqual, catalog.NewDefault().Len()+1)
				So(errors.Is(err, bnexport.ErrCatalogGate), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "science.daylight")
			})
		})

		Convey("When the file is missing", func() {
			cfg.CatalogPath = filepath.Join(t.TempDir(), "absent.yaml")
			_, err := app.CheckCatalog(cfg)
			So(errors.Is(err, catalog.ErrLoadCatalog), ShouldBeTrue)
		})
	})

	Convey("Given the default configuration", t, func() {
		_, err := app.CheckCatalog(config.New())
		So(err, ShouldBeNil)

		Convey("When an override names an unknown rule", func() {
			cfg := config.New()
			cfg.RuleOverrides = map[string]composite.Override{"no.such.index": {MinTerms: 1}}
			_, err := app.CheckCatalog(cfg)
			So(errors.Is(err, composite.ErrInvalidRule), ShouldBeTrue)
		})
	})
}

const vlmExtension = `entries:
  - key: affect.playful
    label: Playful
    description: Scored by the VLM as an extra dimension.
    type: float
    tags: [vlm]
    candidate_bn_input: true
    bins:
      field: affect.playful_bin
      values: [low, mid, high]
      thresholds: [0.33, 0.66]
`

func TestVLMExtension(t *testing.T) {
	ctx := context.Background()

	Convey("Given an extension entry tagged vlm", t, func() {
		path := filepath.Join(t.TempDir(), "vlm.yaml")
		So(os.WriteFile(path, []byte(vlmExtension), 0o600), ShouldBeNil)
		cfg := config.New()
		cfg.CatalogPath = path

		Convey("When the engine is built", func() {
			cat, _, err := app.BuildCatalog(cfg)
			So(err, ShouldBeNil)
			engine, added, err := app.NewEngine(cfg, cat)
			So(err, ShouldBeNil)

			Convey("Then only the extension gets a passthrough rule", func() {
				So(added, ShouldResemble, []string{"affect.playful"})
				r, ok := engine.Rule("affect.playful")
				So(ok, ShouldBeTrue)
				So(r.MinTerms, ShouldEqual, 1)
			})

			Convey("Then the gate accepts the catalog", func() {
				_, err := app.CheckCatalog(cfg)
				So(err, ShouldBeNil)
			})
		})

		Convey("When a record for it is exported", func() {
			svc := app.New(cfg)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop(ctx)
			img, err := svc.RegisterImage(ctx, model.Image{})
			So(err, ShouldBeNil)
			So(svc.AppendFeature(ctx, model.FeatureRecord{
				ImageID: img.ID, Key: "affect.playful", Value: model.Number(0.8), Source: model.SourceVLM, Confidence: 0.7,
			}), ShouldBeNil)

			rows, err := svc.Export(ctx, []int64{img.ID})

			Convey("Then the value and bin come through", func() {
				So(err, ShouldBeNil)
				So(*rows[0].Indices["affect.playful"], ShouldEqual, 0.8)
				So(*rows[0].Bins["affect.playful_bin"], ShouldEqual, "high")
			})
		})
	})
}
