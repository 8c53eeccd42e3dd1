package composite_test

import (
	"errors"
	"math"
	"testing"

	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/composite"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func feat(key string, v float64) model.FeatureRecord {
	return model.FeatureRecord{ImageID: 1, Key: key, Value: model.Number(v), Source: "science_pipeline_v3.1", Confidence: 1}
}

func features(recs ...model.FeatureRecord) composite.Features {
	return composite.Collect(recs)
}

func TestRestorativeRule(t *testing.T) {
	Convey("Given an engine over the default catalog", t, func() {
		engine, err := composite.New(catalog.NewDefault())
		So(err, ShouldBeNil)

		Convey("When two of the four inputs are present", func() {
			f := features(
				feat(composite.KeyNaturalMaterialRatio, 0.8),
				feat(composite.KeyClutterDensity, 0.1),
			)
			res, ok := engine.Evaluate(catalog.KeyRestorativeH1, f)

			Convey("Then a binned result is produced", func() {
				So(ok, ShouldBeTrue)
				So(res.RawValue, ShouldBeBetweenOrEqual, 0, 1)
				So(res.RawValue, ShouldAlmostEqual, (0.4*0.8+0.15*0.9)/0.55, 1e-12)
				So(res.Bin, ShouldEqual, "high")
				So(res.BinField, ShouldEqual, "affect.restorative_h1_bin")
				So(res.Coverage, ShouldEqual, 2)
				So(res.Required, ShouldEqual, 2)
				So(res.Heuristic, ShouldBeTrue)
				So(res.Inputs, ShouldResemble, []string{composite.KeyNaturalMaterialRatio, composite.KeyClutterDensity})
				So(res.Notes, ShouldContainSubstring, "natural_material=0.800")
			})
		})

		Convey("When only one input is present", func() {
			f := features(feat(composite.KeyNaturalMaterialRatio, 0.8))
			_, ok := engine.Evaluate(catalog.KeyRestorativeH1, f)

			Convey("Then no result is produced", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When spatial entropy is at the midpoint or the extremes", func() {
			mid, ok := engine.Evaluate(catalog.KeyRestorativeH1, features(
				feat(composite.KeySpatialEntropy, 0.5),
				feat(composite.KeyProcessingLoad, 0),
			))
			So(ok, ShouldBeTrue)
			low, _ := engine.Evaluate(catalog.KeyRestorativeH1, features(
				feat(composite.KeySpatialEntropy, 0),
				feat(composite.KeyProcessingLoad, 0),
			))
			high, _ := engine.Evaluate(catalog.KeyRestorativeH1, features(
				feat(composite.KeySpatialEntropy, 1),
				feat(composite.KeyProcessingLoad, 0),
			))

			Convey("Then the midpoint scores highest", func() {
				So(mid.RawValue, ShouldAlmostEqual, 1.0, 1e-12)
				So(low.RawValue, ShouldAlmostEqual, 0.15/0.45, 1e-12)
				So(high.RawValue, ShouldEqual, low.RawValue)
			})
		})

		Convey("When the same features are evaluated twice", func() {
			f := features(
				feat(composite.KeyNaturalMaterialRatio, 0.37),
				feat(composite.KeySpatialEntropy, 0.61),
				feat(composite.KeyClutterDensity, 0.22),
				feat(composite.KeyProcessingLoad, 0.48),
			)
			a, okA := engine.Evaluate(catalog.KeyRestorativeH1, f)
			b, okB := engine.Evaluate(catalog.KeyRestorativeH1, f)

			Convey("Then the results are bit-identical", func() {
				So(okA && okB, ShouldBeTrue)
				So(math.Float64bits(a.RawValue), ShouldEqual, math.Float64bits(b.RawValue))
				So(a, ShouldResemble, b)
			})
		})
	})
}

func TestGroupRules(t *testing.T) {
	Convey("Given an engine over the default catalog", t, func() {
		engine, err := composite.New(catalog.NewDefault())
		So(err, ShouldBeNil)

		Convey("When visual richness has color and complexity but no texture", func() {
			res, ok := engine.Evaluate(catalog.KeyVisualRichness, features(
				feat(composite.KeyColorLabVolume, 0.2),
				feat(composite.KeyColorWarmthRatio, 0.4),
				feat(composite.KeyComplexityEdges, 0.9),
			))

			Convey("Then it averages the groups present", func() {
				So(ok, ShouldBeTrue)
				So(res.RawValue, ShouldAlmostEqual, 0.6, 1e-12)
				So(res.Bin, ShouldEqual, "mid")
				So(res.Coverage, ShouldEqual, 2)
			})
		})

		Convey("When no input of a group rule is present", func() {
			_, ok := engine.Evaluate(catalog.KeyOrganizedComplexity, features(feat("unrelated.key", 1)))
			So(ok, ShouldBeFalse)
		})

		Convey("When a VLM dimension is a stub", func() {
			stub := feat(catalog.KeyAffectCozy, 0.5)
			stub.Source = model.SourceVLM
			stub.Confidence = 0
			res, ok := engine.Evaluate(catalog.KeyAffectCozy, features(stub))

			Convey("Then the stub still counts toward coverage", func() {
				So(ok, ShouldBeTrue)
				So(res.RawValue, ShouldEqual, 0.5)
				So(res.Bin, ShouldEqual, "mid")
			})
		})

		Convey("When the input is categorical", func() {
			rec := feat(catalog.KeyAffectCozy, 0)
			rec.Value = model.Text("very")
			_, ok := engine.Evaluate(catalog.KeyAffectCozy, features(rec))
			So(ok, ShouldBeFalse)
		})

		Convey("When the key is not a registered rule", func() {
			_, ok := engine.Evaluate("no.such.index", features())
			So(ok, ShouldBeFalse)
			So(engine.Missing([]string{catalog.KeyAffectCozy, "no.such.index"}), ShouldResemble, []string{"no.such.index"})
		})

		Convey("When evaluating every candidate key", func() {
			res := engine.EvaluateAll(catalog.NewDefault().CandidateBNKeys(), features(feat(catalog.KeyAffectTranquil, 0.1)))
			So(res, ShouldHaveLength, 1)
			So(res[0].Key, ShouldEqual, catalog.KeyAffectTranquil)
			So(res[0].Bin, ShouldEqual, "low")
		})
	})
}

func TestCollect(t *testing.T) {
	Convey("Given records for one image from several sources", t, func() {
		human := feat(composite.KeyClutterDensity, 0.9)
		human.Source = model.HumanSource("alice")
		weak := feat(composite.KeyNaturalMaterialRatio, 0.1)
		weak.Confidence = 0.4
		strong := feat(composite.KeyNaturalMaterialRatio, 0.7)
		strong.Source = "science_pipeline_v3.2"
		strong.Confidence = 0.9
		tieFirst := feat(composite.KeySpatialEntropy, 0.2)
		tieLast := feat(composite.KeySpatialEntropy, 0.3)
		tieLast.Source = "science_pipeline_v3.3"

		f := composite.Collect([]model.FeatureRecord{human, strong, weak, tieFirst, tieLast})

		Convey("Then human records are ignored", func() {
			So(f, ShouldNotContainKey, composite.KeyClutterDensity)
		})

		Convey("Then the highest confidence wins", func() {
			v, _ := f[composite.KeyNaturalMaterialRatio].Value.Float()
			So(v, ShouldEqual, 0.7)
		})

		Convey("Then ties go to the later record", func() {
			v, _ := f[composite.KeySpatialEntropy].Value.Float()
			So(v, ShouldEqual, 0.3)
		})
	})
}

func TestOverrides(t *testing.T) {
	Convey("Given an override raising the restorative minimum", t, func() {
		engine, err := composite.New(catalog.NewDefault(), composite.WithOverrides(map[string]composite.Override{
			catalog.KeyRestorativeH1: {MinTerms: 3, Weights: map[string]float64{"clutter": 0.4}},
		}))
		So(err, ShouldBeNil)

		Convey("Then two inputs are no longer enough", func() {
			_, ok := engine.Evaluate(catalog.KeyRestorativeH1, features(
				feat(composite.KeyNaturalMaterialRatio, 0.8),
				feat(composite.KeyClutterDensity, 0.1),
			))
			So(ok, ShouldBeFalse)
			r, _ := engine.Rule(catalog.KeyRestorativeH1)
			So(r.MinTerms, ShouldEqual, 3)
			So(r.Terms[2].Weight, ShouldEqual, 0.4)
		})
	})

	Convey("Given overrides that do not match a rule", t, func() {
		_, err := composite.New(catalog.NewDefault(), composite.WithOverrides(map[string]composite.Override{
			"no.such.index": {MinTerms: 1},
		}))
		So(errors.Is(err, composite.ErrInvalidRule), ShouldBeTrue)

		_, err = composite.New(catalog.NewDefault(), composite.WithOverrides(map[string]composite.Override{
			catalog.KeyRestorativeH1: {Weights: map[string]float64{"sunlight": 1}},
		}))
		So(errors.Is(err, composite.ErrInvalidRule), ShouldBeTrue)

		_, err = composite.New(catalog.NewDefault(), composite.WithOverrides(map[string]composite.Override{
			catalog.KeyRestorativeH1: {MinTerms: 9},
		}))
		So(errors.Is(err, composite.ErrInvalidRule), ShouldBeTrue)
	})
}

func TestShape(t *testing.T) {
	Convey("Given the shapes", t, func() {
		So(composite.Linear.Apply(1.4), ShouldEqual, 1)
		So(composite.Linear.Apply(-0.2), ShouldEqual, 0)
		So(composite.Inverse.Apply(0.25), ShouldEqual, 0.75)
		So(composite.Peaked.Apply(0.5), ShouldEqual, 1)
		So(composite.Peaked.Apply(0.75), ShouldEqual, 0.5)
		So(composite.Peaked.String(), ShouldEqual, "peaked")
	})
}
