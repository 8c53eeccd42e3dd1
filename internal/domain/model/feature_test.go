package model_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestFeatureRecordValidate(t *testing.T) {
	convey.Convey("Given feature records", t, func() {
		valid := model.FeatureRecord{
			ImageID:    7,
			Key:        "cnfa.fluency.clutter_density_count",
			Value:      model.Number(0.2),
			Source:     "science_pipeline_v3.4",
			Confidence: 1,
		}

		convey.Convey("Then a complete record should pass", func() {
			convey.So(valid.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then a stub record with zero confidence should pass", func() {
			stub := valid
			stub.Confidence = 0
			convey.So(stub.Validate(), convey.ShouldBeNil)
			convey.So(stub.IsStub(), convey.ShouldBeTrue)
		})

		convey.Convey("Then malformed records should be rejected", func() {
			noImage := valid
			noImage.ImageID = 0
			noKey := valid
			noKey.Key = "  "
			noSource := valid
			noSource.Source = ""
			noValue := valid
			noValue.Value = model.Value{}
			badConf := valid
			badConf.Confidence = 1.5
			nan := valid
			nan.Value = model.Number(math.NaN())

			for _, r := range []model.FeatureRecord{noImage, noKey, noSource, noValue, badConf, nan} {
				convey.So(r.Validate(), convey.ShouldNotBeNil)
			}
		})
	})
}

func TestHumanSources(t *testing.T) {
	convey.Convey("Given human and machine sources", t, func() {
		human := model.FeatureRecord{Source: model.HumanSource("u17")}
		bare := model.FeatureRecord{Source: model.SourceHuman}
		machine := model.FeatureRecord{Source: "science_pipeline_v3.4"}
		lookalike := model.FeatureRecord{Source: "humanoid"}

		convey.So(human.IsHuman(), convey.ShouldBeTrue)
		convey.So(human.Rater(), convey.ShouldEqual, "u17")
		convey.So(bare.IsHuman(), convey.ShouldBeTrue)
		convey.So(bare.Rater(), convey.ShouldEqual, "human")
		convey.So(machine.IsHuman(), convey.ShouldBeFalse)
		convey.So(machine.Rater(), convey.ShouldEqual, "")
		convey.So(lookalike.IsHuman(), convey.ShouldBeFalse)

		convey.So(model.SourceKind("science_pipeline_v3.4"), convey.ShouldEqual, "pipeline")
		convey.So(model.SourceKind(model.HumanSource("a")), convey.ShouldEqual, "human")
		convey.So(model.SourceKind("vlm"), convey.ShouldEqual, "vlm")
		convey.So(model.SourceKind("import"), convey.ShouldEqual, "other")
	})
}

func TestValueJSON(t *testing.T) {
	convey.Convey("Given JSON feature values", t, func() {
		var num, text model.Value
		convey.So(json.Unmarshal([]byte(`0.25`), &num), convey.ShouldBeNil)
		convey.So(json.Unmarshal([]byte(`"wood"`), &text), convey.ShouldBeNil)

		f, ok := num.Float()
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(f, convey.ShouldEqual, 0.25)
		_, ok = text.Float()
		convey.So(ok, convey.ShouldBeFalse)
		convey.So(text.String(), convey.ShouldEqual, "wood")

		out, err := json.Marshal(text)
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(out), convey.ShouldEqual, `"wood"`)

		var bad model.Value
		convey.So(json.Unmarshal([]byte(`{}`), &bad), convey.ShouldNotBeNil)
	})
}
