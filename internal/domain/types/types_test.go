package types_test

import (
	"encoding/json"
	"testing"

	"github.com/Tag-UCSD/image-tagger/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBNRow(t *testing.T) {
	Convey("Given a new row", t, func() {
		row := types.NewBNRow(5, "bn_export_v1", []string{"a.x", "b.y"}, []string{"a.x_bin"})

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(row)
			So(err, ShouldBeNil)

			Convey("Then every key is present as null", func() {
				So(string(raw), ShouldEqual,
					`{"image_id":5,"source":"bn_export_v1","indices":{"a.x":null,"b.y":null},"bins":{"a.x_bin":null},"agreement_score":null,"irr_bin":null}`)
			})
		})
	})
}

func TestInspectorPayload(t *testing.T) {
	Convey("Given an empty inspector payload", t, func() {
		p := types.NewInspectorPayload(types.ImageInfo{ID: 3})

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(p)
			So(err, ShouldBeNil)

			var decoded map[string]any
			So(json.Unmarshal(raw, &decoded), ShouldBeNil)

			Convey("Then the lists are empty arrays, never null", func() {
				So(decoded["features"], ShouldResemble, []any{})
				So(decoded["tags"], ShouldResemble, []any{})
				So(decoded["validations"], ShouldResemble, []any{})
				bn := decoded["bn"].(map[string]any)
				So(bn["nodes"], ShouldResemble, []any{})
				So(bn, ShouldContainKey, "irr")
				So(bn["irr"], ShouldBeNil)
			})
		})
	})
}
