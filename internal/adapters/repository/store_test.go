package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/adapters/repository"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(imageID int64, key, source string, v float64) model.FeatureRecord {
	return model.FeatureRecord{ImageID: imageID, Key: key, Value: model.Number(v), Source: source, Confidence: 0.9}
}

// storeFactories build a fresh store per Convey pass.
func storeFactories(t *testing.T) map[string]func() repository.Store {
	t.Helper()
	return map[string]func() repository.Store{
		"memory": func() repository.Store { return repository.NewMemStore() },
		"sqlite": func() repository.Store {
			s, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "features.db"))
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestFeatureStore(t *testing.T) {
	for name, open := range storeFactories(t) {
		ctx := context.Background()

		Convey("Given an empty "+name+" store", t, func() {
			store := open()

			Convey("When records are appended", func() {
				So(store.Append(ctx, rec(1, "color.lab_volume", "science_pipeline_v3", 0.4)), ShouldBeNil)
				So(store.Append(ctx, rec(1, "fractal.D", "science_pipeline_v3", 0.7)), ShouldBeNil)
				So(store.Append(ctx, rec(2, "fractal.D", "science_pipeline_v3", 0.1)), ShouldBeNil)
				text := model.FeatureRecord{ImageID: 1, Key: "global.style", Value: model.Text("modern"), Source: model.HumanSource("ana"), Confidence: 1, DurationMS: 1200}
				So(store.Append(ctx, text), ShouldBeNil)

				Convey("Then Query returns them in insertion order", func() {
					got, err := store.Query(ctx, 1)
					So(err, ShouldBeNil)
					So(got, ShouldHaveLength, 3)
					So(got[0].Key, ShouldEqual, "color.lab_volume")
					So(got[1].Key, ShouldEqual, "fractal.D")
					So(got[2].Value, ShouldResemble, model.Text("modern"))
					So(got[2].DurationMS, ShouldEqual, 1200)
					So(got[0].CreatedAt.IsZero(), ShouldBeFalse)
				})

				Convey("Then Query filters by key", func() {
					got, err := store.Query(ctx, 1, "fractal.D", "missing.key")
					So(err, ShouldBeNil)
					So(got, ShouldHaveLength, 1)
					So(got[0].Value, ShouldResemble, model.Number(0.7))
				})

				Convey("Then an unknown image has no records", func() {
					got, err := store.Query(ctx, 404)
					So(err, ShouldBeNil)
					So(got, ShouldBeEmpty)
				})

				Convey("Then revisions and counts follow the appends", func() {
					r1, err := store.Revision(ctx, 1)
					So(err, ShouldBeNil)
					So(r1, ShouldEqual, 3)
					So(store.Count(ctx), ShouldEqual, 4)
					all, err := store.Records(ctx)
					So(err, ShouldBeNil)
					So(all, ShouldHaveLength, 4)
					So(all[2].ImageID, ShouldEqual, 2)
				})

				Convey("When the same triple is appended again", func() {
					err := store.Append(ctx, rec(1, "fractal.D", "science_pipeline_v3", 0.99))

					Convey("Then it fails with ErrDuplicateKey and nothing changes", func() {
						So(errors.Is(err, repository.ErrDuplicateKey), ShouldBeTrue)
						got, _ := store.Query(ctx, 1, "fractal.D")
						So(got, ShouldHaveLength, 1)
						So(got[0].Value, ShouldResemble, model.Number(0.7))
					})
				})

				Convey("When the same key arrives from another source", func() {
					err := store.Append(ctx, rec(1, "fractal.D", "science_pipeline_v4", 0.8))
					So(err, ShouldBeNil)
				})
			})

			Convey("When a malformed record is appended", func() {
				bad := rec(1, "", "science_pipeline_v3", 0.4)
				err := store.Append(ctx, bad)
				So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)

				bad = rec(1, "x", "science_pipeline_v3", 0.4)
				bad.Confidence = 1.5
				So(errors.Is(store.Append(ctx, bad), repository.ErrInvalidRecord), ShouldBeTrue)
			})
		})
	}
}

func TestConcurrentAppend(t *testing.T) {
	for name, open := range storeFactories(t) {
		Convey("Given many writers racing on one triple in the "+name+" store", t, func() {
			store := open()
			ctx := context.Background()
			const writers = 16
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs <- store.Append(ctx, rec(42, "global.relevance", model.HumanSource("rater-1"), float64(i%2)))
				}(i)
			}
			wg.Wait()
			close(errs)

			Convey("Then exactly one wins and the rest see ErrDuplicateKey", func() {
				var ok, dup int
				for err := range errs {
					switch {
					case err == nil:
						ok++
					case errors.Is(err, repository.ErrDuplicateKey):
						dup++
					}
				}
				So(ok, ShouldEqual, 1)
				So(dup, ShouldEqual, writers-1)
				got, _ := store.Query(ctx, 42)
				So(got, ShouldHaveLength, 1)
			})
		})
	}
}

func TestImageRegistry(t *testing.T) {
	for name, open := range storeFactories(t) {
		ctx := context.Background()

		Convey("Given the "+name+" registry", t, func() {
			store := open()
			explicit, err := store.RegisterImage(ctx, model.Image{ID: 10, Filename: "atrium.jpg", StorageLocator: "s3://bucket/atrium.jpg", DisplayURL: "/img/10"})
			So(err, ShouldBeNil)
			So(explicit.ID, ShouldEqual, 10)

			assigned, err := store.RegisterImage(ctx, model.Image{Filename: "lobby.jpg"})
			So(err, ShouldBeNil)
			So(assigned.ID, ShouldBeGreaterThan, 0)
			So(assigned.ID, ShouldNotEqual, 10)

			Convey("Then registered images resolve", func() {
				ok, err := store.Exists(ctx, 10)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				img, err := store.Image(ctx, 10)
				So(err, ShouldBeNil)
				So(img.StorageLocator, ShouldEqual, "s3://bucket/atrium.jpg")
				So(img.CreatedAt.Before(time.Now().Add(time.Second)), ShouldBeTrue)
				ids, err := store.ImageIDs(ctx)
				So(err, ShouldBeNil)
				So(ids, ShouldContain, int64(10))
				So(ids, ShouldContain, assigned.ID)
			})

			Convey("Then unknown images are reported", func() {
				ok, err := store.Exists(ctx, 99999)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				_, err = store.Image(ctx, 99999)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then an explicit id cannot be reused", func() {
				_, err := store.RegisterImage(ctx, model.Image{ID: 10})
				So(errors.Is(err, repository.ErrImageExists), ShouldBeTrue)
			})
		})
	}
}
