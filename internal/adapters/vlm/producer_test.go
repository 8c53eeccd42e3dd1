package vlm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Tag-UCSD/image-tagger/internal/adapters/repository"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/vlm"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

func TestNewScorer(t *testing.T) {
	Convey("Given provider names", t, func() {
		Convey("Then auto and stub resolve to the stub scorer", func() {
			for _, name := range []string{"", "auto", " Stub "} {
				s, err := vlm.NewScorer(vlm.ProviderConfig{Provider: name})
				So(err, ShouldBeNil)
				So(s, ShouldHaveSameTypeAs, vlm.StubScorer{})
			}
		})

		Convey("Then remote providers are unavailable", func() {
			for _, name := range []string{"gemini", "openai", "anthropic"} {
				_, err := vlm.NewScorer(vlm.ProviderConfig{Provider: name})
				So(errors.Is(err, vlm.ErrProviderUnavailable), ShouldBeTrue)
			}
		})

		Convey("Then unknown providers are rejected", func() {
			_, err := vlm.NewScorer(vlm.ProviderConfig{Provider: "llava"})
			So(errors.Is(err, vlm.ErrUnknownProvider), ShouldBeTrue)
		})
	})
}

func TestProduce(t *testing.T) {
	ctx := context.Background()

	Convey("Given a producer with no remote provider", t, func() {
		store := repository.NewMemStore()
		p, err := vlm.NewProducer(vlm.ProviderConfig{Provider: vlm.ProviderAuto}, store)
		So(err, ShouldBeNil)

		Convey("When an image is produced", func() {
			rep, err := p.Produce(ctx, 7, []byte("jpeg"))
			So(err, ShouldBeNil)

			Convey("Then every dimension gets a neutral zero-confidence stub", func() {
				So(rep.Stubbed, ShouldBeTrue)
				So(rep.Reason, ShouldEqual, vlm.ReasonStub)
				So(rep.Written, ShouldHaveLength, len(catalog.VLMDimensions))
				recs, err := store.Query(ctx, 7)
				So(err, ShouldBeNil)
				for _, r := range recs {
					So(r.Source, ShouldEqual, model.SourceVLM)
					So(r.Confidence, ShouldEqual, 0)
					So(r.Value.Number, ShouldEqual, vlm.StubValue)
					So(r.IsStub(), ShouldBeTrue)
				}
			})

			Convey("Then producing again only reports duplicates", func() {
				again, err := p.Produce(ctx, 7, []byte("jpeg"))
				So(err, ShouldBeNil)
				So(again.Written, ShouldBeEmpty)
				So(again.Duplicates, ShouldHaveLength, len(catalog.VLMDimensions))
			})
		})
	})

	Convey("Given a scorer that answers", t, func() {
		store := repository.NewMemStore()
		scorer := vlm.ScorerFunc(func(context.Context, []byte, string) (vlm.Scores, error) {
			return vlm.Scores{Values: map[string]float64{"mystery": 1.4, "cozy": 0.3}}, nil
		})
		p, err := vlm.NewProducer(vlm.ProviderConfig{}, store, vlm.WithScorer(scorer))
		So(err, ShouldBeNil)

		rep, err := p.Produce(ctx, 8, nil)
		So(err, ShouldBeNil)

		Convey("Then only returned dimensions are written, clamped", func() {
			So(rep.Stubbed, ShouldBeFalse)
			So(rep.Written, ShouldResemble, []string{catalog.KeyCognitiveMystery, catalog.KeyAffectCozy})
			recs, _ := store.Query(ctx, 8, catalog.KeyCognitiveMystery)
			So(recs, ShouldHaveLength, 1)
			So(recs[0].Value.Number, ShouldEqual, 1)
			So(recs[0].Confidence, ShouldEqual, 0.9)
		})
	})

	Convey("Given a scorer reading fenced model replies", t, func() {
		store := repository.NewMemStore()
		var asked string
		scorer := vlm.ReplyScorer(func(_ context.Context, _ []byte, prompt string) ([]byte, error) {
			asked = prompt
			return []byte("```json\n{\"coherence\": 0.65, \"jarring\": -0.1}\n```"), nil
		}, 0.7)
		p, err := vlm.NewProducer(vlm.ProviderConfig{}, store, vlm.WithScorer(scorer))
		So(err, ShouldBeNil)

		rep, err := p.Produce(ctx, 10, nil)

		Convey("Then the parsed values are written at the given confidence", func() {
			So(err, ShouldBeNil)
			So(asked, ShouldEqual, vlm.Prompt())
			So(rep.Stubbed, ShouldBeFalse)
			So(rep.Written, ShouldResemble, []string{catalog.KeyCognitiveCoherence, catalog.KeyAffectJarring})
			recs, _ := store.Query(ctx, 10, catalog.KeyAffectJarring)
			So(recs[0].Value.Number, ShouldEqual, 0)
			So(recs[0].Confidence, ShouldEqual, 0.7)
		})
	})

	Convey("Given a scorer whose reply has no scores", t, func() {
		store := repository.NewMemStore()
		scorer := vlm.ReplyScorer(func(context.Context, []byte, string) ([]byte, error) {
			return []byte("I cannot rate this image."), nil
		}, 0.7)
		p, err := vlm.NewProducer(vlm.ProviderConfig{}, store, vlm.WithScorer(scorer))
		So(err, ShouldBeNil)

		rep, err := p.Produce(ctx, 11, nil)

		Convey("Then stubs are written with the error reason", func() {
			So(err, ShouldBeNil)
			So(rep.Stubbed, ShouldBeTrue)
			So(rep.Reason, ShouldEqual, vlm.ReasonError)
			So(rep.Written, ShouldHaveLength, len(catalog.VLMDimensions))
		})
	})

	Convey("Given a scorer that hangs past the timeout", t, func() {
		store := repository.NewMemStore()
		scorer := vlm.ScorerFunc(func(ctx context.Context, _ []byte, _ string) (vlm.Scores, error) {
			<-ctx.Done()
			return vlm.Scores{}, ctx.Err()
		})
		p, err := vlm.NewProducer(vlm.ProviderConfig{Timeout: 10 * time.Millisecond}, store, vlm.WithScorer(scorer))
		So(err, ShouldBeNil)

		rep, err := p.Produce(ctx, 9, nil)

		Convey("Then stubs are written with the timeout reason", func() {
			So(err, ShouldBeNil)
			So(rep.Stubbed, ShouldBeTrue)
			So(rep.Reason, ShouldEqual, vlm.ReasonTimeout)
			So(store.Count(ctx), ShouldEqual, len(catalog.VLMDimensions))
		})
	})
}

func TestParseScores(t *testing.T) {
	Convey("Given model replies", t, func() {
		Convey("Then fenced JSON is parsed", func() {
			got, err := vlm.ParseScores([]byte("```json\n{\"cozy\": 0.7, \"note\": \"warm\"}\n```"))
			So(err, ShouldBeNil)
			So(got, ShouldResemble, map[string]float64{"cozy": 0.7})
		})

		Convey("Then JSON inside prose is parsed", func() {
			got, err := vlm.ParseScores([]byte(`Sure! {"mystery": 0.2} Hope this helps.`))
			So(err, ShouldBeNil)
			So(got["mystery"], ShouldEqual, 0.2)
		})

		Convey("Then text without an object is malformed", func() {
			_, err := vlm.ParseScores([]byte("I cannot rate this image."))
			So(errors.Is(err, vlm.ErrMalformedResponse), ShouldBeTrue)
		})
	})

	Convey("Given the prompt", t, func() {
		So(vlm.Prompt(), ShouldContainSubstring, "10. jarring")
		So(vlm.Dimension(catalog.KeyCognitiveCoherence), ShouldEqual, "coherence")
	})
}
