package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/Tag-UCSD/image-tagger/internal/app"
	"github.com/Tag-UCSD/image-tagger/internal/config"
)

func TestNewMux(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := app.New(config.New())
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx)

		mux := newMux(ctx, svc)

		convey.Convey("Then docs and API routes are both served", func() {
			for _, path := range []string{"/api-docs", "/openapi.yaml", "/healthz", "/stats", "/v1/catalog", "/v1/export/bn-codebook"} {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestServiceMetricsUpdater(t *testing.T) {
	convey.Convey("Given a service metrics updater", t, func() {
		svc := app.New(config.New())

		convey.Convey("Then it returns once the context is done", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				startServiceMetricsUpdater(ctx, svc)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("updater did not stop")
			}
		})
	})
}
