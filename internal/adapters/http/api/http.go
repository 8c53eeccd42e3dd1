// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Tag-UCSD/image-tagger/internal/adapters/mq/queue"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/repository"
	"github.com/Tag-UCSD/image-tagger/internal/app"
	"github.com/Tag-UCSD/image-tagger/internal/domain/bnexport"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/irr"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RegisterImage(ctx context.Context, img model.Image) (model.Image, error)
	AppendFeature(ctx context.Context, rec model.FeatureRecord) error
	SubmitBatch(ctx context.Context, batchID string, records []model.FeatureRecord) (string, error)
	Features(ctx context.Context, imageID int64) ([]model.FeatureRecord, error)

	Catalog() []catalog.Entry
	Glossary() map[string]catalog.GlossaryEntry

	Export(ctx context.Context, ids []int64) ([]types.BNRow, error)
	Codebook() (types.Codebook, error)
	ValidationRows(ctx context.Context) ([]types.ValidationRow, error)

	Inspect(ctx context.Context, imageID int64) (types.InspectorPayload, error)
	IRR(ctx context.Context, imageID int64) (irr.Result, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	ingestHandler  *IngestHandler
	catalogHandler *CatalogHandler
	exportHandler  *ExportHandler
	monitorHandler *MonitorHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		ingestHandler:  NewIngestHandler(deps),
		catalogHandler: NewCatalogHandler(deps),
		exportHandler:  NewExportHandler(deps),
		monitorHandler: NewMonitorHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /v1/images", MetricsMiddleware(s.ingestHandler.HandlePostImage, "images"))
	mux.HandleFunc("POST /v1/features", MetricsMiddleware(s.ingestHandler.HandlePostFeature, "features"))
	mux.HandleFunc("POST /v1/features/batch", MetricsMiddleware(s.ingestHandler.HandlePostBatch, "features_batch"))
	mux.HandleFunc("GET /v1/features/{image_id}", MetricsMiddleware(s.ingestHandler.HandleGetFeatures, "features_get"))

	mux.HandleFunc("GET /v1/catalog", MetricsMiddleware(s.catalogHandler.HandleGetCatalog, "catalog"))

	mux.HandleFunc("GET /v1/export/bn-snapshot", MetricsMiddleware(s.exportHandler.HandleSnapshot, "bn_snapshot"))
	mux.HandleFunc("GET /v1/export/bn-codebook", MetricsMiddleware(s.exportHandler.HandleCodebook, "bn_codebook"))
	mux.HandleFunc("GET /v1/export/bn-validations", MetricsMiddleware(s.exportHandler.HandleValidations, "bn_validations"))

	mux.HandleFunc("GET /v1/monitor/image/{image_id}/inspector", MetricsMiddleware(s.monitorHandler.HandleInspector, "inspector"))
	mux.HandleFunc("GET /v1/monitor/image/{image_id}/irr", MetricsMiddleware(s.monitorHandler.HandleIRR, "irr"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrDuplicateKey), errors.Is(err, repository.ErrImageExists):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, repository.ErrInvalidRecord), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, bnexport.ErrCatalogGate), errors.Is(err, app.ErrNotStarted), errors.Is(err, queue.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// imageID parses the {image_id} path value.
func imageID(r *http.Request) (int64, error) {
	raw := r.PathValue("image_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid image id %q", ErrBadRequest, raw)
	}
	return id, nil
}
