package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/app"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

const maxBatchRecords = 10_000

// imageRequest mirrors the OpenAPI schema for POST /v1/images.
type imageRequest struct {
	ID             int64  `json:"id"`
	Filename       string `json:"filename"`
	StorageLocator string `json:"storage_locator"`
	DisplayURL     string `json:"display_url"`
}

type imageResponse struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	StorageLocator string    `json:"storage_locator"`
	DisplayURL     string    `json:"display_url"`
	CreatedAt      time.Time `json:"created_at"`
}

// featureDTO is the wire form of a feature record.
type featureDTO struct {
	ImageID    int64       `json:"image_id"`
	Key        string      `json:"key"`
	Value      model.Value `json:"value"`
	Source     string      `json:"source"`
	Confidence float64     `json:"confidence"`
	DurationMS int64       `json:"duration_ms,omitempty"`
	CreatedAt  *time.Time  `json:"created_at,omitempty"`
}

func (f featureDTO) record() model.FeatureRecord {
	rec := model.FeatureRecord{
		ImageID:    f.ImageID,
		Key:        f.Key,
		Value:      f.Value,
		Source:     f.Source,
		Confidence: f.Confidence,
		DurationMS: f.DurationMS,
	}
	if f.CreatedAt != nil {
		rec.CreatedAt = f.CreatedAt.UTC()
	}
	return rec
}

func toDTO(rec model.FeatureRecord) featureDTO {
	at := rec.CreatedAt
	return featureDTO{
		ImageID:    rec.ImageID,
		Key:        rec.Key,
		Value:      rec.Value,
		Source:     rec.Source,
		Confidence: rec.Confidence,
		DurationMS: rec.DurationMS,
		CreatedAt:  &at,
	}
}

type batchRequest struct {
	// BatchID is optional; resubmitting an accepted id is acknowledged
	// without queueing the records again.
	BatchID string       `json:"batch_id,omitempty"`
	Records []featureDTO `json:"records"`
}

type ackResponse struct {
	Status  string `json:"status"`
	BatchID string `json:"batch_id,omitempty"`
	Records int    `json:"records,omitempty"`
}

type featuresResponse struct {
	ImageID  int64        `json:"image_id"`
	Features []featureDTO `json:"features"`
}

// IngestHandler handles image registration and feature writes.
type IngestHandler struct {
	deps Dependencies
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps Dependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

// HandlePostImage handles POST /v1/images.
func (h *IngestHandler) HandlePostImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	img, err := h.deps.RegisterImage(r.Context(), model.Image{
		ID:             req.ID,
		Filename:       req.Filename,
		StorageLocator: req.StorageLocator,
		DisplayURL:     req.DisplayURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, imageResponse(img))
}

// HandlePostFeature handles POST /v1/features. The record is stored before
// the response is written.
func (h *IngestHandler) HandlePostFeature(w http.ResponseWriter, r *http.Request) {
	var req featureDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := h.deps.AppendFeature(r.Context(), req.record()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "stored", Records: 1})
}

// HandlePostBatch handles POST /v1/features/batch. Records are queued for
// the ingest workers; a full queue answers 429.
func (h *IngestHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if n := len(req.Records); n == 0 || n > maxBatchRecords {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Errorf("%w: batch must hold 1 to %d records, got %d", ErrBadRequest, maxBatchRecords, n))
		return
	}
	records := make([]model.FeatureRecord, len(req.Records))
	for i, f := range req.Records {
		records[i] = f.record()
	}
	id, err := h.deps.SubmitBatch(r.Context(), req.BatchID, records)
	if errors.Is(err, app.ErrDuplicateBatch) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", BatchID: id})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", BatchID: id, Records: len(records)})
}

// HandleGetFeatures handles GET /v1/features/{image_id}.
func (h *IngestHandler) HandleGetFeatures(w http.ResponseWriter, r *http.Request) {
	id, err := imageID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	recs, err := h.deps.Features(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := featuresResponse{ImageID: id, Features: make([]featureDTO, 0, len(recs))}
	for _, rec := range recs {
		out.Features = append(out.Features, toDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}
