package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Tag-UCSD/image-tagger/internal/domain/types"
)

type snapshotResponse struct {
	Rows []types.BNRow `json:"rows"`
}

type validationsResponse struct {
	Rows []types.ValidationRow `json:"rows"`
}

// ExportHandler serves the BN export endpoints.
type ExportHandler struct {
	deps Dependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps Dependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleSnapshot handles GET /v1/export/bn-snapshot?image_ids=1,2,3. Without
// image_ids every registered image is exported.
func (h *ExportHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("image_ids"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rows, err := h.deps.Export(r.Context(), ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []types.BNRow{}
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Rows: rows})
}

// HandleCodebook handles GET /v1/export/bn-codebook.
func (h *ExportHandler) HandleCodebook(w http.ResponseWriter, _ *http.Request) {
	cb, err := h.deps.Codebook()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cb)
}

// HandleValidations handles GET /v1/export/bn-validations.
func (h *ExportHandler) HandleValidations(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.ValidationRows(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validationsResponse{Rows: rows})
}

func parseIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid image id %q", ErrBadRequest, p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
