package api

import (
	"net/http"
)

// MonitorHandler serves the per-image monitor views.
type MonitorHandler struct {
	deps Dependencies
}

// NewMonitorHandler creates a new monitor handler.
func NewMonitorHandler(deps Dependencies) *MonitorHandler {
	return &MonitorHandler{deps: deps}
}

// HandleInspector handles GET /v1/monitor/image/{image_id}/inspector.
func (h *MonitorHandler) HandleInspector(w http.ResponseWriter, r *http.Request) {
	id, err := imageID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := h.deps.Inspect(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleIRR handles GET /v1/monitor/image/{image_id}/irr.
func (h *MonitorHandler) HandleIRR(w http.ResponseWriter, r *http.Request) {
	id, err := imageID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.IRR(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
