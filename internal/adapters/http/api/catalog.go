package api

import (
	"net/http"

	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
)

type catalogResponse struct {
	Entries  []catalog.Entry                  `json:"entries"`
	Glossary map[string]catalog.GlossaryEntry `json:"glossary"`
}

// CatalogHandler serves the index catalog.
type CatalogHandler struct {
	deps Dependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps Dependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

// HandleGetCatalog handles GET /v1/catalog.
func (h *CatalogHandler) HandleGetCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{Entries: h.deps.Catalog(), Glossary: h.deps.Glossary()})
}
