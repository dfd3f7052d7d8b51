package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trackline/cmdb/internal/domain/baseline"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/utils"
)

type BaselineHandler struct {
	service baseline.Service
	logger  *logger.Logger
}

func NewBaselineHandler(service baseline.Service, log *logger.Logger) *BaselineHandler {
	return &BaselineHandler{service: service, logger: log}
}

// ListDefinitions returns the enabled baseline definitions of a category,
// including the implicit default when the tenant flag is set.
func (h *BaselineHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.service.Definitions(r.Context(), clientIDFromQuery(r), chi.URLParam(r, "category"))
	if err != nil {
		writeServiceError(w, err, "Failed to list baseline definitions")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, defs)
}

// History returns the attribute-level change history of an item under a
// baseline, oldest first.
func (h *BaselineHandler) History(w http.ResponseWriter, r *http.Request) {
	baselineName := r.URL.Query().Get("baseline")

	changes, err := h.service.History(r.Context(), clientIDFromQuery(r), chi.URLParam(r, "category"), chi.URLParam(r, "id"), baselineName)
	if err != nil {
		writeServiceError(w, err, "Failed to get baseline history")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, changes)
}
