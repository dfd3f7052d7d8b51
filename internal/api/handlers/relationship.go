package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trackline/cmdb/internal/api/dto"
	"github.com/trackline/cmdb/internal/domain/relationship"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/utils"
	"github.com/trackline/cmdb/internal/pkg/validator"
)

type RelationshipHandler struct {
	service   relationship.Service
	logger    *logger.Logger
	validator *validator.Validator
}

func NewRelationshipHandler(service relationship.Service, log *logger.Logger, val *validator.Validator) *RelationshipHandler {
	return &RelationshipHandler{service: service, logger: log, validator: val}
}

// Create stores a directed, named edge between two items. Re-creating an
// existing edge succeeds without a second row.
func (h *RelationshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}
	if validationErrors := h.validator.Validate(req); len(validationErrors) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", validationErrors))
		return
	}

	err := h.service.Relate(r.Context(), &relationship.Edge{
		ClientID:         req.ClientID,
		ParentID:         req.ParentID,
		ParentCategory:   req.ParentCategory,
		RelationshipName: req.RelationshipName,
		ChildID:          req.ChildID,
		ChildCategory:    req.ChildCategory,
		CreatedBy:        req.CreatedBy,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to create relationship")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusCreated, "relationship created", nil)
}

// Delete removes the edges matching the full key. Missing edges succeed.
func (h *RelationshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req dto.DeleteRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}
	if validationErrors := h.validator.Validate(req); len(validationErrors) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", validationErrors))
		return
	}

	err := h.service.Unrelate(r.Context(), req.ClientID, req.ParentID, req.RelationshipName, req.ChildID)
	if err != nil {
		writeServiceError(w, err, "Failed to delete relationship")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "relationship deleted", nil)
}

// ListForEntity returns every edge touching the item, both directions.
func (h *RelationshipHandler) ListForEntity(w http.ResponseWriter, r *http.Request) {
	edges, err := h.service.ListForEntity(r.Context(), clientIDFromQuery(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to list relationships")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, edges)
}
