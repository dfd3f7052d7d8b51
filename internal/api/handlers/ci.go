package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trackline/cmdb/internal/api/dto"
	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/domain/rule"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/utils"
	"github.com/trackline/cmdb/internal/pkg/validator"
)

type CIHandler struct {
	service   ci.Service
	ingestor  ci.Ingestor
	traverser ci.Traverser
	cis       ci.Repository
	rules     rule.Source
	logger    *logger.Logger
	validator *validator.Validator
}

func NewCIHandler(service ci.Service, ingestor ci.Ingestor, traverser ci.Traverser, cis ci.Repository, rules rule.Source, log *logger.Logger, val *validator.Validator) *CIHandler {
	return &CIHandler{
		service:   service,
		ingestor:  ingestor,
		traverser: traverser,
		cis:       cis,
		rules:     rules,
		logger:    log,
		validator: val,
	}
}

// Upsert resolves the payload against stored state and creates or updates
// one configuration item.
func (h *CIHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req dto.UpsertCIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}
	if validationErrors := h.validator.Validate(req); len(validationErrors) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", validationErrors))
		return
	}

	rules, err := h.rules.RulesFor(r.Context(), req.ClientID, req.Category)
	if err != nil {
		writeServiceError(w, err, "Failed to load identification rules")
		return
	}

	res, err := h.service.Upsert(r.Context(), ci.UpsertInput{
		ClientID:   req.ClientID,
		Category:   req.Category,
		Attributes: req.Attributes,
		Rules:      rules,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to upsert configuration item")
		return
	}

	status := http.StatusCreated
	if res.Existed {
		status = http.StatusOK
	}
	utils.WriteSuccess(w, status, res)
}

// Ingest accepts a composite payload: top-level item, detail rows and
// child items with relationship wiring. Child failures are reported in the
// body, not as a request failure.
func (h *CIHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.IngestCIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}
	if validationErrors := h.validator.Validate(req); len(validationErrors) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", validationErrors))
		return
	}

	in := ci.CompositeInput{
		ClientID:   req.ClientID,
		Category:   req.Category,
		Attributes: req.Attributes,
		CreatedBy:  req.CreatedBy,
		Details:    req.Details,
	}
	for _, c := range req.Children {
		in.Children = append(in.Children, ci.ChildInput{
			Category:     c.Category,
			Attributes:   c.Attributes,
			Relationship: c.Relationship,
			Direction:    c.Direction,
			MappingLevel: c.MappingLevel,
			ParentLevel:  c.ParentLevel,
		})
	}

	res, err := h.ingestor.IngestComposite(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, "Failed to ingest composite payload")
		return
	}

	status := http.StatusCreated
	if res.Existed {
		status = http.StatusOK
	}
	utils.WriteSuccess(w, status, res)
}

// Get returns one configuration item.
func (h *CIHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), clientIDFromQuery(r), chi.URLParam(r, "category"), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get configuration item")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, dto.NewCIDTO(item))
}

// List returns the items of a category with pagination.
func (h *CIHandler) List(w http.ResponseWriter, r *http.Request) {
	params := utils.ParsePaginationParams(r)

	items, total, err := h.cis.List(r.Context(), clientIDFromQuery(r), chi.URLParam(r, "category"), params.PageSize, params.Offset)
	if err != nil {
		writeServiceError(w, err, "Failed to list configuration items")
		return
	}

	dtos := make([]dto.CIDTO, len(items))
	for i, item := range items {
		dtos[i] = dto.NewCIDTO(item)
	}
	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(dtos, params.Page, params.PageSize, total))
}

// SetManaged flips the managed flag, propagating one hop across contained
// relationships.
func (h *CIHandler) SetManaged(w http.ResponseWriter, r *http.Request) {
	var req dto.SetManagedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}
	if validationErrors := h.validator.Validate(req); len(validationErrors) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", validationErrors))
		return
	}

	err := h.service.SetManaged(r.Context(), clientIDFromQuery(r), chi.URLParam(r, "category"), chi.URLParam(r, "id"), *req.Managed)
	if err != nil {
		writeServiceError(w, err, "Failed to set managed flag")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "managed flag updated", nil)
}

// Delete removes an unmanaged item, cascading over contained children.
func (h *CIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), clientIDFromQuery(r), chi.URLParam(r, "category"), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to delete configuration item")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "configuration item deleted", nil)
}

// Expand returns the composite relationship tree around an item.
func (h *CIHandler) Expand(w http.ResponseWriter, r *http.Request) {
	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))
	if depth < 1 {
		depth = 1
	}

	tree, err := h.traverser.Expand(r.Context(), clientIDFromQuery(r), chi.URLParam(r, "id"), chi.URLParam(r, "category"), depth)
	if err != nil {
		writeServiceError(w, err, "Failed to expand relationship tree")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, tree)
}
