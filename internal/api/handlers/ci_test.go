package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/trackline/cmdb/internal/api/dto"
	"github.com/trackline/cmdb/internal/domain/rule"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/validator"
	"github.com/trackline/cmdb/internal/schema"
	"github.com/trackline/cmdb/internal/services"
	"github.com/trackline/cmdb/internal/testutil"
)

func newTestCIHandler() (*CIHandler, *testutil.MockCIRepository) {
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	ciRepo := testutil.NewMockCIRepository()
	edgeRepo := testutil.NewMockRelationshipRepository()
	kinds := testutil.NewMockKindRegistry()
	baselineRepo := testutil.NewMockBaselineRepository()
	definitions := testutil.NewMockDefinitionSource()
	detailRepo := testutil.NewMockDetailRepository()
	rules := testutil.NewMockRuleSource(rule.IdentificationRule{
		ID:                  1,
		ClientID:            "acme",
		Category:            "server",
		Priority:            10,
		CriterionAttributes: []string{"hostname"},
	})

	registry := schema.Default()
	evaluator := services.NewEvaluator(ciRepo, log)
	retention := services.NewRetentionService(baselineRepo, definitions, log)
	relationshipService := services.NewRelationshipService(edgeRepo, kinds, ciRepo, log)
	service := services.NewCIService(ciRepo, evaluator, retention, edgeRepo, kinds, detailRepo, relationshipService, registry, log)
	traverser := services.NewTraversalService(ciRepo, edgeRepo, 5, log)
	ingestor := services.NewIngestService(service, relationshipService, detailRepo, rules, log)

	val := validator.New()
	return NewCIHandler(service, ingestor, traverser, ciRepo, rules, log, val), ciRepo
}

func upsertBody(clientID, category, hostname string) []byte {
	body, _ := json.Marshal(dto.UpsertCIRequest{
		ClientID:   clientID,
		Category:   category,
		Attributes: map[string]any{"hostname": hostname},
	})
	return body
}

func TestCIHandler_Upsert(t *testing.T) {
	handler, _ := newTestCIHandler()

	tests := []struct {
		name           string
		body           []byte
		expectedStatus int
	}{
		{
			name:           "create new item",
			body:           upsertBody("acme", "server", "web-01"),
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "replay resolves to existing item",
			body:           upsertBody("acme", "server", "web-01"),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing clientid",
			body:           []byte(`{"ci_category":"server","attributes":{"hostname":"web-01"}}`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "no rule applies",
			body:           upsertBody("other-tenant", "server", "web-01"),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "invalid body",
			body:           []byte(`{not json`),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cis", bytes.NewBuffer(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			handler.Upsert(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v, body: %s", status, tt.expectedStatus, rr.Body.String())
			}
		})
	}
}

func TestCIHandler_Get(t *testing.T) {
	handler, _ := newTestCIHandler()

	// Create an item to fetch back
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cis", bytes.NewBuffer(upsertBody("acme", "server", "web-01")))
	rr := httptest.NewRecorder()
	handler.Upsert(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed upsert failed: %d %s", rr.Code, rr.Body.String())
	}

	var created struct {
		Data struct {
			Identity string `json:"unique_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode upsert response: %v", err)
	}

	tests := []struct {
		name           string
		identity       string
		expectedStatus int
	}{
		{
			name:           "get existing item",
			identity:       created.Data.Identity,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "get missing item",
			identity:       "no-such-identity",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cis/server/"+tt.identity+"?clientid=acme", nil)

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("category", "server")
			rctx.URLParams.Add("id", tt.identity)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			rr := httptest.NewRecorder()
			handler.Get(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", status, tt.expectedStatus)
			}
		})
	}
}

func TestCIHandler_Delete_ManagedBlocked(t *testing.T) {
	handler, ciRepo := newTestCIHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cis", bytes.NewBuffer(upsertBody("acme", "server", "web-01")))
	rr := httptest.NewRecorder()
	handler.Upsert(rr, req)

	var created struct {
		Data struct {
			Identity string `json:"unique_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode upsert response: %v", err)
	}
	if err := ciRepo.SetManaged(context.Background(), "acme", created.Data.Identity, true); err != nil {
		t.Fatalf("failed to mark item managed: %v", err)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/cis/server/"+created.Data.Identity+"?clientid=acme", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("category", "server")
	rctx.URLParams.Add("id", created.Data.Identity)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr = httptest.NewRecorder()
	handler.Delete(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v, body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}
