package services

import (
	"context"
	"testing"

	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/domain/relationship"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/testutil"
)

func newRelationshipFixture(t *testing.T) (*RelationshipService, *testutil.MockRelationshipRepository, *testutil.MockCIRepository) {
	t.Helper()
	edges := testutil.NewMockRelationshipRepository()
	cis := testutil.NewMockCIRepository()
	service := NewRelationshipService(edges, testutil.NewMockKindRegistry(), cis, testutil.NewTestLogger())
	return service, edges, cis
}

func testEdge(parent, name, child string) *relationship.Edge {
	return &relationship.Edge{
		ClientID: "acme", ParentID: parent, ParentCategory: "server",
		RelationshipName: name, ChildID: child, ChildCategory: "server",
	}
}

func TestRelationshipService_Relate_Idempotent(t *testing.T) {
	service, edges, _ := newRelationshipFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := service.Relate(ctx, testEdge("p", "contains", "c")); err != nil {
			t.Fatalf("Relate() attempt %d error = %v", i, err)
		}
	}
	if len(edges.Edges) != 1 {
		t.Fatalf("stored %d edges, want 1", len(edges.Edges))
	}

	// Same endpoints under a different name is a distinct edge.
	if err := service.Relate(ctx, testEdge("p", "depends_on", "c")); err != nil {
		t.Fatalf("Relate() error = %v", err)
	}
	if len(edges.Edges) != 2 {
		t.Fatalf("stored %d edges, want 2", len(edges.Edges))
	}
}

func TestRelationshipService_Relate_Validation(t *testing.T) {
	service, _, _ := newRelationshipFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		edge     *relationship.Edge
		wantCode string
	}{
		{"missing parent", testEdge("", "contains", "c"), errors.ErrCodeValidation},
		{"missing relationship", testEdge("p", "", "c"), errors.ErrCodeValidation},
		{"self loop", testEdge("p", "contains", "p"), errors.ErrCodeValidation},
		{"unknown kind", testEdge("p", "balances", "c"), errors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Relate(ctx, tt.edge)
			if !errors.IsCode(err, tt.wantCode) {
				t.Errorf("Relate() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestRelationshipService_Unrelate(t *testing.T) {
	service, edges, _ := newRelationshipFixture(t)
	ctx := context.Background()

	if err := service.Relate(ctx, testEdge("p", "contains", "c")); err != nil {
		t.Fatalf("Relate() error = %v", err)
	}

	if err := service.Unrelate(ctx, "acme", "p", "contains", "c"); err != nil {
		t.Fatalf("Unrelate() error = %v", err)
	}
	if len(edges.Edges) != 0 {
		t.Fatalf("stored %d edges after Unrelate, want 0", len(edges.Edges))
	}

	// Missing edge is a no-op, not an error.
	if err := service.Unrelate(ctx, "acme", "p", "contains", "c"); err != nil {
		t.Fatalf("Unrelate() on missing edge error = %v", err)
	}
}

func TestRelationshipService_PropagateManagedState(t *testing.T) {
	service, edges, cis := newRelationshipFixture(t)
	ctx := context.Background()

	for _, identity := range []string{"center", "child", "parent", "peer", "far"} {
		err := cis.Insert(ctx, &ci.ConfigurationItem{
			Identity: identity, ClientID: "acme", Category: "server",
			Attributes: map[string]any{"hostname": identity},
		})
		if err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}

	// center contains child, parent contains center, center connects_to
	// peer, child contains far (two hops from center).
	seed := []*relationship.Edge{
		testEdge("center", "contains", "child"),
		testEdge("parent", "contains", "center"),
		testEdge("center", "connects_to", "peer"),
		testEdge("child", "contains", "far"),
	}
	for _, e := range seed {
		if err := edges.Create(ctx, e); err != nil {
			t.Fatalf("seed edge failed: %v", err)
		}
	}

	if err := service.PropagateManagedState(ctx, "acme", "center", true); err != nil {
		t.Fatalf("PropagateManagedState() error = %v", err)
	}

	wantManaged := map[string]bool{
		"child":  true,  // contained, child side
		"parent": true,  // contained, parent side
		"peer":   false, // not a contained kind
		"far":    false, // beyond one hop
		"center": false, // the entity itself is the caller's concern
	}
	for identity, want := range wantManaged {
		item, err := cis.GetByID(ctx, "acme", "server", identity)
		if err != nil {
			t.Fatalf("GetByID(%s) error = %v", identity, err)
		}
		if item.Managed != want {
			t.Errorf("%s managed = %v, want %v", identity, item.Managed, want)
		}
	}
}

func TestRelationshipService_ListForEntity(t *testing.T) {
	service, edges, _ := newRelationshipFixture(t)
	ctx := context.Background()

	seed := []*relationship.Edge{
		testEdge("x", "contains", "y"),
		testEdge("z", "depends_on", "x"),
		testEdge("a", "contains", "b"),
	}
	for _, e := range seed {
		if err := edges.Create(ctx, e); err != nil {
			t.Fatalf("seed edge failed: %v", err)
		}
	}

	got, err := service.ListForEntity(ctx, "acme", "x")
	if err != nil {
		t.Fatalf("ListForEntity() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListForEntity() returned %d edges, want 2", len(got))
	}
}
