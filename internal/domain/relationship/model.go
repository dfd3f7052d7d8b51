package relationship

import (
	"context"
	"time"
)

// Edge is one directed, named relationship between two configuration items.
// At most one edge exists per (parentID, relationshipName, childID) tuple.
type Edge struct {
	ID               int64     `json:"relatedci_id"`
	ClientID         string    `json:"clientid"`
	ParentID         string    `json:"parentci_id"`
	ParentCategory   string    `json:"parentci_classname"`
	RelationshipName string    `json:"relationship_name"`
	ChildID          string    `json:"childci_id"`
	ChildCategory    string    `json:"childci_classname"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// Kind describes a named relationship type from the relationship registry.
type Kind struct {
	Name        string `json:"relationship_name"`
	IsContained bool   `json:"iscontained"`
	Description string `json:"description,omitempty"`
}

// Repository defines the interface for relationship edge data access.
type Repository interface {
	// Create inserts a new edge
	Create(ctx context.Context, edge *Edge) error

	// Exists reports whether an edge with the key tuple is already stored
	Exists(ctx context.Context, clientID, parentID, relationshipName, childID string) (bool, error)

	// ListByParent retrieves edges where the entity is the parent endpoint
	ListByParent(ctx context.Context, clientID, parentID string) ([]*Edge, error)

	// ListByChild retrieves edges where the entity is the child endpoint
	ListByChild(ctx context.Context, clientID, childID string) ([]*Edge, error)

	// DeleteByKey removes all edges matching the key tuple and returns the
	// number removed; zero is not an error
	DeleteByKey(ctx context.Context, clientID, parentID, relationshipName, childID string) (int64, error)

	// DeleteForEntity removes every edge where the entity is an endpoint
	DeleteForEntity(ctx context.Context, clientID, entityID string) error
}

// KindRegistry resolves relationship kinds; an external collaborator from
// the engine's point of view.
type KindRegistry interface {
	// Kind returns the registered kind, or a NotFound error for unknown names
	Kind(ctx context.Context, relationshipName string) (*Kind, error)
}

// Service defines the relationship graph operations.
type Service interface {
	// Relate creates an edge idempotently
	Relate(ctx context.Context, edge *Edge) error

	// Unrelate deletes edges matching the full key; missing edges are a no-op
	Unrelate(ctx context.Context, clientID, parentID, relationshipName, childID string) error

	// PropagateManagedState sets the managed flag on directly contained
	// neighbors of the entity. Single hop only.
	PropagateManagedState(ctx context.Context, clientID, entityID string, managed bool) error

	// ListForEntity retrieves all edges touching the entity, both directions
	ListForEntity(ctx context.Context, clientID, entityID string) ([]*Edge, error)
}
