package ci

import (
	"context"

	"github.com/trackline/cmdb/internal/domain/rule"
)

// UpsertInput is one resolve-or-create request for a single item.
type UpsertInput struct {
	ClientID   string
	Category   string
	Attributes map[string]any
	Rules      []rule.IdentificationRule
}

// UpsertResult reports the resolved identity and whether the row pre-existed.
type UpsertResult struct {
	Identity string `json:"unique_id"`
	Existed  bool   `json:"existed"`
}

// Service defines the upsert engine exposed to the request layer.
type Service interface {
	// Upsert resolves the payload to an existing item or creates a new one,
	// writing baseline retention records as a side effect
	Upsert(ctx context.Context, in UpsertInput) (*UpsertResult, error)

	// Get retrieves one item
	Get(ctx context.Context, clientID, category, identity string) (*ConfigurationItem, error)

	// SetManaged updates the managed flag and propagates it one hop across
	// contained relationships
	SetManaged(ctx context.Context, clientID, category, identity string, managed bool) error

	// Delete removes an unmanaged item, cascading over contained children.
	// Deleting a managed item fails with a DeleteBlocked error.
	Delete(ctx context.Context, clientID, category, identity string) error
}

// Traverser expands the relationship graph around a root item.
type Traverser interface {
	// Expand returns the composite tree rooted at the item, at most depth
	// hops deep. Traversal is read-only and honors context cancellation
	// between recursive steps.
	Expand(ctx context.Context, clientID, rootID, rootCategory string, depth int) (*CompositeNode, error)
}

// ChildInput describes one child item inside a composite payload.
type ChildInput struct {
	Category     string
	Attributes   map[string]any
	Relationship string
	Direction    string
	MappingLevel int
	// ParentLevel selects which previously resolved level is the other
	// endpoint of the relationship; nil means the top-level item.
	ParentLevel *int
}

// CompositeInput is a top-level ingestion request: one item, optional
// auxiliary detail rows, and optional child items with relationships.
type CompositeInput struct {
	ClientID   string
	Category   string
	Attributes map[string]any
	CreatedBy  string
	// Details maps a detail kind to its replacement rows.
	Details  map[string][]map[string]any
	Children []ChildInput
}

// ChildResult reports the per-child outcome of a composite ingestion.
type ChildResult struct {
	Success  bool   `json:"success"`
	Identity string `json:"unique_id,omitempty"`
	Category string `json:"ci_type,omitempty"`
	Name     string `json:"ci_name,omitempty"`
	Message  string `json:"message"`
}

// IngestResult is the outcome of a composite ingestion.
type IngestResult struct {
	Identity string        `json:"unique_id"`
	Existed  bool          `json:"existed"`
	Children []ChildResult `json:"child_cis"`
}

// Ingestor runs composite ingestion: best effort over the list of children.
type Ingestor interface {
	IngestComposite(ctx context.Context, in CompositeInput) (*IngestResult, error)
}
