package baseline

import (
	"context"
	"time"
)

// Definition is a named retention policy for one (clientID, category) pair.
type Definition struct {
	ID       int64  `json:"id"`
	ClientID string `json:"clientid"`
	Category string `json:"citype"`
	Name     string `json:"baseline_name"`
	MaxLevel int    `json:"max_level"`
	Enabled  bool   `json:"is_enabled"`
}

// DefaultName is the implicit baseline injected when a tenant enables
// default change tracking.
const DefaultName = "default"

// DefaultMaxLevel is the retention depth of the implicit default baseline.
const DefaultMaxLevel = 10

// Record operations
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Record is one historical snapshot of an entity under a baseline. Records
// are append-only; retention evicts the oldest update records beyond the
// definition's max level.
type Record struct {
	ID           int64          `json:"id"`
	EntityID     string         `json:"unique_id"`
	ClientID     string         `json:"clientid"`
	Category     string         `json:"ci_category"`
	BaselineName string         `json:"baseline_name"`
	Operation    string         `json:"ci_operation"`
	Snapshot     map[string]any `json:"snapshot"`
	CreatedAt    time.Time      `json:"ct_created"`
}

// Change is one attribute-level difference between consecutive records.
type Change struct {
	Attribute string    `json:"attributename"`
	OldValue  any       `json:"oldvalue"`
	NewValue  any       `json:"newvalue"`
	Time      time.Time `json:"time"`
}

// Repository defines the interface for baseline record data access.
type Repository interface {
	// Append stores one record
	Append(ctx context.Context, rec *Record) error

	// HasInsert reports whether an insert record exists for the key
	HasInsert(ctx context.Context, clientID, entityID, baselineName string) (bool, error)

	// CountUpdates returns the retained update record count for the key
	CountUpdates(ctx context.Context, clientID, entityID, baselineName string) (int, error)

	// EvictOldestUpdates removes the n oldest update records for the key,
	// strictly FIFO by creation time
	EvictOldestUpdates(ctx context.Context, clientID, entityID, baselineName string, n int) error

	// ListByEntity retrieves the retained records for the key ordered by
	// creation time ascending
	ListByEntity(ctx context.Context, clientID, entityID, baselineName string) ([]*Record, error)
}

// DefinitionSource supplies enabled baseline definitions and the tenant's
// default-tracking flag; an external collaborator of the retention log.
type DefinitionSource interface {
	DefinitionsFor(ctx context.Context, clientID, category string) ([]Definition, error)
	DefaultTrackingEnabled(ctx context.Context, clientID string) (bool, error)
}

// Event is one change-tracking notification from the upsert engine or the
// deletion path.
type Event struct {
	ClientID  string
	Category  string
	EntityID  string
	Operation string
	Snapshot  map[string]any
	// Previous is the pre-change row state. On update it backfills the
	// insert record for items that predate tracking being enabled.
	Previous map[string]any
}

// Recorder is the retention log contract consumed by the upsert engine and
// the deletion path.
type Recorder interface {
	// Record writes a snapshot under every enabled baseline for the
	// entity's category, applying the retention policy
	Record(ctx context.Context, ev Event) error
}

// Service defines the read surface over baselines.
type Service interface {
	// Definitions lists enabled definitions for a category, including the
	// implicit default when the tenant flag is set
	Definitions(ctx context.Context, clientID, category string) ([]Definition, error)

	// History diffs consecutive retained records of an entity under a
	// baseline and returns the attribute-level changes
	History(ctx context.Context, clientID, category, entityID, baselineName string) ([]Change, error)
}
