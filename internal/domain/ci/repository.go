package ci

import (
	"context"
	"time"
)

// Repository defines the interface for configuration item data access.
// Implementations must enforce the (clientID, category, identity)
// uniqueness invariant and surface a Conflict error when an insert races.
type Repository interface {
	// Insert creates a new configuration item row
	Insert(ctx context.Context, item *ConfigurationItem) error

	// Update overwrites the stored row for the item's identity
	Update(ctx context.Context, item *ConfigurationItem) error

	// Touch refreshes only the discovery bookkeeping of an existing row
	Touch(ctx context.Context, clientID, category, identity string, discoveredAt time.Time, runID *string) error

	// GetByID retrieves one item by identity
	GetByID(ctx context.Context, clientID, category, identity string) (*ConfigurationItem, error)

	// FindByAttributes retrieves items whose attributes equal every entry
	// of the predicate, in deterministic order (creation date, identity)
	FindByAttributes(ctx context.Context, clientID, category string, predicate map[string]any) ([]*ConfigurationItem, error)

	// SetManaged flips the managed flag on one item
	SetManaged(ctx context.Context, clientID, identity string, managed bool) error

	// Delete removes one item row
	Delete(ctx context.Context, clientID, category, identity string) error

	// List retrieves items of a category with pagination
	List(ctx context.Context, clientID, category string, limit, offset int) ([]*ConfigurationItem, int64, error)
}
