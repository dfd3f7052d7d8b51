package detail

import (
	"context"
	"time"
)

// Detail kinds recognized in composite payloads. Each kind is replaced
// wholesale on re-ingestion; manually entered rows survive replacement.
const (
	KindInboundConnections  = "inbound_connections"
	KindOutboundConnections = "outbound_connections"
	KindRunningProcesses    = "running_processes"
	KindInstalledPackages   = "installed_packages"
	KindListeningPorts      = "listening_ports"
)

// Kinds lists the recognized detail kinds.
var Kinds = []string{
	KindInboundConnections,
	KindOutboundConnections,
	KindRunningProcesses,
	KindInstalledPackages,
	KindListeningPorts,
}

// KnownKind reports whether the kind is one of the recognized detail kinds.
func KnownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Row is one auxiliary detail record attached to a configuration item.
type Row struct {
	ID              int64          `json:"id"`
	EntityID        string         `json:"unique_id"`
	ClientID        string         `json:"client_id"`
	Category        string         `json:"ci_category"`
	Kind            string         `json:"kind"`
	IPAddress       *string        `json:"ipaddress,omitempty"`
	Fields          map[string]any `json:"fields"`
	ManuallyCreated bool           `json:"manually_created"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Repository defines the interface for auxiliary detail data access.
type Repository interface {
	// Replace deletes the discovered rows of the kind for the entity
	// (manually created rows are preserved) and inserts the new rows
	Replace(ctx context.Context, clientID, entityID, kind string, rows []*Row) error

	// ListByEntity retrieves the rows of one kind for the entity
	ListByEntity(ctx context.Context, clientID, entityID, kind string) ([]*Row, error)

	// DeleteForEntity removes every detail row of the entity, all kinds,
	// including manually created rows; used by the CI deletion path
	DeleteForEntity(ctx context.Context, clientID, entityID string) error
}
