package dto

import (
	"time"

	"github.com/trackline/cmdb/internal/domain/ci"
)

// UpsertCIRequest resolves or creates one configuration item.
type UpsertCIRequest struct {
	ClientID   string         `json:"clientid" validate:"required"`
	Category   string         `json:"ci_category" validate:"required"`
	Attributes map[string]any `json:"attributes" validate:"required"`
}

// ChildCIRequest is one child item inside a composite ingestion payload.
type ChildCIRequest struct {
	Category     string         `json:"ci_type" validate:"required"`
	Attributes   map[string]any `json:"attributes" validate:"required"`
	Relationship string         `json:"relationship_name" validate:"required"`
	Direction    string         `json:"relationship_direction" validate:"required,oneof=parent-to-child child-to-parent"`
	MappingLevel int            `json:"mapping_level,omitempty"`
	ParentLevel  *int           `json:"parent_level,omitempty"`
}

// IngestCIRequest is a composite ingestion payload: one top-level item,
// optional detail rows keyed by kind, optional children.
type IngestCIRequest struct {
	ClientID   string                      `json:"clientid" validate:"required"`
	Category   string                      `json:"ci_category" validate:"required"`
	Attributes map[string]any              `json:"attributes" validate:"required"`
	CreatedBy  string                      `json:"created_by,omitempty"`
	Details    map[string][]map[string]any `json:"details,omitempty"`
	Children   []ChildCIRequest            `json:"child_cis,omitempty"`
}

// SetManagedRequest flips the managed flag on one item.
type SetManagedRequest struct {
	Managed *bool `json:"ismanagedci" validate:"required"`
}

// CIDTO is the API shape of a configuration item.
type CIDTO struct {
	Identity           string         `json:"unique_id"`
	ClientID           string         `json:"clientid"`
	Category           string         `json:"ci_category"`
	Attributes         map[string]any `json:"attributes"`
	Managed            bool           `json:"ismanagedci"`
	Status             string         `json:"cistatus"`
	LastDiscoveredTime time.Time      `json:"last_discovered_time"`
	DiscoveryRunID     *string        `json:"discovery_runidentifier,omitempty"`
	LastModifiedTime   time.Time      `json:"last_modified_time"`
	CreatedDate        time.Time      `json:"created_date"`
}

// NewCIDTO maps a domain item to its API shape.
func NewCIDTO(item *ci.ConfigurationItem) CIDTO {
	return CIDTO{
		Identity:           item.Identity,
		ClientID:           item.ClientID,
		Category:           item.Category,
		Attributes:         item.Attributes,
		Managed:            item.Managed,
		Status:             item.Status,
		LastDiscoveredTime: item.LastDiscoveredTime,
		DiscoveryRunID:     item.DiscoveryRunID,
		LastModifiedTime:   item.LastModifiedTime,
		CreatedDate:        item.CreatedDate,
	}
}
