package ci

import "time"

// ConfigurationItem represents one tracked asset row of a given category.
// Domain attributes live in the Attributes map; bookkeeping fields are
// promoted to struct fields and never participate in material-change
// detection.
type ConfigurationItem struct {
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

// CI status
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusRetired  = "retired"
)

// Relationship directions used in composite payloads and traversal results.
const (
	DirectionParentToChild = "parent-to-child"
	DirectionChildToParent = "child-to-parent"
)

// SystemAttributes is the exclusion set for material-change detection:
// bookkeeping attributes whose drift never produces a baseline record.
var SystemAttributes = map[string]struct{}{
	"source":                    {},
	"created_by":                {},
	"description":               {},
	"display_name":              {},
	"label":                     {},
	"asset_id":                  {},
	"asset_tag":                 {},
	"last_modified_by":          {},
	"installed_date":            {},
	"ci_role":                   {},
	"config_last_modified_time": {},
	"contact_details":           {},
	"last_audit_status":         {},
	"last_audit_time":           {},
	"state":                     {},
	"state_time":                {},
	"ci_owner":                  {},
	"cinum":                     {},
	"clientname":                {},
	"ci_subcategory":            {},
	"location":                  {},
}

// IsSystemAttribute reports whether the attribute is on the exclusion set.
func IsSystemAttribute(name string) bool {
	_, ok := SystemAttributes[name]
	return ok
}

// Snapshot flattens the item into a single map the way baseline records
// store it: domain attributes plus the promoted bookkeeping fields.
func (c *ConfigurationItem) Snapshot() map[string]any {
	snap := make(map[string]any, len(c.Attributes)+8)
	for k, v := range c.Attributes {
		snap[k] = v
	}
	snap["unique_id"] = c.Identity
	snap["clientid"] = c.ClientID
	snap["ci_category"] = c.Category
	snap["ismanagedci"] = c.Managed
	snap["cistatus"] = c.Status
	snap["last_discovered_time"] = c.LastDiscoveredTime
	snap["last_modified_time"] = c.LastModifiedTime
	snap["created_date"] = c.CreatedDate
	return snap
}

// CompositeNode is one node of an expanded relationship tree.
type CompositeNode struct {
	Identity              string           `json:"unique_id"`
	Category              string           `json:"citype"`
	Relationship          string           `json:"relationship,omitempty"`
	RelationshipDirection string           `json:"relationship_direction,omitempty"`
	Attributes            map[string]any   `json:"attributes,omitempty"`
	Children              []*CompositeNode `json:"childcis"`
}
