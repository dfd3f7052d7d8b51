package client

import "time"

// CI is a configuration item as returned by the API
type CI struct {
	Identity           string                 `json:"unique_id"`
	ClientID           string                 `json:"clientid"`
	Category           string                 `json:"ci_category"`
	Attributes         map[string]interface{} `json:"attributes"`
	Managed            bool                   `json:"ismanagedci"`
	Status             string                 `json:"cistatus"`
	LastDiscoveredTime time.Time              `json:"last_discovered_time"`
	DiscoveryRunID     *string                `json:"discovery_runidentifier,omitempty"`
	LastModifiedTime   time.Time              `json:"last_modified_time"`
	CreatedDate        time.Time              `json:"created_date"`
}

// UpsertResult reports the resolved identity and whether the item pre-existed
type UpsertResult struct {
	Identity string `json:"unique_id"`
	Existed  bool   `json:"existed"`
}

// ChildResult is the per-child outcome of a composite ingestion
type ChildResult struct {
	Success  bool   `json:"success"`
	Identity string `json:"unique_id,omitempty"`
	Category string `json:"ci_type,omitempty"`
	Name     string `json:"ci_name,omitempty"`
	Message  string `json:"message"`
}

// IngestResult is the outcome of a composite ingestion
type IngestResult struct {
	Identity string        `json:"unique_id"`
	Existed  bool          `json:"existed"`
	Children []ChildResult `json:"child_cis"`
}

// CompositeNode is one node of an expanded relationship tree
type CompositeNode struct {
	Identity              string                 `json:"unique_id"`
	Category              string                 `json:"citype"`
	Relationship          string                 `json:"relationship,omitempty"`
	RelationshipDirection string                 `json:"relationship_direction,omitempty"`
	Attributes            map[string]interface{} `json:"attributes,omitempty"`
	Children              []*CompositeNode       `json:"childcis"`
}

// Relationship is one directed, named edge between two configuration items
type Relationship struct {
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

// BaselineDefinition is a named retention policy for one category
type BaselineDefinition struct {
	ID       int64  `json:"id"`
	ClientID string `json:"clientid"`
	Category string `json:"citype"`
	Name     string `json:"baseline_name"`
	MaxLevel int    `json:"max_level"`
	Enabled  bool   `json:"is_enabled"`
}

// BaselineChange is one attribute-level difference between consecutive
// retained snapshots
type BaselineChange struct {
	Attribute string      `json:"attributename"`
	OldValue  interface{} `json:"oldvalue"`
	NewValue  interface{} `json:"newvalue"`
	Time      time.Time   `json:"time"`
}

// CIPage is one page of a configuration item listing
type CIPage struct {
	Data       []CI  `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ListOptions contains pagination options for list calls
type ListOptions struct {
	Page     int `json:"page,omitempty"`
	PageSize int `json:"page_size,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
