package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// CIService handles configuration item API calls
type CIService struct {
	client *Client
}

// UpsertCIRequest resolves or creates one configuration item
type UpsertCIRequest struct {
	ClientID   string                 `json:"clientid"`
	Category   string                 `json:"ci_category"`
	Attributes map[string]interface{} `json:"attributes"`
}

// ChildCIRequest is one child item inside a composite ingestion payload
type ChildCIRequest struct {
	Category     string                 `json:"ci_type"`
	Attributes   map[string]interface{} `json:"attributes"`
	Relationship string                 `json:"relationship_name"`
	Direction    string                 `json:"relationship_direction"`
	MappingLevel int                    `json:"mapping_level,omitempty"`
	ParentLevel  *int                   `json:"parent_level,omitempty"`
}

// IngestCIRequest is a composite ingestion payload
type IngestCIRequest struct {
	ClientID   string                              `json:"clientid"`
	Category   string                              `json:"ci_category"`
	Attributes map[string]interface{}              `json:"attributes"`
	CreatedBy  string                              `json:"created_by,omitempty"`
	Details    map[string][]map[string]interface{} `json:"details,omitempty"`
	Children   []ChildCIRequest                    `json:"child_cis,omitempty"`
}

// Upsert resolves the payload against stored state and creates or updates
// one configuration item
func (s *CIService) Upsert(ctx context.Context, req UpsertCIRequest) (*UpsertResult, error) {
	var result UpsertResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/cis", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ingest submits a composite payload: top-level item, detail rows and child
// items. Per-child failures are reported in the result, not as an error
func (s *CIService) Ingest(ctx context.Context, req IngestCIRequest) (*IngestResult, error) {
	var result IngestResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/cis/composite", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Get retrieves a single configuration item
func (s *CIService) Get(ctx context.Context, clientID, category, id string) (*CI, error) {
	path := fmt.Sprintf("/api/v1/cis/%s/%s?clientid=%s",
		url.PathEscape(category), url.PathEscape(id), url.QueryEscape(clientID))

	var item CI
	if err := s.client.doRequest(ctx, "GET", path, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// List retrieves the items of a category with pagination
func (s *CIService) List(ctx context.Context, clientID, category string, opts *ListOptions) (*CIPage, error) {
	query := url.Values{}
	query.Set("clientid", clientID)
	if opts != nil {
		if opts.Page > 0 {
			query.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			query.Set("page_size", strconv.Itoa(opts.PageSize))
		}
	}

	path := fmt.Sprintf("/api/v1/cis/%s?%s", url.PathEscape(category), query.Encode())

	var page CIPage
	if err := s.client.doRequest(ctx, "GET", path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SetManaged updates the managed flag on an item. The server propagates the
// flag one hop across contained relationships
func (s *CIService) SetManaged(ctx context.Context, clientID, category, id string, managed bool) error {
	path := fmt.Sprintf("/api/v1/cis/%s/%s/managed?clientid=%s",
		url.PathEscape(category), url.PathEscape(id), url.QueryEscape(clientID))

	body := map[string]interface{}{"ismanagedci": managed}
	return s.client.doRequest(ctx, "PATCH", path, body, nil)
}

// Delete removes an unmanaged item, cascading over contained children.
// Deleting a managed item fails with a 409 conflict
func (s *CIService) Delete(ctx context.Context, clientID, category, id string) error {
	path := fmt.Sprintf("/api/v1/cis/%s/%s?clientid=%s",
		url.PathEscape(category), url.PathEscape(id), url.QueryEscape(clientID))

	return s.client.doRequest(ctx, "DELETE", path, nil, nil)
}

// Expand returns the relationship tree around an item, at most depth hops deep
func (s *CIService) Expand(ctx context.Context, clientID, category, id string, depth int) (*CompositeNode, error) {
	query := url.Values{}
	query.Set("clientid", clientID)
	if depth > 0 {
		query.Set("depth", strconv.Itoa(depth))
	}

	path := fmt.Sprintf("/api/v1/cis/%s/%s/expand?%s",
		url.PathEscape(category), url.PathEscape(id), query.Encode())

	var tree CompositeNode
	if err := s.client.doRequest(ctx, "GET", path, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}
