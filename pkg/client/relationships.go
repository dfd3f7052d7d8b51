package client

import (
	"context"
	"fmt"
	"net/url"
)

// RelationshipService handles relationship API calls
type RelationshipService struct {
	client *Client
}

// CreateRelationshipRequest creates one directed, named edge
type CreateRelationshipRequest struct {
	ClientID         string `json:"clientid"`
	ParentID         string `json:"parentci_id"`
	ParentCategory   string `json:"parentci_classname"`
	RelationshipName string `json:"relationship_name"`
	ChildID          string `json:"childci_id"`
	ChildCategory    string `json:"childci_classname"`
	CreatedBy        string `json:"created_by,omitempty"`
}

// DeleteRelationshipRequest removes edges matching the full key
type DeleteRelationshipRequest struct {
	ClientID         string `json:"clientid"`
	ParentID         string `json:"parentci_id"`
	RelationshipName string `json:"relationship_name"`
	ChildID          string `json:"childci_id"`
}

// Create stores a directed, named edge between two items. Re-creating an
// existing edge succeeds without a second row
func (s *RelationshipService) Create(ctx context.Context, req CreateRelationshipRequest) error {
	return s.client.doRequest(ctx, "POST", "/api/v1/relationships", req, nil)
}

// Delete removes the edges matching the full key. Missing edges succeed
func (s *RelationshipService) Delete(ctx context.Context, req DeleteRelationshipRequest) error {
	return s.client.doRequest(ctx, "DELETE", "/api/v1/relationships", req, nil)
}

// ListForEntity retrieves every edge touching the item, both directions
func (s *RelationshipService) ListForEntity(ctx context.Context, clientID, id string) ([]Relationship, error) {
	path := fmt.Sprintf("/api/v1/relationships/entity/%s?clientid=%s",
		url.PathEscape(id), url.QueryEscape(clientID))

	var edges []Relationship
	if err := s.client.doRequest(ctx, "GET", path, nil, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}
