package client

import (
	"context"
	"fmt"
	"net/url"
)

// BaselineService handles baseline API calls
type BaselineService struct {
	client *Client
}

// Definitions lists the enabled baseline definitions of a category,
// including the implicit default when the tenant flag is set
func (s *BaselineService) Definitions(ctx context.Context, clientID, category string) ([]BaselineDefinition, error) {
	path := fmt.Sprintf("/api/v1/baselines/definitions/%s?clientid=%s",
		url.PathEscape(category), url.QueryEscape(clientID))

	var defs []BaselineDefinition
	if err := s.client.doRequest(ctx, "GET", path, nil, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// History returns the attribute-level change history of an item under a
// baseline, oldest first. An empty baseline name selects the default
func (s *BaselineService) History(ctx context.Context, clientID, category, id, baselineName string) ([]BaselineChange, error) {
	query := url.Values{}
	query.Set("clientid", clientID)
	if baselineName != "" {
		query.Set("baseline", baselineName)
	}

	path := fmt.Sprintf("/api/v1/baselines/history/%s/%s?%s",
		url.PathEscape(category), url.PathEscape(id), query.Encode())

	var changes []BaselineChange
	if err := s.client.doRequest(ctx, "GET", path, nil, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}
