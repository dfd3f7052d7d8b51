package client

import "context"

// HealthService handles health check API calls
type HealthService struct {
	client *Client
}

// Check reports whether the API process is alive
func (s *HealthService) Check(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := s.client.doRequest(ctx, "GET", "/healthz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ready reports whether the API can reach its database
func (s *HealthService) Ready(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := s.client.doRequest(ctx, "GET", "/readyz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ping is a simple connectivity test
func (s *HealthService) Ping(ctx context.Context) error {
	_, err := s.Check(ctx)
	return err
}
