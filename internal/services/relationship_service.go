package services

import (
	"context"
	"time"

	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/domain/relationship"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/metrics"
)

// RelationshipService implements relationship.Service over the edge
// repository and the relationship kind registry.
type RelationshipService struct {
	edges  relationship.Repository
	kinds  relationship.KindRegistry
	cis    ci.Repository
	logger *logger.Logger
}

// NewRelationshipService creates a new relationship graph service.
func NewRelationshipService(edges relationship.Repository, kinds relationship.KindRegistry, cis ci.Repository, log *logger.Logger) *RelationshipService {
	return &RelationshipService{edges: edges, kinds: kinds, cis: cis, logger: log}
}

// Relate creates the edge unless an edge with the same (parent,
// relationship, child) tuple already exists. Re-relating is a no-op.
func (s *RelationshipService) Relate(ctx context.Context, edge *relationship.Edge) error {
	if edge.ParentID == "" || edge.ChildID == "" || edge.RelationshipName == "" {
		return errors.ValidationError("parentci_id, childci_id and relationship_name are required", nil)
	}
	if edge.ParentID == edge.ChildID {
		return errors.ValidationError("an item cannot be related to itself", nil)
	}
	if _, err := s.kinds.Kind(ctx, edge.RelationshipName); err != nil {
		return err
	}

	exists, err := s.edges.Exists(ctx, edge.ClientID, edge.ParentID, edge.RelationshipName, edge.ChildID)
	if err != nil {
		return err
	}
	if exists {
		s.logger.WithFields(map[string]interface{}{
			"parentci_id":       edge.ParentID,
			"childci_id":        edge.ChildID,
			"relationship_name": edge.RelationshipName,
		}).Debug("Edge already exists, skipping create")
		return nil
	}

	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}
	if err := s.edges.Create(ctx, edge); err != nil {
		// A concurrent Relate can win the race between Exists and Create;
		// the edge is there either way.
		if errors.IsCode(err, errors.ErrCodeConflict) {
			return nil
		}
		return err
	}
	metrics.RecordEdge("created")
	return nil
}

// Unrelate removes edges matching the full key. Missing edges are a no-op.
func (s *RelationshipService) Unrelate(ctx context.Context, clientID, parentID, relationshipName, childID string) error {
	n, err := s.edges.DeleteByKey(ctx, clientID, parentID, relationshipName, childID)
	if err != nil {
		return err
	}
	if n > 0 {
		metrics.RecordEdge("deleted")
	}
	return nil
}

// PropagateManagedState sets the managed flag on every neighbor directly
// connected to the entity through a contained relationship, in both
// directions. The flag does not propagate past those neighbors.
func (s *RelationshipService) PropagateManagedState(ctx context.Context, clientID, entityID string, managed bool) error {
	asParent, err := s.edges.ListByParent(ctx, clientID, entityID)
	if err != nil {
		return err
	}
	for _, edge := range asParent {
		if err := s.propagateTo(ctx, clientID, edge.RelationshipName, edge.ChildID, managed); err != nil {
			return err
		}
	}

	asChild, err := s.edges.ListByChild(ctx, clientID, entityID)
	if err != nil {
		return err
	}
	for _, edge := range asChild {
		if err := s.propagateTo(ctx, clientID, edge.RelationshipName, edge.ParentID, managed); err != nil {
			return err
		}
	}
	return nil
}

func (s *RelationshipService) propagateTo(ctx context.Context, clientID, relationshipName, neighborID string, managed bool) error {
	kind, err := s.kinds.Kind(ctx, relationshipName)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			s.logger.Warnf("Relationship kind %q is not registered, skipping propagation", relationshipName)
			return nil
		}
		return err
	}
	if !kind.IsContained {
		return nil
	}
	if err := s.cis.SetManaged(ctx, clientID, neighborID, managed); err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return nil
		}
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"unique_id": neighborID,
		"managed":   managed,
	}).Debug("Propagated managed state to contained neighbor")
	return nil
}

// ListForEntity retrieves every edge touching the entity, parent side first.
func (s *RelationshipService) ListForEntity(ctx context.Context, clientID, entityID string) ([]*relationship.Edge, error) {
	asParent, err := s.edges.ListByParent(ctx, clientID, entityID)
	if err != nil {
		return nil, err
	}
	asChild, err := s.edges.ListByChild(ctx, clientID, entityID)
	if err != nil {
		return nil, err
	}
	return append(asParent, asChild...), nil
}
