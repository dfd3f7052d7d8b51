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

// TraversalService implements ci.Traverser: bounded-depth expansion of the
// relationship graph around a root item. The graph may be cyclic; a node is
// expanded at most once per root-to-node path, so cycles terminate and an
// item reachable over two distinct paths still appears under both.
type TraversalService struct {
	cis      ci.Repository
	edges    relationship.Repository
	maxDepth int
	logger   *logger.Logger
}

// NewTraversalService creates a new graph traverser. maxDepth caps the
// requested depth.
func NewTraversalService(cis ci.Repository, edges relationship.Repository, maxDepth int, log *logger.Logger) *TraversalService {
	return &TraversalService{cis: cis, edges: edges, maxDepth: maxDepth, logger: log}
}

// Expand returns the composite tree rooted at the item. depth is the number
// of hops away from the root to include; values below one and above the
// configured maximum are clamped.
func (s *TraversalService) Expand(ctx context.Context, clientID, rootID, rootCategory string, depth int) (*ci.CompositeNode, error) {
	if clientID == "" || rootID == "" {
		return nil, errors.ValidationError("clientid and unique_id are required", nil)
	}
	if depth < 1 {
		depth = 1
	}
	if depth > s.maxDepth {
		depth = s.maxDepth
	}

	root, err := s.cis.GetByID(ctx, clientID, rootCategory, rootID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	visited := map[string]struct{}{pathKey(root.Identity, root.Category): {}}
	node := &ci.CompositeNode{
		Identity:   root.Identity,
		Category:   root.Category,
		Attributes: root.Snapshot(),
	}
	if err := s.expandChildren(ctx, clientID, node, depth, visited); err != nil {
		return nil, err
	}
	metrics.ObserveTraversal(time.Since(start))
	return node, nil
}

func (s *TraversalService) expandChildren(ctx context.Context, clientID string, node *ci.CompositeNode, depth int, visited map[string]struct{}) error {
	if depth <= 1 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	asParent, err := s.edges.ListByParent(ctx, clientID, node.Identity)
	if err != nil {
		return err
	}
	asChild, err := s.edges.ListByChild(ctx, clientID, node.Identity)
	if err != nil {
		return err
	}

	type neighbor struct {
		id, category, relationship, direction string
	}
	neighbors := make([]neighbor, 0, len(asParent)+len(asChild))
	for _, e := range asParent {
		neighbors = append(neighbors, neighbor{e.ChildID, e.ChildCategory, e.RelationshipName, ci.DirectionParentToChild})
	}
	for _, e := range asChild {
		neighbors = append(neighbors, neighbor{e.ParentID, e.ParentCategory, e.RelationshipName, ci.DirectionChildToParent})
	}

	for _, n := range neighbors {
		key := pathKey(n.id, n.category)
		if _, seen := visited[key]; seen {
			continue
		}

		item, err := s.cis.GetByID(ctx, clientID, n.category, n.id)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeNotFound) {
				s.logger.Warnf("Edge references missing item %s, skipping", n.id)
				continue
			}
			return err
		}

		child := &ci.CompositeNode{
			Identity:              item.Identity,
			Category:              item.Category,
			Relationship:          n.relationship,
			RelationshipDirection: n.direction,
			Attributes:            item.Snapshot(),
		}

		// Mark on the way down, clear on the way back up: suppression is
		// per path, not global, so diamond shapes expand on both sides.
		visited[key] = struct{}{}
		if err := s.expandChildren(ctx, clientID, child, depth-1, visited); err != nil {
			return err
		}
		delete(visited, key)

		node.Children = append(node.Children, child)
	}
	return nil
}

func pathKey(identity, category string) string {
	return identity + "|" + category
}
