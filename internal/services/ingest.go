package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/domain/detail"
	"github.com/trackline/cmdb/internal/domain/relationship"
	"github.com/trackline/cmdb/internal/domain/rule"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/pkg/logger"
)

// IngestService implements ci.Ingestor: one top-level item plus auxiliary
// detail rows plus child items with relationship wiring, in a single call.
// Children are best effort: a child that fails validation or identification
// is reported in the result and the rest still proceed; storage errors
// abort the whole ingestion.
type IngestService struct {
	upserts       ci.Service
	relationships relationship.Service
	details       detail.Repository
	rules         rule.Source
	logger        *logger.Logger
}

// NewIngestService creates a new composite ingestion service.
func NewIngestService(upserts ci.Service, relationships relationship.Service, details detail.Repository, rules rule.Source, log *logger.Logger) *IngestService {
	return &IngestService{
		upserts:       upserts,
		relationships: relationships,
		details:       details,
		rules:         rules,
		logger:        log,
	}
}

// levelEntry is one resolved endpoint in the composite payload, keyed by
// the payload's mapping level. Level zero is the top-level item.
type levelEntry struct {
	identity string
	category string
}

// levelMap records resolved endpoints in ingestion order so a child can
// name an earlier level as its relationship endpoint.
type levelMap struct {
	order   []int
	entries map[int]levelEntry
}

func newLevelMap() *levelMap {
	return &levelMap{entries: make(map[int]levelEntry)}
}

func (m *levelMap) set(level int, e levelEntry) {
	if _, ok := m.entries[level]; !ok {
		m.order = append(m.order, level)
	}
	m.entries[level] = e
}

func (m *levelMap) get(level int) (levelEntry, bool) {
	e, ok := m.entries[level]
	return e, ok
}

// IngestComposite upserts the top-level item, replaces its auxiliary detail
// rows, then upserts each child in payload order and wires the declared
// relationship to its parent level.
func (s *IngestService) IngestComposite(ctx context.Context, in ci.CompositeInput) (*ci.IngestResult, error) {
	rules, err := s.rules.RulesFor(ctx, in.ClientID, in.Category)
	if err != nil {
		return nil, err
	}
	root, err := s.upserts.Upsert(ctx, ci.UpsertInput{
		ClientID:   in.ClientID,
		Category:   in.Category,
		Attributes: in.Attributes,
		Rules:      rules,
	})
	if err != nil {
		return nil, err
	}

	if err := s.replaceDetails(ctx, in, root.Identity); err != nil {
		return nil, err
	}

	result := &ci.IngestResult{
		Identity: root.Identity,
		Existed:  root.Existed,
		Children: make([]ci.ChildResult, 0, len(in.Children)),
	}

	levels := newLevelMap()
	levels.set(0, levelEntry{identity: root.Identity, category: in.Category})

	for _, child := range in.Children {
		res, err := s.ingestChild(ctx, in, child, levels)
		if err != nil {
			return nil, err
		}
		result.Children = append(result.Children, *res)
	}
	return result, nil
}

func (s *IngestService) ingestChild(ctx context.Context, in ci.CompositeInput, child ci.ChildInput, levels *levelMap) (*ci.ChildResult, error) {
	name := childName(child.Attributes)
	fail := func(msg string) *ci.ChildResult {
		return &ci.ChildResult{Success: false, Category: child.Category, Name: name, Message: msg}
	}

	if child.Category == "" {
		return fail("ci_type is required"), nil
	}
	if child.Relationship == "" {
		return fail("relationship_name is required"), nil
	}
	switch child.Direction {
	case ci.DirectionParentToChild, ci.DirectionChildToParent:
	default:
		return fail(fmt.Sprintf("unknown relationship direction %q", child.Direction)), nil
	}

	parentLevel := 0
	if child.ParentLevel != nil {
		parentLevel = *child.ParentLevel
	}
	parent, ok := levels.get(parentLevel)
	if !ok {
		return fail(fmt.Sprintf("mapping level %d does not resolve to an ingested item", parentLevel)), nil
	}

	rules, err := s.rules.RulesFor(ctx, in.ClientID, child.Category)
	if err != nil {
		return nil, err
	}
	res, err := s.upserts.Upsert(ctx, ci.UpsertInput{
		ClientID:   in.ClientID,
		Category:   child.Category,
		Attributes: child.Attributes,
		Rules:      rules,
	})
	if err != nil {
		// Validation and identification failures are per-child outcomes;
		// anything else poisons the whole ingestion.
		switch errors.Code(err) {
		case errors.ErrCodeValidation, errors.ErrCodeBadRequest, errors.ErrCodeIdentityUnresolvable:
			s.logger.WithError(err).Warnf("Child item %q of category %s rejected", name, child.Category)
			return fail(err.Error()), nil
		}
		return nil, err
	}

	edge := &relationship.Edge{
		ClientID:         in.ClientID,
		RelationshipName: child.Relationship,
		CreatedBy:        in.CreatedBy,
	}
	if child.Direction == ci.DirectionParentToChild {
		edge.ParentID = parent.identity
		edge.ParentCategory = parent.category
		edge.ChildID = res.Identity
		edge.ChildCategory = child.Category
	} else {
		edge.ParentID = res.Identity
		edge.ParentCategory = child.Category
		edge.ChildID = parent.identity
		edge.ChildCategory = parent.category
	}
	if err := s.relationships.Relate(ctx, edge); err != nil {
		switch errors.Code(err) {
		case errors.ErrCodeValidation, errors.ErrCodeBadRequest, errors.ErrCodeNotFound:
			return fail(err.Error()), nil
		}
		return nil, err
	}

	if child.MappingLevel > 0 {
		levels.set(child.MappingLevel, levelEntry{identity: res.Identity, category: child.Category})
	}

	return &ci.ChildResult{
		Success:  true,
		Identity: res.Identity,
		Category: child.Category,
		Name:     name,
		Message:  "ok",
	}, nil
}

func (s *IngestService) replaceDetails(ctx context.Context, in ci.CompositeInput, entityID string) error {
	// Deterministic kind order keeps replacement behavior stable.
	kinds := make([]string, 0, len(in.Details))
	for kind := range in.Details {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	now := time.Now().UTC()
	for _, kind := range kinds {
		if !detail.KnownKind(kind) {
			s.logger.Warnf("Unknown detail kind %q in payload, skipping", kind)
			continue
		}
		raw := in.Details[kind]
		rows := make([]*detail.Row, 0, len(raw))
		for _, fields := range raw {
			row := &detail.Row{
				EntityID:  entityID,
				ClientID:  in.ClientID,
				Category:  in.Category,
				Kind:      kind,
				Fields:    cloneAttributes(fields),
				CreatedAt: now,
			}
			if ip, ok := fields["ipaddress"].(string); ok && ip != "" {
				row.IPAddress = &ip
				delete(row.Fields, "ipaddress")
			}
			rows = append(rows, row)
		}
		if err := s.details.Replace(ctx, in.ClientID, entityID, kind, rows); err != nil {
			return err
		}
	}
	return nil
}

func childName(attrs map[string]any) string {
	for _, key := range []string{"name", "hostname", "display_name"} {
		if v, ok := attrs[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
