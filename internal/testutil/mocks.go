package testutil

import (
	"context"
	"reflect"
	"sort"
	"time"

	"github.com/trackline/cmdb/internal/domain/baseline"
	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/domain/detail"
	"github.com/trackline/cmdb/internal/domain/relationship"
	"github.com/trackline/cmdb/internal/domain/rule"
	"github.com/trackline/cmdb/internal/pkg/errors"
)

func ciKey(clientID, category, identity string) string {
	return clientID + "/" + category + "/" + identity
}

// MockCIRepository is an in-memory implementation of ci.Repository
type MockCIRepository struct {
	Items       map[string]*ci.ConfigurationItem
	InsertOrder []string
	InsertError error
	UpdateError error
	FindError   error
}

func NewMockCIRepository() *MockCIRepository {
	return &MockCIRepository{Items: make(map[string]*ci.ConfigurationItem)}
}

func (m *MockCIRepository) Insert(ctx context.Context, item *ci.ConfigurationItem) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	key := ciKey(item.ClientID, item.Category, item.Identity)
	if _, ok := m.Items[key]; ok {
		return errors.Conflict("configuration item already exists: " + item.Identity)
	}
	m.Items[key] = cloneCI(item)
	m.InsertOrder = append(m.InsertOrder, key)
	return nil
}

func (m *MockCIRepository) Update(ctx context.Context, item *ci.ConfigurationItem) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	key := ciKey(item.ClientID, item.Category, item.Identity)
	if _, ok := m.Items[key]; !ok {
		return errors.NotFound("Configuration item")
	}
	m.Items[key] = cloneCI(item)
	return nil
}

func (m *MockCIRepository) Touch(ctx context.Context, clientID, category, identity string, discoveredAt time.Time, runID *string) error {
	item, ok := m.Items[ciKey(clientID, category, identity)]
	if !ok {
		return errors.NotFound("Configuration item")
	}
	item.LastDiscoveredTime = discoveredAt
	if runID != nil {
		item.DiscoveryRunID = runID
	}
	return nil
}

func (m *MockCIRepository) GetByID(ctx context.Context, clientID, category, identity string) (*ci.ConfigurationItem, error) {
	item, ok := m.Items[ciKey(clientID, category, identity)]
	if !ok {
		return nil, errors.NotFound("Configuration item")
	}
	return cloneCI(item), nil
}

func (m *MockCIRepository) FindByAttributes(ctx context.Context, clientID, category string, predicate map[string]any) ([]*ci.ConfigurationItem, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	var out []*ci.ConfigurationItem
	for _, key := range m.InsertOrder {
		item, ok := m.Items[key]
		if !ok || item.ClientID != clientID || item.Category != category {
			continue
		}
		matched := true
		for name, want := range predicate {
			if !reflect.DeepEqual(item.Attributes[name], want) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, cloneCI(item))
		}
	}
	return out, nil
}

func (m *MockCIRepository) SetManaged(ctx context.Context, clientID, identity string, managed bool) error {
	for _, item := range m.Items {
		if item.ClientID == clientID && item.Identity == identity {
			item.Managed = managed
			return nil
		}
	}
	return errors.NotFound("Configuration item")
}

func (m *MockCIRepository) Delete(ctx context.Context, clientID, category, identity string) error {
	key := ciKey(clientID, category, identity)
	if _, ok := m.Items[key]; !ok {
		return errors.NotFound("Configuration item")
	}
	delete(m.Items, key)
	return nil
}

func (m *MockCIRepository) List(ctx context.Context, clientID, category string, limit, offset int) ([]*ci.ConfigurationItem, int64, error) {
	var all []*ci.ConfigurationItem
	for _, key := range m.InsertOrder {
		item, ok := m.Items[key]
		if ok && item.ClientID == clientID && item.Category == category {
			all = append(all, cloneCI(item))
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func cloneCI(item *ci.ConfigurationItem) *ci.ConfigurationItem {
	dup := *item
	dup.Attributes = make(map[string]any, len(item.Attributes))
	for k, v := range item.Attributes {
		dup.Attributes[k] = v
	}
	return &dup
}

// MockRelationshipRepository is an in-memory implementation of
// relationship.Repository
type MockRelationshipRepository struct {
	Edges       []*relationship.Edge
	NextID      int64
	CreateError error
}

func NewMockRelationshipRepository() *MockRelationshipRepository {
	return &MockRelationshipRepository{NextID: 1}
}

func (m *MockRelationshipRepository) Create(ctx context.Context, edge *relationship.Edge) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	for _, e := range m.Edges {
		if e.ClientID == edge.ClientID && e.ParentID == edge.ParentID &&
			e.RelationshipName == edge.RelationshipName && e.ChildID == edge.ChildID {
			return errors.Conflict("relationship edge already exists")
		}
	}
	dup := *edge
	dup.ID = m.NextID
	m.NextID++
	m.Edges = append(m.Edges, &dup)
	edge.ID = dup.ID
	return nil
}

func (m *MockRelationshipRepository) Exists(ctx context.Context, clientID, parentID, relationshipName, childID string) (bool, error) {
	for _, e := range m.Edges {
		if e.ClientID == clientID && e.ParentID == parentID &&
			e.RelationshipName == relationshipName && e.ChildID == childID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRelationshipRepository) ListByParent(ctx context.Context, clientID, parentID string) ([]*relationship.Edge, error) {
	var out []*relationship.Edge
	for _, e := range m.Edges {
		if e.ClientID == clientID && e.ParentID == parentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRelationshipRepository) ListByChild(ctx context.Context, clientID, childID string) ([]*relationship.Edge, error) {
	var out []*relationship.Edge
	for _, e := range m.Edges {
		if e.ClientID == clientID && e.ChildID == childID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRelationshipRepository) DeleteByKey(ctx context.Context, clientID, parentID, relationshipName, childID string) (int64, error) {
	var kept []*relationship.Edge
	var removed int64
	for _, e := range m.Edges {
		if e.ClientID == clientID && e.ParentID == parentID &&
			e.RelationshipName == relationshipName && e.ChildID == childID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.Edges = kept
	return removed, nil
}

func (m *MockRelationshipRepository) DeleteForEntity(ctx context.Context, clientID, entityID string) error {
	var kept []*relationship.Edge
	for _, e := range m.Edges {
		if e.ClientID == clientID && (e.ParentID == entityID || e.ChildID == entityID) {
			continue
		}
		kept = append(kept, e)
	}
	m.Edges = kept
	return nil
}

// MockKindRegistry is an in-memory implementation of relationship.KindRegistry
type MockKindRegistry struct {
	Kinds map[string]*relationship.Kind
}

func NewMockKindRegistry() *MockKindRegistry {
	return &MockKindRegistry{Kinds: map[string]*relationship.Kind{
		"contains":    {Name: "contains", IsContained: true},
		"runs_on":     {Name: "runs_on", IsContained: true},
		"connects_to": {Name: "connects_to", IsContained: false},
		"depends_on":  {Name: "depends_on", IsContained: false},
	}}
}

func (m *MockKindRegistry) Kind(ctx context.Context, relationshipName string) (*relationship.Kind, error) {
	k, ok := m.Kinds[relationshipName]
	if !ok {
		return nil, errors.NotFound("Relationship kind")
	}
	return k, nil
}

// MockBaselineRepository is an in-memory implementation of baseline.Repository
type MockBaselineRepository struct {
	Records     []*baseline.Record
	NextID      int64
	AppendError error
}

func NewMockBaselineRepository() *MockBaselineRepository {
	return &MockBaselineRepository{NextID: 1}
}

func (m *MockBaselineRepository) Append(ctx context.Context, rec *baseline.Record) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	dup := *rec
	dup.ID = m.NextID
	m.NextID++
	m.Records = append(m.Records, &dup)
	rec.ID = dup.ID
	return nil
}

func (m *MockBaselineRepository) HasInsert(ctx context.Context, clientID, entityID, baselineName string) (bool, error) {
	for _, rec := range m.Records {
		if rec.ClientID == clientID && rec.EntityID == entityID &&
			rec.BaselineName == baselineName && rec.Operation == baseline.OpInsert {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockBaselineRepository) CountUpdates(ctx context.Context, clientID, entityID, baselineName string) (int, error) {
	count := 0
	for _, rec := range m.Records {
		if rec.ClientID == clientID && rec.EntityID == entityID &&
			rec.BaselineName == baselineName && rec.Operation == baseline.OpUpdate {
			count++
		}
	}
	return count, nil
}

func (m *MockBaselineRepository) EvictOldestUpdates(ctx context.Context, clientID, entityID, baselineName string, n int) error {
	matches := func(rec *baseline.Record) bool {
		return rec.ClientID == clientID && rec.EntityID == entityID &&
			rec.BaselineName == baselineName && rec.Operation == baseline.OpUpdate
	}
	var candidates []*baseline.Record
	for _, rec := range m.Records {
		if matches(rec) {
			candidates = append(candidates, rec)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	evict := make(map[int64]struct{}, n)
	for _, rec := range candidates[:n] {
		evict[rec.ID] = struct{}{}
	}
	var kept []*baseline.Record
	for _, rec := range m.Records {
		if _, drop := evict[rec.ID]; drop {
			continue
		}
		kept = append(kept, rec)
	}
	m.Records = kept
	return nil
}

func (m *MockBaselineRepository) ListByEntity(ctx context.Context, clientID, entityID, baselineName string) ([]*baseline.Record, error) {
	var out []*baseline.Record
	for _, rec := range m.Records {
		if rec.ClientID == clientID && rec.EntityID == entityID && rec.BaselineName == baselineName {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MockDefinitionSource is an in-memory implementation of
// baseline.DefinitionSource
type MockDefinitionSource struct {
	Definitions     []baseline.Definition
	DefaultTracking map[string]bool
}

func NewMockDefinitionSource() *MockDefinitionSource {
	return &MockDefinitionSource{DefaultTracking: make(map[string]bool)}
}

func (m *MockDefinitionSource) DefinitionsFor(ctx context.Context, clientID, category string) ([]baseline.Definition, error) {
	var out []baseline.Definition
	for _, d := range m.Definitions {
		if d.ClientID == clientID && d.Category == category {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockDefinitionSource) DefaultTrackingEnabled(ctx context.Context, clientID string) (bool, error) {
	return m.DefaultTracking[clientID], nil
}

// MockDetailRepository is an in-memory implementation of detail.Repository
type MockDetailRepository struct {
	Rows   []*detail.Row
	NextID int64
}

func NewMockDetailRepository() *MockDetailRepository {
	return &MockDetailRepository{NextID: 1}
}

func (m *MockDetailRepository) Replace(ctx context.Context, clientID, entityID, kind string, rows []*detail.Row) error {
	var kept []*detail.Row
	for _, r := range m.Rows {
		if r.ClientID == clientID && r.EntityID == entityID && r.Kind == kind && !r.ManuallyCreated {
			continue
		}
		kept = append(kept, r)
	}
	m.Rows = kept
	for _, r := range rows {
		dup := *r
		dup.ID = m.NextID
		m.NextID++
		m.Rows = append(m.Rows, &dup)
	}
	return nil
}

func (m *MockDetailRepository) ListByEntity(ctx context.Context, clientID, entityID, kind string) ([]*detail.Row, error) {
	var out []*detail.Row
	for _, r := range m.Rows {
		if r.ClientID == clientID && r.EntityID == entityID && r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockDetailRepository) DeleteForEntity(ctx context.Context, clientID, entityID string) error {
	var kept []*detail.Row
	for _, r := range m.Rows {
		if r.ClientID == clientID && r.EntityID == entityID {
			continue
		}
		kept = append(kept, r)
	}
	m.Rows = kept
	return nil
}

// MockRuleSource is an in-memory implementation of rule.Source
type MockRuleSource struct {
	Rules []rule.IdentificationRule
}

func NewMockRuleSource(rules ...rule.IdentificationRule) *MockRuleSource {
	return &MockRuleSource{Rules: rules}
}

func (m *MockRuleSource) RulesFor(ctx context.Context, clientID, category string) ([]rule.IdentificationRule, error) {
	var out []rule.IdentificationRule
	for _, r := range m.Rules {
		if r.ClientID == clientID && r.Category == category {
			out = append(out, r)
		}
	}
	return out, nil
}
