package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trackline/cmdb/internal/domain/baseline"
	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/domain/detail"
	"github.com/trackline/cmdb/internal/domain/relationship"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/metrics"
	"github.com/trackline/cmdb/internal/schema"
)

// identityNamespace is the fixed namespace for deterministic identity
// UUIDs. Changing it changes every computed identity, so it never does.
var identityNamespace = uuid.MustParse("8f1b2c1e-4b6a-4c5d-9e2f-3a7d6c5b4a39")

// Payload keys promoted to bookkeeping fields during normalization.
const (
	attrStatus         = "cistatus"
	attrManaged        = "ismanagedci"
	attrCategory       = "ci_category"
	attrLastDiscovered = "last_discovered_time"
	attrDiscoveryRunID = "discovery_runidentifier"
)

// CIService implements ci.Service: the upsert engine plus the managed-flag
// and deletion paths that hang off it.
type CIService struct {
	cis           ci.Repository
	evaluator     *Evaluator
	retention     baseline.Recorder
	edges         relationship.Repository
	kinds         relationship.KindRegistry
	details       detail.Repository
	relationships relationship.Service
	registry      *schema.Registry
	logger        *logger.Logger
}

// NewCIService creates the upsert engine.
func NewCIService(
	cis ci.Repository,
	evaluator *Evaluator,
	retention baseline.Recorder,
	edges relationship.Repository,
	kinds relationship.KindRegistry,
	details detail.Repository,
	relationships relationship.Service,
	registry *schema.Registry,
	log *logger.Logger,
) ci.Service {
	return &CIService{
		cis:           cis,
		evaluator:     evaluator,
		retention:     retention,
		edges:         edges,
		kinds:         kinds,
		details:       details,
		relationships: relationships,
		registry:      registry,
		logger:        log,
	}
}

// Upsert resolves the payload against the stored state and either updates
// the matched item or inserts a new one with a deterministic identity.
// The entity write always precedes the baseline retention write.
func (s *CIService) Upsert(ctx context.Context, in ci.UpsertInput) (*ci.UpsertResult, error) {
	if in.ClientID == "" {
		return nil, errors.ValidationError("clientid is required", nil)
	}
	if len(in.Attributes) == 0 {
		return nil, errors.ValidationError("attributes are required", nil)
	}
	desc := s.registry.Lookup(in.Category)
	if desc == nil {
		return nil, errors.ValidationError("unknown category: "+in.Category, nil)
	}
	category := desc.Name

	payload := normalizePayload(in.Attributes)

	// One internal retry: a concurrent insert of the same identity loses
	// the uniqueness race, re-evaluates and lands on the update branch.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.resolveOnce(ctx, in.ClientID, category, in, payload)
		if err == nil {
			return res, nil
		}
		if !errors.IsCode(err, errors.ErrCodeConflict) {
			metrics.RecordUpsert("error")
			return nil, err
		}
		lastErr = err
		s.logger.WithFields(map[string]interface{}{
			"clientid": in.ClientID,
			"category": category,
		}).Warn("Concurrent insert race detected, re-resolving as update")
	}
	metrics.RecordUpsert("error")
	return nil, lastErr
}

func (s *CIService) resolveOnce(ctx context.Context, clientID, category string, in ci.UpsertInput, payload *normalizedPayload) (*ci.UpsertResult, error) {
	match, applied, err := s.evaluator.Evaluate(ctx, clientID, category, in.Rules, payload.attributes)
	if err != nil {
		return nil, err
	}
	if applied == nil {
		return nil, errors.IdentityUnresolvable(category)
	}

	if match != nil {
		return s.updateExisting(ctx, match, payload)
	}
	return s.insertNew(ctx, clientID, category, applied, payload)
}

func (s *CIService) updateExisting(ctx context.Context, stored *ci.ConfigurationItem, payload *normalizedPayload) (*ci.UpsertResult, error) {
	material := false
	for k, v := range payload.attributes {
		if valueEqual(stored.Attributes[k], v) {
			continue
		}
		if !ci.IsSystemAttribute(k) {
			material = true
			break
		}
	}

	if !material {
		if err := s.cis.Touch(ctx, stored.ClientID, stored.Category, stored.Identity, payload.discoveredAt, payload.runID); err != nil {
			return nil, err
		}
		s.logger.WithFields(map[string]interface{}{
			"unique_id": stored.Identity,
			"category":  stored.Category,
		}).Debug("No material change, refreshed discovery bookkeeping only")
		metrics.RecordUpsert("touched")
		return &ci.UpsertResult{Identity: stored.Identity, Existed: true}, nil
	}

	previous := stored.Snapshot()

	for k, v := range payload.attributes {
		stored.Attributes[k] = v
	}
	if payload.status != "" {
		stored.Status = payload.status
	}
	if payload.managed != nil {
		stored.Managed = *payload.managed
	}
	stored.LastDiscoveredTime = payload.discoveredAt
	if payload.runID != nil {
		stored.DiscoveryRunID = payload.runID
	}
	stored.LastModifiedTime = time.Now().UTC()

	if err := s.cis.Update(ctx, stored); err != nil {
		return nil, err
	}
	if err := s.retention.Record(ctx, baseline.Event{
		ClientID:  stored.ClientID,
		Category:  stored.Category,
		EntityID:  stored.Identity,
		Operation: baseline.OpUpdate,
		Snapshot:  stored.Snapshot(),
		Previous:  previous,
	}); err != nil {
		return nil, err
	}

	metrics.RecordUpsert("updated")
	return &ci.UpsertResult{Identity: stored.Identity, Existed: true}, nil
}

func (s *CIService) insertNew(ctx context.Context, clientID, category string, applied *AppliedRule, payload *normalizedPayload) (*ci.UpsertResult, error) {
	identity := uuid.NewSHA1(identityNamespace, []byte(applied.Seed(clientID, category))).String()

	s.logger.WithFields(map[string]interface{}{
		"clientid":  clientID,
		"category":  category,
		"rule_id":   applied.Rule.ID,
		"criteria":  len(applied.Criteria),
		"unique_id": identity,
	}).Debug("Computed identity from criterion attributes")

	now := time.Now().UTC()
	managed := false
	if payload.managed != nil {
		managed = *payload.managed
	}
	item := &ci.ConfigurationItem{
		Identity:           identity,
		ClientID:           clientID,
		Category:           category,
		Attributes:         payload.attributes,
		Managed:            managed,
		Status:             payload.status,
		LastDiscoveredTime: payload.discoveredAt,
		DiscoveryRunID:     payload.runID,
		LastModifiedTime:   now,
		CreatedDate:        now,
	}

	if err := s.cis.Insert(ctx, item); err != nil {
		return nil, err
	}
	if err := s.retention.Record(ctx, baseline.Event{
		ClientID:  clientID,
		Category:  category,
		EntityID:  identity,
		Operation: baseline.OpInsert,
		Snapshot:  item.Snapshot(),
	}); err != nil {
		return nil, err
	}

	metrics.RecordUpsert("created")
	return &ci.UpsertResult{Identity: identity, Existed: false}, nil
}

// Get retrieves one configuration item.
func (s *CIService) Get(ctx context.Context, clientID, category, identity string) (*ci.ConfigurationItem, error) {
	if clientID == "" || identity == "" {
		return nil, errors.ValidationError("clientid and unique_id are required", nil)
	}
	return s.cis.GetByID(ctx, clientID, category, identity)
}

// SetManaged updates the managed flag and propagates it one hop across
// contained relationships.
func (s *CIService) SetManaged(ctx context.Context, clientID, category, identity string, managed bool) error {
	if _, err := s.cis.GetByID(ctx, clientID, category, identity); err != nil {
		return err
	}
	if err := s.cis.SetManaged(ctx, clientID, identity, managed); err != nil {
		return err
	}
	return s.relationships.PropagateManagedState(ctx, clientID, identity, managed)
}

// Delete removes an unmanaged item: terminal baseline record, edge cleanup,
// recursive deletion of contained children, auxiliary detail cleanup, row
// removal. Managed items are rejected.
func (s *CIService) Delete(ctx context.Context, clientID, category, identity string) error {
	item, err := s.cis.GetByID(ctx, clientID, category, identity)
	if err != nil {
		return err
	}
	if item.Managed {
		return errors.DeleteBlocked(identity)
	}
	visited := make(map[string]struct{})
	return s.deleteCascade(ctx, item, visited)
}

func (s *CIService) deleteCascade(ctx context.Context, item *ci.ConfigurationItem, visited map[string]struct{}) error {
	if _, seen := visited[item.Identity]; seen {
		return nil
	}
	visited[item.Identity] = struct{}{}

	if err := s.retention.Record(ctx, baseline.Event{
		ClientID:  item.ClientID,
		Category:  item.Category,
		EntityID:  item.Identity,
		Operation: baseline.OpDelete,
		Snapshot:  item.Snapshot(),
	}); err != nil {
		return err
	}

	parentEdges, err := s.edges.ListByParent(ctx, item.ClientID, item.Identity)
	if err != nil {
		return err
	}
	for _, edge := range parentEdges {
		kind, err := s.kinds.Kind(ctx, edge.RelationshipName)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeNotFound) {
				s.logger.Warnf("Relationship kind %q is not registered, skipping containment cascade", edge.RelationshipName)
				continue
			}
			return err
		}
		if !kind.IsContained {
			continue
		}
		child, err := s.cis.GetByID(ctx, item.ClientID, edge.ChildCategory, edge.ChildID)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeNotFound) {
				continue
			}
			return err
		}
		if child.Managed {
			s.logger.WithFields(map[string]interface{}{
				"unique_id": child.Identity,
				"parent":    item.Identity,
			}).Warn("Contained child is managed, not cascading delete")
			continue
		}
		if err := s.deleteCascade(ctx, child, visited); err != nil {
			return err
		}
	}

	if err := s.edges.DeleteForEntity(ctx, item.ClientID, item.Identity); err != nil {
		return err
	}
	if err := s.details.DeleteForEntity(ctx, item.ClientID, item.Identity); err != nil {
		return err
	}
	if err := s.cis.Delete(ctx, item.ClientID, item.Category, item.Identity); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"unique_id": item.Identity,
		"category":  item.Category,
		"clientid":  item.ClientID,
	}).Info("Configuration item deleted")
	return nil
}

// normalizedPayload is the result of splitting a raw payload into domain
// attributes and promoted bookkeeping fields.
type normalizedPayload struct {
	attributes   map[string]any
	status       string
	managed      *bool
	discoveredAt time.Time
	runID        *string
}

func normalizePayload(raw map[string]any) *normalizedPayload {
	p := &normalizedPayload{
		attributes:   cloneAttributes(raw),
		status:       ci.StatusActive,
		discoveredAt: time.Now().UTC(),
	}

	if v, ok := p.attributes[attrStatus]; ok {
		if s, ok := v.(string); ok && s != "" {
			p.status = s
		}
		delete(p.attributes, attrStatus)
	}
	if v, ok := p.attributes[attrManaged]; ok {
		if b, ok := v.(bool); ok {
			p.managed = &b
		}
		delete(p.attributes, attrManaged)
	}
	if v, ok := p.attributes[attrLastDiscovered]; ok {
		switch t := v.(type) {
		case time.Time:
			p.discoveredAt = t
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				p.discoveredAt = parsed
			}
		}
		delete(p.attributes, attrLastDiscovered)
	}
	if v, ok := p.attributes[attrDiscoveryRunID]; ok {
		if s, ok := v.(string); ok && s != "" {
			p.runID = &s
		}
		delete(p.attributes, attrDiscoveryRunID)
	}
	// Category arrives as a call parameter; a copy inside the payload is
	// redundant bookkeeping.
	delete(p.attributes, attrCategory)

	return p
}
