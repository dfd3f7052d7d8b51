package services

import (
	"context"
	"time"

	"github.com/trackline/cmdb/internal/domain/baseline"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/metrics"
)

// RetentionService implements baseline.Recorder: a per-(entity, baseline)
// bounded history. Exactly one insert record is retained, up to maxLevel
// update records ordered by creation time with the oldest evicted first,
// and a terminal delete record.
type RetentionService struct {
	records baseline.Repository
	source  baseline.DefinitionSource
	logger  *logger.Logger
}

// NewRetentionService creates a new baseline retention log.
func NewRetentionService(records baseline.Repository, source baseline.DefinitionSource, log *logger.Logger) *RetentionService {
	return &RetentionService{records: records, source: source, logger: log}
}

// Record applies the event to every enabled baseline for the entity's
// category, including the implicit default baseline when the tenant has
// default change tracking enabled.
func (s *RetentionService) Record(ctx context.Context, ev baseline.Event) error {
	switch ev.Operation {
	case baseline.OpInsert, baseline.OpUpdate, baseline.OpDelete:
	default:
		return errors.BadRequest("unknown baseline operation: " + ev.Operation)
	}

	defs, err := s.enabledDefinitions(ctx, ev.ClientID, ev.Category)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, def := range defs {
		if err := s.recordOne(ctx, def, ev, now); err != nil {
			return err
		}
		metrics.RecordBaselineRecord(ev.Operation)
	}
	return nil
}

func (s *RetentionService) recordOne(ctx context.Context, def baseline.Definition, ev baseline.Event, now time.Time) error {
	switch ev.Operation {
	case baseline.OpInsert:
		// Insert is idempotent per (entity, baseline).
		has, err := s.records.HasInsert(ctx, ev.ClientID, ev.EntityID, def.Name)
		if err != nil {
			return err
		}
		if has {
			return nil
		}
		return s.append(ctx, def, ev, baseline.OpInsert, ev.Snapshot, now)

	case baseline.OpUpdate:
		// Items created before tracking was enabled have no insert record
		// yet; backfill one from the pre-update state.
		has, err := s.records.HasInsert(ctx, ev.ClientID, ev.EntityID, def.Name)
		if err != nil {
			return err
		}
		if !has {
			prev := ev.Previous
			if prev == nil {
				prev = ev.Snapshot
			}
			if err := s.append(ctx, def, ev, baseline.OpInsert, prev, now); err != nil {
				return err
			}
		}
		if err := s.append(ctx, def, ev, baseline.OpUpdate, ev.Snapshot, now); err != nil {
			return err
		}
		count, err := s.records.CountUpdates(ctx, ev.ClientID, ev.EntityID, def.Name)
		if err != nil {
			return err
		}
		if count > def.MaxLevel {
			return s.records.EvictOldestUpdates(ctx, ev.ClientID, ev.EntityID, def.Name, count-def.MaxLevel)
		}
		return nil

	case baseline.OpDelete:
		return s.append(ctx, def, ev, baseline.OpDelete, ev.Snapshot, now)
	}
	return nil
}

func (s *RetentionService) append(ctx context.Context, def baseline.Definition, ev baseline.Event, op string, snapshot map[string]any, now time.Time) error {
	return s.records.Append(ctx, &baseline.Record{
		EntityID:     ev.EntityID,
		ClientID:     ev.ClientID,
		Category:     ev.Category,
		BaselineName: def.Name,
		Operation:    op,
		Snapshot:     snapshot,
		CreatedAt:    now,
	})
}

func (s *RetentionService) enabledDefinitions(ctx context.Context, clientID, category string) ([]baseline.Definition, error) {
	defs, err := s.source.DefinitionsFor(ctx, clientID, category)
	if err != nil {
		return nil, err
	}
	enabled := make([]baseline.Definition, 0, len(defs)+1)
	for _, d := range defs {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}

	tracking, err := s.source.DefaultTrackingEnabled(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if tracking {
		enabled = append(enabled, baseline.Definition{
			ClientID: clientID,
			Category: category,
			Name:     baseline.DefaultName,
			MaxLevel: baseline.DefaultMaxLevel,
			Enabled:  true,
		})
	}
	return enabled, nil
}
