package services

import (
	"context"
	"sort"

	"github.com/trackline/cmdb/internal/domain/baseline"
	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/pkg/logger"
)

// bookkeepingKeys are snapshot keys that reflect discovery plumbing rather
// than the item's configuration; they never surface as history changes.
var bookkeepingKeys = map[string]struct{}{
	"unique_id":               {},
	"clientid":                {},
	"ci_category":             {},
	"ismanagedci":             {},
	"cistatus":                {},
	"last_discovered_time":    {},
	"discovery_runidentifier": {},
	"last_modified_time":      {},
	"created_date":            {},
}

// BaselineService implements baseline.Service: the read surface over
// retained records.
type BaselineService struct {
	records baseline.Repository
	source  baseline.DefinitionSource
	logger  *logger.Logger
}

// NewBaselineService creates a new baseline read service.
func NewBaselineService(records baseline.Repository, source baseline.DefinitionSource, log *logger.Logger) *BaselineService {
	return &BaselineService{records: records, source: source, logger: log}
}

// Definitions lists the enabled definitions for a category, appending the
// implicit default baseline when the tenant flag is set.
func (s *BaselineService) Definitions(ctx context.Context, clientID, category string) ([]baseline.Definition, error) {
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

// History diffs consecutive retained records of the entity under the
// baseline and returns the attribute-level changes, oldest first. System
// attributes and discovery bookkeeping are excluded from the diff.
func (s *BaselineService) History(ctx context.Context, clientID, category, entityID, baselineName string) ([]baseline.Change, error) {
	if clientID == "" || entityID == "" {
		return nil, errors.ValidationError("clientid and unique_id are required", nil)
	}
	if baselineName == "" {
		baselineName = baseline.DefaultName
	}

	recs, err := s.records.ListByEntity(ctx, clientID, entityID, baselineName)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.NotFound("baseline history")
	}

	changes := make([]baseline.Change, 0)
	for i := 1; i < len(recs); i++ {
		changes = append(changes, diffSnapshots(recs[i-1], recs[i])...)
	}
	return changes, nil
}

// diffSnapshots returns the attribute changes between two consecutive
// records, stamped with the newer record's creation time.
func diffSnapshots(older, newer *baseline.Record) []baseline.Change {
	keys := make(map[string]struct{}, len(older.Snapshot)+len(newer.Snapshot))
	for k := range older.Snapshot {
		keys[k] = struct{}{}
	}
	for k := range newer.Snapshot {
		keys[k] = struct{}{}
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		if _, skip := bookkeepingKeys[k]; skip {
			continue
		}
		if ci.IsSystemAttribute(k) {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	changes := make([]baseline.Change, 0)
	for _, name := range names {
		oldV, newV := older.Snapshot[name], newer.Snapshot[name]
		if valueEqual(oldV, newV) {
			continue
		}
		changes = append(changes, baseline.Change{
			Attribute: name,
			OldValue:  oldV,
			NewValue:  newV,
			Time:      newer.CreatedAt,
		})
	}
	return changes
}
