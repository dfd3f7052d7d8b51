package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/trackline/cmdb/internal/domain/baseline"
	"github.com/trackline/cmdb/internal/pkg/errors"
)

type BaselineRepository struct {
	db *sql.DB
}

func NewBaselineRepository(db *sql.DB) baseline.Repository {
	return &BaselineRepository{db: db}
}

func (r *BaselineRepository) Append(ctx context.Context, rec *baseline.Record) error {
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return errors.Internal("Failed to encode baseline snapshot", err)
	}

	query := `INSERT INTO baseline_records (entity_id, client_id, category, baseline_name, operation, snapshot, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		rec.EntityID, rec.ClientID, rec.Category, rec.BaselineName,
		rec.Operation, string(snapshot), rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return errors.DatabaseError("Failed to append baseline record", err)
	}

	rec.ID, _ = result.LastInsertId()
	return nil
}

func (r *BaselineRepository) HasInsert(ctx context.Context, clientID, entityID, baselineName string) (bool, error) {
	query := `SELECT COUNT(*) FROM baseline_records WHERE client_id = ? AND entity_id = ? AND baseline_name = ? AND operation = ?`

	var count int
	err := r.db.QueryRowContext(ctx, query, clientID, entityID, baselineName, baseline.OpInsert).Scan(&count)
	if err != nil {
		return false, errors.DatabaseError("Failed to check insert record", err)
	}
	return count > 0, nil
}

func (r *BaselineRepository) CountUpdates(ctx context.Context, clientID, entityID, baselineName string) (int, error) {
	query := `SELECT COUNT(*) FROM baseline_records WHERE client_id = ? AND entity_id = ? AND baseline_name = ? AND operation = ?`

	var count int
	err := r.db.QueryRowContext(ctx, query, clientID, entityID, baselineName, baseline.OpUpdate).Scan(&count)
	if err != nil {
		return 0, errors.DatabaseError("Failed to count update records", err)
	}
	return count, nil
}

func (r *BaselineRepository) EvictOldestUpdates(ctx context.Context, clientID, entityID, baselineName string, n int) error {
	// Oldest first by creation time, id breaks ties for records written in
	// the same instant.
	query := `DELETE FROM baseline_records WHERE id IN (
		SELECT id FROM baseline_records
		WHERE client_id = ? AND entity_id = ? AND baseline_name = ? AND operation = ?
		ORDER BY created_at ASC, id ASC LIMIT ?
	)`

	_, err := r.db.ExecContext(ctx, query, clientID, entityID, baselineName, baseline.OpUpdate, n)
	if err != nil {
		return errors.DatabaseError("Failed to evict baseline records", err)
	}
	return nil
}

func (r *BaselineRepository) ListByEntity(ctx context.Context, clientID, entityID, baselineName string) ([]*baseline.Record, error) {
	query := `SELECT id, entity_id, client_id, category, baseline_name, operation, snapshot, created_at FROM baseline_records WHERE client_id = ? AND entity_id = ? AND baseline_name = ? ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, clientID, entityID, baselineName)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list baseline records", err)
	}
	defer rows.Close()

	var recs []*baseline.Record
	for rows.Next() {
		var rec baseline.Record
		var snapshot, createdAt string
		err := rows.Scan(&rec.ID, &rec.EntityID, &rec.ClientID, &rec.Category,
			&rec.BaselineName, &rec.Operation, &snapshot, &createdAt)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan baseline record", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &rec.Snapshot); err != nil {
			return nil, errors.Internal("Failed to decode baseline snapshot", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// DefinitionRepository supplies baseline definitions and the tenant's
// default-tracking flag.
type DefinitionRepository struct {
	db *sql.DB
}

func NewDefinitionRepository(db *sql.DB) baseline.DefinitionSource {
	return &DefinitionRepository{db: db}
}

func (r *DefinitionRepository) DefinitionsFor(ctx context.Context, clientID, category string) ([]baseline.Definition, error) {
	query := `SELECT id, client_id, category, baseline_name, max_level, is_enabled FROM baseline_definitions WHERE client_id = ? AND category = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, clientID, category)
	if err != nil {
		return nil, errors.DatabaseError("Failed to query baseline definitions", err)
	}
	defer rows.Close()

	var defs []baseline.Definition
	for rows.Next() {
		var d baseline.Definition
		if err := rows.Scan(&d.ID, &d.ClientID, &d.Category, &d.Name, &d.MaxLevel, &d.Enabled); err != nil {
			return nil, errors.DatabaseError("Failed to scan baseline definition", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (r *DefinitionRepository) DefaultTrackingEnabled(ctx context.Context, clientID string) (bool, error) {
	query := `SELECT enable_default_changetracking FROM tenant_settings WHERE client_id = ?`

	var enabled bool
	err := r.db.QueryRowContext(ctx, query, clientID).Scan(&enabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.DatabaseError("Failed to get tenant settings", err)
	}
	return enabled, nil
}
