package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/trackline/cmdb/internal/domain/detail"
	"github.com/trackline/cmdb/internal/pkg/errors"
)

type DetailRepository struct {
	db *sql.DB
}

func NewDetailRepository(db *sql.DB) detail.Repository {
	return &DetailRepository{db: db}
}

// Replace swaps the discovered rows of one kind for the entity inside a
// transaction. Manually created rows are left in place.
func (r *DetailRepository) Replace(ctx context.Context, clientID, entityID, kind string, rows []*detail.Row) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM ci_details WHERE client_id = ? AND entity_id = ? AND kind = ? AND manually_created = ?`,
		clientID, entityID, kind, false)
	if err != nil {
		return errors.DatabaseError("Failed to clear detail rows", err)
	}

	query := `INSERT INTO ci_details (entity_id, client_id, category, kind, ip_address, fields, manually_created, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, row := range rows {
		fields, err := json.Marshal(row.Fields)
		if err != nil {
			return errors.Internal("Failed to encode detail fields", err)
		}
		_, err = tx.ExecContext(ctx, query,
			row.EntityID, row.ClientID, row.Category, row.Kind,
			row.IPAddress, string(fields), row.ManuallyCreated,
			row.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return errors.DatabaseError("Failed to insert detail row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("Failed to commit detail replacement", err)
	}
	return nil
}

func (r *DetailRepository) ListByEntity(ctx context.Context, clientID, entityID, kind string) ([]*detail.Row, error) {
	query := `SELECT id, entity_id, client_id, category, kind, ip_address, fields, manually_created, created_at FROM ci_details WHERE client_id = ? AND entity_id = ? AND kind = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, clientID, entityID, kind)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list detail rows", err)
	}
	defer rows.Close()

	var details []*detail.Row
	for rows.Next() {
		var d detail.Row
		var fields, createdAt string
		var ip sql.NullString
		err := rows.Scan(&d.ID, &d.EntityID, &d.ClientID, &d.Category, &d.Kind,
			&ip, &fields, &d.ManuallyCreated, &createdAt)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan detail row", err)
		}
		if ip.Valid {
			d.IPAddress = &ip.String
		}
		if err := json.Unmarshal([]byte(fields), &d.Fields); err != nil {
			return nil, errors.Internal("Failed to decode detail fields", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		details = append(details, &d)
	}
	return details, rows.Err()
}

func (r *DetailRepository) DeleteForEntity(ctx context.Context, clientID, entityID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ci_details WHERE client_id = ? AND entity_id = ?`, clientID, entityID)
	if err != nil {
		return errors.DatabaseError("Failed to delete detail rows", err)
	}
	return nil
}
