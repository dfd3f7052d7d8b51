package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/pkg/errors"
)

const ciColumns = `unique_id, client_id, category, attributes, is_managed, status, last_discovered_time, discovery_run_id, last_modified_time, created_date`

type CIRepository struct {
	db *sql.DB
}

func NewCIRepository(db *sql.DB) ci.Repository {
	return &CIRepository{db: db}
}

func (r *CIRepository) Insert(ctx context.Context, item *ci.ConfigurationItem) error {
	attrs, err := json.Marshal(item.Attributes)
	if err != nil {
		return errors.Internal("Failed to encode attributes", err)
	}

	query := `INSERT INTO configuration_items (` + ciColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		item.Identity, item.ClientID, item.Category, string(attrs),
		item.Managed, item.Status,
		item.LastDiscoveredTime.Format(time.RFC3339Nano), item.DiscoveryRunID,
		item.LastModifiedTime.Format(time.RFC3339Nano), item.CreatedDate.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("configuration item already exists: " + item.Identity)
		}
		return errors.DatabaseError("Failed to insert configuration item", err)
	}
	return nil
}

func (r *CIRepository) Update(ctx context.Context, item *ci.ConfigurationItem) error {
	attrs, err := json.Marshal(item.Attributes)
	if err != nil {
		return errors.Internal("Failed to encode attributes", err)
	}

	query := `UPDATE configuration_items SET attributes = ?, is_managed = ?, status = ?, last_discovered_time = ?, discovery_run_id = ?, last_modified_time = ? WHERE client_id = ? AND category = ? AND unique_id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(attrs), item.Managed, item.Status,
		item.LastDiscoveredTime.Format(time.RFC3339Nano), item.DiscoveryRunID,
		item.LastModifiedTime.Format(time.RFC3339Nano),
		item.ClientID, item.Category, item.Identity)
	if err != nil {
		return errors.DatabaseError("Failed to update configuration item", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Configuration item")
	}
	return nil
}

func (r *CIRepository) Touch(ctx context.Context, clientID, category, identity string, discoveredAt time.Time, runID *string) error {
	query := `UPDATE configuration_items SET last_discovered_time = ?, discovery_run_id = COALESCE(?, discovery_run_id) WHERE client_id = ? AND category = ? AND unique_id = ?`

	result, err := r.db.ExecContext(ctx, query, discoveredAt.Format(time.RFC3339Nano), runID, clientID, category, identity)
	if err != nil {
		return errors.DatabaseError("Failed to touch configuration item", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Configuration item")
	}
	return nil
}

func (r *CIRepository) GetByID(ctx context.Context, clientID, category, identity string) (*ci.ConfigurationItem, error) {
	query := `SELECT ` + ciColumns + ` FROM configuration_items WHERE client_id = ? AND category = ? AND unique_id = ?`

	item, err := scanCI(r.db.QueryRowContext(ctx, query, clientID, category, identity))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Configuration item")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get configuration item", err)
	}
	return item, nil
}

func (r *CIRepository) FindByAttributes(ctx context.Context, clientID, category string, predicate map[string]any) ([]*ci.ConfigurationItem, error) {
	where := []string{"client_id = ?", "category = ?"}
	args := []interface{}{clientID, category}

	// Sorted keys keep the generated SQL stable for identical predicates.
	names := make([]string, 0, len(predicate))
	for name := range predicate {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		where = append(where, fmt.Sprintf("json_extract(attributes, '$.%s') = ?", name))
		args = append(args, predicate[name])
	}

	query := fmt.Sprintf(`SELECT `+ciColumns+` FROM configuration_items WHERE %s ORDER BY created_date ASC, unique_id ASC`, strings.Join(where, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to find configuration items", err)
	}
	defer rows.Close()

	var items []*ci.ConfigurationItem
	for rows.Next() {
		item, err := scanCI(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan configuration item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CIRepository) SetManaged(ctx context.Context, clientID, identity string, managed bool) error {
	query := `UPDATE configuration_items SET is_managed = ?, last_modified_time = ? WHERE client_id = ? AND unique_id = ?`

	result, err := r.db.ExecContext(ctx, query, managed, time.Now().UTC().Format(time.RFC3339Nano), clientID, identity)
	if err != nil {
		return errors.DatabaseError("Failed to set managed flag", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Configuration item")
	}
	return nil
}

func (r *CIRepository) Delete(ctx context.Context, clientID, category, identity string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM configuration_items WHERE client_id = ? AND category = ? AND unique_id = ?`, clientID, category, identity)
	if err != nil {
		return errors.DatabaseError("Failed to delete configuration item", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Configuration item")
	}
	return nil
}

func (r *CIRepository) List(ctx context.Context, clientID, category string, limit, offset int) ([]*ci.ConfigurationItem, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM configuration_items WHERE client_id = ? AND category = ?`, clientID, category).Scan(&total)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to count configuration items", err)
	}

	query := `SELECT ` + ciColumns + ` FROM configuration_items WHERE client_id = ? AND category = ? ORDER BY created_date ASC, unique_id ASC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, clientID, category, limit, offset)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list configuration items", err)
	}
	defer rows.Close()

	var items []*ci.ConfigurationItem
	for rows.Next() {
		item, err := scanCI(rows)
		if err != nil {
			return nil, 0, errors.DatabaseError("Failed to scan configuration item", err)
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCI(row rowScanner) (*ci.ConfigurationItem, error) {
	var item ci.ConfigurationItem
	var attrs string
	var discovered, modified, created string

	err := row.Scan(&item.Identity, &item.ClientID, &item.Category, &attrs,
		&item.Managed, &item.Status, &discovered, &item.DiscoveryRunID, &modified, &created)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(attrs), &item.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	item.LastDiscoveredTime, _ = time.Parse(time.RFC3339Nano, discovered)
	item.LastModifiedTime, _ = time.Parse(time.RFC3339Nano, modified)
	item.CreatedDate, _ = time.Parse(time.RFC3339Nano, created)
	return &item, nil
}
