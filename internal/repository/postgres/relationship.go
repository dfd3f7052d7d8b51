package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/trackline/cmdb/internal/domain/relationship"
	"github.com/trackline/cmdb/internal/pkg/errors"
)

const edgeColumns = `id, client_id, parent_id, parent_category, relationship_name, child_id, child_category, created_by, created_at`

type RelationshipRepository struct {
	db *sql.DB
}

func NewRelationshipRepository(db *sql.DB) relationship.Repository {
	return &RelationshipRepository{db: db}
}

func (r *RelationshipRepository) Create(ctx context.Context, edge *relationship.Edge) error {
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO related_cis (client_id, parent_id, parent_category, relationship_name, child_id, child_category, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		edge.ClientID, edge.ParentID, edge.ParentCategory, edge.RelationshipName,
		edge.ChildID, edge.ChildCategory, edge.CreatedBy, edge.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("relationship edge already exists")
		}
		return errors.DatabaseError("Failed to create relationship edge", err)
	}

	edge.ID, _ = result.LastInsertId()
	return nil
}

func (r *RelationshipRepository) Exists(ctx context.Context, clientID, parentID, relationshipName, childID string) (bool, error) {
	query := `SELECT COUNT(*) FROM related_cis WHERE client_id = ? AND parent_id = ? AND relationship_name = ? AND child_id = ?`

	var count int
	err := r.db.QueryRowContext(ctx, query, clientID, parentID, relationshipName, childID).Scan(&count)
	if err != nil {
		return false, errors.DatabaseError("Failed to check relationship edge", err)
	}
	return count > 0, nil
}

func (r *RelationshipRepository) ListByParent(ctx context.Context, clientID, parentID string) ([]*relationship.Edge, error) {
	return r.list(ctx, `SELECT `+edgeColumns+` FROM related_cis WHERE client_id = ? AND parent_id = ? ORDER BY id ASC`, clientID, parentID)
}

func (r *RelationshipRepository) ListByChild(ctx context.Context, clientID, childID string) ([]*relationship.Edge, error) {
	return r.list(ctx, `SELECT `+edgeColumns+` FROM related_cis WHERE client_id = ? AND child_id = ? ORDER BY id ASC`, clientID, childID)
}

func (r *RelationshipRepository) DeleteByKey(ctx context.Context, clientID, parentID, relationshipName, childID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM related_cis WHERE client_id = ? AND parent_id = ? AND relationship_name = ? AND child_id = ?`,
		clientID, parentID, relationshipName, childID)
	if err != nil {
		return 0, errors.DatabaseError("Failed to delete relationship edge", err)
	}
	return result.RowsAffected()
}

func (r *RelationshipRepository) DeleteForEntity(ctx context.Context, clientID, entityID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM related_cis WHERE client_id = ? AND (parent_id = ? OR child_id = ?)`,
		clientID, entityID, entityID)
	if err != nil {
		return errors.DatabaseError("Failed to delete relationship edges", err)
	}
	return nil
}

func (r *RelationshipRepository) list(ctx context.Context, query string, args ...interface{}) ([]*relationship.Edge, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list relationship edges", err)
	}
	defer rows.Close()

	var edges []*relationship.Edge
	for rows.Next() {
		var e relationship.Edge
		var createdAt string
		err := rows.Scan(&e.ID, &e.ClientID, &e.ParentID, &e.ParentCategory,
			&e.RelationshipName, &e.ChildID, &e.ChildCategory, &e.CreatedBy, &createdAt)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan relationship edge", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

// KindRepository resolves relationship kinds from the relationship registry
// table.
type KindRepository struct {
	db *sql.DB
}

func NewKindRepository(db *sql.DB) relationship.KindRegistry {
	return &KindRepository{db: db}
}

func (r *KindRepository) Kind(ctx context.Context, relationshipName string) (*relationship.Kind, error) {
	query := `SELECT relationship_name, is_contained, description FROM relationship_kinds WHERE relationship_name = ?`

	var k relationship.Kind
	var description sql.NullString
	err := r.db.QueryRowContext(ctx, query, relationshipName).Scan(&k.Name, &k.IsContained, &description)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Relationship kind")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get relationship kind", err)
	}
	k.Description = description.String
	return &k, nil
}
