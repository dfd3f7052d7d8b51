package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/trackline/cmdb/internal/domain/rule"
	"github.com/trackline/cmdb/internal/pkg/errors"
)

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) rule.Source {
	return &RuleRepository{db: db}
}

// RulesFor returns the identification rules for the category in ascending
// priority order. Criterion attribute lists are stored as JSON arrays.
func (r *RuleRepository) RulesFor(ctx context.Context, clientID, category string) ([]rule.IdentificationRule, error) {
	query := `SELECT id, client_id, category, priority, criterion_attributes, allow_null FROM identification_rules WHERE client_id = ? AND category = ? ORDER BY priority ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, clientID, category)
	if err != nil {
		return nil, errors.DatabaseError("Failed to query identification rules", err)
	}
	defer rows.Close()

	var rules []rule.IdentificationRule
	for rows.Next() {
		var ir rule.IdentificationRule
		var criteria string
		if err := rows.Scan(&ir.ID, &ir.ClientID, &ir.Category, &ir.Priority, &criteria, &ir.AllowNull); err != nil {
			return nil, errors.DatabaseError("Failed to scan identification rule", err)
		}
		if err := json.Unmarshal([]byte(criteria), &ir.CriterionAttributes); err != nil {
			return nil, errors.Internal("Failed to decode criterion attributes", err)
		}
		rules = append(rules, ir)
	}
	return rules, rows.Err()
}

// Create stores a new identification rule.
func (r *RuleRepository) Create(ctx context.Context, ir *rule.IdentificationRule) (int64, error) {
	criteria, err := json.Marshal(ir.CriterionAttributes)
	if err != nil {
		return 0, errors.Internal("Failed to encode criterion attributes", err)
	}

	query := `INSERT INTO identification_rules (client_id, category, priority, criterion_attributes, allow_null) VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, ir.ClientID, ir.Category, ir.Priority, string(criteria), ir.AllowNull)
	if err != nil {
		return 0, errors.DatabaseError("Failed to create identification rule", err)
	}
	return result.LastInsertId()
}
