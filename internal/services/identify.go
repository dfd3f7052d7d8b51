package services

import (
	"context"
	"strings"

	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/domain/rule"
	"github.com/trackline/cmdb/internal/pkg/logger"
)

// Criterion is one (attribute, value) pair a rule matched on. Order follows
// the rule's criterion attribute order, which fixes the identity seed.
type Criterion struct {
	Name  string
	Value any
}

// AppliedRule is the outcome of finding the first applicable rule for a
// payload: the rule itself and the criteria it binds from the payload.
type AppliedRule struct {
	Rule     rule.IdentificationRule
	Criteria []Criterion
}

// Predicate returns the equality predicate the applied rule implies.
func (a *AppliedRule) Predicate() map[string]any {
	p := make(map[string]any, len(a.Criteria))
	for _, c := range a.Criteria {
		p[c.Name] = c.Value
	}
	return p
}

// Seed builds the deterministic identity seed for the applied rule:
// clientID, category and the criterion values in rule order.
func (a *AppliedRule) Seed(clientID, category string) string {
	parts := make([]string, 0, len(a.Criteria)+2)
	parts = append(parts, clientID, category)
	for _, c := range a.Criteria {
		parts = append(parts, stringValue(c.Value))
	}
	return strings.Join(parts, "|")
}

// Evaluator decides whether a payload resolves to a stored configuration
// item. Rules are tried in ascending priority; evaluation stops at the
// first applicable rule regardless of whether it matches a stored row.
type Evaluator struct {
	cis    ci.Repository
	logger *logger.Logger
}

// NewEvaluator creates a new rule evaluator.
func NewEvaluator(cis ci.Repository, log *logger.Logger) *Evaluator {
	return &Evaluator{cis: cis, logger: log}
}

// Evaluate returns the matched item (nil on no match) and the applied rule
// (nil when no rule is applicable, meaning no identity can be computed).
// Repeated evaluation of the same payload against the same stored state
// yields the same outcome.
func (e *Evaluator) Evaluate(ctx context.Context, clientID, category string, rules []rule.IdentificationRule, attrs map[string]any) (*ci.ConfigurationItem, *AppliedRule, error) {
	ordered := make([]rule.IdentificationRule, len(rules))
	copy(ordered, rules)
	rule.SortByPriority(ordered)

	for _, r := range ordered {
		applied := applyRule(r, attrs)
		if applied == nil {
			continue
		}

		rows, err := e.cis.FindByAttributes(ctx, clientID, category, applied.Predicate())
		if err != nil {
			return nil, nil, err
		}
		if len(rows) == 0 {
			return nil, applied, nil
		}
		if len(rows) > 1 {
			e.logger.WithFields(map[string]interface{}{
				"clientid": clientID,
				"category": category,
				"rule_id":  r.ID,
				"matches":  len(rows),
			}).Warn("Identification rule matched multiple configuration items; first row wins")
		}
		return rows[0], applied, nil
	}

	return nil, nil, nil
}

// applyRule binds a rule against the payload. Returns nil when the rule is
// not applicable: for allowNull=false every criterion attribute must be
// present and non-empty; for allowNull=true at least one must be, and the
// absent ones are omitted from the criteria rather than matched as NULL.
func applyRule(r rule.IdentificationRule, attrs map[string]any) *AppliedRule {
	criteria := make([]Criterion, 0, len(r.CriterionAttributes))
	for _, name := range r.CriterionAttributes {
		v, ok := attrs[name]
		if !ok || !attrPresent(v) {
			if !r.AllowNull {
				return nil
			}
			continue
		}
		criteria = append(criteria, Criterion{Name: name, Value: v})
	}
	if len(criteria) == 0 {
		return nil
	}
	return &AppliedRule{Rule: r, Criteria: criteria}
}
