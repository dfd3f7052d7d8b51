package rule

import (
	"context"
	"sort"
)

// IdentificationRule decides whether an incoming payload resolves to an
// existing configuration item. Rules belong to a (clientID, category) pair
// and are evaluated in ascending priority order.
type IdentificationRule struct {
	ID       int64  `json:"id"`
	ClientID string `json:"clientid"`
	Category string `json:"citype"`
	Priority int    `json:"priority"`
	// CriterionAttributes are the attribute names the rule matches on, in
	// rule order. Order matters: identity is derived from criterion values
	// in this order.
	CriterionAttributes []string `json:"criterion_attributes"`
	// AllowNull relaxes the rule: at least one criterion attribute present
	// and non-empty is enough, and absent ones are omitted from the
	// predicate instead of matching NULL.
	AllowNull bool `json:"allownull"`
}

// Source supplies the ordered rule set for a category. Rules are read-only
// inputs to the upsert engine.
type Source interface {
	RulesFor(ctx context.Context, clientID, category string) ([]IdentificationRule, error)
}

// SortByPriority orders rules ascending by priority, in place. Ties keep
// their relative order so repeated evaluation stays deterministic.
func SortByPriority(rules []IdentificationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
}
