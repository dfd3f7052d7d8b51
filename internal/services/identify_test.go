package services

import (
	"context"
	"testing"

	"github.com/trackline/cmdb/internal/domain/ci"
	"github.com/trackline/cmdb/internal/domain/rule"
	"github.com/trackline/cmdb/internal/testutil"
)

func TestEvaluator_Evaluate(t *testing.T) {
	ctx := context.Background()

	serialRule := rule.IdentificationRule{
		ID: 1, ClientID: "acme", Category: "server", Priority: 1,
		CriterionAttributes: []string{"serial_number"},
	}
	hostnameRule := rule.IdentificationRule{
		ID: 2, ClientID: "acme", Category: "server", Priority: 2,
		CriterionAttributes: []string{"hostname", "domain"},
	}
	looseRule := rule.IdentificationRule{
		ID: 3, ClientID: "acme", Category: "server", Priority: 3,
		CriterionAttributes: []string{"ip_address", "mac_address"},
		AllowNull:           true,
	}

	tests := []struct {
		name        string
		stored      []*ci.ConfigurationItem
		rules       []rule.IdentificationRule
		attrs       map[string]any
		wantRuleID  int64
		wantNoRule  bool
		wantMatchID string
	}{
		{
			name:       "highest priority applicable rule wins",
			rules:      []rule.IdentificationRule{hostnameRule, serialRule},
			attrs:      map[string]any{"serial_number": "SN-1", "hostname": "web-01", "domain": "prod"},
			wantRuleID: 1,
		},
		{
			name:       "falls through to next rule when criterion missing",
			rules:      []rule.IdentificationRule{serialRule, hostnameRule},
			attrs:      map[string]any{"hostname": "web-01", "domain": "prod"},
			wantRuleID: 2,
		},
		{
			name:       "empty string counts as absent",
			rules:      []rule.IdentificationRule{serialRule, hostnameRule},
			attrs:      map[string]any{"serial_number": "", "hostname": "web-01", "domain": "prod"},
			wantRuleID: 2,
		},
		{
			name:       "allow null binds present subset",
			rules:      []rule.IdentificationRule{looseRule},
			attrs:      map[string]any{"ip_address": "10.0.0.5"},
			wantRuleID: 3,
		},
		{
			name:       "allow null with no criteria present is not applicable",
			rules:      []rule.IdentificationRule{looseRule},
			attrs:      map[string]any{"hostname": "web-01"},
			wantNoRule: true,
		},
		{
			name:       "no rules at all",
			rules:      nil,
			attrs:      map[string]any{"hostname": "web-01"},
			wantNoRule: true,
		},
		{
			name: "applicable rule matches stored item",
			stored: []*ci.ConfigurationItem{
				{Identity: "id-1", ClientID: "acme", Category: "server",
					Attributes: map[string]any{"hostname": "web-01", "domain": "prod"}},
			},
			rules:       []rule.IdentificationRule{hostnameRule},
			attrs:       map[string]any{"hostname": "web-01", "domain": "prod"},
			wantRuleID:  2,
			wantMatchID: "id-1",
		},
		{
			name: "first applicable rule decides even without a match",
			stored: []*ci.ConfigurationItem{
				{Identity: "id-1", ClientID: "acme", Category: "server",
					Attributes: map[string]any{"hostname": "web-01", "domain": "prod"}},
			},
			rules:      []rule.IdentificationRule{serialRule, hostnameRule},
			attrs:      map[string]any{"serial_number": "SN-9", "hostname": "web-01", "domain": "prod"},
			wantRuleID: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewMockCIRepository()
			for _, item := range tt.stored {
				if err := repo.Insert(ctx, item); err != nil {
					t.Fatalf("seed insert failed: %v", err)
				}
			}
			evaluator := NewEvaluator(repo, testutil.NewTestLogger())

			match, applied, err := evaluator.Evaluate(ctx, "acme", "server", tt.rules, tt.attrs)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}

			if tt.wantNoRule {
				if applied != nil {
					t.Fatalf("Evaluate() applied rule %d, want none", applied.Rule.ID)
				}
				return
			}
			if applied == nil {
				t.Fatal("Evaluate() applied no rule")
			}
			if applied.Rule.ID != tt.wantRuleID {
				t.Errorf("Evaluate() applied rule %d, want %d", applied.Rule.ID, tt.wantRuleID)
			}

			if tt.wantMatchID == "" {
				if match != nil {
					t.Errorf("Evaluate() matched %s, want no match", match.Identity)
				}
			} else if match == nil || match.Identity != tt.wantMatchID {
				t.Errorf("Evaluate() match = %v, want %s", match, tt.wantMatchID)
			}
		})
	}
}

func TestEvaluator_FirstRowWins(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewMockCIRepository()

	// Two rows sharing the same criterion value (allow-null partial
	// identity can produce this). The older row must win consistently.
	for _, id := range []string{"older", "newer"} {
		err := repo.Insert(ctx, &ci.ConfigurationItem{
			Identity: id, ClientID: "acme", Category: "server",
			Attributes: map[string]any{"ip_address": "10.0.0.5"},
		})
		if err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}

	r := rule.IdentificationRule{
		ID: 1, ClientID: "acme", Category: "server", Priority: 1,
		CriterionAttributes: []string{"ip_address"},
	}
	evaluator := NewEvaluator(repo, testutil.NewTestLogger())

	for i := 0; i < 3; i++ {
		match, _, err := evaluator.Evaluate(ctx, "acme", "server",
			[]rule.IdentificationRule{r}, map[string]any{"ip_address": "10.0.0.5"})
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if match == nil || match.Identity != "older" {
			t.Fatalf("Evaluate() match = %v, want older row", match)
		}
	}
}

func TestAppliedRule_Seed(t *testing.T) {
	applied := &AppliedRule{
		Rule: rule.IdentificationRule{CriterionAttributes: []string{"hostname", "domain"}},
		Criteria: []Criterion{
			{Name: "hostname", Value: "web-01"},
			{Name: "domain", Value: "prod"},
		},
	}

	seed := applied.Seed("acme", "server")
	if seed != "acme|server|web-01|prod" {
		t.Errorf("Seed() = %q, want %q", seed, "acme|server|web-01|prod")
	}
}
