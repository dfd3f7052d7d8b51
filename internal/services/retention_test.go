package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/trackline/cmdb/internal/domain/baseline"
	"github.com/trackline/cmdb/internal/testutil"
)

func newRetentionFixture(t *testing.T, maxLevel int, defaultTracking bool) (*RetentionService, *testutil.MockBaselineRepository) {
	t.Helper()
	records := testutil.NewMockBaselineRepository()
	defs := testutil.NewMockDefinitionSource()
	if maxLevel > 0 {
		defs.Definitions = append(defs.Definitions, baseline.Definition{
			ID: 1, ClientID: "acme", Category: "server",
			Name: "golden", MaxLevel: maxLevel, Enabled: true,
		})
	}
	defs.DefaultTracking["acme"] = defaultTracking
	return NewRetentionService(records, defs, testutil.NewTestLogger()), records
}

func event(op string, snapshot map[string]any) baseline.Event {
	return baseline.Event{
		ClientID: "acme", Category: "server", EntityID: "id-1",
		Operation: op, Snapshot: snapshot,
	}
}

func TestRetentionService_InsertIdempotent(t *testing.T) {
	service, records := newRetentionFixture(t, 3, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := service.Record(ctx, event(baseline.OpInsert, map[string]any{"os": "ubuntu"})); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	recs, _ := records.ListByEntity(ctx, "acme", "id-1", "golden")
	if len(recs) != 1 {
		t.Fatalf("retained %d records, want 1", len(recs))
	}
	if recs[0].Operation != baseline.OpInsert {
		t.Errorf("operation = %s, want insert", recs[0].Operation)
	}
}

func TestRetentionService_BoundedUpdateHistory(t *testing.T) {
	service, records := newRetentionFixture(t, 3, false)
	ctx := context.Background()

	if err := service.Record(ctx, event(baseline.OpInsert, map[string]any{"rev": 0})); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	for i := 1; i <= 7; i++ {
		ev := event(baseline.OpUpdate, map[string]any{"rev": i})
		ev.Previous = map[string]any{"rev": i - 1}
		if err := service.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	recs, _ := records.ListByEntity(ctx, "acme", "id-1", "golden")
	var updates []int
	for _, rec := range recs {
		if rec.Operation == baseline.OpUpdate {
			updates = append(updates, rec.Snapshot["rev"].(int))
		}
	}
	if len(updates) != 3 {
		t.Fatalf("retained %d update records, want 3", len(updates))
	}
	// Oldest evicted first: revisions 5, 6, 7 survive.
	for i, want := range []int{5, 6, 7} {
		if updates[i] != want {
			t.Errorf("updates = %v, want [5 6 7]", updates)
			break
		}
	}
	// The insert record is never evicted.
	if recs[0].Operation != baseline.OpInsert {
		t.Errorf("first retained record = %s, want insert", recs[0].Operation)
	}
}

func TestRetentionService_UpdateBackfillsInsert(t *testing.T) {
	service, records := newRetentionFixture(t, 3, false)
	ctx := context.Background()

	// Item predates tracking: the first event seen is an update.
	ev := event(baseline.OpUpdate, map[string]any{"os": "debian"})
	ev.Previous = map[string]any{"os": "ubuntu"}
	if err := service.Record(ctx, ev); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	recs, _ := records.ListByEntity(ctx, "acme", "id-1", "golden")
	if len(recs) != 2 {
		t.Fatalf("retained %d records, want backfilled insert plus update", len(recs))
	}
	if recs[0].Operation != baseline.OpInsert || recs[0].Snapshot["os"] != "ubuntu" {
		t.Errorf("backfilled insert = %+v, want pre-update snapshot", recs[0])
	}
	if recs[1].Operation != baseline.OpUpdate || recs[1].Snapshot["os"] != "debian" {
		t.Errorf("update record = %+v", recs[1])
	}
}

func TestRetentionService_ImplicitDefaultBaseline(t *testing.T) {
	service, records := newRetentionFixture(t, 0, true)
	ctx := context.Background()

	if err := service.Record(ctx, event(baseline.OpInsert, map[string]any{"os": "ubuntu"})); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	recs, _ := records.ListByEntity(ctx, "acme", "id-1", baseline.DefaultName)
	if len(recs) != 1 {
		t.Fatalf("default baseline retained %d records, want 1", len(recs))
	}
}

func TestRetentionService_DisabledDefinitionSkipped(t *testing.T) {
	records := testutil.NewMockBaselineRepository()
	defs := testutil.NewMockDefinitionSource()
	defs.Definitions = append(defs.Definitions, baseline.Definition{
		ID: 1, ClientID: "acme", Category: "server",
		Name: "golden", MaxLevel: 3, Enabled: false,
	})
	service := NewRetentionService(records, defs, testutil.NewTestLogger())

	if err := service.Record(context.Background(), event(baseline.OpInsert, map[string]any{"os": "ubuntu"})); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(records.Records) != 0 {
		t.Fatalf("retained %d records for disabled definition, want 0", len(records.Records))
	}
}

func TestRetentionService_TerminalDelete(t *testing.T) {
	service, records := newRetentionFixture(t, 3, false)
	ctx := context.Background()

	if err := service.Record(ctx, event(baseline.OpInsert, map[string]any{"os": "ubuntu"})); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := service.Record(ctx, event(baseline.OpDelete, map[string]any{"os": "ubuntu"})); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	recs, _ := records.ListByEntity(ctx, "acme", "id-1", "golden")
	last := recs[len(recs)-1]
	if last.Operation != baseline.OpDelete {
		t.Errorf("last record = %s, want delete", last.Operation)
	}
}

func TestRetentionService_UnknownOperation(t *testing.T) {
	service, _ := newRetentionFixture(t, 3, false)

	err := service.Record(context.Background(), event("upsert", nil))
	if err == nil {
		t.Fatal("Record() accepted unknown operation")
	}
}

func TestRetentionService_PerEntityIsolation(t *testing.T) {
	service, records := newRetentionFixture(t, 2, false)
	ctx := context.Background()

	for entity := 0; entity < 2; entity++ {
		id := fmt.Sprintf("id-%d", entity)
		ev := baseline.Event{ClientID: "acme", Category: "server", EntityID: id,
			Operation: baseline.OpInsert, Snapshot: map[string]any{"n": 0}}
		if err := service.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		for i := 1; i <= 4; i++ {
			ev.Operation = baseline.OpUpdate
			ev.Snapshot = map[string]any{"n": i}
			if err := service.Record(ctx, ev); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
		}
	}

	for entity := 0; entity < 2; entity++ {
		id := fmt.Sprintf("id-%d", entity)
		count, _ := records.CountUpdates(ctx, "acme", id, "golden")
		if count != 2 {
			t.Errorf("%s retained %d updates, want 2", id, count)
		}
	}
}
