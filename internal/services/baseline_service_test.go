package services

import (
	"context"
	"testing"
	"time"

	"github.com/trackline/cmdb/internal/domain/baseline"
	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/testutil"
)

func newBaselineFixture(t *testing.T) (*BaselineService, *testutil.MockBaselineRepository, *testutil.MockDefinitionSource) {
	t.Helper()
	records := testutil.NewMockBaselineRepository()
	defs := testutil.NewMockDefinitionSource()
	return NewBaselineService(records, defs, testutil.NewTestLogger()), records, defs
}

func TestBaselineService_Definitions(t *testing.T) {
	service, _, defs := newBaselineFixture(t)
	ctx := context.Background()

	defs.Definitions = []baseline.Definition{
		{ID: 1, ClientID: "acme", Category: "server", Name: "golden", MaxLevel: 5, Enabled: true},
		{ID: 2, ClientID: "acme", Category: "server", Name: "retired", MaxLevel: 5, Enabled: false},
		{ID: 3, ClientID: "acme", Category: "database", Name: "other", MaxLevel: 5, Enabled: true},
	}

	t.Run("without default tracking", func(t *testing.T) {
		got, err := service.Definitions(ctx, "acme", "server")
		if err != nil {
			t.Fatalf("Definitions() error = %v", err)
		}
		if len(got) != 1 || got[0].Name != "golden" {
			t.Fatalf("Definitions() = %+v, want only the enabled server definition", got)
		}
	})

	t.Run("with default tracking", func(t *testing.T) {
		defs.DefaultTracking["acme"] = true
		got, err := service.Definitions(ctx, "acme", "server")
		if err != nil {
			t.Fatalf("Definitions() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Definitions() returned %d, want enabled plus implicit default", len(got))
		}
		last := got[len(got)-1]
		if last.Name != baseline.DefaultName || last.MaxLevel != baseline.DefaultMaxLevel {
			t.Errorf("implicit default = %+v", last)
		}
	})
}

func TestBaselineService_History(t *testing.T) {
	service, records, _ := newBaselineFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	put := func(op string, minutes int, snapshot map[string]any) {
		err := records.Append(ctx, &baseline.Record{
			EntityID: "id-1", ClientID: "acme", Category: "server",
			BaselineName: "golden", Operation: op, Snapshot: snapshot,
			CreatedAt: base.Add(time.Duration(minutes) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}

	put(baseline.OpInsert, 0, map[string]any{
		"os": "ubuntu", "cpu_count": 4, "location": "dc-east", "unique_id": "id-1",
	})
	put(baseline.OpUpdate, 10, map[string]any{
		"os": "debian", "cpu_count": 4, "location": "dc-west", "unique_id": "id-1",
	})
	put(baseline.OpUpdate, 20, map[string]any{
		"os": "debian", "cpu_count": 8, "unique_id": "id-1",
	})

	changes, err := service.History(ctx, "acme", "server", "id-1", "golden")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	// location is a system attribute and unique_id is bookkeeping; neither
	// shows up. The remaining diffs: os flip at +10, cpu_count at +20.
	if len(changes) != 2 {
		t.Fatalf("History() = %+v, want 2 changes", changes)
	}
	if changes[0].Attribute != "os" || changes[0].OldValue != "ubuntu" || changes[0].NewValue != "debian" {
		t.Errorf("first change = %+v", changes[0])
	}
	if !changes[0].Time.Equal(base.Add(10 * time.Minute)) {
		t.Errorf("first change time = %v", changes[0].Time)
	}
	if changes[1].Attribute != "cpu_count" || changes[1].NewValue != 8 {
		t.Errorf("second change = %+v", changes[1])
	}
}

func TestBaselineService_History_NoRecords(t *testing.T) {
	service, _, _ := newBaselineFixture(t)

	_, err := service.History(context.Background(), "acme", "server", "ghost", "golden")
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("History() error = %v, want NOT_FOUND", err)
	}
}
