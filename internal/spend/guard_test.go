package spend

import (
	"context"
	"testing"
	"time"

	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/models"
)

type recordingAlerter struct {
	alerts []models.SpendLedgerEntry
}

func (r *recordingAlerter) SpendAlert(_ context.Context, e models.SpendLedgerEntry) {
	r.alerts = append(r.alerts, e)
}

func newGuard(t *testing.T, caps Caps) (*Guard, *db.MemoryStore, *recordingAlerter) {
	t.Helper()
	store := db.NewMemoryStore()
	alerter := &recordingAlerter{}
	g := NewGuard(store, Config{Defaults: caps}, alerter, nil)
	g.now = func() time.Time { return time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC) }
	return g, store, alerter
}

func TestCheck_CapMinusOneThenCap(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newGuard(t, Caps{DailyRequests: 10, DailyRecords: 1000})

	if err := g.Record(ctx, "board", 9, 0); err != nil {
		t.Fatalf("record: %v", err)
	}
	d, err := g.Check(ctx, "board")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Allowed || d.RequestsRemaining != 1 {
		t.Fatalf("expected allowed with 1 remaining, got %+v", d)
	}

	if err := g.Record(ctx, "board", 1, 0); err != nil {
		t.Fatalf("record: %v", err)
	}
	d, _ = g.Check(ctx, "board")
	if d.Allowed {
		t.Fatalf("expected blocked at cap, got %+v", d)
	}
	if d.Reason == "" {
		t.Fatal("expected a reason when blocked")
	}
}

func TestCheck_RecordCapBlocksIndependently(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newGuard(t, Caps{DailyRequests: 100, DailyRecords: 5})
	_ = g.Record(ctx, "board", 1, 5)
	d, _ := g.Check(ctx, "board")
	if d.Allowed || d.RecordsRemaining != 0 {
		t.Fatalf("expected record cap block, got %+v", d)
	}
}

func TestRecord_AlertFiresOnce(t *testing.T) {
	ctx := context.Background()
	g, store, alerter := newGuard(t, Caps{DailyRequests: 10, DailyRecords: 1000})

	_ = g.Record(ctx, "board", 7, 0)
	if len(alerter.alerts) != 0 {
		t.Fatalf("expected no alert below threshold, got %d", len(alerter.alerts))
	}
	for i := 0; i < 3; i++ {
		if err := g.Record(ctx, "board", 1, 0); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if len(alerter.alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerter.alerts))
	}
	if !alerter.alerts[0].AlertFired || alerter.alerts[0].RequestsMade != 8 {
		t.Fatalf("unexpected alert payload: %+v", alerter.alerts[0])
	}

	rows, _ := store.ListLedger(ctx, "board", "2026-06-10")
	if len(rows) != 1 || rows[0].RequestsMade != 10 || !rows[0].AlertFired {
		t.Fatalf("unexpected ledger rows: %+v", rows)
	}
}

func TestRecord_CountersAreAdditive(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newGuard(t, Caps{DailyRequests: 100, DailyRecords: 100})
	_ = g.Record(ctx, "board", 2, 3)
	_ = g.Record(ctx, "board", 4, 5)
	rows, _ := store.ListLedger(ctx, "board", "2026-06-10")
	if rows[0].RequestsMade != 6 || rows[0].NewRecordsIngested != 8 {
		t.Fatalf("expected 6/8, got %+v", rows[0])
	}
}

func TestCheckWeekly_TrailingSevenDays(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newGuard(t, Caps{DailyRequests: 10, DailyRecords: 100})

	// 70 = 7x daily, spread over the window; one row just outside it
	for _, date := range []string{"2026-06-04", "2026-06-05", "2026-06-06", "2026-06-07", "2026-06-08", "2026-06-09", "2026-06-10"} {
		_, _ = store.IncrementLedger(ctx, "board", date, 9, 0)
	}
	_, _ = store.IncrementLedger(ctx, "board", "2026-06-03", 50, 0)

	d, err := g.CheckWeekly(ctx, "board")
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if !d.Allowed || d.RequestsRemaining != 7 {
		t.Fatalf("expected 7 remaining, got %+v", d)
	}

	_, _ = store.IncrementLedger(ctx, "board", "2026-06-10", 7, 0)
	d, _ = g.CheckWeekly(ctx, "board")
	if d.Allowed {
		t.Fatalf("expected weekly block, got %+v", d)
	}
}

func TestCapsFor_ProviderOverrides(t *testing.T) {
	g := NewGuard(db.NewMemoryStore(), Config{
		Defaults:  Caps{DailyRequests: 100, DailyRecords: 500},
		Providers: map[string]Caps{"paid": {DailyRequests: 10}},
	}, nil, nil)

	c := g.CapsFor("paid")
	if c.DailyRequests != 10 || c.DailyRecords != 500 || c.weeklyRequests() != 70 {
		t.Fatalf("unexpected caps %+v (weekly %d)", c, c.weeklyRequests())
	}
	if g.CapsFor("other").DailyRequests != 100 {
		t.Fatal("expected defaults for unknown provider")
	}
}
