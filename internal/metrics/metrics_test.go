package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/models"
	"github.com/david/signal-desk/internal/qa"
)

func TestRecorder_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	started := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	done := started.Add(30 * time.Second)
	r.ObserveRun(&models.IngestRun{
		Status:      "completed",
		StartedAt:   started,
		CompletedAt: &done,
		Stale:       3,
		Providers: []models.ProviderRunStats{
			{Provider: "jobfeed", Fetched: 10, Inserted: 7, Updated: 2, Rejected: 1, Deduped: 4},
			{Provider: "c2cboard", Skipped: true, Reason: "daily request cap reached"},
		},
	})

	if got := testutil.ToFloat64(r.runs.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
	if got := testutil.ToFloat64(r.records.WithLabelValues("jobfeed", "inserted")); got != 7 {
		t.Fatalf("expected 7 inserted, got %v", got)
	}
	if got := testutil.ToFloat64(r.records.WithLabelValues("jobfeed", "deduped")); got != 4 {
		t.Fatalf("expected 4 deduped, got %v", got)
	}
	if got := testutil.ToFloat64(r.providerSkips.WithLabelValues("c2cboard")); got != 1 {
		t.Fatalf("expected skip counted, got %v", got)
	}
	if got := testutil.ToFloat64(r.transitions.WithLabelValues("STALE")); got != 3 {
		t.Fatalf("expected 3 stale transitions, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastRun); got != float64(done.Unix()) {
		t.Fatalf("unexpected last run timestamp %v", got)
	}
}

func TestRecorder_SpendAndQA(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.SpendAlert(context.Background(), models.SpendLedgerEntry{Provider: "jobfeed"})
	r.ObserveQA(&qa.RunResult{Verdicts: map[models.QaVerdict]int{models.VerdictPass: 4, models.VerdictBogus: 1}})

	if got := testutil.ToFloat64(r.spendAlerts.WithLabelValues("jobfeed")); got != 1 {
		t.Fatalf("expected one alert, got %v", got)
	}
	if got := testutil.ToFloat64(r.qaVerdicts.WithLabelValues("PASS")); got != 4 {
		t.Fatalf("expected 4 passes, got %v", got)
	}
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveRun(&models.IngestRun{Status: "completed"})
	r.SpendAlert(context.Background(), models.SpendLedgerEntry{})
	r.ObserveQA(&qa.RunResult{})
}

func TestSpendCollector(t *testing.T) {
	store := db.NewMemoryStore()
	ctx := context.Background()
	today := time.Now().UTC().Format("2006-01-02")
	if _, err := store.EnsureLedger(ctx, "jobfeed", today, 100, 1000); err != nil {
		t.Fatal(err)
	}
	if _, err := store.IncrementLedger(ctx, "jobfeed", today, 12, 30); err != nil {
		t.Fatal(err)
	}

	c := NewSpendCollector(store, nil)
	if n := testutil.CollectAndCount(c); n != 3 {
		t.Fatalf("expected 3 series for one provider, got %d", n)
	}
}
