package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/david/signal-desk/internal/models"
)

func TestBuildSignalQuery(t *testing.T) {
	where, orderBy, args := buildSignalQuery(SignalFilter{
		Status:           models.StatusActive,
		Type:             models.TypeC2C,
		MinActionability: 40,
		FreshDays:        3,
		SortBy:           "posted",
	})

	for _, token := range []string{"status = $1", "employment_type = $2", "actionability_score >= $3", "$4 * INTERVAL '1 day'"} {
		if !strings.Contains(where, token) {
			t.Fatalf("where clause missing %q: %s", token, where)
		}
	}
	if strings.Contains(where, "realness_score") {
		t.Fatalf("zero min realness must not filter: %s", where)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %v", args)
	}
	if !strings.Contains(orderBy, "posted_at DESC NULLS LAST") {
		t.Fatalf("unexpected order: %s", orderBy)
	}

	_, orderBy, args = buildSignalQuery(SignalFilter{}.Normalize())
	if len(args) != 0 || !strings.HasPrefix(orderBy, " ORDER BY actionability_score DESC") {
		t.Fatalf("expected default actionability order, got %q %v", orderBy, args)
	}
}

func TestUpsertSignalSQL_KeepsIdentityColumns(t *testing.T) {
	if strings.Contains(upsertSignalSQL, "first_seen_at = EXCLUDED") || strings.Contains(upsertSignalSQL, " id = EXCLUDED") {
		t.Fatalf("upsert must keep id and first_seen_at: %s", upsertSignalSQL)
	}
	if !strings.Contains(upsertSignalSQL, "last_seen_at = EXCLUDED.last_seen_at") || !strings.Contains(upsertSignalSQL, "(xmax = 0)") {
		t.Fatalf("unexpected upsert: %s", upsertSignalSQL)
	}
	if got := strings.Count(upsertSignalSQL, "$"); got != len(signalColumns) {
		t.Fatalf("expected %d placeholders, got %d", len(signalColumns), got)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatal(err)
	}
	names := migrationNames(entries)
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("unexpected migrations %v", names)
	}
}

// TestStore_Postgres runs against a real database when TEST_DATABASE_URL is set.
func TestStore_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := ApplyMigrations(ctx, pool, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := NewStore(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := &models.CanonicalRecord{ID: uuid.New(), Fingerprint: "fp-" + uuid.NewString(), Title: "Java Dev", FirstSeenAt: now, LastSeenAt: now}
	if err := s.InsertCanonical(ctx, rec); err != nil {
		t.Fatalf("insert canonical: %v", err)
	}
	dup := *rec
	dup.ID = uuid.New()
	if err := s.InsertCanonical(ctx, &dup); !errors.Is(err, ErrDuplicateFingerprint) {
		t.Fatalf("expected duplicate fingerprint, got %v", err)
	}

	source := "test-" + uuid.NewString()[:8]
	for i, want := range []bool{true, false} {
		added, err := s.LinkCanonical(ctx, rec.ID, source, "1", now)
		if err != nil || added != want {
			t.Fatalf("link %d: expected %v, got %v (%v)", i, want, added, err)
		}
	}
	got, err := s.GetCanonical(ctx, rec.ID)
	if err != nil || got.JobCount != 1 {
		t.Fatalf("expected job count 1, got %+v (%v)", got, err)
	}

	sig := &models.MarketSignal{
		Source: source, ExternalID: "1", Title: "Java Dev", Company: "Acme",
		EmploymentType: models.TypeC2C, CompPeriod: models.PeriodHour, Skills: []string{"java"},
		CanonicalID: rec.ID, Fingerprint: rec.Fingerprint, Status: models.StatusActive, URLStatus: models.URLUnknown,
		LastSeenAt: now,
	}
	inserted, err := s.UpsertSignal(ctx, sig)
	if err != nil || !inserted {
		t.Fatalf("expected insert, got %v (%v)", inserted, err)
	}
	firstID := sig.ID

	again := *sig
	again.ID = uuid.Nil
	again.Title = "Senior Java Dev"
	inserted, err = s.UpsertSignal(ctx, &again)
	if err != nil || inserted || again.ID != firstID {
		t.Fatalf("expected update of same row, got inserted=%v id=%v (%v)", inserted, again.ID, err)
	}

	req := &models.Requisition{SignalID: firstID, CreatedBy: "ops@desk.example"}
	if err := s.CreateRequisition(ctx, req); err != nil {
		t.Fatalf("requisition: %v", err)
	}
	if err := s.CreateRequisition(ctx, &models.Requisition{SignalID: firstID, CreatedBy: "x"}); !errors.Is(err, ErrAlreadyConverted) {
		t.Fatalf("expected already converted, got %v", err)
	}

	date := now.Format("2006-01-02")
	if _, err := s.EnsureLedger(ctx, source, date, 10, 10); err != nil {
		t.Fatal(err)
	}
	e, err := s.IncrementLedger(ctx, source, date, 3, 2)
	if err != nil || e.RequestsMade != 3 || e.Date != date {
		t.Fatalf("unexpected ledger %+v (%v)", e, err)
	}
	for i, want := range []bool{true, false} {
		flipped, err := s.MarkAlertFired(ctx, source, date)
		if err != nil || flipped != want {
			t.Fatalf("alert %d: expected %v, got %v (%v)", i, want, flipped, err)
		}
	}
}
