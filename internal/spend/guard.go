package spend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/models"
)

const (
	DefaultAlertThreshold = 0.8
	dateLayout            = "2006-01-02"
	weekDays              = 7
)

// LedgerStore persists per (provider, day) counters. Increments must be
// additive and MarkAlertFired must flip the flag at most once per row,
// reporting whether this call flipped it.
type LedgerStore interface {
	EnsureLedger(ctx context.Context, provider, date string, requestCap, recordCap int) (*models.SpendLedgerEntry, error)
	IncrementLedger(ctx context.Context, provider, date string, requests, records int) (*models.SpendLedgerEntry, error)
	MarkAlertFired(ctx context.Context, provider, date string) (bool, error)
	SumRequests(ctx context.Context, provider, fromDate, toDate string) (int, error)
}

// Alerter is told the first time a ledger row crosses the alert threshold.
type Alerter interface {
	SpendAlert(ctx context.Context, entry models.SpendLedgerEntry)
}

// Caps are one provider's budgets. WeeklyRequests defaults to 7x DailyRequests.
type Caps struct {
	DailyRequests  int `yaml:"daily_requests"`
	DailyRecords   int `yaml:"daily_records"`
	WeeklyRequests int `yaml:"weekly_requests"`
}

func (c Caps) weeklyRequests() int {
	if c.WeeklyRequests > 0 {
		return c.WeeklyRequests
	}
	return weekDays * c.DailyRequests
}

type Config struct {
	Defaults       Caps            `yaml:"defaults"`
	Providers      map[string]Caps `yaml:"providers"`
	AlertThreshold float64         `yaml:"alert_threshold"`
}

// Decision is a pre-flight verdict.
type Decision struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	RequestsRemaining int    `json:"requests_remaining"`
	RecordsRemaining  int    `json:"records_remaining"`
}

type Guard struct {
	store   LedgerStore
	cfg     Config
	alerter Alerter
	logger  *zap.Logger
	now     func() time.Time
}

func NewGuard(store LedgerStore, cfg Config, alerter Alerter, logger *zap.Logger) *Guard {
	if cfg.AlertThreshold <= 0 || cfg.AlertThreshold > 1 {
		cfg.AlertThreshold = DefaultAlertThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{store: store, cfg: cfg, alerter: alerter, logger: logger, now: time.Now}
}

// CapsFor returns the provider's caps, falling back to the defaults per field.
func (g *Guard) CapsFor(provider string) Caps {
	c, ok := g.cfg.Providers[provider]
	if !ok {
		return g.cfg.Defaults
	}
	if c.DailyRequests <= 0 {
		c.DailyRequests = g.cfg.Defaults.DailyRequests
	}
	if c.DailyRecords <= 0 {
		c.DailyRecords = g.cfg.Defaults.DailyRecords
	}
	return c
}

func (g *Guard) today() string {
	return g.now().UTC().Format(dateLayout)
}

// Check is the daily pre-flight. It creates today's row if missing.
func (g *Guard) Check(ctx context.Context, provider string) (Decision, error) {
	caps := g.CapsFor(provider)
	entry, err := g.store.EnsureLedger(ctx, provider, g.today(), caps.DailyRequests, caps.DailyRecords)
	if err != nil {
		return Decision{}, fmt.Errorf("ensure ledger for %s: %w", provider, err)
	}

	d := Decision{
		Allowed:           true,
		RequestsRemaining: caps.DailyRequests - entry.RequestsMade,
		RecordsRemaining:  caps.DailyRecords - entry.NewRecordsIngested,
	}
	switch {
	case d.RequestsRemaining <= 0:
		d.Allowed = false
		d.Reason = fmt.Sprintf("daily request cap reached (%d/%d)", entry.RequestsMade, caps.DailyRequests)
	case d.RecordsRemaining <= 0:
		d.Allowed = false
		d.Reason = fmt.Sprintf("daily record cap reached (%d/%d)", entry.NewRecordsIngested, caps.DailyRecords)
	}
	return d, nil
}

// CheckWeekly sums request counts over the trailing seven days, today included.
// Only RequestsRemaining is meaningful on the returned decision.
func (g *Guard) CheckWeekly(ctx context.Context, provider string) (Decision, error) {
	caps := g.CapsFor(provider)
	now := g.now().UTC()
	from := now.AddDate(0, 0, -(weekDays - 1)).Format(dateLayout)
	used, err := g.store.SumRequests(ctx, provider, from, now.Format(dateLayout))
	if err != nil {
		return Decision{}, fmt.Errorf("sum weekly requests for %s: %w", provider, err)
	}

	limit := caps.weeklyRequests()
	d := Decision{Allowed: true, RequestsRemaining: limit - used}
	if d.RequestsRemaining <= 0 {
		d.Allowed = false
		d.Reason = fmt.Sprintf("weekly request cap reached (%d/%d)", used, limit)
	}
	return d, nil
}

// Record adds a batch's usage to today's row and fires the threshold alert
// once per row.
func (g *Guard) Record(ctx context.Context, provider string, requests, records int) error {
	caps := g.CapsFor(provider)
	date := g.today()
	if _, err := g.store.EnsureLedger(ctx, provider, date, caps.DailyRequests, caps.DailyRecords); err != nil {
		return fmt.Errorf("ensure ledger for %s: %w", provider, err)
	}
	entry, err := g.store.IncrementLedger(ctx, provider, date, requests, records)
	if err != nil {
		return fmt.Errorf("increment ledger for %s: %w", provider, err)
	}

	if entry.AlertFired || !g.crossed(entry, caps) {
		return nil
	}
	flipped, err := g.store.MarkAlertFired(ctx, provider, date)
	if err != nil {
		return fmt.Errorf("mark alert for %s: %w", provider, err)
	}
	if !flipped {
		return nil
	}

	entry.AlertFired = true
	g.logger.Warn("spend threshold crossed",
		zap.String("provider", provider),
		zap.String("date", date),
		zap.Int("requests", entry.RequestsMade),
		zap.Int("request_cap", caps.DailyRequests),
		zap.Int("records", entry.NewRecordsIngested),
		zap.Int("record_cap", caps.DailyRecords),
	)
	if g.alerter != nil {
		g.alerter.SpendAlert(ctx, *entry)
	}
	return nil
}

func (g *Guard) crossed(e *models.SpendLedgerEntry, caps Caps) bool {
	t := g.cfg.AlertThreshold
	if caps.DailyRequests > 0 && float64(e.RequestsMade) >= t*float64(caps.DailyRequests) {
		return true
	}
	return caps.DailyRecords > 0 && float64(e.NewRecordsIngested) >= t*float64(caps.DailyRecords)
}
