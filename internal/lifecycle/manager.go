package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/models"
)

// Store runs the bulk transitions. Each call is one atomic statement.
type Store interface {
	// MarkStale moves to STALE every row Evaluate(now, window) decides is stale.
	MarkStale(ctx context.Context, now time.Time, window time.Duration) (int64, error)
	// MarkExpired moves to EXPIRED every row Evaluate(now) decides is expired.
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
	ApplyURLStatus(ctx context.Context, id uuid.UUID, status models.URLStatus, expire bool) error
}

// SweepResult counts the rows each sweep moved.
type SweepResult struct {
	Stale   int64 `json:"stale"`
	Expired int64 `json:"expired"`
}

type Manager struct {
	store  Store
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(store Store, window time.Duration, logger *zap.Logger) *Manager {
	if window <= 0 {
		window = DefaultStaleWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, window: window, logger: logger, now: time.Now}
}

// Sweep runs the staleness sweep, then the expiry sweep.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	now := m.now().UTC()
	var res SweepResult

	stale, err := m.store.MarkStale(ctx, now, m.window)
	if err != nil {
		return res, fmt.Errorf("stale sweep: %w", err)
	}
	res.Stale = stale

	expired, err := m.store.MarkExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("expiry sweep: %w", err)
	}
	res.Expired = expired

	m.logger.Info("lifecycle sweep finished", zap.Int64("stale", res.Stale), zap.Int64("expired", res.Expired))
	return res, nil
}

// ApplyProbe records a liveness result on a signal; a dead URL expires it.
func (m *Manager) ApplyProbe(ctx context.Context, id uuid.UUID, status models.URLStatus) error {
	_, expire := ForProbe(status)
	if err := m.store.ApplyURLStatus(ctx, id, status, expire); err != nil {
		return fmt.Errorf("apply probe result to %s: %w", id, err)
	}
	if expire {
		m.logger.Info("signal expired by liveness probe", zap.String("id", id.String()))
	}
	return nil
}
