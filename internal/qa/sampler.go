package qa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/models"
)

const DefaultSampleSize = 20

type Store interface {
	SampleSignals(ctx context.Context, status models.SignalStatus, n int) ([]models.MarketSignal, error)
	GetCanonical(ctx context.Context, id uuid.UUID) (*models.CanonicalRecord, error)
	InsertQaSample(ctx context.Context, s *models.QaSample) error
}

// Prober re-checks a URL live.
type Prober interface {
	Check(ctx context.Context, rawURL string) models.URLStatus
}

// RunResult summarizes one sampling pass.
type RunResult struct {
	RunID    uuid.UUID                `json:"run_id"`
	Samples  []models.QaSample        `json:"samples"`
	Verdicts map[models.QaVerdict]int `json:"verdicts"`
	Failed   int                      `json:"failed"`
}

// Sampler audits a random slice of ACTIVE signals. Its output is only ever
// written to the audit table.
type Sampler struct {
	store  Store
	prober Prober
	size   int
	logger *zap.Logger
	now    func() time.Time
}

func NewSampler(store Store, prober Prober, size int, logger *zap.Logger) *Sampler {
	if size <= 0 {
		size = DefaultSampleSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{store: store, prober: prober, size: size, logger: logger, now: time.Now}
}

func (s *Sampler) Run(ctx context.Context) (*RunResult, error) {
	signals, err := s.store.SampleSignals(ctx, models.StatusActive, s.size)
	if err != nil {
		return nil, fmt.Errorf("sample signals: %w", err)
	}

	res := &RunResult{
		RunID:    uuid.New(),
		Samples:  make([]models.QaSample, 0, len(signals)),
		Verdicts: make(map[models.QaVerdict]int),
	}
	for i := range signals {
		sample := s.inspect(ctx, res.RunID, &signals[i])
		if err := s.store.InsertQaSample(ctx, &sample); err != nil {
			res.Failed++
			s.logger.Warn("failed to persist qa sample", zap.String("signal_id", sample.SignalID.String()), zap.Error(err))
			continue
		}
		res.Samples = append(res.Samples, sample)
		res.Verdicts[sample.Verdict]++
	}

	s.logger.Info("qa sample finished",
		zap.String("run_id", res.RunID.String()),
		zap.Int("sampled", len(res.Samples)),
		zap.Any("verdicts", res.Verdicts),
	)
	return res, nil
}

func (s *Sampler) inspect(ctx context.Context, runID uuid.UUID, sig *models.MarketSignal) models.QaSample {
	now := s.now().UTC()
	checks := Checks{
		URL:        models.URLUnknown,
		Plausible:  IsPlausible(sig),
		Bogus:      IsBogus(sig),
		HasContact: HasContact(sig),
		Fresh:      IsFresh(sig, now),
		Harvest:    IsHarvest(sig),
	}
	if sig.ApplyURL != "" {
		checks.URL = s.prober.Check(ctx, sig.ApplyURL)
	}
	if sig.CanonicalID != uuid.Nil {
		rec, err := s.store.GetCanonical(ctx, sig.CanonicalID)
		switch {
		case err == nil:
			checks.Duplicate = rec.JobCount > 1
		case !errors.Is(err, db.ErrNotFound):
			s.logger.Warn("canonical lookup failed", zap.String("signal_id", sig.ID.String()), zap.Error(err))
		}
	}

	return models.QaSample{
		ID:                      uuid.New(),
		RunID:                   runID,
		SignalID:                sig.ID,
		SampledAt:               now,
		URLCheck:                checks.URL,
		ClassificationPlausible: checks.Plausible,
		IsDuplicate:             checks.Duplicate,
		IsBogus:                 checks.Bogus,
		HasContact:              checks.HasContact,
		IsFresh:                 checks.Fresh,
		Verdict:                 Evaluate(checks),
		RealnessScore:           sig.RealnessScore,
		ActionabilityScore:      sig.ActionabilityScore,
		EmploymentType:          sig.EmploymentType,
		Confidence:              sig.Confidence,
	}
}
