package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/classify"
	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/dedup"
	"github.com/david/signal-desk/internal/lifecycle"
	"github.com/david/signal-desk/internal/logger"
	"github.com/david/signal-desk/internal/models"
	"github.com/david/signal-desk/internal/scoring"
	"github.com/david/signal-desk/internal/spend"
	"github.com/david/signal-desk/internal/vendor"
)

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"

	maxDescriptionHTML = 100_000
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("ingest run already in progress")

// Store is the signal persistence the orchestrator writes through.
type Store interface {
	dedup.Store
	GetSignalByExternalID(ctx context.Context, source, externalID string) (*models.MarketSignal, error)
	UpsertSignal(ctx context.Context, sig *models.MarketSignal) (inserted bool, err error)
	SaveRun(ctx context.Context, run *models.IngestRun) error
}

// RunObserver receives every finished run.
type RunObserver interface {
	ObserveRun(run *models.IngestRun)
}

// Deps wires the orchestrator. Providers run in slice order.
type Deps struct {
	Store         Store
	Providers     []Entry
	Guard         *spend.Guard
	Resolver      *dedup.Resolver
	Matcher       *vendor.Matcher
	Realness      *scoring.Realness
	Actionability *scoring.Actionability
	Lifecycle     *lifecycle.Manager
	Observer      RunObserver
	Logger        *zap.Logger
	FetchTimeout  time.Duration
}

// Pipeline is the ingestion orchestrator: fetch per provider under budget,
// derive and upsert every record, record spend, then sweep lifecycle.
type Pipeline struct {
	Deps
	running atomic.Bool
	now     func() time.Time
}

func NewPipeline(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = DefaultFetchTimeout
	}
	if d.Realness == nil {
		d.Realness = scoring.NewRealness(nil)
	}
	if d.Actionability == nil {
		d.Actionability = scoring.NewActionability()
	}
	if d.Resolver == nil {
		d.Resolver = dedup.NewResolver(d.Store)
	}
	return &Pipeline{Deps: d, now: time.Now}
}

// Running reports whether a run is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run executes one full pass. Provider and record failures are isolated and
// surface only in the returned counters; an error is returned only when the
// run could not happen at all.
func (p *Pipeline) Run(ctx context.Context) (*models.IngestRun, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	run := &models.IngestRun{
		ID:        uuid.New(),
		Status:    RunRunning,
		StartedAt: p.now().UTC(),
	}
	log := logger.ForRun(p.Logger, run.ID.String())
	if err := p.Store.SaveRun(ctx, run); err != nil {
		log.Warn("failed to create ingest run", zap.Error(err))
	}
	log.Info("ingest run started", zap.Int("providers", len(p.Providers)))

	for _, e := range p.Providers {
		if err := ctx.Err(); err != nil {
			return p.finish(log, run, RunFailed, err)
		}
		stats := p.runProvider(ctx, log, e)
		run.Providers = append(run.Providers, stats)
		run.Fetched += stats.Fetched
		run.Inserted += stats.Inserted
		run.Updated += stats.Updated
		run.Skipped += stats.Rejected + stats.Failed
		run.Deduped += stats.Deduped
	}

	if p.Lifecycle != nil {
		sweep, err := p.Lifecycle.Sweep(ctx)
		run.Stale, run.Expired = sweep.Stale, sweep.Expired
		if err != nil {
			log.Error("lifecycle sweep failed", zap.Error(err))
			return p.finish(log, run, RunFailed, fmt.Errorf("lifecycle sweep: %w", err))
		}
	}
	return p.finish(log, run, RunCompleted, nil)
}

func (p *Pipeline) finish(log *zap.Logger, run *models.IngestRun, status string, cause error) (*models.IngestRun, error) {
	done := p.now().UTC()
	run.Status = status
	run.CompletedAt = &done

	// the run row is written even when the caller's context is gone
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Store.SaveRun(ctx, run); err != nil {
		log.Warn("failed to save ingest run", zap.Error(err))
	}
	if p.Observer != nil {
		p.Observer.ObserveRun(run)
	}

	log.Info("ingest run finished",
		zap.String("status", status),
		zap.Int("fetched", run.Fetched),
		zap.Int("inserted", run.Inserted),
		zap.Int("updated", run.Updated),
		zap.Int("skipped", run.Skipped),
		zap.Int("deduped", run.Deduped),
		zap.Int64("stale", run.Stale),
		zap.Int64("expired", run.Expired),
		zap.Duration("took", done.Sub(run.StartedAt)),
	)
	return run, cause
}

func (p *Pipeline) runProvider(ctx context.Context, log *zap.Logger, e Entry) models.ProviderRunStats {
	name := e.Provider.Name()
	stats := models.ProviderRunStats{Provider: name}
	log = log.With(zap.String(logger.FieldProvider, name))

	if !e.Provider.IsConfigured() {
		stats.Skipped, stats.Reason = true, "not configured"
		log.Info("provider skipped", zap.String("reason", stats.Reason))
		return stats
	}

	if p.Guard != nil {
		for _, check := range []func(context.Context, string) (spend.Decision, error){p.Guard.Check, p.Guard.CheckWeekly} {
			d, err := check(ctx, name)
			if err != nil {
				stats.Skipped, stats.Reason, stats.Error = true, "budget check failed", err.Error()
				log.Error("spend check failed", zap.Error(err))
				return stats
			}
			if !d.Allowed {
				stats.Skipped, stats.Reason = true, d.Reason
				log.Warn("provider over budget", zap.String("reason", d.Reason))
				return stats
			}
		}
	}

	raws, err := p.fetch(ctx, e)
	if err != nil {
		stats.Error = err.Error()
		log.Error("provider fetch failed", zap.Error(err))
		// the calls were made; they count against the budget
		p.recordSpend(ctx, name, len(e.Queries), 0)
		return stats
	}
	stats.Fetched = len(raws)

	for i := range raws {
		if err := ctx.Err(); err != nil {
			stats.Error = err.Error()
			break
		}
		raw := &raws[i]
		if raw.Source == "" {
			raw.Source = name
		}
		if reason := rejectReason(raw); reason != "" {
			stats.Rejected++
			log.Debug("raw record rejected", zap.String("reason", reason), zap.String("external_id", raw.ExternalID))
			continue
		}

		out, err := p.Process(ctx, raw)
		if err != nil {
			stats.Failed++
			log.Warn("record failed", zap.String("external_id", raw.ExternalID), zap.Error(err))
			continue
		}
		if out.Inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
		if out.Deduped {
			stats.Deduped++
		}
	}

	p.recordSpend(ctx, name, len(e.Queries), stats.Inserted)
	log.Info("provider finished",
		zap.Int("fetched", stats.Fetched),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("rejected", stats.Rejected),
		zap.Int("failed", stats.Failed),
		zap.Int("deduped", stats.Deduped),
	)
	return stats
}

// fetch calls the provider under a batch deadline and turns a panic into an
// error. Each HTTP call is separately bounded by FetchTimeout.
func (p *Pipeline) fetch(ctx context.Context, e Entry) (raws []models.RawSignal, err error) {
	batch := time.Duration(2*max(1, len(e.Queries))) * p.FetchTimeout
	fctx, cancel := context.WithTimeout(ctx, batch)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			raws, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()
	return e.Provider.FetchJobs(fctx, e.Queries)
}

func (p *Pipeline) recordSpend(ctx context.Context, provider string, requests, records int) {
	if p.Guard == nil {
		return
	}
	if requests == 0 {
		requests = 1
	}
	if err := p.Guard.Record(ctx, provider, requests, records); err != nil {
		p.Logger.Error("failed to record spend", zap.String("provider", provider), zap.Error(err))
	}
}

func rejectReason(raw *models.RawSignal) string {
	switch {
	case strings.TrimSpace(raw.Title) == "":
		return "missing title"
	case strings.TrimSpace(raw.Company) == "":
		return "missing company"
	case strings.TrimSpace(raw.ExternalID) == "":
		return "missing external id"
	}
	return ""
}

// Outcome is what happened to one processed record.
type Outcome struct {
	Signal   *models.MarketSignal
	Inserted bool
	Deduped  bool // attached to a canonical record another occurrence created
}

// Process derives every field of one raw record in the fixed order
// classify, rate, skills, fingerprint, vendor, realness, actionability, and
// upserts the full result keyed by (source, external id).
func (p *Pipeline) Process(ctx context.Context, raw *models.RawSignal) (*Outcome, error) {
	now := p.now().UTC()
	text := classify.PlainText(raw.Description)

	cls := classify.Classify(raw.Title + "\n" + text)
	rate := classify.ExtractRate(strings.Join(nonEmptyParts(raw.SalaryText, raw.Title, text), "\n"))
	skills := classify.ExtractSkills(raw.Title, text)

	res, err := p.Resolver.Resolve(ctx, dedup.Identity{
		Fields: dedup.Fields{
			Title:       raw.Title,
			Company:     raw.Company,
			Location:    raw.Location,
			ApplyURL:    raw.ApplyURL,
			Description: text,
		},
		Source:     raw.Source,
		ExternalID: raw.ExternalID,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve canonical: %w", err)
	}

	in := vendor.Input{Company: raw.Company, ApplyURL: raw.ApplyURL, RecruiterEmail: raw.RecruiterEmail}
	var match vendor.Match
	if p.Matcher != nil {
		match, err = p.Matcher.Match(ctx, in)
		if err != nil {
			p.Logger.Warn("vendor directory unavailable", zap.Error(err))
		}
	} else {
		match = vendor.Match{Domain: vendor.ExtractDomain(in)}
	}

	urlStatus := raw.URLStatus
	if urlStatus == "" {
		urlStatus = models.URLUnknown
		prev, err := p.Store.GetSignalByExternalID(ctx, raw.Source, raw.ExternalID)
		switch {
		case err == nil && prev.URLStatus != "":
			urlStatus = prev.URLStatus
		case err != nil && !errors.Is(err, db.ErrNotFound):
			return nil, fmt.Errorf("load previous signal: %w", err)
		}
	}

	view := scoring.Signal{
		Title:           raw.Title,
		Company:         raw.Company,
		Description:     text,
		Location:        raw.Location,
		ApplyURL:        raw.ApplyURL,
		RecruiterName:   raw.RecruiterName,
		RecruiterEmail:  raw.RecruiterEmail,
		RecruiterPhone:  raw.RecruiterPhone,
		PostedAt:        raw.PostedAt,
		EmploymentType:  cls.Type,
		Confidence:      cls.Confidence,
		NegativeSignals: cls.NegativeSignals,
		HasCompensation: rate.HasRate() || raw.SalaryMin != nil || raw.SalaryMax != nil || strings.TrimSpace(raw.SalaryText) != "",
		HourlyMin:       rate.HourlyMin,
		HourlyMax:       rate.HourlyMax,
		URLStatus:       urlStatus,
		VendorMatched:   match.Vendor != nil,
		CompanyDomain:   match.Domain,
	}
	realness := p.Realness.Score(view)
	action := p.Actionability.Score(view, realness.Score)

	sig := &models.MarketSignal{
		Source:               raw.Source,
		ExternalID:           raw.ExternalID,
		Title:                raw.Title,
		Company:              raw.Company,
		Description:          text,
		DescriptionHTML:      classify.TruncateRunes(classify.SanitizeHTML(raw.Description), maxDescriptionHTML),
		Location:             raw.Location,
		LocationType:         raw.LocationType,
		ApplyURL:             raw.ApplyURL,
		SourceURL:            raw.SourceURL,
		PostedAt:             raw.PostedAt,
		ExpiresAt:            raw.ExpiresAt,
		RecruiterName:        raw.RecruiterName,
		RecruiterEmail:       raw.RecruiterEmail,
		RecruiterPhone:       raw.RecruiterPhone,
		EmploymentType:       cls.Type,
		Confidence:           cls.Confidence,
		MatchedKeywords:      cls.MatchedKeywords,
		NegativeSignals:      cls.NegativeSignals,
		RateText:             rate.RateText,
		RateMin:              rate.Min,
		RateMax:              rate.Max,
		CompPeriod:           rate.Period,
		HourlyMin:            rate.HourlyMin,
		HourlyMax:            rate.HourlyMax,
		Skills:               skills,
		RealnessScore:        realness.Score,
		RealnessReasons:      realness.Reasons,
		ActionabilityScore:   action.Score,
		ActionabilityReasons: action.Reasons,
		VendorDomain:         match.Domain,
		CanonicalID:          res.Canonical.ID,
		Fingerprint:          res.Fingerprint,
		Status:               models.StatusActive,
		URLStatus:            urlStatus,
		FirstSeenAt:          now,
		LastSeenAt:           now,
		RawPayload:           raw.RawPayload,
	}
	if match.Vendor != nil {
		sig.VendorID = match.Vendor.ID
		sig.VendorMatchMethod = match.Method
	}

	inserted, err := p.Store.UpsertSignal(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("upsert signal: %w", err)
	}
	return &Outcome{Signal: sig, Inserted: inserted, Deduped: res.NewLink && !res.Created}, nil
}

func nonEmptyParts(parts ...string) []string {
	out := parts[:0:0]
	for _, s := range parts {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
