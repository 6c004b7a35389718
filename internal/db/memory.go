package db

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/signal-desk/internal/lifecycle"
	"github.com/david/signal-desk/internal/models"
)

type signalKey struct {
	source     string
	externalID string
}

type ledgerKey struct {
	provider string
	date     string
}

type linkKey struct {
	canonicalID uuid.UUID
	source      string
	externalID  string
}

// MemoryStore is an in-process Store used by tests and dry runs. It enforces
// the same uniqueness rules as the Postgres schema.
type MemoryStore struct {
	mu sync.Mutex

	signals      map[uuid.UUID]*models.MarketSignal
	bySource     map[signalKey]uuid.UUID
	canonicals   map[uuid.UUID]*models.CanonicalRecord
	byFP         map[string]uuid.UUID
	links        map[linkKey]struct{}
	ledger       map[ledgerKey]*models.SpendLedgerEntry
	samples      []models.QaSample
	vendors      []models.VendorEntry
	runs         map[uuid.UUID]*models.IngestRun
	requisitions map[uuid.UUID]models.Requisition // by signal id
	users        map[string]models.DeskUser       // by lowercased email

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals:      make(map[uuid.UUID]*models.MarketSignal),
		bySource:     make(map[signalKey]uuid.UUID),
		canonicals:   make(map[uuid.UUID]*models.CanonicalRecord),
		byFP:         make(map[string]uuid.UUID),
		links:        make(map[linkKey]struct{}),
		ledger:       make(map[ledgerKey]*models.SpendLedgerEntry),
		runs:         make(map[uuid.UUID]*models.IngestRun),
		requisitions: make(map[uuid.UUID]models.Requisition),
		users:        make(map[string]models.DeskUser),
		now:          time.Now,
	}
}

// --- canonical records ---

func (m *MemoryStore) GetCanonicalByFingerprint(_ context.Context, fingerprint string) (*models.CanonicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byFP[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	c := *m.canonicals[id]
	return &c, nil
}

func (m *MemoryStore) GetCanonical(_ context.Context, id uuid.UUID) (*models.CanonicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.canonicals[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *rec
	return &c, nil
}

func (m *MemoryStore) InsertCanonical(_ context.Context, rec *models.CanonicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byFP[rec.Fingerprint]; ok {
		return ErrDuplicateFingerprint
	}
	c := *rec
	m.canonicals[c.ID] = &c
	m.byFP[c.Fingerprint] = c.ID
	return nil
}

func (m *MemoryStore) LinkCanonical(_ context.Context, canonicalID uuid.UUID, source, externalID string, seenAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.canonicals[canonicalID]
	if !ok {
		return false, ErrNotFound
	}
	k := linkKey{canonicalID, source, externalID}
	if _, ok := m.links[k]; ok {
		return false, nil
	}
	m.links[k] = struct{}{}
	rec.JobCount++
	if seenAt.After(rec.LastSeenAt) {
		rec.LastSeenAt = seenAt
	}
	return true, nil
}

func (m *MemoryStore) TouchCanonical(_ context.Context, canonicalID uuid.UUID, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.canonicals[canonicalID]
	if !ok {
		return ErrNotFound
	}
	if seenAt.After(rec.LastSeenAt) {
		rec.LastSeenAt = seenAt
	}
	return nil
}

// --- signals ---

func (m *MemoryStore) GetSignal(_ context.Context, id uuid.UUID) (*models.MarketSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSignal(s), nil
}

func (m *MemoryStore) GetSignalByExternalID(_ context.Context, source, externalID string) (*models.MarketSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySource[signalKey{source, externalID}]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSignal(m.signals[id]), nil
}

// UpsertSignal writes the full field set keyed by (Source, ExternalID). An
// existing row keeps its ID and FirstSeenAt; everything else is replaced.
func (m *MemoryStore) UpsertSignal(_ context.Context, sig *models.MarketSignal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	k := signalKey{sig.Source, sig.ExternalID}

	inserted := true
	if id, ok := m.bySource[k]; ok {
		prev := m.signals[id]
		sig.ID = prev.ID
		sig.FirstSeenAt = prev.FirstSeenAt
		inserted = false
	} else {
		if sig.ID == uuid.Nil {
			sig.ID = uuid.New()
		}
		if sig.FirstSeenAt.IsZero() {
			sig.FirstSeenAt = now
		}
	}
	sig.UpdatedAt = now

	m.signals[sig.ID] = cloneSignal(sig)
	m.bySource[k] = sig.ID
	return inserted, nil
}

func (m *MemoryStore) ListSignals(_ context.Context, f SignalFilter) (*SignalPage, error) {
	f = f.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var matched []models.MarketSignal
	for _, s := range m.signals {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.Type != "" && s.EmploymentType != f.Type {
			continue
		}
		if s.RealnessScore < f.MinRealness || s.ActionabilityScore < f.MinActionability {
			continue
		}
		if f.FreshDays > 0 && s.LastSeenAt.Before(now.AddDate(0, 0, -f.FreshDays)) {
			continue
		}
		matched = append(matched, *cloneSignal(s))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.SortBy {
		case "realness":
			if a.RealnessScore != b.RealnessScore {
				return a.RealnessScore > b.RealnessScore
			}
		case "last_seen":
		case "posted":
			at, bt := timeOrZero(a.PostedAt), timeOrZero(b.PostedAt)
			if !at.Equal(bt) {
				return at.After(bt)
			}
		default:
			if a.ActionabilityScore != b.ActionabilityScore {
				return a.ActionabilityScore > b.ActionabilityScore
			}
		}
		if !a.LastSeenAt.Equal(b.LastSeenAt) {
			return a.LastSeenAt.After(b.LastSeenAt)
		}
		return a.ID.String() < b.ID.String()
	})

	page := &SignalPage{Signals: []models.MarketSignal{}, Total: len(matched), Limit: f.Limit, Offset: f.Offset}
	if f.Offset < len(matched) {
		end := f.Offset + f.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Signals = matched[f.Offset:end]
	}
	return page, nil
}

// SampleSignals returns up to n signals with the given status, drawn uniformly.
func (m *MemoryStore) SampleSignals(_ context.Context, status models.SignalStatus, n int) ([]models.MarketSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pool []models.MarketSignal
	for _, s := range m.signals {
		if s.Status == status {
			pool = append(pool, *cloneSignal(s))
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool, nil
}

func (m *MemoryStore) MarkStale(_ context.Context, now time.Time, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.signals {
		d := lifecycle.Evaluate(s.Status, s.LastSeenAt, s.ExpiresAt, now, window)
		if d.Status == models.StatusStale && s.Status != models.StatusStale {
			s.Status = models.StatusStale
			s.UpdatedAt = m.now().UTC()
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) MarkExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.signals {
		d := lifecycle.Evaluate(s.Status, s.LastSeenAt, s.ExpiresAt, now, lifecycle.DefaultStaleWindow)
		if d.Status == models.StatusExpired && s.Status != models.StatusExpired {
			s.Status = models.StatusExpired
			s.UpdatedAt = m.now().UTC()
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ApplyURLStatus(_ context.Context, id uuid.UUID, status models.URLStatus, expire bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return ErrNotFound
	}
	s.URLStatus = status
	if expire {
		s.Status = models.StatusExpired
	}
	s.UpdatedAt = m.now().UTC()
	return nil
}

// --- spend ledger ---

func (m *MemoryStore) EnsureLedger(_ context.Context, provider, date string, requestCap, recordCap int) (*models.SpendLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ledgerRow(provider, date)
	e.RequestCap, e.RecordCap = requestCap, recordCap
	c := *e
	return &c, nil
}

func (m *MemoryStore) IncrementLedger(_ context.Context, provider, date string, requests, records int) (*models.SpendLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ledgerRow(provider, date)
	e.RequestsMade += requests
	e.NewRecordsIngested += records
	e.UpdatedAt = m.now().UTC()
	c := *e
	return &c, nil
}

func (m *MemoryStore) MarkAlertFired(_ context.Context, provider, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ledger[ledgerKey{provider, date}]
	if !ok || e.AlertFired {
		return false, nil
	}
	e.AlertFired = true
	return true, nil
}

func (m *MemoryStore) SumRequests(_ context.Context, provider, fromDate, toDate string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for k, e := range m.ledger {
		if k.provider == provider && k.date >= fromDate && k.date <= toDate {
			total += e.RequestsMade
		}
	}
	return total, nil
}

func (m *MemoryStore) ListLedger(_ context.Context, provider, fromDate string) ([]models.SpendLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SpendLedgerEntry{}
	for k, e := range m.ledger {
		if (provider == "" || k.provider == provider) && k.date >= fromDate {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Provider < out[j].Provider
	})
	return out, nil
}

func (m *MemoryStore) ledgerRow(provider, date string) *models.SpendLedgerEntry {
	k := ledgerKey{provider, date}
	e, ok := m.ledger[k]
	if !ok {
		e = &models.SpendLedgerEntry{Provider: provider, Date: date, UpdatedAt: m.now().UTC()}
		m.ledger[k] = e
	}
	return e
}

// --- QA samples ---

func (m *MemoryStore) InsertQaSample(_ context.Context, s *models.QaSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, *s)
	return nil
}

func (m *MemoryStore) ListQaSamples(_ context.Context, limit int) ([]models.QaSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit, defaultListLimit)
	out := []models.QaSample{}
	for i := len(m.samples) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.samples[i])
	}
	return out, nil
}

// --- vendors ---

func (m *MemoryStore) ListVendors(_ context.Context) ([]models.VendorEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.VendorEntry, len(m.vendors))
	copy(out, m.vendors)
	return out, nil
}

// PutVendor appends a directory entry; order is match priority.
func (m *MemoryStore) PutVendor(v models.VendorEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vendors = append(m.vendors, v)
}

// --- runs ---

func (m *MemoryStore) SaveRun(_ context.Context, run *models.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *run
	c.Providers = append([]models.ProviderRunStats(nil), run.Providers...)
	m.runs[c.ID] = &c
	return nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]models.IngestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.IngestRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit = clampLimit(limit, 10); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- requisitions ---

func (m *MemoryStore) CreateRequisition(_ context.Context, req *models.Requisition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.signals[req.SignalID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.requisitions[req.SignalID]; ok {
		return ErrAlreadyConverted
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = m.now().UTC()
	}
	m.requisitions[req.SignalID] = *req
	return nil
}

// --- desk users ---

func (m *MemoryStore) CreateDeskUser(_ context.Context, u *models.DeskUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := m.users[key]; ok {
		return ErrUserExists
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now().UTC()
	}
	m.users[key] = *u
	return nil
}

func (m *MemoryStore) GetDeskUserByEmail(_ context.Context, email string) (*models.DeskUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) CountRows(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int64{
		"market_signals":    int64(len(m.signals)),
		"canonical_records": int64(len(m.canonicals)),
		"canonical_links":   int64(len(m.links)),
		"spend_ledger":      int64(len(m.ledger)),
		"qa_samples":        int64(len(m.samples)),
		"vendors":           int64(len(m.vendors)),
		"ingest_runs":       int64(len(m.runs)),
		"requisitions":      int64(len(m.requisitions)),
		"desk_users":        int64(len(m.users)),
	}, nil
}

func cloneSignal(s *models.MarketSignal) *models.MarketSignal {
	c := *s
	c.MatchedKeywords = append([]string(nil), s.MatchedKeywords...)
	c.NegativeSignals = append([]string(nil), s.NegativeSignals...)
	c.Skills = append([]string(nil), s.Skills...)
	c.RealnessReasons = append([]string(nil), s.RealnessReasons...)
	c.ActionabilityReasons = append([]string(nil), s.ActionabilityReasons...)
	return &c
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
