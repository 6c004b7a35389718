package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/signal-desk/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store is the Postgres implementation of every persistence interface the
// pipeline, lifecycle, spend, QA, vendor and API layers declare.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// --- canonical records ---

const canonicalCols = `id, fingerprint, title, company, location, apply_url, first_seen_at, last_seen_at, job_count`

func scanCanonical(row pgx.Row) (*models.CanonicalRecord, error) {
	var c models.CanonicalRecord
	err := row.Scan(&c.ID, &c.Fingerprint, &c.Title, &c.Company, &c.Location, &c.ApplyURL, &c.FirstSeenAt, &c.LastSeenAt, &c.JobCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCanonicalByFingerprint(ctx context.Context, fingerprint string) (*models.CanonicalRecord, error) {
	return scanCanonical(s.pool.QueryRow(ctx, `SELECT `+canonicalCols+` FROM canonical_records WHERE fingerprint = $1`, fingerprint))
}

func (s *Store) GetCanonical(ctx context.Context, id uuid.UUID) (*models.CanonicalRecord, error) {
	return scanCanonical(s.pool.QueryRow(ctx, `SELECT `+canonicalCols+` FROM canonical_records WHERE id = $1`, id))
}

func (s *Store) InsertCanonical(ctx context.Context, rec *models.CanonicalRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO canonical_records (`+canonicalCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.Fingerprint, rec.Title, rec.Company, rec.Location, rec.ApplyURL, rec.FirstSeenAt, rec.LastSeenAt, rec.JobCount)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicateFingerprint
	}
	return err
}

// LinkCanonical attaches (source, externalID) once; only a new link bumps
// the job count.
func (s *Store) LinkCanonical(ctx context.Context, canonicalID uuid.UUID, source, externalID string, seenAt time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO canonical_links (canonical_id, source, external_id, linked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, canonicalID, source, externalID, seenAt)
	if pgCode(err) == pgForeignKeyViolation {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE canonical_records
		SET job_count = job_count + 1, last_seen_at = GREATEST(last_seen_at, $2)
		WHERE id = $1
	`, canonicalID, seenAt); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *Store) TouchCanonical(ctx context.Context, canonicalID uuid.UUID, seenAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE canonical_records SET last_seen_at = GREATEST(last_seen_at, $2) WHERE id = $1`, canonicalID, seenAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- signals ---

var signalColumns = []string{
	"id", "source", "external_id", "title", "company", "description", "description_html",
	"location", "location_type", "apply_url", "source_url", "posted_at", "expires_at",
	"recruiter_name", "recruiter_email", "recruiter_phone",
	"employment_type", "confidence", "matched_keywords", "negative_signals",
	"rate_text", "rate_min", "rate_max", "comp_period", "hourly_min", "hourly_max",
	"skills", "realness_score", "realness_reasons", "actionability_score", "actionability_reasons",
	"vendor_id", "vendor_match_method", "vendor_domain",
	"canonical_id", "fingerprint", "status", "url_status",
	"first_seen_at", "last_seen_at", "updated_at", "raw_payload",
}

var signalCols = strings.Join(signalColumns, ", ")

func signalArgs(sig *models.MarketSignal) []any {
	var payload []byte
	if len(sig.RawPayload) > 0 && json.Valid(sig.RawPayload) {
		payload = sig.RawPayload
	}
	return []any{
		sig.ID, sig.Source, sig.ExternalID, sig.Title, sig.Company, sig.Description, sig.DescriptionHTML,
		sig.Location, sig.LocationType, sig.ApplyURL, sig.SourceURL, sig.PostedAt, sig.ExpiresAt,
		sig.RecruiterName, sig.RecruiterEmail, sig.RecruiterPhone,
		string(sig.EmploymentType), sig.Confidence, sig.MatchedKeywords, sig.NegativeSignals,
		sig.RateText, sig.RateMin, sig.RateMax, string(sig.CompPeriod), sig.HourlyMin, sig.HourlyMax,
		sig.Skills, sig.RealnessScore, sig.RealnessReasons, sig.ActionabilityScore, sig.ActionabilityReasons,
		sig.VendorID, sig.VendorMatchMethod, sig.VendorDomain,
		sig.CanonicalID, sig.Fingerprint, string(sig.Status), string(sig.URLStatus),
		sig.FirstSeenAt, sig.LastSeenAt, sig.UpdatedAt, payload,
	}
}

func scanSignal(row pgx.Row) (*models.MarketSignal, error) {
	var (
		s                                  models.MarketSignal
		empType, period, status, urlStatus string
		payload                            []byte
	)
	err := row.Scan(
		&s.ID, &s.Source, &s.ExternalID, &s.Title, &s.Company, &s.Description, &s.DescriptionHTML,
		&s.Location, &s.LocationType, &s.ApplyURL, &s.SourceURL, &s.PostedAt, &s.ExpiresAt,
		&s.RecruiterName, &s.RecruiterEmail, &s.RecruiterPhone,
		&empType, &s.Confidence, &s.MatchedKeywords, &s.NegativeSignals,
		&s.RateText, &s.RateMin, &s.RateMax, &period, &s.HourlyMin, &s.HourlyMax,
		&s.Skills, &s.RealnessScore, &s.RealnessReasons, &s.ActionabilityScore, &s.ActionabilityReasons,
		&s.VendorID, &s.VendorMatchMethod, &s.VendorDomain,
		&s.CanonicalID, &s.Fingerprint, &status, &urlStatus,
		&s.FirstSeenAt, &s.LastSeenAt, &s.UpdatedAt, &payload,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.EmploymentType = models.EmploymentType(empType)
	s.CompPeriod = models.CompPeriod(period)
	s.Status = models.SignalStatus(status)
	s.URLStatus = models.URLStatus(urlStatus)
	s.RawPayload = payload
	return &s, nil
}

func collectSignals(rows pgx.Rows) ([]models.MarketSignal, error) {
	defer rows.Close()
	out := []models.MarketSignal{}
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}

func (s *Store) GetSignal(ctx context.Context, id uuid.UUID) (*models.MarketSignal, error) {
	return scanSignal(s.pool.QueryRow(ctx, `SELECT `+signalCols+` FROM market_signals WHERE id = $1`, id))
}

func (s *Store) GetSignalByExternalID(ctx context.Context, source, externalID string) (*models.MarketSignal, error) {
	return scanSignal(s.pool.QueryRow(ctx, `SELECT `+signalCols+` FROM market_signals WHERE source = $1 AND external_id = $2`, source, externalID))
}

// upsertSignalSQL replaces every column except id and first_seen_at on a
// (source, external_id) conflict. xmax = 0 only holds for a fresh insert.
var upsertSignalSQL = func() string {
	placeholders := make([]string, len(signalColumns))
	var updates []string
	for i, col := range signalColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		switch col {
		case "id", "source", "external_id", "first_seen_at":
			continue
		}
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	return `INSERT INTO market_signals (` + signalCols + `) VALUES (` + strings.Join(placeholders, ", ") + `)
		ON CONFLICT (source, external_id) DO UPDATE SET ` + strings.Join(updates, ", ") + `
		RETURNING id, first_seen_at, (xmax = 0) AS inserted`
}()

// UpsertSignal writes the full field set keyed by (Source, ExternalID) and
// reports whether a new row was created.
func (s *Store) UpsertSignal(ctx context.Context, sig *models.MarketSignal) (bool, error) {
	now := time.Now().UTC()
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	if sig.FirstSeenAt.IsZero() {
		sig.FirstSeenAt = now
	}
	sig.UpdatedAt = now

	var inserted bool
	err := s.pool.QueryRow(ctx, upsertSignalSQL, signalArgs(sig)...).Scan(&sig.ID, &sig.FirstSeenAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert signal %s/%s: %w", sig.Source, sig.ExternalID, err)
	}
	return inserted, nil
}

// buildSignalQuery renders the WHERE clause, ORDER BY and args for f.
func buildSignalQuery(f SignalFilter) (where, orderBy string, args []any) {
	where = "WHERE 1=1"
	argIdx := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.Type != "" {
		where += fmt.Sprintf(" AND employment_type = $%d", argIdx)
		args = append(args, string(f.Type))
		argIdx++
	}
	if f.MinRealness > 0 {
		where += fmt.Sprintf(" AND realness_score >= $%d", argIdx)
		args = append(args, f.MinRealness)
		argIdx++
	}
	if f.MinActionability > 0 {
		where += fmt.Sprintf(" AND actionability_score >= $%d", argIdx)
		args = append(args, f.MinActionability)
		argIdx++
	}
	if f.FreshDays > 0 {
		where += fmt.Sprintf(" AND last_seen_at >= NOW() - ($%d * INTERVAL '1 day')", argIdx)
		args = append(args, f.FreshDays)
	}

	switch f.SortBy {
	case "realness":
		orderBy = " ORDER BY realness_score DESC, last_seen_at DESC, id"
	case "last_seen":
		orderBy = " ORDER BY last_seen_at DESC, id"
	case "posted":
		orderBy = " ORDER BY posted_at DESC NULLS LAST, last_seen_at DESC, id"
	default:
		orderBy = " ORDER BY actionability_score DESC, last_seen_at DESC, id"
	}
	return where, orderBy, args
}

func (s *Store) ListSignals(ctx context.Context, f SignalFilter) (*SignalPage, error) {
	f = f.Normalize()
	where, orderBy, args := buildSignalQuery(f)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM market_signals "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM market_signals %s%s LIMIT $%d OFFSET $%d", signalCols, where, orderBy, n+1, n+2)
	rows, err := s.pool.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	signals, err := collectSignals(rows)
	if err != nil {
		return nil, err
	}
	return &SignalPage{Signals: signals, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *Store) SampleSignals(ctx context.Context, status models.SignalStatus, n int) ([]models.MarketSignal, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+signalCols+` FROM market_signals WHERE status = $1 ORDER BY random() LIMIT $2`, string(status), n)
	if err != nil {
		return nil, fmt.Errorf("sample query failed: %w", err)
	}
	return collectSignals(rows)
}

// MarkStale is lifecycle.Evaluate's staleness branch as one statement.
func (s *Store) MarkStale(ctx context.Context, now time.Time, window time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE market_signals SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at IS NULL AND last_seen_at < $3
	`, string(models.StatusStale), string(models.StatusActive), now.Add(-window))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkExpired is lifecycle.Evaluate's expiry branch as one statement.
func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE market_signals SET status = $1, updated_at = NOW()
		WHERE status <> $1 AND expires_at IS NOT NULL AND expires_at < $2
	`, string(models.StatusExpired), now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ApplyURLStatus(ctx context.Context, id uuid.UUID, status models.URLStatus, expire bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE market_signals
		SET url_status = $2, status = CASE WHEN $3 THEN $4 ELSE status END, updated_at = NOW()
		WHERE id = $1
	`, id, string(status), expire, string(models.StatusExpired))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- spend ledger ---

const ledgerCols = `provider, date::text, requests_made, new_records_ingested, request_cap, record_cap, alert_fired, updated_at`

func scanLedger(row pgx.Row) (*models.SpendLedgerEntry, error) {
	var e models.SpendLedgerEntry
	if err := row.Scan(&e.Provider, &e.Date, &e.RequestsMade, &e.NewRecordsIngested, &e.RequestCap, &e.RecordCap, &e.AlertFired, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) EnsureLedger(ctx context.Context, provider, date string, requestCap, recordCap int) (*models.SpendLedgerEntry, error) {
	return scanLedger(s.pool.QueryRow(ctx, `
		INSERT INTO spend_ledger (provider, date, request_cap, record_cap)
		VALUES ($1, $2::date, $3, $4)
		ON CONFLICT (provider, date) DO UPDATE SET request_cap = EXCLUDED.request_cap, record_cap = EXCLUDED.record_cap
		RETURNING `+ledgerCols, provider, date, requestCap, recordCap))
}

// IncrementLedger adds to the row atomically, so concurrent batches never
// lose an update.
func (s *Store) IncrementLedger(ctx context.Context, provider, date string, requests, records int) (*models.SpendLedgerEntry, error) {
	return scanLedger(s.pool.QueryRow(ctx, `
		INSERT INTO spend_ledger (provider, date, requests_made, new_records_ingested)
		VALUES ($1, $2::date, $3, $4)
		ON CONFLICT (provider, date) DO UPDATE SET
			requests_made = spend_ledger.requests_made + EXCLUDED.requests_made,
			new_records_ingested = spend_ledger.new_records_ingested + EXCLUDED.new_records_ingested,
			updated_at = NOW()
		RETURNING `+ledgerCols, provider, date, requests, records))
}

func (s *Store) MarkAlertFired(ctx context.Context, provider, date string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE spend_ledger SET alert_fired = TRUE WHERE provider = $1 AND date = $2::date AND NOT alert_fired`, provider, date)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SumRequests(ctx context.Context, provider, fromDate, toDate string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(requests_made), 0)::int FROM spend_ledger
		WHERE provider = $1 AND date BETWEEN $2::date AND $3::date
	`, provider, fromDate, toDate).Scan(&total)
	return total, err
}

// ListLedger returns rows on or after fromDate; an empty provider means all.
func (s *Store) ListLedger(ctx context.Context, provider, fromDate string) ([]models.SpendLedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ledgerCols+` FROM spend_ledger
		WHERE ($1 = '' OR provider = $1) AND date >= $2::date
		ORDER BY date DESC, provider
	`, provider, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SpendLedgerEntry{}
	for rows.Next() {
		e, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// --- QA samples ---

func (s *Store) InsertQaSample(ctx context.Context, q *models.QaSample) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO qa_samples (id, run_id, signal_id, sampled_at, url_check, classification_plausible,
			is_duplicate, is_bogus, has_contact, is_fresh, verdict, realness_score, actionability_score,
			employment_type, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, q.ID, q.RunID, q.SignalID, q.SampledAt, string(q.URLCheck), q.ClassificationPlausible,
		q.IsDuplicate, q.IsBogus, q.HasContact, q.IsFresh, string(q.Verdict), q.RealnessScore, q.ActionabilityScore,
		string(q.EmploymentType), q.Confidence)
	return err
}

func (s *Store) ListQaSamples(ctx context.Context, limit int) ([]models.QaSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, signal_id, sampled_at, url_check, classification_plausible, is_duplicate, is_bogus,
			has_contact, is_fresh, verdict, realness_score, actionability_score, employment_type, confidence
		FROM qa_samples ORDER BY sampled_at DESC LIMIT $1
	`, clampLimit(limit, defaultListLimit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.QaSample{}
	for rows.Next() {
		var (
			q                          models.QaSample
			urlCheck, verdict, empType string
		)
		if err := rows.Scan(&q.ID, &q.RunID, &q.SignalID, &q.SampledAt, &urlCheck, &q.ClassificationPlausible,
			&q.IsDuplicate, &q.IsBogus, &q.HasContact, &q.IsFresh, &verdict, &q.RealnessScore, &q.ActionabilityScore,
			&empType, &q.Confidence); err != nil {
			return nil, err
		}
		q.URLCheck = models.URLStatus(urlCheck)
		q.Verdict = models.QaVerdict(verdict)
		q.EmploymentType = models.EmploymentType(empType)
		out = append(out, q)
	}
	return out, rows.Err()
}

// --- vendors ---

// ListVendors returns the directory in match priority order.
func (s *Store) ListVendors(ctx context.Context) ([]models.VendorEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, company_name, domain, contact_email FROM vendors ORDER BY priority, created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.VendorEntry{}
	for rows.Next() {
		var v models.VendorEntry
		if err := rows.Scan(&v.ID, &v.CompanyName, &v.Domain, &v.ContactEmail); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) UpsertVendor(ctx context.Context, v models.VendorEntry, priority int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vendors (id, company_name, domain, contact_email, priority)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET company_name = EXCLUDED.company_name, domain = EXCLUDED.domain,
			contact_email = EXCLUDED.contact_email, priority = EXCLUDED.priority
	`, v.ID, v.CompanyName, strings.ToLower(v.Domain), v.ContactEmail, priority)
	return err
}

// --- runs ---

func (s *Store) SaveRun(ctx context.Context, run *models.IngestRun) error {
	providers, err := json.Marshal(run.Providers)
	if err != nil {
		return fmt.Errorf("encode provider stats: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ingest_runs (id, status, started_at, completed_at, fetched, inserted, updated, skipped, deduped, stale, expired, providers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, completed_at = EXCLUDED.completed_at,
			fetched = EXCLUDED.fetched, inserted = EXCLUDED.inserted, updated = EXCLUDED.updated,
			skipped = EXCLUDED.skipped, deduped = EXCLUDED.deduped,
			stale = EXCLUDED.stale, expired = EXCLUDED.expired, providers = EXCLUDED.providers
	`, run.ID, run.Status, run.StartedAt, run.CompletedAt, run.Fetched, run.Inserted, run.Updated,
		run.Skipped, run.Deduped, run.Stale, run.Expired, providers)
	return err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, started_at, completed_at, fetched, inserted, updated, skipped, deduped, stale, expired, providers
		FROM ingest_runs ORDER BY started_at DESC LIMIT $1
	`, clampLimit(limit, 10))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.IngestRun{}
	for rows.Next() {
		var (
			r         models.IngestRun
			providers []byte
		)
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &r.CompletedAt, &r.Fetched, &r.Inserted, &r.Updated,
			&r.Skipped, &r.Deduped, &r.Stale, &r.Expired, &providers); err != nil {
			return nil, err
		}
		if len(providers) > 0 {
			_ = json.Unmarshal(providers, &r.Providers)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- requisitions ---

func (s *Store) CreateRequisition(ctx context.Context, req *models.Requisition) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO requisitions (id, signal_id, created_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, req.ID, req.SignalID, req.CreatedBy, req.Notes, req.CreatedAt)
	switch pgCode(err) {
	case pgUniqueViolation:
		return ErrAlreadyConverted
	case pgForeignKeyViolation:
		return ErrNotFound
	}
	return err
}

// --- desk users ---

func (s *Store) CreateDeskUser(ctx context.Context, u *models.DeskUser) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO desk_users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if pgCode(err) == pgUniqueViolation {
		return ErrUserExists
	}
	return err
}

func (s *Store) GetDeskUserByEmail(ctx context.Context, email string) (*models.DeskUser, error) {
	var u models.DeskUser
	err := s.pool.QueryRow(ctx, `SELECT id, email, password_hash, created_at FROM desk_users WHERE lower(email) = lower($1)`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// --- diagnostics ---

var countedTables = []string{
	"market_signals", "canonical_records", "canonical_links", "spend_ledger",
	"qa_samples", "vendors", "ingest_runs", "requisitions", "desk_users",
}

func (s *Store) CountRows(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(countedTables))
	for _, table := range countedTables {
		var n int64
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}
