package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EmploymentType string

const (
	TypeC2C      EmploymentType = "C2C"
	TypeW2       EmploymentType = "W2"
	TypeW2_1099  EmploymentType = "W2_1099"
	TypeFullTime EmploymentType = "FULLTIME"
	TypePartTime EmploymentType = "PARTTIME"
	TypeContract EmploymentType = "CONTRACT"
	TypeUnknown  EmploymentType = "UNKNOWN"
)

type CompPeriod string

const (
	PeriodHour    CompPeriod = "HOUR"
	PeriodDay     CompPeriod = "DAY"
	PeriodWeek    CompPeriod = "WEEK"
	PeriodMonth   CompPeriod = "MONTH"
	PeriodYear    CompPeriod = "YEAR"
	PeriodUnknown CompPeriod = "UNKNOWN"
)

type SignalStatus string

const (
	StatusActive  SignalStatus = "ACTIVE"
	StatusStale   SignalStatus = "STALE"
	StatusExpired SignalStatus = "EXPIRED"
)

// URLStatus is the three-valued liveness result plus "unknown".
type URLStatus string

const (
	URLAlive    URLStatus = "ALIVE"
	URLDead     URLStatus = "DEAD"
	URLRedirect URLStatus = "REDIRECT"
	URLUnknown  URLStatus = "UNKNOWN"
)

type QaVerdict string

const (
	VerdictPass      QaVerdict = "PASS"
	VerdictFail      QaVerdict = "FAIL"
	VerdictBogus     QaVerdict = "BOGUS"
	VerdictHarvest   QaVerdict = "HARVEST"
	VerdictStale     QaVerdict = "STALE"
	VerdictDuplicate QaVerdict = "DUPLICATE"
)

// RawSignal is one record as returned by a provider. It is never stored.
type RawSignal struct {
	Title        string
	Company      string
	Description  string
	Location     string
	LocationType string // remote/hybrid/onsite
	ApplyURL     string
	SourceURL    string
	PostedAt     *time.Time
	ExpiresAt    *time.Time

	SalaryMin  *float64
	SalaryMax  *float64
	SalaryText string

	RecruiterName  string
	RecruiterEmail string
	RecruiterPhone string

	Source     string
	ExternalID string
	URLStatus  URLStatus // precomputed by a liveness probe, empty when unknown
	RawPayload json.RawMessage
}

// MarketSignal is the persisted unit, one per (Source, ExternalID).
type MarketSignal struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	ExternalID string    `json:"external_id"`

	Title           string     `json:"title"`
	Company         string     `json:"company"`
	Description     string     `json:"description"`
	DescriptionHTML string     `json:"description_html,omitempty"`
	Location        string     `json:"location"`
	LocationType    string     `json:"location_type"`
	ApplyURL        string     `json:"apply_url"`
	SourceURL       string     `json:"source_url"`
	PostedAt        *time.Time `json:"posted_at"`
	ExpiresAt       *time.Time `json:"expires_at"`
	RecruiterName   string     `json:"recruiter_name"`
	RecruiterEmail  string     `json:"recruiter_email"`
	RecruiterPhone  string     `json:"recruiter_phone"`

	EmploymentType  EmploymentType `json:"employment_type"`
	Confidence      float64        `json:"confidence"`
	MatchedKeywords []string       `json:"matched_keywords"`
	NegativeSignals []string       `json:"negative_signals"`

	RateText   *string    `json:"rate_text"`
	RateMin    *float64   `json:"rate_min"`
	RateMax    *float64   `json:"rate_max"`
	CompPeriod CompPeriod `json:"comp_period"`
	HourlyMin  *float64   `json:"hourly_min"`
	HourlyMax  *float64   `json:"hourly_max"`

	Skills []string `json:"skills"`

	RealnessScore        int      `json:"realness_score"`
	RealnessReasons      []string `json:"realness_reasons"`
	ActionabilityScore   int      `json:"actionability_score"`
	ActionabilityReasons []string `json:"actionability_reasons"`

	VendorID          string `json:"vendor_id,omitempty"`
	VendorMatchMethod string `json:"vendor_match_method,omitempty"`
	VendorDomain      string `json:"vendor_domain,omitempty"`

	CanonicalID uuid.UUID `json:"canonical_id"`
	Fingerprint string    `json:"fingerprint"`

	Status      SignalStatus `json:"status"`
	URLStatus   URLStatus    `json:"url_status"`
	FirstSeenAt time.Time    `json:"first_seen_at"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	RawPayload json.RawMessage `json:"-"`
}

// CanonicalRecord is the shared cross-source entity a fingerprint resolves to.
type CanonicalRecord struct {
	ID          uuid.UUID `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	ApplyURL    string    `json:"apply_url"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	JobCount    int       `json:"job_count"`
}

type VendorEntry struct {
	ID           string `json:"id"`
	CompanyName  string `json:"company_name"`
	Domain       string `json:"domain"`
	ContactEmail string `json:"contact_email"`
}

// SpendLedgerEntry is keyed by (Provider, Date); Date is YYYY-MM-DD in UTC.
type SpendLedgerEntry struct {
	Provider           string    `json:"provider"`
	Date               string    `json:"date"`
	RequestsMade       int       `json:"requests_made"`
	NewRecordsIngested int       `json:"new_records_ingested"`
	RequestCap         int       `json:"request_cap"`
	RecordCap          int       `json:"record_cap"`
	AlertFired         bool      `json:"alert_fired"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// QaSample is an immutable audit row.
type QaSample struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	SignalID  uuid.UUID `json:"signal_id"`
	SampledAt time.Time `json:"sampled_at"`

	URLCheck                URLStatus `json:"url_check"`
	ClassificationPlausible bool      `json:"classification_plausible"`
	IsDuplicate             bool      `json:"is_duplicate"`
	IsBogus                 bool      `json:"is_bogus"`
	HasContact              bool      `json:"has_contact"`
	IsFresh                 bool      `json:"is_fresh"`

	Verdict QaVerdict `json:"verdict"`

	RealnessScore      int            `json:"realness_score"`
	ActionabilityScore int            `json:"actionability_score"`
	EmploymentType     EmploymentType `json:"employment_type"`
	Confidence         float64        `json:"confidence"`
}

// Requisition records the one-way conversion of a signal into internal work.
type Requisition struct {
	ID        uuid.UUID `json:"id"`
	SignalID  uuid.UUID `json:"signal_id"`
	CreatedBy string    `json:"created_by"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type ProviderRunStats struct {
	Provider string `json:"provider"`
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Rejected int    `json:"rejected"`
	Failed   int    `json:"failed"`
	Deduped  int    `json:"deduped"`
	Error    string `json:"error,omitempty"`
}

// IngestRun is the run-level counter surface of one orchestrator pass.
type IngestRun struct {
	ID          uuid.UUID          `json:"id"`
	Status      string             `json:"status"` // running, completed, failed
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at"`
	Fetched     int                `json:"fetched"`
	Inserted    int                `json:"inserted"`
	Updated     int                `json:"updated"`
	Skipped     int                `json:"skipped"`
	Deduped     int                `json:"deduped"`
	Stale       int64              `json:"stale"`
	Expired     int64              `json:"expired"`
	Providers   []ProviderRunStats `json:"providers"`
}

// DeskUser is a staffing desk operator who may convert signals.
type DeskUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
