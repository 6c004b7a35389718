package db

import "github.com/david/signal-desk/internal/models"

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SignalFilter selects persisted signals for downstream readers.
type SignalFilter struct {
	Status           models.SignalStatus
	Type             models.EmploymentType
	MinRealness      int
	MinActionability int
	FreshDays        int    // last seen within N days; 0 disables
	SortBy           string // "actionability" (default), "realness", "last_seen", "posted"
	Limit            int
	Offset           int
}

type SignalPage struct {
	Signals []models.MarketSignal `json:"signals"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// Normalize clamps paging to sane bounds.
func (f SignalFilter) Normalize() SignalFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	switch f.SortBy {
	case "realness", "last_seen", "posted", "actionability":
	default:
		f.SortBy = "actionability"
	}
	return f
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
