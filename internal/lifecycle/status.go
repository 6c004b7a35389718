package lifecycle

import (
	"time"

	"github.com/david/signal-desk/internal/models"
)

const DefaultStaleWindow = 14 * 24 * time.Hour

// Decision is the status a record should have at a point in time.
type Decision struct {
	Status models.SignalStatus
	Reason string
}

// Evaluate computes the time-driven status of a record. An explicit expiry
// always wins over staleness; EXPIRED never moves back.
func Evaluate(current models.SignalStatus, lastSeen time.Time, expiresAt *time.Time, now time.Time, window time.Duration) Decision {
	now = now.UTC()
	if window <= 0 {
		window = DefaultStaleWindow
	}

	if current == models.StatusExpired {
		return Decision{Status: models.StatusExpired, Reason: "already_expired"}
	}

	if expiresAt != nil {
		if expiresAt.Before(now) {
			return Decision{Status: models.StatusExpired, Reason: "expiry_passed"}
		}
		return Decision{Status: current, Reason: "expiry_in_future"}
	}

	if current == models.StatusActive && now.Sub(lastSeen) > window {
		return Decision{Status: models.StatusStale, Reason: "not_seen_within_window"}
	}

	return Decision{Status: current, Reason: "unchanged"}
}

// ForProbe maps a liveness result to a forced status, if any. Only a
// confirmed dead URL forces a transition.
func ForProbe(status models.URLStatus) (models.SignalStatus, bool) {
	if status == models.URLDead {
		return models.StatusExpired, true
	}
	return "", false
}
