package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/models"
)

const maxCreateAttempts = 3

// Store is the canonical-record persistence the resolver needs.
//
// InsertCanonical must fail with db.ErrDuplicateFingerprint when the
// fingerprint already exists. LinkCanonical attaches (source, externalID) to a
// canonical record and reports whether the link is new; only a new link
// increments the record's job count.
type Store interface {
	GetCanonicalByFingerprint(ctx context.Context, fingerprint string) (*models.CanonicalRecord, error)
	InsertCanonical(ctx context.Context, rec *models.CanonicalRecord) error
	LinkCanonical(ctx context.Context, canonicalID uuid.UUID, source, externalID string, seenAt time.Time) (bool, error)
	TouchCanonical(ctx context.Context, canonicalID uuid.UUID, seenAt time.Time) error
}

// Identity is one signal occurrence to resolve.
type Identity struct {
	Fields
	Source     string
	ExternalID string
}

// Resolution is the canonical record an identity resolved to.
type Resolution struct {
	Canonical   *models.CanonicalRecord
	Fingerprint string
	Created     bool // a new canonical record was inserted
	NewLink     bool // (source, externalID) was attached for the first time
}

// Resolver maps signals to canonical records by fingerprint.
type Resolver struct {
	store Store
	now   func() time.Time
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// Resolve looks up or creates the canonical record for id. Concurrent
// creation of the same fingerprint is settled by the store's uniqueness
// constraint: the loser re-reads the winner's row.
func (r *Resolver) Resolve(ctx context.Context, id Identity) (*Resolution, error) {
	fp := Fingerprint(id.Fields)
	now := r.now().UTC()

	var (
		rec     *models.CanonicalRecord
		created bool
	)
	for attempt := 0; attempt < maxCreateAttempts && rec == nil; attempt++ {
		existing, err := r.store.GetCanonicalByFingerprint(ctx, fp)
		if err == nil {
			rec = existing
			break
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("lookup canonical: %w", err)
		}

		candidate := &models.CanonicalRecord{
			ID:          uuid.New(),
			Fingerprint: fp,
			Title:       id.Title,
			Company:     id.Company,
			Location:    id.Location,
			ApplyURL:    id.ApplyURL,
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
		err = r.store.InsertCanonical(ctx, candidate)
		switch {
		case err == nil:
			rec, created = candidate, true
		case errors.Is(err, db.ErrDuplicateFingerprint):
			continue
		default:
			return nil, fmt.Errorf("insert canonical: %w", err)
		}
	}
	if rec == nil {
		return nil, fmt.Errorf("resolve fingerprint %s: gave up after %d attempts", fp, maxCreateAttempts)
	}

	if !created {
		if err := r.store.TouchCanonical(ctx, rec.ID, now); err != nil {
			return nil, fmt.Errorf("touch canonical: %w", err)
		}
		rec.LastSeenAt = now
	}

	newLink, err := r.store.LinkCanonical(ctx, rec.ID, id.Source, id.ExternalID, now)
	if err != nil {
		return nil, fmt.Errorf("link canonical: %w", err)
	}
	if newLink {
		rec.JobCount++
	}

	return &Resolution{Canonical: rec, Fingerprint: fp, Created: created, NewLink: newLink}, nil
}
