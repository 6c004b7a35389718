package dedup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/models"
)

func identity(source, externalID string) Identity {
	return Identity{
		Fields:     Fields{Title: "Java Developer", Company: "Acme", Location: "Austin, TX", Description: "Spring and Kafka."},
		Source:     source,
		ExternalID: externalID,
	}
}

func TestResolve_CreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	r := NewResolver(store)

	first, err := r.Resolve(ctx, identity("board-a", "1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !first.Created || !first.NewLink || first.Canonical.JobCount != 1 {
		t.Fatalf("unexpected first resolution: %+v", first)
	}

	second, err := r.Resolve(ctx, identity("board-b", "99"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if second.Created {
		t.Fatal("second source must reuse the canonical record")
	}
	if second.Canonical.ID != first.Canonical.ID {
		t.Fatalf("expected canonical %s, got %s", first.Canonical.ID, second.Canonical.ID)
	}
	if second.Canonical.JobCount != 2 {
		t.Fatalf("expected job count 2, got %d", second.Canonical.JobCount)
	}
}

func TestResolve_RefreshDoesNotDoubleCount(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	r := NewResolver(store)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(ctx, identity("board-a", "1")); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	res, err := r.Resolve(ctx, identity("board-a", "1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.NewLink {
		t.Fatal("refresh must not report a new link")
	}
	stored, _ := store.GetCanonical(ctx, res.Canonical.ID)
	if stored.JobCount != 1 {
		t.Fatalf("expected job count 1, got %d", stored.JobCount)
	}
}

func TestResolve_ConcurrentCreateSharesOneRecord(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	r := NewResolver(store)

	const n = 16
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(ctx, identity("board-a", fmt.Sprintf("ext-%d", i)))
			if err != nil {
				t.Errorf("resolve %d: %v", i, err)
				return
			}
			ids[i] = res.Canonical.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("expected one canonical record, got %s and %s", ids[0], ids[i])
		}
	}
	stored, _ := store.GetCanonical(ctx, ids[0])
	if stored.JobCount != n {
		t.Fatalf("expected job count %d, got %d", n, stored.JobCount)
	}
}

// flappingStore never finds the row it was just told exists.
type flappingStore struct {
	inserts int
}

func (f *flappingStore) GetCanonicalByFingerprint(context.Context, string) (*models.CanonicalRecord, error) {
	return nil, db.ErrNotFound
}

func (f *flappingStore) InsertCanonical(context.Context, *models.CanonicalRecord) error {
	f.inserts++
	return db.ErrDuplicateFingerprint
}

func (f *flappingStore) LinkCanonical(context.Context, uuid.UUID, string, string, time.Time) (bool, error) {
	return false, nil
}

func (f *flappingStore) TouchCanonical(context.Context, uuid.UUID, time.Time) error {
	return nil
}

func TestResolve_GivesUpAfterBoundedAttempts(t *testing.T) {
	store := &flappingStore{}
	_, err := NewResolver(store).Resolve(context.Background(), identity("board-a", "1"))
	if err == nil {
		t.Fatal("expected error")
	}
	if store.inserts != maxCreateAttempts {
		t.Fatalf("expected %d insert attempts, got %d", maxCreateAttempts, store.inserts)
	}
}
