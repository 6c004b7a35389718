package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/david/signal-desk/internal/config"
	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/ingest"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "JOBFEED_URL", "JOBFEED_API_KEY", "C2C_BOARD_URL", "ADMIN_SECRET", "JWT_SECRET"} {
		t.Setenv(k, "")
	}
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	return cfg
}

func TestOpen_FallsBackToMemoryStore(t *testing.T) {
	cfg := defaultConfig(t)

	a, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	if a.Pool != nil {
		t.Fatalf("expected no pool without a database url")
	}
	if _, ok := a.Store.(*db.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", a.Store)
	}
}

func TestWire_RunSkipsUnconfiguredProviders(t *testing.T) {
	cfg := defaultConfig(t)

	a, err := Wire(cfg, db.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}

	run, err := a.Pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != ingest.RunCompleted {
		t.Fatalf("status = %q", run.Status)
	}
	if len(run.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(run.Providers))
	}
	for _, p := range run.Providers {
		if !p.Skipped {
			t.Fatalf("provider %s ran without a base url", p.Provider)
		}
	}

	runs, err := a.Store.ListRuns(context.Background(), 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns = %d, %v", len(runs), err)
	}
}

func TestServer_ServesHealthAndMetrics(t *testing.T) {
	cfg := defaultConfig(t)
	a, err := Wire(cfg, db.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	srv, err := a.Server()
	if err != nil {
		t.Fatalf("Server: %v", err)
	}

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, rec.Code)
		}
	}
}
