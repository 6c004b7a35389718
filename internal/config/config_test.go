package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Lifecycle.StaleWindow != 14*24*time.Hour {
		t.Fatalf("expected 14 day window, got %v", cfg.Lifecycle.StaleWindow)
	}
	if cfg.QA.SampleSize != 20 || cfg.Vendors.CacheTTL != 5*time.Minute || cfg.Ingest.FetchTimeout != 10*time.Second {
		t.Fatalf("unexpected tunables: %+v %+v %+v", cfg.QA, cfg.Vendors, cfg.Ingest)
	}
	if len(cfg.Scoring.FreshnessTiers) != 3 || cfg.Scoring.FreshnessTiers[0].MaxAge != 6*time.Hour {
		t.Fatalf("unexpected tiers: %+v", cfg.Scoring.FreshnessTiers)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0].ID != "jobfeed" || cfg.Providers[1].Kind != "html_board" {
		t.Fatalf("unexpected providers: %+v", cfg.Providers)
	}
	if cfg.Spend.Providers["c2cboard"].WeeklyRequests != 250 {
		t.Fatalf("expected weekly override, got %+v", cfg.Spend.Providers["c2cboard"])
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SD_TEST_KEY", "k-123")
	cfg, err := Parse([]byte(`
spend:
  defaults: { daily_requests: 10, daily_records: 10 }
providers:
  - id: feed
    kind: json_feed
    base_url: https://feed.example
    api_key: ${SD_TEST_KEY}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Providers[0].APIKey != "k-123" {
		t.Fatalf("expected expanded key, got %q", cfg.Providers[0].APIKey)
	}
	if cfg.Server.Port != "8080" || cfg.Spend.AlertThreshold != 0.8 {
		t.Fatalf("expected defaults filled, got %+v", cfg)
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
spend:
  alert_threshold: 1.5
providers:
  - kind: json_feed
  - id: a
    kind: html_board
  - id: a
    kind: fax
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"spend.defaults", "alert_threshold", "id is required", "container and title", "duplicate id", "unknown kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.yaml")
	if err := os.WriteFile(path, []byte("spend:\n  defaults: { daily_requests: 1, daily_records: 1 }\nlifecycle:\n  stale_window: 48h\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Lifecycle.StaleWindow != 48*time.Hour {
		t.Fatalf("expected 48h, got %v", cfg.Lifecycle.StaleWindow)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}
