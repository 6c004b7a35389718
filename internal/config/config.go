package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/david/signal-desk/internal/ingest"
	"github.com/david/signal-desk/internal/lifecycle"
	"github.com/david/signal-desk/internal/qa"
	"github.com/david/signal-desk/internal/scoring"
	"github.com/david/signal-desk/internal/spend"
	"github.com/david/signal-desk/internal/vendor"
)

//go:embed default.yaml
var defaultYAML []byte

// Config is the whole tunable surface. Secrets come in through ${ENV}
// references inside the YAML file.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Database  DatabaseConfig          `yaml:"database"`
	Log       LogConfig               `yaml:"log"`
	Auth      AuthConfig              `yaml:"auth"`
	Ingest    IngestConfig            `yaml:"ingest"`
	Lifecycle LifecycleConfig         `yaml:"lifecycle"`
	QA        QAConfig                `yaml:"qa"`
	Vendors   VendorConfig            `yaml:"vendors"`
	Scoring   ScoringConfig           `yaml:"scoring"`
	Spend     spend.Config            `yaml:"spend"`
	Providers []ingest.ProviderConfig `yaml:"providers"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	AdminSecret string   `yaml:"admin_secret"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

type LogConfig struct {
	JSON  bool `yaml:"json"`
	Debug bool `yaml:"debug"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type IngestConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	Interval     time.Duration `yaml:"interval"` // 0 disables the built-in schedule
}

type LifecycleConfig struct {
	StaleWindow time.Duration `yaml:"stale_window"`
}

type QAConfig struct {
	SampleSize   int           `yaml:"sample_size"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

type VendorConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type ScoringConfig struct {
	FreshnessTiers []scoring.FreshnessTier `yaml:"freshness_tiers"`
}

// Default returns the embedded configuration.
func Default() (*Config, error) {
	return Parse(defaultYAML)
}

// Load reads path, or the embedded default when path is empty.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${ENV} references, decodes, fills defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Ingest.FetchTimeout <= 0 {
		c.Ingest.FetchTimeout = ingest.DefaultFetchTimeout
	}
	if c.Lifecycle.StaleWindow <= 0 {
		c.Lifecycle.StaleWindow = lifecycle.DefaultStaleWindow
	}
	if c.QA.SampleSize <= 0 {
		c.QA.SampleSize = qa.DefaultSampleSize
	}
	if c.QA.ProbeTimeout <= 0 {
		c.QA.ProbeTimeout = ingest.DefaultFetchTimeout
	}
	if c.Vendors.CacheTTL <= 0 {
		c.Vendors.CacheTTL = vendor.DefaultTTL
	}
	if len(c.Scoring.FreshnessTiers) == 0 {
		c.Scoring.FreshnessTiers = append([]scoring.FreshnessTier(nil), scoring.DefaultFreshnessTiers...)
	}
	if c.Spend.AlertThreshold == 0 {
		c.Spend.AlertThreshold = spend.DefaultAlertThreshold
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Spend.Defaults.DailyRequests <= 0 || c.Spend.Defaults.DailyRecords <= 0 {
		errs = append(errs, errors.New("spend.defaults: daily_requests and daily_records must be positive"))
	}
	if c.Spend.AlertThreshold <= 0 || c.Spend.AlertThreshold > 1 {
		errs = append(errs, fmt.Errorf("spend.alert_threshold must be in (0,1], got %v", c.Spend.AlertThreshold))
	}
	for name, caps := range c.Spend.Providers {
		if caps.DailyRequests < 0 || caps.DailyRecords < 0 || caps.WeeklyRequests < 0 {
			errs = append(errs, fmt.Errorf("spend.providers.%s: caps must not be negative", name))
		}
	}
	for i, t := range c.Scoring.FreshnessTiers {
		if t.MaxAge <= 0 || t.Points < 0 {
			errs = append(errs, fmt.Errorf("scoring.freshness_tiers[%d]: max_age must be positive and points non-negative", i))
		}
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.ID) == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: id is required", i))
			continue
		}
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID] = struct{}{}
		switch p.Kind {
		case ingest.KindJSONFeed:
		case ingest.KindHTMLBoard:
			if p.Selectors.Container == "" || p.Selectors.Title == "" {
				errs = append(errs, fmt.Errorf("providers[%d] %s: html_board needs container and title selectors", i, p.ID))
			}
		default:
			errs = append(errs, fmt.Errorf("providers[%d] %s: unknown kind %q", i, p.ID, p.Kind))
		}
	}
	return errors.Join(errs...)
}

// DatabaseURL prefers the config value, then DATABASE_URL.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}
