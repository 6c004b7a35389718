package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/david/signal-desk/internal/models"
)

// Provider is a source of raw job postings. Transport and auth are its own
// business; the orchestrator only asks whether it is usable and for a batch.
type Provider interface {
	Name() string
	IsConfigured() bool
	FetchJobs(ctx context.Context, queries []string) ([]models.RawSignal, error)
}

// ProviderConfig defines a single provider in the configured order.
type ProviderConfig struct {
	ID           string   `yaml:"id"`
	Kind         string   `yaml:"kind"` // "json_feed", "html_board"
	BaseURL      string   `yaml:"base_url"`
	APIKey       string   `yaml:"api_key,omitempty"`
	APIKeyHeader string   `yaml:"api_key_header,omitempty"`
	QueryParam   string   `yaml:"query_param,omitempty"` // default "q"
	Queries      []string `yaml:"queries,omitempty"`
	RateLimitRPS float64  `yaml:"rate_limit_rps,omitempty"`
	Disabled     bool     `yaml:"disabled,omitempty"`

	// For html_board
	Selectors  SelectorConfig   `yaml:"selectors,omitempty"`
	Pagination PaginationConfig `yaml:"pagination,omitempty"`
	MaxPages   int              `yaml:"max_pages,omitempty"`
}

type PaginationConfig struct {
	Next string `yaml:"next,omitempty"` // CSS selector for the next page link
}

// SelectorConfig holds CSS selectors relative to each listing container.
type SelectorConfig struct {
	Container   string `yaml:"container,omitempty"`
	Link        string `yaml:"link,omitempty"`
	LinkAttr    string `yaml:"link_attr,omitempty"` // default href
	Title       string `yaml:"title,omitempty"`
	Company     string `yaml:"company,omitempty"`
	Location    string `yaml:"location,omitempty"`
	Description string `yaml:"description,omitempty"`
	Salary      string `yaml:"salary,omitempty"`
	Posted      string `yaml:"posted,omitempty"`
	Email       string `yaml:"email,omitempty"`
	ID          string `yaml:"id,omitempty"`
	IDAttr      string `yaml:"id_attr,omitempty"`
}

// Builder constructs a provider of one kind.
type Builder func(cfg ProviderConfig, timeout time.Duration) (Provider, error)

// ProviderFactory maps provider kinds (from the config file) to builders.
type ProviderFactory struct {
	builders map[string]Builder
}

func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{builders: make(map[string]Builder)}
}

func (f *ProviderFactory) Register(kind string, b Builder) {
	f.builders[kind] = b
}

func (f *ProviderFactory) Kinds() []string {
	out := make([]string, 0, len(f.builders))
	for k := range f.builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *ProviderFactory) Build(cfg ProviderConfig, timeout time.Duration) (Provider, error) {
	b, ok := f.builders[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("provider kind not found: %s", cfg.Kind)
	}
	return b(cfg, timeout)
}

// Global factory instance
var DefaultFactory = NewProviderFactory()

func init() {
	DefaultFactory.Register(KindJSONFeed, func(cfg ProviderConfig, timeout time.Duration) (Provider, error) {
		return NewJSONFeedProvider(cfg, NewFetcher(timeout, WithRateLimit(cfg.RateLimitRPS, 1))), nil
	})
	DefaultFactory.Register(KindHTMLBoard, func(cfg ProviderConfig, timeout time.Duration) (Provider, error) {
		return NewHTMLBoardProvider(cfg, NewFetcher(timeout, WithRateLimit(cfg.RateLimitRPS, 1)))
	})
}

// Entry pairs a provider with the queries it is asked for each run.
type Entry struct {
	Provider Provider
	Queries  []string
}

// BuildProviders turns the configured list into entries, preserving order and
// dropping disabled providers.
func BuildProviders(factory *ProviderFactory, cfgs []ProviderConfig, timeout time.Duration) ([]Entry, error) {
	seen := make(map[string]struct{}, len(cfgs))
	var out []Entry
	for _, c := range cfgs {
		if c.Disabled {
			continue
		}
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, fmt.Errorf("provider of kind %q has no id", c.Kind)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", id)
		}
		seen[id] = struct{}{}

		p, err := factory.Build(c, timeout)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", id, err)
		}
		out = append(out, Entry{Provider: p, Queries: c.Queries})
	}
	return out, nil
}
