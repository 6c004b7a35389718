package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/api"
	"github.com/david/signal-desk/internal/auth"
	"github.com/david/signal-desk/internal/config"
	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/ingest"
	"github.com/david/signal-desk/internal/lifecycle"
	"github.com/david/signal-desk/internal/metrics"
	"github.com/david/signal-desk/internal/probe"
	"github.com/david/signal-desk/internal/qa"
	"github.com/david/signal-desk/internal/scoring"
	"github.com/david/signal-desk/internal/spend"
	"github.com/david/signal-desk/internal/vendor"
)

// Store is everything the components persist through. Both db.Store and
// db.MemoryStore satisfy it.
type Store interface {
	ingest.Store
	api.Store
	lifecycle.Store
	spend.LedgerStore
	qa.Store
	vendor.Directory
	auth.UserStore
}

var (
	_ Store = (*db.Store)(nil)
	_ Store = (*db.MemoryStore)(nil)
)

// App holds the wired components shared by the server and the tools.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     Store
	Pool      *pgxpool.Pool // nil when running on the in-memory store
	Registry  *prometheus.Registry
	Metrics   *metrics.Recorder
	Guard     *spend.Guard
	Vendors   *vendor.Cache
	Lifecycle *lifecycle.Manager
	Prober    *probe.Prober
	Sampler   *qa.Sampler
	Pipeline  *ingest.Pipeline
	Auth      *auth.Service
}

// Open connects to Postgres when a database URL is configured, otherwise it
// falls back to the in-memory store, then wires every component.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store Store
		pool  *pgxpool.Pool
	)
	if url := cfg.DatabaseURL(); url != "" {
		p, err := db.Connect(ctx, url)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := db.ApplyMigrations(ctx, p, logger); err != nil {
				p.Close()
				return nil, fmt.Errorf("migration failed: %w", err)
			}
		}
		pool, store = p, db.NewStore(p)
	} else {
		logger.Warn("no database configured; using in-memory store")
		store = db.NewMemoryStore()
	}

	a, err := Wire(cfg, store, logger)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}
	a.Pool = pool
	return a, nil
}

// Wire builds every component on top of store.
func Wire(cfg *config.Config, store Store, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(metrics.NewSpendCollector(store, logger))
	rec := metrics.New(reg)

	providers, err := ingest.BuildProviders(ingest.DefaultFactory, cfg.Providers, cfg.Ingest.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	authSvc, err := auth.NewService(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
	if err != nil {
		return nil, err
	}

	guard := spend.NewGuard(store, cfg.Spend, rec, logger.Named("spend"))
	vendors := vendor.NewCache(store, cfg.Vendors.CacheTTL, logger.Named("vendor"))
	life := lifecycle.NewManager(store, cfg.Lifecycle.StaleWindow, logger.Named("lifecycle"))
	prober := probe.New(cfg.QA.ProbeTimeout)

	pipeline := ingest.NewPipeline(ingest.Deps{
		Store:         store,
		Providers:     providers,
		Guard:         guard,
		Matcher:       vendor.NewMatcher(vendors),
		Realness:      scoring.NewRealness(cfg.Scoring.FreshnessTiers),
		Actionability: scoring.NewActionability(),
		Lifecycle:     life,
		Observer:      rec,
		Logger:        logger.Named("ingest"),
		FetchTimeout:  cfg.Ingest.FetchTimeout,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Registry:  reg,
		Metrics:   rec,
		Guard:     guard,
		Vendors:   vendors,
		Lifecycle: life,
		Prober:    prober,
		Sampler:   qa.NewSampler(store, prober, cfg.QA.SampleSize, logger.Named("qa")),
		Pipeline:  pipeline,
		Auth:      authSvc,
	}, nil
}

// Server builds the HTTP surface over the wired components.
func (a *App) Server() (*api.Server, error) {
	return api.NewServer(api.Deps{
		Store:       a.Store,
		Pipeline:    a.Pipeline,
		Sampler:     a.Sampler,
		Lifecycle:   a.Lifecycle,
		Prober:      a.Prober,
		Vendors:     a.Vendors,
		Auth:        a.Auth,
		Metrics:     a.Metrics,
		Gatherer:    a.Registry,
		AdminSecret: a.Config.Server.AdminSecret,
		CORSOrigins: a.Config.Server.CORSOrigins,
		Logger:      a.Logger.Named("api"),
	})
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
