package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/auth"
	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/ingest"
	"github.com/david/signal-desk/internal/lifecycle"
	"github.com/david/signal-desk/internal/metrics"
	"github.com/david/signal-desk/internal/models"
	"github.com/david/signal-desk/internal/qa"
)

// Store is the read side the HTTP surface serves from, plus requisitions.
type Store interface {
	ListSignals(ctx context.Context, f db.SignalFilter) (*db.SignalPage, error)
	GetSignal(ctx context.Context, id uuid.UUID) (*models.MarketSignal, error)
	GetCanonical(ctx context.Context, id uuid.UUID) (*models.CanonicalRecord, error)
	ListLedger(ctx context.Context, provider, fromDate string) ([]models.SpendLedgerEntry, error)
	ListQaSamples(ctx context.Context, limit int) ([]models.QaSample, error)
	ListRuns(ctx context.Context, limit int) ([]models.IngestRun, error)
	CreateRequisition(ctx context.Context, req *models.Requisition) error
	CountRows(ctx context.Context) (map[string]int64, error)
}

// VendorCache is invalidated after directory edits.
type VendorCache interface {
	Invalidate()
}

type Deps struct {
	Store       Store
	Pipeline    *ingest.Pipeline
	Sampler     *qa.Sampler
	Lifecycle   *lifecycle.Manager
	Prober      qa.Prober
	Vendors     VendorCache
	Auth        *auth.Service
	Metrics     *metrics.Recorder
	Gatherer    prometheus.Gatherer
	AdminSecret string
	CORSOrigins []string
	Logger      *zap.Logger
}

type Server struct {
	Deps
	Echo *echo.Echo

	adminSecret string

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
	jobTimeout time.Duration
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

func NewServer(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	secret := strings.TrimSpace(d.AdminSecret)
	if secret == "" {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate admin secret fallback: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(buf)
		d.Logger.Warn("admin secret is not set; using ephemeral in-memory fallback secret")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: logRequest(d.Logger),
	}))

	origins := []string{"http://localhost:4200"}
	for _, o := range d.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{Deps: d, Echo: e, adminSecret: secret, jobTimeout: 30 * time.Minute}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))

	api := s.Echo.Group("/api/v1")
	api.GET("/signals", s.handleListSignals)
	api.GET("/signals/:id", s.handleGetSignal)
	api.GET("/canonical/:id", s.handleGetCanonical)
	api.GET("/spend", s.handleSpend)
	api.GET("/qa/samples", s.handleQaSamples)
	api.GET("/runs", s.handleRuns)

	// Auth Routes
	api.POST("/auth/login", s.handleLogin)

	// Desk routes need a desk user's token
	var desk []echo.MiddlewareFunc
	if s.Auth != nil {
		desk = append(desk, s.Auth.Middleware)
	}
	api.POST("/signals/:id/requisition", s.handleCreateRequisition, desk...)

	// Admin Routes
	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/ingest", s.handleTriggerIngest)
	admin.GET("/job/:id", s.handleJobStatus)
	admin.POST("/qa/run", s.handleRunQa)
	admin.POST("/vendors/invalidate", s.handleInvalidateVendors)
	admin.POST("/signals/:id/probe", s.handleProbeSignal)
	admin.POST("/users", s.handleCreateUser)
	admin.GET("/stats", s.handleStats)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// Shutdown stops the listener and cancels any background job.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Cancel != nil {
		s.runningJob.Cancel()
	}
	s.jobMu.Unlock()
	return s.Echo.Shutdown(ctx)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Check X-Admin-Secret header or Bearer token
		candidate := c.Request().Header.Get("X-Admin-Secret")
		if candidate == "" {
			authHeader := c.Request().Header.Get("Authorization")
			if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
				candidate = authHeader[7:]
			}
		}
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(s.adminSecret)) == 1 {
			return next(c)
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func logRequest(logger *zap.Logger) func(echo.Context, middleware.RequestLoggerValues) error {
	return func(_ echo.Context, v middleware.RequestLoggerValues) error {
		fields := []zap.Field{
			zap.String("method", v.Method),
			zap.String("uri", v.URI),
			zap.Int("status", v.Status),
			zap.Duration("latency", v.Latency),
		}
		if v.Error != nil {
			logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
			return nil
		}
		logger.Debug("request", fields...)
		return nil
	}
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}
