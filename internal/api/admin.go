package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/auth"
	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/ingest"
)

const (
	jobRunning   = "running"
	jobCompleted = "completed"
	jobFailed    = "failed"
)

// handleTriggerIngest starts one pipeline run in the background and returns
// 202 immediately. Only one run may be in flight.
func (s *Server) handleTriggerIngest(c echo.Context) error {
	if s.Pipeline == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "ingest pipeline not configured")
	}

	s.jobMu.Lock()
	if (s.runningJob != nil && s.runningJob.Status == jobRunning) || s.Pipeline.Running() {
		resp := map[string]any{"error": ingest.ErrRunInProgress.Error()}
		if s.runningJob != nil && s.runningJob.Status == jobRunning {
			resp["job_id"] = s.runningJob.ID
		}
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, resp)
	}

	// context.WithoutCancel detaches from the HTTP request; the job carries
	// its own deadline.
	jobCtx, jobCancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), s.jobTimeout)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Kind:      "ingest",
		Status:    jobRunning,
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		run, err := s.Pipeline.Run(jobCtx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if run != nil {
			job.Result = run
		}
		if err != nil {
			job.Status = jobFailed
			job.Error = err.Error()
			s.Logger.Warn("ingest job failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		job.Status = jobCompleted
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Ingest job started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return errorJSON(c, http.StatusNotFound, "job not found")
	}

	resp := map[string]any{
		"id":         job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRunQa(c echo.Context) error {
	if s.Sampler == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "qa sampler not configured")
	}
	res, err := s.Sampler.Run(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	s.Metrics.ObserveQA(res)
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleInvalidateVendors(c echo.Context) error {
	if s.Vendors != nil {
		s.Vendors.Invalidate()
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "vendor cache invalidated"})
}

// handleProbeSignal re-checks a signal's apply URL and records the result;
// a dead URL expires the signal.
func (s *Server) handleProbeSignal(c echo.Context) error {
	if s.Prober == nil || s.Lifecycle == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "prober not configured")
	}
	id, err := parseID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	sig, err := s.Store.GetSignal(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	status := s.Prober.Check(ctx, sig.ApplyURL)
	if err := s.Lifecycle.ApplyProbe(ctx, id, status); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	updated, err := s.Store.GetSignal(ctx, id)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleCreateUser(c echo.Context) error {
	if s.Auth == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "desk auth not configured")
	}
	var req auth.Credentials
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request")
	}

	user, err := s.Auth.CreateUser(c.Request().Context(), req)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		return errorJSON(c, http.StatusConflict, err.Error())
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, user)
}

func (s *Server) handleStats(c echo.Context) error {
	counts, err := s.Store.CountRows(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, counts)
}
