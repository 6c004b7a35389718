package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/auth"
	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/models"
)

const maxSpendDays = 90

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// parseSignalFilter reads list filters; malformed numbers are rejected
// rather than silently ignored.
func parseSignalFilter(c echo.Context) (db.SignalFilter, error) {
	var f db.SignalFilter

	if v := strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))); v != "" {
		switch models.SignalStatus(v) {
		case models.StatusActive, models.StatusStale, models.StatusExpired:
			f.Status = models.SignalStatus(v)
		default:
			return f, errors.New("invalid status")
		}
	}
	if v := strings.ToUpper(strings.TrimSpace(c.QueryParam("type"))); v != "" {
		switch t := models.EmploymentType(v); t {
		case models.TypeC2C, models.TypeW2, models.TypeW2_1099, models.TypeFullTime,
			models.TypePartTime, models.TypeContract, models.TypeUnknown:
			f.Type = t
		default:
			return f, errors.New("invalid type")
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"min_realness", &f.MinRealness},
		{"min_actionability", &f.MinActionability},
		{"fresh_days", &f.FreshDays},
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	}
	for _, p := range ints {
		raw := strings.TrimSpace(c.QueryParam(p.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errors.New("invalid " + p.name)
		}
		*p.dst = n
	}
	f.SortBy = c.QueryParam("sort")
	return f.Normalize(), nil
}

func (s *Server) handleListSignals(c echo.Context) error {
	f, err := parseSignalFilter(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	page, err := s.Store.ListSignals(c.Request().Context(), f)
	if err != nil {
		s.Logger.Error("failed to list signals", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, page)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func (s *Server) handleGetSignal(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	sig, err := s.Store.GetSignal(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Not found")
	}
	if err != nil {
		s.Logger.Error("failed to load signal", zap.String("id", id.String()), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, sig)
}

func (s *Server) handleGetCanonical(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	rec, err := s.Store.GetCanonical(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleSpend(c echo.Context) error {
	days := 7
	if raw := strings.TrimSpace(c.QueryParam("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSpendDays {
			return errorJSON(c, http.StatusBadRequest, "invalid days")
		}
		days = n
	}
	from := time.Now().UTC().AddDate(0, 0, -(days - 1)).Format("2006-01-02")

	entries, err := s.Store.ListLedger(c.Request().Context(), c.QueryParam("provider"), from)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"from": from, "entries": entries})
}

func queryLimit(c echo.Context, def int) int {
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		return n
	}
	return def
}

func (s *Server) handleQaSamples(c echo.Context) error {
	samples, err := s.Store.ListQaSamples(c.Request().Context(), queryLimit(c, 50))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, samples)
}

func (s *Server) handleRuns(c echo.Context) error {
	runs, err := s.Store.ListRuns(c.Request().Context(), queryLimit(c, 10))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleLogin(c echo.Context) error {
	if s.Auth == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "desk auth not configured")
	}
	var req auth.Credentials
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request")
	}

	resp, err := s.Auth.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return errorJSON(c, http.StatusUnauthorized, "Invalid credentials")
		}
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

type requisitionRequest struct {
	Notes string `json:"notes"`
}

// handleCreateRequisition converts a signal once; a repeat is a conflict.
func (s *Server) handleCreateRequisition(c echo.Context) error {
	createdBy := auth.GetUserEmailFromContext(c)
	if createdBy == "" {
		return errorJSON(c, http.StatusUnauthorized, "desk user required")
	}
	id, err := parseID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	var body requisitionRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request")
	}

	req := &models.Requisition{SignalID: id, CreatedBy: createdBy, Notes: strings.TrimSpace(body.Notes)}
	err = s.Store.CreateRequisition(c.Request().Context(), req)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "Not found")
	case errors.Is(err, db.ErrAlreadyConverted):
		return errorJSON(c, http.StatusConflict, err.Error())
	case err != nil:
		s.Logger.Error("failed to create requisition", zap.String("signal_id", id.String()), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}

	s.Logger.Info("signal converted to requisition",
		zap.String("signal_id", id.String()),
		zap.String("requisition_id", req.ID.String()),
		zap.String("created_by", createdBy),
	)
	return c.JSON(http.StatusCreated, req)
}
