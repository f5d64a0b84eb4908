package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/storage"
	"go.uber.org/zap"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type CompleteResponse struct {
	TaskID        string `json:"task_id"`
	Completed     bool   `json:"completed"`
	UpstreamError string `json:"upstream_error,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleTop(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	items, err := s.svc.Top(c.Request().Context(), limit)
	if err != nil {
		return s.fail(c, err)
	}
	out := make([]TaskView, 0, len(items))
	for _, item := range items {
		out = append(out, scoredView(item))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleEnergy(c echo.Context) error {
	level, err := model.ParseEnergyLevel(c.Param("level"))
	if err != nil {
		return s.fail(c, err)
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	items, err := s.svc.MatchEnergy(c.Request().Context(), level, limit)
	if err != nil {
		return s.fail(c, err)
	}
	out := make([]EnergyView, 0, len(items))
	for _, m := range items {
		out = append(out, EnergyView{TaskView: scoredView(m.Scored), Distance: m.Distance, Exact: m.Exact()})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleStale(c echo.Context) error {
	items, err := s.svc.Stale(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	out := make([]StaleView, 0, len(items))
	for _, st := range items {
		out = append(out, staleView(st))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleVague(c echo.Context) error {
	items, err := s.svc.Vague(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	out := make([]VagueView, 0, len(items))
	for _, v := range items {
		out = append(out, vagueView(v))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleUnstuck(c echo.Context) error {
	refresh, _ := strconv.ParseBool(c.QueryParam("refresh"))
	help, err := s.svc.Unstuck(c.Request().Context(), c.Param("id"), refresh)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, UnstuckView{TaskID: c.Param("id"), Unstuck: help})
}

func (s *Server) handleClarifyingQuestions(c echo.Context) error {
	report, err := s.svc.ClarifyingQuestions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

type AnswersRequest struct {
	Answers map[string]string `json:"answers"`
}

func (s *Server) handleClarifyingAnswers(c echo.Context) error {
	var req AnswersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	saved, err := s.svc.SaveClarifyingAnswers(c.Request().Context(), c.Param("id"), req.Answers)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleDaily(c echo.Context) error {
	review, err := s.svc.Daily(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, dailyView(review))
}

type EnergyLogRequest struct {
	Level string `json:"energy_level"`
	Focus string `json:"focus_quality"`
}

func (s *Server) handleLogEnergy(c echo.Context) error {
	var req EnergyLogRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	level, err := model.ParseEnergyLevel(req.Level)
	if err != nil {
		return s.fail(c, err)
	}
	focus, err := model.ParseFocusQuality(req.Focus)
	if err != nil {
		return s.fail(c, err)
	}
	logged, err := s.svc.LogEnergy(c.Request().Context(), level, focus)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, logged)
}

func (s *Server) handleCurrentEnergy(c echo.Context) error {
	rec, err := s.svc.CurrentEnergy(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleEnergyPatterns(c echo.Context) error {
	days := 0
	if raw := strings.TrimSpace(c.QueryParam("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = n
	}
	p, err := s.svc.EnergyPatterns(c.Request().Context(), days)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleTask(c echo.Context) error {
	in, err := s.svc.Insight(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, insightView(in))
}

// handleLink never fails: the resolver degrades instead.
func (s *Server) handleLink(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.ResolveLink(c.Request().Context(), c.Param("id")))
}

func (s *Server) handleComplete(c echo.Context) error {
	id := c.Param("id")
	upstream, _ := strconv.ParseBool(c.QueryParam("upstream"))
	err := s.svc.MarkComplete(c.Request().Context(), id, upstream)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, CompleteResponse{TaskID: id, Completed: true})
	case errors.Is(err, service.ErrUpstream):
		return c.JSON(http.StatusOK, CompleteResponse{TaskID: id, Completed: true, UpstreamError: err.Error()})
	default:
		return s.fail(c, err)
	}
}

func (s *Server) handleSync(c echo.Context) error {
	report, err := s.svc.Sync(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleBackfill(c echo.Context) error {
	report, err := s.svc.BackfillProjectIDs(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func queryLimit(c echo.Context) (int, error) {
	raw := strings.TrimSpace(c.QueryParam("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
	}
	return n, nil
}

// fail maps domain errors onto status codes. Unknown errors are logged and
// reported without detail.
func (s *Server) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	case errors.Is(err, model.ErrInvalidEnergy), errors.Is(err, model.ErrInvalidFocus), errors.Is(err, service.ErrNoAnswers):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotStale):
		return echo.NewHTTPError(http.StatusConflict, "task is not stale")
	case errors.Is(err, service.ErrNoSource):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "task source not configured")
	case errors.Is(err, service.ErrNoAdvisor):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "reasoning service not configured")
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	}
	s.logger.Error("request failed",
		zap.String("path", c.Path()),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Error(err),
	)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
