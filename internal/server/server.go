// Package server exposes the task queries and commands over HTTP for the web
// dashboard.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
	"github.com/sandeepkv93/taskpilot/internal/clarity"
	"github.com/sandeepkv93/taskpilot/internal/energy"
	"github.com/sandeepkv93/taskpilot/internal/links"
	"github.com/sandeepkv93/taskpilot/internal/matcher"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
	"go.uber.org/zap"
)

// TaskService is the subset of service.Service the API serves.
type TaskService interface {
	Top(ctx context.Context, limit int) ([]scoring.Scored, error)
	MatchEnergy(ctx context.Context, level model.EnergyLevel, limit int) ([]matcher.Match, error)
	Stale(ctx context.Context) ([]staleness.Stale, error)
	Insight(ctx context.Context, taskID string) (model.Insight, error)
	ResolveLink(ctx context.Context, taskID string) links.Link
	MarkComplete(ctx context.Context, taskID string, upstream bool) error
	Sync(ctx context.Context) (service.SyncReport, error)
	BackfillProjectIDs(ctx context.Context) (service.BackfillReport, error)
	Unstuck(ctx context.Context, taskID string, refresh bool) (model.Unstuck, error)
	Vague(ctx context.Context) ([]clarity.Vague, error)
	ClarifyingQuestions(ctx context.Context, taskID string) (service.ClarityReport, error)
	SaveClarifyingAnswers(ctx context.Context, taskID string, answers map[string]string) (model.Clarification, error)
	Daily(ctx context.Context) (service.DailyReview, error)
	LogEnergy(ctx context.Context, level model.EnergyLevel, focus model.FocusQuality) (model.EnergyLog, error)
	CurrentEnergy(ctx context.Context) (energy.Recommendation, error)
	EnergyPatterns(ctx context.Context, days int) (energy.Patterns, error)
}

var _ TaskService = (*service.Service)(nil)

type Config struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type Server struct {
	echo    *echo.Echo
	handler http.Handler
	http    *http.Server
	svc     TaskService
	logger  *zap.Logger
	cfg     Config
}

// New builds the router. metrics may be nil to leave /metrics unmounted.
func New(svc TaskService, metrics http.Handler, cfg Config, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("server: service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:   e,
		svc:    svc,
		logger: logger.Named("http"),
		cfg:    cfg,
	}
	s.registerRoutes(metrics)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(e)
	return s, nil
}

func (s *Server) registerRoutes(metrics http.Handler) {
	s.echo.GET("/health", s.handleHealth)
	if metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/tasks/top", s.handleTop)
	v1.GET("/tasks/stale", s.handleStale)
	v1.GET("/tasks/vague", s.handleVague)
	v1.GET("/tasks/energy/:level", s.handleEnergy)
	v1.POST("/tasks/backfill-project-ids", s.handleBackfill)
	v1.GET("/tasks/:id", s.handleTask)
	v1.GET("/tasks/:id/link", s.handleLink)
	v1.POST("/tasks/:id/complete", s.handleComplete)
	v1.POST("/tasks/:id/unstuck", s.handleUnstuck)
	v1.GET("/tasks/:id/clarifying-questions", s.handleClarifyingQuestions)
	v1.POST("/tasks/:id/clarifying-answers", s.handleClarifyingAnswers)
	v1.GET("/daily", s.handleDaily)
	v1.POST("/energy/log", s.handleLogEnergy)
	v1.GET("/energy/current", s.handleCurrentEnergy)
	v1.GET("/energy/patterns", s.handleEnergyPatterns)
	v1.POST("/sync", s.handleSync)
}

// Handler is the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown is called or ctx ends.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("addr", s.cfg.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down http server")
	return s.http.Shutdown(ctx)
}
