package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sandeepkv93/taskpilot/internal/analyzer"
	"github.com/sandeepkv93/taskpilot/internal/clarity"
	"github.com/sandeepkv93/taskpilot/internal/config"
	"github.com/sandeepkv93/taskpilot/internal/energy"
	"github.com/sandeepkv93/taskpilot/internal/links"
	"github.com/sandeepkv93/taskpilot/internal/logging"
	"github.com/sandeepkv93/taskpilot/internal/matcher"
	"github.com/sandeepkv93/taskpilot/internal/metrics"
	"github.com/sandeepkv93/taskpilot/internal/reasoning"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
	"github.com/sandeepkv93/taskpilot/internal/storage"
	"github.com/sandeepkv93/taskpilot/internal/ticktick"
)

// app holds the wired process. The TickTick and OpenRouter clients are nil
// when their credentials are missing; commands that need them say so.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	repo     *storage.SQLRepository
	metrics  *metrics.Metrics
	ticktick *ticktick.Client
	analyzer *analyzer.Analyzer
	svc      *service.Service
}

type bootOptions struct {
	// quietStderr drops logs that would otherwise land on stderr, for the TUI.
	quietStderr bool
}

func bootstrap(ctx context.Context, opts *rootOptions, boot bootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if !boot.quietStderr || cfg.Log.File != "" {
		if logger, err = logging.New(cfg.Log); err != nil {
			return nil, err
		}
	}

	repo, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, repo: repo, metrics: metrics.New()}
	logger.Debug("credentials loaded",
		logging.RedactedString("ticktick_token", cfg.TickTick.AccessToken),
		logging.RedactedString("openrouter_key", cfg.OpenRouter.APIKey),
	)

	if a.ticktick, err = ticktick.NewClient(ctx, cfg.TickTick, logger); err != nil {
		if !errors.Is(err, ticktick.ErrNoToken) {
			a.close()
			return nil, err
		}
		logger.Info("ticktick disabled", zap.Error(err))
		a.ticktick = nil
	}

	engine := scoring.NewEngine(cfg.Scoring)
	deps := service.Deps{
		Repo:     repo,
		Engine:   engine,
		Matcher:  matcher.New(cfg.Energy, engine),
		Detector: staleness.New(cfg.Staleness),
		Clarity:  clarity.New(cfg.Clarity),
		Energy:   energy.New(repo, cfg.Checkins, logger),
		Recorder: a.metrics,
		Sync:     cfg.Sync,
		Logger:   logger,
	}

	var lookup links.TaskLookup
	if a.ticktick != nil {
		lookup = a.ticktick
		deps.Source = a.ticktick
	}
	deps.Resolver = links.NewDefaultResolver(cfg.TickTick.WebURL, lookup, repo, logger.Named("links"),
		links.WithObserver(a.metrics.LinkResolved))

	reasoner, err := reasoning.NewClient(cfg.OpenRouter, logger)
	switch {
	case err == nil:
		a.analyzer = analyzer.New(reasoner, repo, engine, cfg.Analysis, logger, analyzer.WithRecorder(a.metrics))
		deps.Analyzer = a.analyzer
		deps.Advisor = reasoner
	case errors.Is(err, reasoning.ErrNoAPIKey):
		logger.Info("llm analysis disabled", zap.Error(err))
	default:
		a.close()
		return nil, err
	}

	if a.svc, err = service.New(deps); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
