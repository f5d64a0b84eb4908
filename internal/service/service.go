// Package service is the query and command surface shared by the CLI, the
// terminal dashboard and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/analyzer"
	"github.com/sandeepkv93/taskpilot/internal/clarity"
	"github.com/sandeepkv93/taskpilot/internal/energy"
	"github.com/sandeepkv93/taskpilot/internal/links"
	"github.com/sandeepkv93/taskpilot/internal/matcher"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
	"github.com/sandeepkv93/taskpilot/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultTopLimit    = 3
	MaxTopLimit        = 10
	DefaultEnergyLimit = 5
	MaxEnergyLimit     = 20
)

var (
	ErrNoSource = errors.New("service: task source not configured")
	// ErrUpstream wraps a failed upstream completion. The local completion
	// has already been stored when it is returned.
	ErrUpstream  = errors.New("service: upstream completion failed")
	ErrNoAdvisor = errors.New("service: reasoning service not configured")
	ErrNotStale  = errors.New("service: task is not stale")
	ErrNoAnswers = errors.New("service: no answers given")
	// ErrStore marks a failed write of generated guidance.
	ErrStore = errors.New("service: store failure")
)

type TaskSource interface {
	ListTasks(ctx context.Context) ([]model.SourceTask, error)
	CompleteTask(ctx context.Context, projectID, taskID string) error
}

type BatchAnalyzer interface {
	AnalyzeAll(ctx context.Context, tasks []model.SourceTask) (analyzer.Report, error)
}

type LinkResolver interface {
	Resolve(ctx context.Context, taskID string) links.Link
}

// Advisor coaches through stuck and vague tasks.
type Advisor interface {
	Unstuck(ctx context.Context, title, description string, daysOpen int) (model.Unstuck, error)
	ClarifyingQuestions(ctx context.Context, title, description string) ([]string, error)
}

type CompletionRecorder interface {
	TaskCompleted(upstream bool)
}

type SyncConfig struct {
	// CompleteMissing marks open insights complete when the source no longer lists them.
	CompleteMissing bool `koanf:"complete_missing"`
	// UnstuckLimit caps how many stale tasks get unstuck help per sync.
	UnstuckLimit int `koanf:"unstuck_limit"`
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{CompleteMissing: true, UnstuckLimit: 3}
}

// Deps wires a Service. Repo, Engine and Resolver are required; Source and
// Analyzer are only needed for Sync, backfill and upstream completion, and
// Advisor for unstuck help and clarifying questions.
type Deps struct {
	Repo     storage.Repository
	Engine   *scoring.Engine
	Matcher  *matcher.Matcher
	Detector *staleness.Detector
	Clarity  *clarity.Detector
	Energy   *energy.Tracker
	Resolver LinkResolver
	Source   TaskSource
	Analyzer BatchAnalyzer
	Advisor  Advisor
	Recorder CompletionRecorder
	Sync     SyncConfig
	Logger   *zap.Logger
	Now      func() time.Time
}

type Service struct {
	repo     storage.Repository
	engine   *scoring.Engine
	matcher  *matcher.Matcher
	detector *staleness.Detector
	clarity  *clarity.Detector
	energy   *energy.Tracker
	resolver LinkResolver
	source   TaskSource
	analyzer BatchAnalyzer
	advisor  Advisor
	recorder CompletionRecorder
	sync     SyncConfig
	logger   *zap.Logger
	now      func() time.Time
}

func New(d Deps) (*Service, error) {
	if d.Repo == nil {
		return nil, errors.New("service: repository is required")
	}
	if d.Engine == nil {
		return nil, errors.New("service: scoring engine is required")
	}
	if d.Resolver == nil {
		return nil, errors.New("service: link resolver is required")
	}
	if d.Matcher == nil {
		d.Matcher = matcher.New(matcher.DefaultPolicy(), d.Engine)
	}
	if d.Detector == nil {
		d.Detector = staleness.New(staleness.DefaultPolicy())
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Clarity == nil {
		d.Clarity = clarity.New(clarity.DefaultPolicy())
	}
	if d.Energy == nil {
		d.Energy = energy.New(d.Repo, energy.DefaultPolicy(), d.Logger, energy.WithClock(d.Now))
	}
	return &Service{
		repo:     d.Repo,
		engine:   d.Engine,
		matcher:  d.Matcher,
		detector: d.Detector,
		clarity:  d.Clarity,
		energy:   d.Energy,
		resolver: d.Resolver,
		source:   d.Source,
		analyzer: d.Analyzer,
		advisor:  d.Advisor,
		recorder: d.Recorder,
		sync:     d.Sync,
		logger:   d.Logger.Named("service"),
		now:      d.Now,
	}, nil
}

func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) StaleThreshold() time.Duration {
	return s.detector.Threshold()
}

func (s *Service) openInsights(ctx context.Context) ([]model.Insight, error) {
	items, err := s.repo.ListInsights(ctx, storage.InsightListFilter{OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list open insights: %w", err)
	}
	return items, nil
}

// Top returns the highest priority open tasks scored at the current time.
func (s *Service) Top(ctx context.Context, limit int) ([]scoring.Scored, error) {
	items, err := s.openInsights(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Top(items, s.now(), clampLimit(limit, DefaultTopLimit, MaxTopLimit)), nil
}

func (s *Service) MatchEnergy(ctx context.Context, level model.EnergyLevel, limit int) ([]matcher.Match, error) {
	if !level.IsValid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidEnergy, level)
	}
	items, err := s.openInsights(ctx)
	if err != nil {
		return nil, err
	}
	return s.matcher.Match(level, clampLimit(limit, DefaultEnergyLimit, MaxEnergyLimit), items, s.now())
}

// Stale lists the stale open tasks, longest-open first, each rescored at the
// current time like Top.
func (s *Service) Stale(ctx context.Context) ([]staleness.Stale, error) {
	items, err := s.openInsights(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := s.detector.Detect(items, now)
	for i := range out {
		out[i].Insight = s.engine.Apply(out[i].Insight, now)
	}
	return out, nil
}

// OpenTasks lists every open task for scheduling nudges. Stale tasks stay in:
// their due nudges still apply.
func (s *Service) OpenTasks(ctx context.Context) ([]model.Insight, error) {
	return s.openInsights(ctx)
}

func (s *Service) Insight(ctx context.Context, taskID string) (model.Insight, error) {
	return s.repo.GetInsight(ctx, taskID)
}

// ResolveLink always yields a usable URL.
func (s *Service) ResolveLink(ctx context.Context, taskID string) links.Link {
	return s.resolver.Resolve(ctx, taskID)
}

// MarkComplete sets completed on the stored insight. Repeating it is harmless.
// With upstream set, the task is also completed in the source; an upstream
// failure is logged and returned but the local completion stands.
func (s *Service) MarkComplete(ctx context.Context, taskID string, upstream bool) error {
	taskID = strings.TrimSpace(taskID)
	if err := s.repo.MarkCompleted(ctx, taskID, s.now().UTC()); err != nil {
		return fmt.Errorf("mark %s complete: %w", taskID, err)
	}
	if s.recorder != nil {
		s.recorder.TaskCompleted(upstream)
	}
	if !upstream {
		return nil
	}
	if s.source == nil {
		return fmt.Errorf("%w: %w", ErrUpstream, ErrNoSource)
	}

	link := s.resolver.Resolve(ctx, taskID)
	if link.ProjectID == "" {
		err := fmt.Errorf("%w: %s has no project id", ErrUpstream, taskID)
		s.logger.Warn("upstream completion skipped", zap.String("task_id", taskID), zap.Error(err))
		return err
	}
	if err := s.source.CompleteTask(ctx, link.ProjectID, taskID); err != nil {
		s.logger.Warn("upstream completion failed", zap.String("task_id", taskID), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrUpstream, taskID, err)
	}
	return nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
