// Package analyzer turns source tasks into stored insights, one at a time or
// through a bounded worker pool.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers      = 5
	DefaultBatchTimeout = 5 * time.Minute
	DefaultTaskTimeout  = 60 * time.Second
)

var (
	// ErrStore marks failures of the insight store itself. They end a batch.
	ErrStore     = errors.New("analyzer: insight store failure")
	ErrReasoning = errors.New("analyzer: reasoning failed")
)

type Reasoner interface {
	Breakdown(ctx context.Context, title, description string) (model.Breakdown, error)
}

type Store interface {
	GetInsight(ctx context.Context, externalTaskID string) (model.Insight, error)
	UpsertInsight(ctx context.Context, in model.Insight) (model.Insight, error)
}

// Recorder receives per-task and per-batch outcomes.
type Recorder interface {
	AnalysisDone(outcome Outcome)
	BatchDone(d time.Duration)
}

type Config struct {
	Workers      int           `koanf:"workers"`
	BatchTimeout time.Duration `koanf:"batch_timeout"`
	TaskTimeout  time.Duration `koanf:"task_timeout"`
}

func DefaultConfig() Config {
	return Config{Workers: DefaultWorkers, BatchTimeout: DefaultBatchTimeout, TaskTimeout: DefaultTaskTimeout}
}

func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("analysis workers must be positive, got %d", c.Workers)
	}
	if c.BatchTimeout <= 0 || c.TaskTimeout <= 0 {
		return errors.New("analysis timeouts must be positive")
	}
	if c.TaskTimeout > c.BatchTimeout {
		return fmt.Errorf("task timeout %s exceeds batch timeout %s", c.TaskTimeout, c.BatchTimeout)
	}
	return nil
}

type Option func(*Analyzer)

func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) {
		a.recorder = r
	}
}

type Analyzer struct {
	reasoner Reasoner
	store    Store
	engine   *scoring.Engine
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	recorder Recorder
}

func New(reasoner Reasoner, store Store, engine *scoring.Engine, cfg Config, logger *zap.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	a := &Analyzer{
		reasoner: reasoner,
		store:    store,
		engine:   engine,
		cfg:      cfg,
		logger:   logger.Named("analyzer"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze asks the reasoning service about one task, scores it and upserts the
// insight. first_seen_at and a recorded completion of an existing insight are kept.
func (a *Analyzer) Analyze(ctx context.Context, task model.SourceTask) (model.Insight, error) {
	in, err := a.analyze(ctx, task)
	outcome := OutcomeSucceeded
	if err != nil {
		outcome = OutcomeFailed
	}
	a.record(outcome)
	return in, err
}

func (a *Analyzer) analyze(ctx context.Context, task model.SourceTask) (model.Insight, error) {
	if strings.TrimSpace(task.ID) == "" {
		return model.Insight{}, errors.New("analyzer: task id is required")
	}

	taskCtx, cancel := context.WithTimeout(ctx, a.cfg.TaskTimeout)
	bd, err := a.reasoner.Breakdown(taskCtx, task.Title, task.Content)
	cancel()
	if err != nil {
		return model.Insight{}, fmt.Errorf("%w for %s: %w", ErrReasoning, task.ID, err)
	}

	now := a.now().UTC()
	firstSeen := now
	completed := task.IsCompleted()
	existing, err := a.store.GetInsight(ctx, task.ID)
	switch {
	case err == nil:
		firstSeen = existing.FirstSeenAt
		// A completion recorded here stands even while the source still lists the task.
		completed = completed || existing.Completed
	case errors.Is(err, storage.ErrNotFound):
	default:
		return model.Insight{}, a.storeErr(ctx, task.ID, err)
	}

	in := insightFrom(task, bd, firstSeen, now)
	in.Completed = completed
	in = a.engine.Apply(in, now)

	saved, err := a.store.UpsertInsight(ctx, in)
	if err != nil {
		return model.Insight{}, a.storeErr(ctx, task.ID, err)
	}
	return saved, nil
}

// storeErr leaves context expiry unmarked so a timed-out batch is not mistaken
// for a broken store.
func (a *Analyzer) storeErr(ctx context.Context, id string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("store insight %s: %w", id, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, id, err)
}

func insightFrom(task model.SourceTask, bd model.Breakdown, firstSeen, now time.Time) model.Insight {
	minutes := bd.EstimatedMinutes
	if minutes <= 0 {
		for _, st := range bd.Subtasks {
			minutes += st.EstimatedMinutes
		}
	}
	if minutes <= 0 {
		minutes = 30
	}
	energy := bd.EnergyLevel
	if !energy.IsValid() {
		energy = model.EnergyMedium
	}
	return model.Insight{
		ExternalTaskID:   task.ID,
		ProjectID:        strings.TrimSpace(task.ProjectID),
		Title:            task.Title,
		Description:      task.Content,
		EnergyLevel:      energy,
		EstimatedMinutes: minutes,
		SourcePriority:   task.Priority,
		DueAt:            task.DueAt,
		FirstStep:        bd.FirstStep,
		Subtasks:         bd.Subtasks,
		FirstSeenAt:      firstSeen,
		LastUpdatedAt:    now,
		Completed:        task.IsCompleted(),
	}
}

// AnalyzeAll runs Analyze over the deduplicated tasks with at most Workers in
// flight. Per-task failures are tallied in the report; the returned error is
// non-nil only when the insight store fails. Work finished before the batch
// timeout stays committed.
func (a *Analyzer) AnalyzeAll(ctx context.Context, tasks []model.SourceTask) (Report, error) {
	started := a.now()
	work := dedupe(tasks)
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
		Total:     len(work),
		Items:     make([]ItemResult, len(work)),
	}
	for i, task := range work {
		report.Items[i] = ItemResult{TaskID: task.ID, Outcome: OutcomeSkipped}
	}
	logger := a.logger.With(zap.String("run_id", report.RunID))
	logger.Info("analysis batch started", zap.Int("tasks", len(work)), zap.Int("workers", a.cfg.Workers))

	batchCtx, cancel := context.WithTimeout(ctx, a.cfg.BatchTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(a.cfg.Workers)

	for i, task := range work {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			in, err := a.analyze(gctx, task)
			if err != nil {
				report.Items[i] = ItemResult{TaskID: task.ID, Outcome: OutcomeFailed, Error: err.Error()}
				a.record(OutcomeFailed)
				logger.Warn("task analysis failed", zap.String("task_id", task.ID), zap.Error(err))
				if errors.Is(err, ErrStore) {
					return err
				}
				return nil
			}
			report.Items[i] = ItemResult{
				TaskID:   task.ID,
				Outcome:  OutcomeSucceeded,
				Quadrant: in.Quadrant,
				Score:    in.PriorityScore,
			}
			a.record(OutcomeSucceeded)
			return nil
		})
	}
	err := g.Wait()

	report.Duration = a.now().Sub(started)
	report.TimedOut = ctx.Err() == nil && errors.Is(batchCtx.Err(), context.DeadlineExceeded)
	report.tally()
	for _, item := range report.Items {
		if item.Outcome == OutcomeSkipped {
			a.record(OutcomeSkipped)
		}
	}
	if a.recorder != nil {
		a.recorder.BatchDone(report.Duration)
	}

	fields := []zap.Field{
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Bool("timed_out", report.TimedOut),
		zap.Duration("duration", report.Duration),
	}
	if err != nil {
		logger.Error("analysis batch aborted", append(fields, zap.Error(err))...)
		return report, err
	}
	logger.Info("analysis batch finished", fields...)
	return report, nil
}

func (a *Analyzer) record(o Outcome) {
	if a.recorder != nil {
		a.recorder.AnalysisDone(o)
	}
}

func dedupe(tasks []model.SourceTask) []model.SourceTask {
	seen := make(map[string]bool, len(tasks))
	out := make([]model.SourceTask, 0, len(tasks))
	for _, t := range tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, t)
	}
	return out
}
