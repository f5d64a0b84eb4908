package links

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/storage"
	"go.uber.org/zap"
)

const DefaultWebURL = "https://ticktick.com/webapp/"

// Source names which strategy supplied the project id.
type Source string

const (
	SourceFresh  Source = "fresh"
	SourceStored Source = "stored"
	SourceNone   Source = "none"
)

type Link struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id,omitempty"`
	URL       string `json:"url"`
	Source    Source `json:"source"`
}

type Candidate struct {
	ProjectID string
	Source    Source
}

// Strategy yields a project id for a task, or ok=false to defer to the next strategy.
type Strategy interface {
	ProjectID(ctx context.Context, taskID string) (Candidate, bool)
}

type StrategyFunc func(ctx context.Context, taskID string) (Candidate, bool)

func (f StrategyFunc) ProjectID(ctx context.Context, taskID string) (Candidate, bool) {
	return f(ctx, taskID)
}

// FirstNonEmpty runs strategies in order and returns the first hit. An exhausted
// chain yields SourceNone.
func FirstNonEmpty(ctx context.Context, taskID string, strategies ...Strategy) Candidate {
	for _, s := range strategies {
		if c, ok := s.ProjectID(ctx, taskID); ok {
			return c
		}
	}
	return Candidate{Source: SourceNone}
}

// TaskLookup is the live task source.
type TaskLookup interface {
	GetTask(ctx context.Context, taskID string) (model.SourceTask, error)
}

// ProjectTaskLookup is a source that can fetch a task from a known project in
// one request. Fresh uses it with the stored project id before scanning.
type ProjectTaskLookup interface {
	GetTaskInProject(ctx context.Context, projectID, taskID string) (model.SourceTask, error)
}

// InsightStore is the subset of storage the resolver reads and refreshes.
type InsightStore interface {
	GetInsight(ctx context.Context, externalTaskID string) (model.Insight, error)
	SetProjectID(ctx context.Context, externalTaskID, projectID string) error
}

// Fresh asks the live source and writes a found project id back to the store.
func Fresh(lookup TaskLookup, store InsightStore, logger *zap.Logger) Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return StrategyFunc(func(ctx context.Context, taskID string) (Candidate, bool) {
		if lookup == nil {
			return Candidate{}, false
		}
		task, err := lookupTask(ctx, lookup, store, taskID)
		if err != nil {
			logger.Warn("fresh project lookup failed", zap.String("task_id", taskID), zap.Error(err))
			return Candidate{}, false
		}
		pid := strings.TrimSpace(task.ProjectID)
		if pid == "" {
			logger.Warn("fresh project lookup returned no project id", zap.String("task_id", taskID))
			return Candidate{}, false
		}
		if store != nil {
			if err := store.SetProjectID(ctx, taskID, pid); err != nil && !errors.Is(err, storage.ErrNotFound) {
				logger.Warn("persist fresh project id failed",
					zap.String("task_id", taskID), zap.String("project_id", pid), zap.Error(err))
			}
		}
		return Candidate{ProjectID: pid, Source: SourceFresh}, true
	})
}

// lookupTask asks the stored project first when the source supports it. Only
// a definite miss there, such as a task moved to another project, falls back
// to the full scan.
func lookupTask(ctx context.Context, lookup TaskLookup, store InsightStore, taskID string) (model.SourceTask, error) {
	direct, ok := lookup.(ProjectTaskLookup)
	if !ok || store == nil {
		return lookup.GetTask(ctx, taskID)
	}
	in, err := store.GetInsight(ctx, taskID)
	if err != nil || !in.HasProject() {
		return lookup.GetTask(ctx, taskID)
	}
	task, err := direct.GetTaskInProject(ctx, in.ProjectID, taskID)
	if err == nil || !errors.Is(err, model.ErrSourceTaskMissing) {
		return task, err
	}
	return lookup.GetTask(ctx, taskID)
}

// Stored reads the project id recorded at analysis time.
func Stored(store InsightStore, logger *zap.Logger) Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return StrategyFunc(func(ctx context.Context, taskID string) (Candidate, bool) {
		if store == nil {
			return Candidate{}, false
		}
		in, err := store.GetInsight(ctx, taskID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				logger.Warn("stored project lookup failed", zap.String("task_id", taskID), zap.Error(err))
			}
			return Candidate{}, false
		}
		if !in.HasProject() {
			return Candidate{}, false
		}
		return Candidate{ProjectID: in.ProjectID, Source: SourceStored}, true
	})
}

// None always succeeds with no project id. It terminates a chain.
func None() Strategy {
	return StrategyFunc(func(context.Context, string) (Candidate, bool) {
		return Candidate{Source: SourceNone}, true
	})
}

// Build renders the deep link. With a project id the link opens the task inside its
// project; without one it uses the project-less form.
func Build(webURL, taskID, projectID string) string {
	base := strings.TrimSpace(webURL)
	if base == "" {
		base = DefaultWebURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	task := url.PathEscape(taskID)
	if strings.TrimSpace(projectID) == "" {
		return base + "#/tasks/" + task
	}
	return base + "#p/" + url.PathEscape(projectID) + "/tasks/" + task
}
