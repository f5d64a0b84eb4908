package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sandeepkv93/taskpilot/internal/analyzer"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/storage"
	"go.uber.org/zap"
)

type SyncReport struct {
	Listed    int `json:"listed"`
	Refreshed int `json:"refreshed"`
	Completed int `json:"completed"`
	// KeptDone counts tasks completed here that the source still lists as open.
	KeptDone      int             `json:"kept_done"`
	Unstuck       int             `json:"unstuck"`
	UnstuckFailed int             `json:"unstuck_failed"`
	Analysis      analyzer.Report `json:"analysis"`
}

// Sync pulls the open tasks from the source. Unseen and changed tasks are
// analysed through the worker pool; the rest get their source fields
// refreshed and rescored. Tasks the source reports done, or no longer lists
// when CompleteMissing is set, are marked complete. A completion recorded
// locally is never undone: the Open API reports no reopen event, so an open
// listing cannot be told apart from a completion not yet pushed upstream.
// Finally, stale tasks without unstuck help get some, up to UnstuckLimit.
func (s *Service) Sync(ctx context.Context) (SyncReport, error) {
	if s.source == nil || s.analyzer == nil {
		return SyncReport{}, ErrNoSource
	}
	tasks, err := s.source.ListTasks(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("list source tasks: %w", err)
	}
	stored, err := s.repo.ListInsights(ctx, storage.InsightListFilter{})
	if err != nil {
		return SyncReport{}, fmt.Errorf("list insights: %w", err)
	}
	byID := make(map[string]model.Insight, len(stored))
	for _, in := range stored {
		byID[in.ExternalTaskID] = in
	}

	now := s.now().UTC()
	report := SyncReport{Listed: len(tasks)}
	listed := make(map[string]bool, len(tasks))
	pending := make([]model.SourceTask, 0)

	for _, task := range tasks {
		listed[task.ID] = true
		existing, known := byID[task.ID]
		switch {
		case task.IsCompleted():
			if known && !existing.Completed {
				if err := s.repo.MarkCompleted(ctx, task.ID, now); err != nil {
					return report, fmt.Errorf("complete %s: %w", task.ID, err)
				}
				report.Completed++
			}
		case known && existing.Completed:
			report.KeptDone++
		case !known || task.ChangedFrom(existing):
			pending = append(pending, task)
		default:
			if _, err := s.repo.UpsertInsight(ctx, s.refresh(existing, task)); err != nil {
				return report, fmt.Errorf("refresh %s: %w", task.ID, err)
			}
			report.Refreshed++
		}
	}

	if s.sync.CompleteMissing {
		for _, in := range stored {
			if in.Completed || listed[in.ExternalTaskID] {
				continue
			}
			if err := s.repo.MarkCompleted(ctx, in.ExternalTaskID, now); err != nil {
				return report, fmt.Errorf("complete missing %s: %w", in.ExternalTaskID, err)
			}
			report.Completed++
		}
	}

	analysis, err := s.analyzer.AnalyzeAll(ctx, pending)
	report.Analysis = analysis
	if err != nil {
		return report, err
	}
	if err := s.unstickStale(ctx, &report); err != nil {
		return report, err
	}
	s.logger.Info("sync finished",
		zap.Int("listed", report.Listed),
		zap.Int("analyzed", analysis.Succeeded),
		zap.Int("failed", analysis.Failed),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("completed", report.Completed),
		zap.Int("kept_done", report.KeptDone),
		zap.Int("unstuck", report.Unstuck),
	)
	return report, nil
}

// unstickStale asks for help on the longest-open stale tasks that have none.
// Advisor failures are counted, not returned.
func (s *Service) unstickStale(ctx context.Context, report *SyncReport) error {
	if s.advisor == nil || s.sync.UnstuckLimit <= 0 {
		return nil
	}
	items, err := s.openInsights(ctx)
	if err != nil {
		return err
	}
	for _, st := range s.detector.Detect(items, s.now()) {
		if report.Unstuck+report.UnstuckFailed >= s.sync.UnstuckLimit {
			break
		}
		if st.Insight.Unstuck != nil {
			continue
		}
		if _, err := s.generateUnstuck(ctx, st); err != nil {
			if errors.Is(err, ErrStore) {
				return err
			}
			report.UnstuckFailed++
			s.logger.Warn("unstuck help failed", zap.String("task_id", st.Insight.ExternalTaskID), zap.Error(err))
			continue
		}
		report.Unstuck++
	}
	return nil
}

// refresh copies source-owned fields onto the stored insight and rescores it.
// An empty source project id leaves the stored one alone.
func (s *Service) refresh(in model.Insight, task model.SourceTask) model.Insight {
	now := s.now().UTC()
	if pid := strings.TrimSpace(task.ProjectID); pid != "" {
		in.ProjectID = pid
	}
	in.SourcePriority = task.Priority
	in.DueAt = task.DueAt
	in.LastUpdatedAt = now
	return s.engine.Apply(in, now)
}

type BackfillReport struct {
	Total        int `json:"total"`
	Updated      int `json:"updated"`
	AlreadyHad   int `json:"already_had_project_id"`
	StillMissing int `json:"no_project_id"`
}

// BackfillProjectIDs fills in missing project ids from one source listing.
func (s *Service) BackfillProjectIDs(ctx context.Context) (BackfillReport, error) {
	if s.source == nil {
		return BackfillReport{}, ErrNoSource
	}
	stored, err := s.repo.ListInsights(ctx, storage.InsightListFilter{})
	if err != nil {
		return BackfillReport{}, fmt.Errorf("list insights: %w", err)
	}
	tasks, err := s.source.ListTasks(ctx)
	if err != nil {
		return BackfillReport{}, fmt.Errorf("list source tasks: %w", err)
	}
	projects := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if pid := strings.TrimSpace(t.ProjectID); pid != "" {
			projects[t.ID] = pid
		}
	}

	report := BackfillReport{Total: len(stored)}
	for _, in := range stored {
		if in.HasProject() {
			report.AlreadyHad++
			continue
		}
		pid, ok := projects[in.ExternalTaskID]
		if !ok {
			report.StillMissing++
			s.logger.Warn("no project id for task", zap.String("task_id", in.ExternalTaskID))
			continue
		}
		if err := s.repo.SetProjectID(ctx, in.ExternalTaskID, pid); err != nil {
			return report, fmt.Errorf("backfill %s: %w", in.ExternalTaskID, err)
		}
		report.Updated++
	}
	return report, nil
}
