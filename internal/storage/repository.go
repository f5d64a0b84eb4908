package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

// Repository persists one insight per external task id, the guidance attached
// to it, and the energy log.
type Repository interface {
	// UpsertInsight inserts a new row or refreshes an existing one. first_seen_at is
	// only written on insert and a null project id never replaces a stored one.
	UpsertInsight(ctx context.Context, in model.Insight) (model.Insight, error)
	GetInsight(ctx context.Context, externalTaskID string) (model.Insight, error)
	ListInsights(ctx context.Context, filter InsightListFilter) ([]model.Insight, error)
	SetProjectID(ctx context.Context, externalTaskID, projectID string) error
	MarkCompleted(ctx context.Context, externalTaskID string, at time.Time) error

	// Guidance writes fail with ErrNotFound when the task has no insight.
	SetUnstuck(ctx context.Context, externalTaskID string, help model.Unstuck) error
	SetClarifyingQuestions(ctx context.Context, externalTaskID string, questions []string, at time.Time) error
	SetClarifyingAnswers(ctx context.Context, externalTaskID string, answers map[string]string, at time.Time) error

	AddEnergyLog(ctx context.Context, l model.EnergyLog) error
	ListEnergyLogs(ctx context.Context, filter EnergyLogFilter) ([]model.EnergyLog, error)
}
