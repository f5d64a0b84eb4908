package model

import (
	"errors"
	"strings"
	"time"
)

// ErrSourceTaskMissing means the task source answered but does not know the task.
var ErrSourceTaskMissing = errors.New("model: task not found in source")

// TickTick task status values.
const (
	SourceStatusOpen      = 0
	SourceStatusCompleted = 2
)

// TickTick priority values.
const (
	SourcePriorityNone   = 0
	SourcePriorityLow    = 1
	SourcePriorityMedium = 3
	SourcePriorityHigh   = 5
)

// SourceTask is a task as reported by the external task manager.
type SourceTask struct {
	ID        string
	ProjectID string
	Title     string
	Content   string
	DueAt     *time.Time
	Priority  int
	Status    int
}

func (t SourceTask) IsCompleted() bool {
	return t.Status == SourceStatusCompleted
}

// ChangedFrom reports whether the fields that feed analysis differ from the stored insight.
func (t SourceTask) ChangedFrom(in Insight) bool {
	if strings.TrimSpace(t.Title) != strings.TrimSpace(in.Title) {
		return true
	}
	if strings.TrimSpace(t.Content) != strings.TrimSpace(in.Description) {
		return true
	}
	switch {
	case t.DueAt == nil && in.DueAt == nil:
		return false
	case t.DueAt == nil || in.DueAt == nil:
		return true
	default:
		return !t.DueAt.Equal(*in.DueAt)
	}
}

// Breakdown is the structured analysis returned by the reasoning service.
type Breakdown struct {
	Subtasks         []Subtask
	EnergyLevel      EnergyLevel
	EstimatedMinutes int
	FirstStep        string
}
