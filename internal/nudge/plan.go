package nudge

import (
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
)

// Plan builds the nudges for open tasks that have not fired yet. A stale nudge
// fires at the instant the task turns stale; a task that is already stale still
// gets its due nudge.
func Plan(items []model.Insight, threshold time.Duration, now time.Time) []Nudge {
	out := make([]Nudge, 0, len(items))
	for _, item := range items {
		if item.Completed {
			continue
		}
		staleAt := staleness.StaleAt(item.FirstSeenAt, threshold)
		if staleAt.After(now) {
			out = append(out, Nudge{TaskID: item.ExternalTaskID, Title: item.Title, Kind: KindStale, TriggerAt: staleAt})
		}
		if item.DueAt != nil && item.DueAt.After(now) {
			out = append(out, Nudge{TaskID: item.ExternalTaskID, Title: item.Title, Kind: KindDue, TriggerAt: *item.DueAt})
		}
	}
	return out
}

// Reschedule loads a fresh plan into the engine and returns the number of
// nudges scheduled.
func Reschedule(e *Engine, plan []Nudge) (int, error) {
	n := 0
	for _, item := range plan {
		if err := e.Schedule(item); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
