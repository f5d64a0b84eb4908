package analyzer

import (
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped means the task was never attempted, usually because the
	// batch ran out of time or was aborted.
	OutcomeSkipped Outcome = "skipped"
)

type ItemResult struct {
	TaskID   string         `json:"task_id"`
	Outcome  Outcome        `json:"outcome"`
	Quadrant model.Quadrant `json:"quadrant,omitempty"`
	Score    float64        `json:"score,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Report is the tally of one bulk run. Items follow the deduplicated input order.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	TimedOut  bool          `json:"timed_out"`
	Items     []ItemResult  `json:"items"`
}

func (r *Report) tally() {
	r.Succeeded, r.Failed, r.Skipped = 0, 0, 0
	for _, item := range r.Items {
		switch item.Outcome {
		case OutcomeSucceeded:
			r.Succeeded++
		case OutcomeFailed:
			r.Failed++
		default:
			r.Skipped++
		}
	}
}

func (r Report) FailedItems() []ItemResult {
	out := make([]ItemResult, 0, r.Failed)
	for _, item := range r.Items {
		if item.Outcome == OutcomeFailed {
			out = append(out, item)
		}
	}
	return out
}
