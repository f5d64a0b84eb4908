package model

import (
	"strings"
	"time"
)

// Unstuck is coaching for a task that has stayed open past the stale threshold.
type Unstuck struct {
	Blockers      []string  `json:"likely_blockers"`
	Questions     []string  `json:"unstuck_questions"`
	TinyFirstStep string    `json:"tiny_first_step"`
	Reframe       string    `json:"reframe"`
	Encouragement string    `json:"encouragement"`
	DaysOpen      int       `json:"days_open"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Clarification holds the questions asked about a vague task and the answers
// given so far, keyed by question.
type Clarification struct {
	Questions []string          `json:"questions"`
	Answers   map[string]string `json:"answers,omitempty"`
}

func (c Clarification) Answered() int {
	n := 0
	for _, q := range c.Questions {
		if strings.TrimSpace(c.Answers[q]) != "" {
			n++
		}
	}
	return n
}
