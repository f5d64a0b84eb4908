package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandeepkv93/taskpilot/internal/clarity"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
	"go.uber.org/zap"
)

// Unstuck returns the stored unstuck help for a stale task, asking the
// advisor when there is none yet or refresh is set.
func (s *Service) Unstuck(ctx context.Context, taskID string, refresh bool) (model.Unstuck, error) {
	in, err := s.repo.GetInsight(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return model.Unstuck{}, err
	}
	now := s.now()
	if !s.detector.IsStale(in, now) {
		return model.Unstuck{}, fmt.Errorf("%w: %s", ErrNotStale, in.ExternalTaskID)
	}
	if in.Unstuck != nil && !refresh {
		return *in.Unstuck, nil
	}
	return s.generateUnstuck(ctx, staleness.Stale{Insight: in, OpenFor: now.Sub(in.FirstSeenAt)})
}

func (s *Service) generateUnstuck(ctx context.Context, st staleness.Stale) (model.Unstuck, error) {
	if s.advisor == nil {
		return model.Unstuck{}, ErrNoAdvisor
	}
	in := st.Insight
	help, err := s.advisor.Unstuck(ctx, in.Title, in.Description, st.Days())
	if err != nil {
		return model.Unstuck{}, fmt.Errorf("unstuck help for %s: %w", in.ExternalTaskID, err)
	}
	help.DaysOpen = st.Days()
	help.GeneratedAt = s.now().UTC()
	if err := s.repo.SetUnstuck(ctx, in.ExternalTaskID, help); err != nil {
		return model.Unstuck{}, fmt.Errorf("%w: %s: %w", ErrStore, in.ExternalTaskID, err)
	}
	s.logger.Info("unstuck help stored", zap.String("task_id", in.ExternalTaskID), zap.Int("days_open", help.DaysOpen))
	return help, nil
}

func (s *Service) Vague(ctx context.Context) ([]clarity.Vague, error) {
	items, err := s.openInsights(ctx)
	if err != nil {
		return nil, err
	}
	return s.clarity.Detect(items), nil
}

type ClarityReport struct {
	TaskID    string            `json:"task_id"`
	Vague     bool              `json:"is_vague"`
	Reasons   []clarity.Reason  `json:"reasons,omitempty"`
	Questions []string          `json:"questions"`
	Answers   map[string]string `json:"answers,omitempty"`
}

// ClarifyingQuestions returns the stored questions for a task. A vague task
// without questions gets some from the advisor; a clear one gets none.
func (s *Service) ClarifyingQuestions(ctx context.Context, taskID string) (ClarityReport, error) {
	in, err := s.repo.GetInsight(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return ClarityReport{}, err
	}
	a := s.clarity.Assess(in.Title, in.Description)
	out := ClarityReport{TaskID: in.ExternalTaskID, Vague: a.Vague, Reasons: a.Reasons, Questions: []string{}}
	if c := in.Clarification; c != nil && len(c.Questions) > 0 {
		out.Questions = c.Questions
		out.Answers = c.Answers
		return out, nil
	}
	if !a.Vague {
		return out, nil
	}
	if s.advisor == nil {
		return out, ErrNoAdvisor
	}
	qs, err := s.advisor.ClarifyingQuestions(ctx, in.Title, in.Description)
	if err != nil {
		return out, fmt.Errorf("clarifying questions for %s: %w", in.ExternalTaskID, err)
	}
	if err := s.repo.SetClarifyingQuestions(ctx, in.ExternalTaskID, qs, s.now().UTC()); err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrStore, in.ExternalTaskID, err)
	}
	out.Questions = qs
	return out, nil
}

// SaveClarifyingAnswers merges answers, keyed by question, into the stored
// ones. Blank questions and answers are dropped.
func (s *Service) SaveClarifyingAnswers(ctx context.Context, taskID string, answers map[string]string) (model.Clarification, error) {
	in, err := s.repo.GetInsight(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return model.Clarification{}, err
	}
	var out model.Clarification
	if in.Clarification != nil {
		out.Questions = in.Clarification.Questions
	}
	out.Answers = make(map[string]string, len(answers))
	if in.Clarification != nil {
		for q, a := range in.Clarification.Answers {
			out.Answers[q] = a
		}
	}
	added := 0
	for q, a := range answers {
		q, a = strings.TrimSpace(q), strings.TrimSpace(a)
		if q == "" || a == "" {
			continue
		}
		out.Answers[q] = a
		added++
	}
	if added == 0 {
		return out, ErrNoAnswers
	}
	if err := s.repo.SetClarifyingAnswers(ctx, in.ExternalTaskID, out.Answers, s.now().UTC()); err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrStore, in.ExternalTaskID, err)
	}
	return out, nil
}
