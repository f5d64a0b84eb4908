package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"go.uber.org/zap"
)

const unstuckPrompt = `You are an ADHD-friendly productivity coach helping someone get unstuck.
Be empathetic, specific and action-oriented. Avoid guilt or pressure.

Respond ONLY with valid JSON in this format:
{
  "likely_blockers": ["Blocker 1", "Blocker 2"],
  "unstuck_questions": ["Question to identify the real issue?"],
  "tiny_first_step": "The smallest possible action to start",
  "reframe": "A less overwhelming way to think about this task",
  "encouragement": "Brief, genuine encouragement"
}`

const clarifyPrompt = `You are an ADHD-friendly task clarification assistant.
Generate 2-4 specific clarifying questions that will help make a vague task more actionable.
Focus on the desired outcome, success criteria, first steps and potential blockers.

Respond ONLY with valid JSON in this format:
{
  "questions": ["Question 1?", "Question 2?"]
}`

const maxQuestions = 4

// FallbackUnstuck is used when the model answers with something unreadable.
func FallbackUnstuck() model.Unstuck {
	return model.Unstuck{
		Blockers:      []string{"Task feels overwhelming", "Unclear where to start"},
		Questions:     []string{"What's the easiest part of this?"},
		TinyFirstStep: "Spend 5 minutes researching the first step",
		Reframe:       "You don't have to finish it all today",
		Encouragement: "Starting is the hardest part. You've got this!",
	}
}

func FallbackQuestions() []string {
	return []string{
		"What does success look like for this task?",
		"What's the first concrete step?",
		"What might block progress on this?",
	}
}

// Unstuck asks for coaching on a task that has sat open for daysOpen days.
// Transport failures are returned; an unreadable reply yields FallbackUnstuck.
func (c *Client) Unstuck(ctx context.Context, title, description string, daysOpen int) (model.Unstuck, error) {
	content, err := c.chat(ctx, unstuckPrompt, coachPrompt(title, description,
		fmt.Sprintf("Days sitting: %d\n\nHelp me figure out why I'm stuck and how to move forward.", daysOpen)))
	if err != nil {
		return model.Unstuck{}, err
	}
	help, err := ParseUnstuck(content)
	if err != nil {
		c.logger.Warn("unusable unstuck reply", zap.Error(err))
		help = FallbackUnstuck()
	}
	help.DaysOpen = daysOpen
	return help, nil
}

// ClarifyingQuestions asks for questions that would make a vague task
// actionable. An unreadable or empty reply yields FallbackQuestions.
func (c *Client) ClarifyingQuestions(ctx context.Context, title, description string) ([]string, error) {
	content, err := c.chat(ctx, clarifyPrompt, coachPrompt(title, description,
		"This task seems vague. What questions should I ask to make it more actionable?"))
	if err != nil {
		return nil, err
	}
	qs, err := ParseQuestions(content)
	if err != nil {
		c.logger.Warn("unusable clarifying reply", zap.Error(err))
		return FallbackQuestions(), nil
	}
	return qs, nil
}

func coachPrompt(title, description, ask string) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(strings.TrimSpace(title))
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(d)
	}
	b.WriteString("\n")
	b.WriteString(ask)
	return b.String()
}

type rawUnstuck struct {
	Blockers      []string `json:"likely_blockers"`
	Questions     []string `json:"unstuck_questions"`
	TinyFirstStep string   `json:"tiny_first_step"`
	Reframe       string   `json:"reframe"`
	Encouragement string   `json:"encouragement"`
}

// ParseUnstuck decodes coaching JSON. A reply without a first step or a
// blocker is rejected; other missing fields are filled from FallbackUnstuck.
func ParseUnstuck(content string) (model.Unstuck, error) {
	var raw rawUnstuck
	if err := json.Unmarshal([]byte(stripFence(content)), &raw); err != nil {
		return model.Unstuck{}, fmt.Errorf("%w: %v", ErrBadGuidance, err)
	}
	out := model.Unstuck{
		Blockers:      cleanLines(raw.Blockers, 0),
		Questions:     cleanLines(raw.Questions, 0),
		TinyFirstStep: strings.TrimSpace(raw.TinyFirstStep),
		Reframe:       strings.TrimSpace(raw.Reframe),
		Encouragement: strings.TrimSpace(raw.Encouragement),
	}
	if out.TinyFirstStep == "" && len(out.Blockers) == 0 {
		return model.Unstuck{}, fmt.Errorf("%w: no first step or blockers", ErrBadGuidance)
	}
	fb := FallbackUnstuck()
	if out.TinyFirstStep == "" {
		out.TinyFirstStep = fb.TinyFirstStep
	}
	if len(out.Questions) == 0 {
		out.Questions = fb.Questions
	}
	if out.Reframe == "" {
		out.Reframe = fb.Reframe
	}
	if out.Encouragement == "" {
		out.Encouragement = fb.Encouragement
	}
	return out, nil
}

// ParseQuestions decodes {"questions": [...]}, dropping blanks and duplicates
// and keeping at most four.
func ParseQuestions(content string) ([]string, error) {
	var raw struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(stripFence(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadGuidance, err)
	}
	qs := cleanLines(raw.Questions, maxQuestions)
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrBadGuidance)
	}
	return qs, nil
}

func cleanLines(in []string, max int) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
