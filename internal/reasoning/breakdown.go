package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

const systemPrompt = `You are an ADHD-friendly task breakdown assistant. Your goal is to:
1. Break the task into 3-7 specific, actionable subtasks
2. Make each subtask achievable in one sitting, in a logical order
3. Identify the energy level the task needs (low/medium/high)
4. Estimate minutes for each subtask and for the whole task
5. Suggest the easiest first step to build momentum

Respond ONLY with valid JSON in this exact format:
{
  "subtasks": [{"title": "...", "energy": "low|medium|high", "estimated_minutes": 15}],
  "energy_level": "low|medium|high",
  "estimated_minutes": 90,
  "first_step": "The easiest first action",
  "cognitive_load": "light|moderate|heavy"
}`

func userPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(strings.TrimSpace(title))
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(d)
	}
	b.WriteString("\n\nBreak this down into actionable subtasks.")
	return b.String()
}

type rawSubtask struct {
	Title            string `json:"title"`
	Energy           string `json:"energy"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

type rawBreakdown struct {
	Subtasks         []rawSubtask `json:"subtasks"`
	EnergyLevel      string       `json:"energy_level"`
	EstimatedMinutes int          `json:"estimated_minutes"`
	TotalMinutes     int          `json:"total_estimated_minutes"`
	FirstStep        string       `json:"first_step"`
	CognitiveLoad    string       `json:"cognitive_load"`
}

var cognitiveLoadEnergy = map[string]model.EnergyLevel{
	"light":    model.EnergyLow,
	"moderate": model.EnergyMedium,
	"heavy":    model.EnergyHigh,
}

// ParseBreakdown decodes a model reply, tolerating a markdown code fence
// around the JSON. Missing energy falls back to the cognitive load, then to
// medium; a missing estimate falls back to the subtask sum, then to 30.
func ParseBreakdown(content string) (model.Breakdown, error) {
	var raw rawBreakdown
	if err := json.Unmarshal([]byte(stripFence(content)), &raw); err != nil {
		return model.Breakdown{}, fmt.Errorf("%w: %v", ErrBadBreakdown, err)
	}

	out := model.Breakdown{
		FirstStep: strings.TrimSpace(raw.FirstStep),
	}
	sum := 0
	for _, st := range raw.Subtasks {
		title := strings.TrimSpace(st.Title)
		if title == "" {
			continue
		}
		energy, err := model.ParseEnergyLevel(st.Energy)
		if err != nil {
			energy = model.EnergyMedium
		}
		minutes := st.EstimatedMinutes
		if minutes < 0 {
			minutes = 0
		}
		sum += minutes
		out.Subtasks = append(out.Subtasks, model.Subtask{Title: title, Energy: energy, EstimatedMinutes: minutes})
	}

	out.EnergyLevel = taskEnergy(raw.EnergyLevel, raw.CognitiveLoad)

	switch {
	case raw.EstimatedMinutes > 0:
		out.EstimatedMinutes = raw.EstimatedMinutes
	case raw.TotalMinutes > 0:
		out.EstimatedMinutes = raw.TotalMinutes
	case sum > 0:
		out.EstimatedMinutes = sum
	default:
		out.EstimatedMinutes = fallbackMinutes
	}

	if out.FirstStep == "" && len(out.Subtasks) > 0 {
		out.FirstStep = out.Subtasks[0].Title
	}
	return out, nil
}

func taskEnergy(level, load string) model.EnergyLevel {
	if energy, err := model.ParseEnergyLevel(level); err == nil {
		return energy
	}
	if energy, ok := cognitiveLoadEnergy[strings.ToLower(strings.TrimSpace(load))]; ok {
		return energy
	}
	return model.EnergyMedium
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
	} else {
		return s
	}
	if j := strings.Index(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
