package server

import (
	"time"

	"github.com/sandeepkv93/taskpilot/internal/clarity"
	"github.com/sandeepkv93/taskpilot/internal/energy"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
)

type TaskView struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id,omitempty"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Quadrant         model.Quadrant  `json:"quadrant"`
	QuadrantLabel    string          `json:"quadrant_label"`
	Score            float64         `json:"priority_score"`
	Explanation      string          `json:"explanation,omitempty"`
	Energy           string          `json:"energy_level"`
	EstimatedMinutes int             `json:"estimated_minutes"`
	DueAt            *time.Time      `json:"due_at,omitempty"`
	FirstStep        string          `json:"first_step,omitempty"`
	Subtasks         []model.Subtask `json:"subtasks,omitempty"`
	FirstSeenAt      time.Time       `json:"first_seen_at"`
	Completed        bool            `json:"completed"`
}

type EnergyView struct {
	TaskView
	Distance int  `json:"distance"`
	Exact    bool `json:"exact"`
}

type StaleView struct {
	TaskView
	DaysStale int            `json:"days_stale"`
	OpenSince time.Time      `json:"open_since"`
	Unstuck   *model.Unstuck `json:"unstuck,omitempty"`
}

type VagueView struct {
	TaskView
	Reasons   []clarity.Reason `json:"reasons"`
	Questions []string         `json:"questions,omitempty"`
}

type UnstuckView struct {
	TaskID string `json:"task_id"`
	model.Unstuck
}

type DailyView struct {
	Date              string                `json:"date"`
	Message           string                `json:"message"`
	RecommendedEnergy energy.Recommendation `json:"recommended_energy"`
	TopPriorities     []TaskView            `json:"top_priorities"`
	DueToday          []TaskView            `json:"due_today"`
	StaleTasks        []StaleView           `json:"stale_tasks"`
	VagueTasks        []VagueView           `json:"vague_tasks"`
	OpenTasks         int                   `json:"open_tasks"`
	StaleTotal        int                   `json:"stale_total"`
	VagueTotal        int                   `json:"vague_total"`
}

func insightView(in model.Insight) TaskView {
	return TaskView{
		ID:               in.ExternalTaskID,
		ProjectID:        in.ProjectID,
		Title:            in.Title,
		Description:      in.Description,
		Quadrant:         in.Quadrant,
		QuadrantLabel:    in.Quadrant.Label(),
		Score:            in.PriorityScore,
		Energy:           string(in.EnergyLevel),
		EstimatedMinutes: in.EstimatedMinutes,
		DueAt:            in.DueAt,
		FirstStep:        in.FirstStep,
		Subtasks:         in.Subtasks,
		FirstSeenAt:      in.FirstSeenAt,
		Completed:        in.Completed,
	}
}

func scoredView(s scoring.Scored) TaskView {
	v := insightView(s.Insight)
	v.Quadrant = s.Result.Quadrant
	v.QuadrantLabel = s.Result.Quadrant.Label()
	v.Score = s.Result.Score
	v.Explanation = s.Result.Explanation
	return v
}

func staleView(st staleness.Stale) StaleView {
	return StaleView{
		TaskView:  insightView(st.Insight),
		DaysStale: st.Days(),
		OpenSince: st.Insight.FirstSeenAt,
		Unstuck:   st.Insight.Unstuck,
	}
}

func vagueView(v clarity.Vague) VagueView {
	out := VagueView{TaskView: insightView(v.Insight), Reasons: v.Reasons}
	if c := v.Insight.Clarification; c != nil {
		out.Questions = c.Questions
	}
	return out
}

func dailyView(r service.DailyReview) DailyView {
	out := DailyView{
		Date:              r.Date,
		Message:           "Good morning! Here's your focus for today.",
		RecommendedEnergy: r.Energy,
		TopPriorities:     make([]TaskView, 0, len(r.Top)),
		DueToday:          make([]TaskView, 0, len(r.DueToday)),
		StaleTasks:        make([]StaleView, 0, len(r.Stale)),
		VagueTasks:        make([]VagueView, 0, len(r.Vague)),
		OpenTasks:         r.OpenTasks,
		StaleTotal:        r.StaleTotal,
		VagueTotal:        r.VagueTotal,
	}
	for _, item := range r.Top {
		out.TopPriorities = append(out.TopPriorities, scoredView(item))
	}
	for _, item := range r.DueToday {
		out.DueToday = append(out.DueToday, scoredView(item))
	}
	for _, st := range r.Stale {
		out.StaleTasks = append(out.StaleTasks, staleView(st))
	}
	for _, v := range r.Vague {
		out.VagueTasks = append(out.VagueTasks, vagueView(v))
	}
	return out
}
