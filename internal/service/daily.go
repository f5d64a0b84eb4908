package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/clarity"
	"github.com/sandeepkv93/taskpilot/internal/energy"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
)

const (
	DailyStaleLimit = 5
	DailyVagueLimit = 5
)

type DailyReview struct {
	Date        string                `json:"date"`
	Energy      energy.Recommendation `json:"recommended_energy"`
	Top         []scoring.Scored      `json:"top_priorities"`
	DueToday    []scoring.Scored      `json:"due_today"`
	Stale       []staleness.Stale     `json:"stale_tasks"`
	Vague       []clarity.Vague       `json:"vague_tasks"`
	OpenTasks   int                   `json:"open_tasks"`
	StaleTotal  int                   `json:"stale_total"`
	VagueTotal  int                   `json:"vague_total"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Daily gathers the morning overview: the suggested energy level, the top
// priorities, the tasks due today, and the longest-open stale and vague
// tasks. Today is the calendar day of the service clock; overdue tasks are
// not due today.
func (s *Service) Daily(ctx context.Context) (DailyReview, error) {
	items, err := s.openInsights(ctx)
	if err != nil {
		return DailyReview{}, err
	}
	rec, err := s.energy.Current(ctx)
	if err != nil {
		return DailyReview{}, err
	}
	now := s.now()
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	due := make([]model.Insight, 0)
	for _, item := range items {
		if item.DueAt != nil && !item.DueAt.Before(startOfDay) && item.DueAt.Before(endOfDay) {
			due = append(due, item)
		}
	}
	dueToday := s.engine.ScoreAll(due, now)
	scoring.Sort(dueToday)

	stale := s.detector.Detect(items, now)
	for i := range stale {
		stale[i].Insight = s.engine.Apply(stale[i].Insight, now)
	}
	vague := s.clarity.Detect(items)

	return DailyReview{
		Date:        now.Format(time.DateOnly),
		Energy:      rec,
		Top:         s.engine.Top(items, now, DefaultTopLimit),
		DueToday:    dueToday,
		Stale:       head(stale, DailyStaleLimit),
		Vague:       head(vague, DailyVagueLimit),
		OpenTasks:   len(items),
		StaleTotal:  len(stale),
		VagueTotal:  len(vague),
		GeneratedAt: now,
	}, nil
}

func (s *Service) LogEnergy(ctx context.Context, level model.EnergyLevel, focus model.FocusQuality) (model.EnergyLog, error) {
	if !level.IsValid() {
		return model.EnergyLog{}, fmt.Errorf("%w: %q", model.ErrInvalidEnergy, level)
	}
	return s.energy.Log(ctx, level, focus)
}

// CurrentEnergy suggests a level for now from past readings in the same slot.
func (s *Service) CurrentEnergy(ctx context.Context) (energy.Recommendation, error) {
	return s.energy.Current(ctx)
}

func (s *Service) EnergyPatterns(ctx context.Context, days int) (energy.Patterns, error) {
	return s.energy.Patterns(ctx, days)
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
