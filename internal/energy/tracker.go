// Package energy records self-reported energy readings and suggests a level
// for the current time slot from the readings taken in the same slot before.
package energy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/sandeepkv93/taskpilot/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultHistory     = 10
	DefaultPatternDays = 30
)

type Store interface {
	AddEnergyLog(ctx context.Context, l model.EnergyLog) error
	ListEnergyLogs(ctx context.Context, filter storage.EnergyLogFilter) ([]model.EnergyLog, error)
}

type Policy struct {
	// History is how many past readings from the same slot inform Current.
	History     int `koanf:"history"`
	PatternDays int `koanf:"pattern_days"`
}

func DefaultPolicy() Policy {
	return Policy{History: DefaultHistory, PatternDays: DefaultPatternDays}
}

func (p Policy) Validate() error {
	if p.History < 1 {
		return errors.New("energy: history must be at least 1")
	}
	if p.PatternDays < 1 {
		return errors.New("energy: pattern days must be at least 1")
	}
	return nil
}

type Basis string

const (
	BasisHistory Basis = "history"
	BasisDefault Basis = "default"
)

type Recommendation struct {
	Level   model.EnergyLevel `json:"energy_level"`
	DayPart model.DayPart     `json:"day_part"`
	Weekday string            `json:"weekday"`
	Basis   Basis             `json:"basis"`
	Samples int               `json:"samples"`
}

type SlotPattern struct {
	DayPart      model.DayPart             `json:"day_part"`
	MostCommon   model.EnergyLevel         `json:"most_common_energy"`
	Samples      int                       `json:"samples"`
	Distribution map[model.EnergyLevel]int `json:"distribution"`
}

type Patterns struct {
	Days      int           `json:"days"`
	Samples   int           `json:"samples"`
	ByDayPart []SlotPattern `json:"by_day_part"`
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

type Tracker struct {
	store  Store
	policy Policy
	now    func() time.Time
	logger *zap.Logger
}

func New(store Store, p Policy, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.History < 1 {
		p.History = DefaultHistory
	}
	if p.PatternDays < 1 {
		p.PatternDays = DefaultPatternDays
	}
	t := &Tracker{store: store, policy: p, now: time.Now, logger: logger.Named("energy")}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Log stores a reading taken now. The slot uses the clock's own location.
func (t *Tracker) Log(ctx context.Context, level model.EnergyLevel, focus model.FocusQuality) (model.EnergyLog, error) {
	now := t.now()
	l := model.EnergyLog{
		ID:       uuid.NewString(),
		Level:    level,
		Focus:    focus,
		DayPart:  model.DayPartAt(now),
		Weekday:  now.Weekday(),
		LoggedAt: now.UTC(),
	}
	if err := t.store.AddEnergyLog(ctx, l); err != nil {
		return model.EnergyLog{}, fmt.Errorf("log energy: %w", err)
	}
	t.logger.Debug("energy logged",
		zap.String("level", string(level)),
		zap.String("day_part", string(l.DayPart)),
	)
	return l, nil
}

// Current suggests a level for the present slot: the most common level among
// the latest readings with the same day part and weekday, ties going to the
// most recent. Without history it falls back to DefaultFor.
func (t *Tracker) Current(ctx context.Context) (Recommendation, error) {
	now := t.now()
	part := model.DayPartAt(now)
	weekday := now.Weekday()
	rec := Recommendation{DayPart: part, Weekday: weekday.String()}

	logs, err := t.store.ListEnergyLogs(ctx, storage.EnergyLogFilter{
		DayPart: part,
		Weekday: &weekday,
		Limit:   t.policy.History,
	})
	if err != nil {
		return rec, fmt.Errorf("energy history: %w", err)
	}
	if len(logs) == 0 {
		rec.Level = DefaultFor(part)
		rec.Basis = BasisDefault
		return rec, nil
	}
	rec.Level, _ = mostCommon(logs)
	rec.Basis = BasisHistory
	rec.Samples = len(logs)
	return rec, nil
}

// Patterns summarises the readings of the last days per day part. A
// non-positive days uses the policy default.
func (t *Tracker) Patterns(ctx context.Context, days int) (Patterns, error) {
	if days < 1 {
		days = t.policy.PatternDays
	}
	since := t.now().Add(-time.Duration(days) * 24 * time.Hour)
	logs, err := t.store.ListEnergyLogs(ctx, storage.EnergyLogFilter{Since: since})
	if err != nil {
		return Patterns{}, fmt.Errorf("energy patterns: %w", err)
	}

	byPart := make(map[model.DayPart][]model.EnergyLog)
	for _, l := range logs {
		byPart[l.DayPart] = append(byPart[l.DayPart], l)
	}
	out := Patterns{Days: days, Samples: len(logs), ByDayPart: make([]SlotPattern, 0, len(byPart))}
	for _, part := range model.DayParts {
		slot := byPart[part]
		if len(slot) == 0 {
			continue
		}
		level, counts := mostCommon(slot)
		out.ByDayPart = append(out.ByDayPart, SlotPattern{
			DayPart:      part,
			MostCommon:   level,
			Samples:      len(slot),
			Distribution: counts,
		})
	}
	return out, nil
}

// DefaultFor is the level assumed for a slot with no readings.
func DefaultFor(part model.DayPart) model.EnergyLevel {
	switch part {
	case model.DayPartMorning:
		return model.EnergyHigh
	case model.DayPartAfternoon:
		return model.EnergyMedium
	default:
		return model.EnergyLow
	}
}

// mostCommon expects logs newest first.
func mostCommon(logs []model.EnergyLog) (model.EnergyLevel, map[model.EnergyLevel]int) {
	counts := make(map[model.EnergyLevel]int, 3)
	for _, l := range logs {
		counts[l.Level]++
	}
	var best model.EnergyLevel
	for _, l := range logs {
		if best == "" || counts[l.Level] > counts[best] {
			best = l.Level
		}
	}
	return best, counts
}
