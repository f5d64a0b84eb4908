package scoring

import (
	"errors"
	"time"
)

// Default policy table. Tests pin these values.
const (
	DefaultUrgentWithin         = 24 * time.Hour
	DefaultImportant            = true
	DefaultImportantMinPriority = 3

	DefaultBaseQ1 = 70.0
	DefaultBaseQ2 = 50.0
	DefaultBaseQ3 = 30.0
	DefaultBaseQ4 = 10.0

	DefaultOverdueBonus = 20.0
	DefaultDueSoonBonus = 10.0

	DefaultStaleAfter         = 72 * time.Hour
	DefaultStalePenaltyPerDay = 1.0
	DefaultStalePenaltyCap    = 10.0

	DefaultQuickWinMinutes = 15
	DefaultQuickWinBonus   = 5.0

	MinScore = 0.0
	MaxScore = 100.0
)

// Policy is the tunable scoring table. It is copied by value into the engine.
type Policy struct {
	UrgentWithin time.Duration `koanf:"urgent_within"`
	// DefaultImportant applies when a task carries no importance signal at all.
	DefaultImportant     bool `koanf:"default_important"`
	ImportantMinPriority int  `koanf:"important_min_priority"`

	BaseQ1 float64 `koanf:"base_q1"`
	BaseQ2 float64 `koanf:"base_q2"`
	BaseQ3 float64 `koanf:"base_q3"`
	BaseQ4 float64 `koanf:"base_q4"`

	OverdueBonus float64 `koanf:"overdue_bonus"`
	DueSoonBonus float64 `koanf:"due_soon_bonus"`

	StaleAfter         time.Duration `koanf:"stale_after"`
	StalePenaltyPerDay float64       `koanf:"stale_penalty_per_day"`
	StalePenaltyCap    float64       `koanf:"stale_penalty_cap"`

	QuickWinMinutes int     `koanf:"quick_win_minutes"`
	QuickWinBonus   float64 `koanf:"quick_win_bonus"`
}

func DefaultPolicy() Policy {
	return Policy{
		UrgentWithin:         DefaultUrgentWithin,
		DefaultImportant:     DefaultImportant,
		ImportantMinPriority: DefaultImportantMinPriority,
		BaseQ1:               DefaultBaseQ1,
		BaseQ2:               DefaultBaseQ2,
		BaseQ3:               DefaultBaseQ3,
		BaseQ4:               DefaultBaseQ4,
		OverdueBonus:         DefaultOverdueBonus,
		DueSoonBonus:         DefaultDueSoonBonus,
		StaleAfter:           DefaultStaleAfter,
		StalePenaltyPerDay:   DefaultStalePenaltyPerDay,
		StalePenaltyCap:      DefaultStalePenaltyCap,
		QuickWinMinutes:      DefaultQuickWinMinutes,
		QuickWinBonus:        DefaultQuickWinBonus,
	}
}

func (p Policy) Validate() error {
	if p.UrgentWithin < 0 {
		return errors.New("scoring: urgent_within must not be negative")
	}
	if p.StaleAfter <= 0 {
		return errors.New("scoring: stale_after must be positive")
	}
	if !(p.BaseQ1 >= p.BaseQ2 && p.BaseQ2 >= p.BaseQ3 && p.BaseQ3 >= p.BaseQ4) {
		return errors.New("scoring: quadrant bases must not increase from Q1 to Q4")
	}
	if p.OverdueBonus < p.DueSoonBonus {
		return errors.New("scoring: overdue bonus must be at least the due-soon bonus")
	}
	if p.StalePenaltyPerDay < 0 || p.StalePenaltyCap < 0 || p.QuickWinBonus < 0 {
		return errors.New("scoring: penalties and bonuses must not be negative")
	}
	return nil
}
