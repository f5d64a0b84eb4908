package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidEnergy   = errors.New("model: invalid energy level")
	ErrInvalidQuadrant = errors.New("model: invalid eisenhower quadrant")
	ErrInvalidEstimate = errors.New("model: estimated minutes must be positive")
)

type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "low"
	EnergyMedium EnergyLevel = "medium"
	EnergyHigh   EnergyLevel = "high"
)

func (e EnergyLevel) IsValid() bool {
	switch e {
	case EnergyLow, EnergyMedium, EnergyHigh:
		return true
	default:
		return false
	}
}

// Rank places levels on the low < medium < high axis. Adjacent levels differ by one.
func (e EnergyLevel) Rank() int {
	switch e {
	case EnergyLow:
		return 0
	case EnergyMedium:
		return 1
	case EnergyHigh:
		return 2
	default:
		return -1
	}
}

// Distance is the number of adjacency steps between two levels.
func (e EnergyLevel) Distance(other EnergyLevel) int {
	d := e.Rank() - other.Rank()
	if d < 0 {
		return -d
	}
	return d
}

func ParseEnergyLevel(raw string) (EnergyLevel, error) {
	level := EnergyLevel(strings.ToLower(strings.TrimSpace(raw)))
	if !level.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEnergy, raw)
	}
	return level, nil
}

type Quadrant string

const (
	QuadrantDo       Quadrant = "Q1"
	QuadrantSchedule Quadrant = "Q2"
	QuadrantDelegate Quadrant = "Q3"
	QuadrantDrop     Quadrant = "Q4"
)

func (q Quadrant) IsValid() bool {
	switch q {
	case QuadrantDo, QuadrantSchedule, QuadrantDelegate, QuadrantDrop:
		return true
	default:
		return false
	}
}

// Order is 1 for Q1 through 4 for Q4.
func (q Quadrant) Order() int {
	switch q {
	case QuadrantDo:
		return 1
	case QuadrantSchedule:
		return 2
	case QuadrantDelegate:
		return 3
	case QuadrantDrop:
		return 4
	default:
		return 5
	}
}

func (q Quadrant) Label() string {
	switch q {
	case QuadrantDo:
		return "urgent + important"
	case QuadrantSchedule:
		return "important"
	case QuadrantDelegate:
		return "urgent"
	case QuadrantDrop:
		return "neither"
	default:
		return "unknown"
	}
}

type Subtask struct {
	Title            string      `json:"title"`
	Energy           EnergyLevel `json:"energy"`
	EstimatedMinutes int         `json:"estimated_minutes"`
}

// Insight is the stored analysis of one external task.
type Insight struct {
	ExternalTaskID   string
	ProjectID        string
	Title            string
	Description      string
	EnergyLevel      EnergyLevel
	EstimatedMinutes int
	PriorityScore    float64
	Quadrant         Quadrant
	SourcePriority   int
	DueAt            *time.Time
	FirstStep        string
	Subtasks         []Subtask
	FirstSeenAt      time.Time
	LastUpdatedAt    time.Time
	Completed        bool

	// Guidance is stored apart from the analysis and survives re-analysis.
	Unstuck       *Unstuck
	Clarification *Clarification
}

func (i Insight) HasProject() bool {
	return strings.TrimSpace(i.ProjectID) != ""
}

func (i Insight) Validate() error {
	if strings.TrimSpace(i.ExternalTaskID) == "" {
		return errors.New("model: external task id is required")
	}
	if !i.EnergyLevel.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEnergy, i.EnergyLevel)
	}
	if !i.Quadrant.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidQuadrant, i.Quadrant)
	}
	if i.EstimatedMinutes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEstimate, i.EstimatedMinutes)
	}
	if i.PriorityScore < 0 || i.PriorityScore > 100 {
		return fmt.Errorf("model: priority score %.2f out of range 0..100", i.PriorityScore)
	}
	if i.FirstSeenAt.IsZero() {
		return errors.New("model: first_seen_at is required")
	}
	if i.LastUpdatedAt.Before(i.FirstSeenAt) {
		return errors.New("model: last_updated_at must not precede first_seen_at")
	}
	return nil
}
