package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidFocus = errors.New("model: invalid focus quality")

// DayPart buckets the hour of day the way energy history is grouped.
type DayPart string

const (
	DayPartMorning   DayPart = "morning"
	DayPartAfternoon DayPart = "afternoon"
	DayPartEvening   DayPart = "evening"
	DayPartNight     DayPart = "night"
)

// DayParts lists the buckets in clock order.
var DayParts = []DayPart{DayPartMorning, DayPartAfternoon, DayPartEvening, DayPartNight}

// DayPartAt classifies t in its own location: 05-12 morning, 12-17 afternoon,
// 17-21 evening, otherwise night.
func DayPartAt(t time.Time) DayPart {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return DayPartMorning
	case h >= 12 && h < 17:
		return DayPartAfternoon
	case h >= 17 && h < 21:
		return DayPartEvening
	default:
		return DayPartNight
	}
}

type FocusQuality string

const (
	FocusNone      FocusQuality = ""
	FocusScattered FocusQuality = "scattered"
	FocusOkay      FocusQuality = "okay"
	FocusSharp     FocusQuality = "sharp"
)

func ParseFocusQuality(raw string) (FocusQuality, error) {
	f := FocusQuality(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FocusNone, FocusScattered, FocusOkay, FocusSharp:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFocus, raw)
	}
}

// EnergyLog is one self-reported energy reading.
type EnergyLog struct {
	ID       string       `json:"id"`
	Level    EnergyLevel  `json:"energy_level"`
	Focus    FocusQuality `json:"focus_quality,omitempty"`
	DayPart  DayPart      `json:"day_part"`
	Weekday  time.Weekday `json:"weekday"`
	LoggedAt time.Time    `json:"logged_at"`
}

func (l EnergyLog) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return errors.New("model: energy log id is required")
	}
	if !l.Level.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEnergy, l.Level)
	}
	if _, err := ParseFocusQuality(string(l.Focus)); err != nil {
		return err
	}
	if l.LoggedAt.IsZero() {
		return errors.New("model: logged_at is required")
	}
	return nil
}
