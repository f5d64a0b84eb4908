package storage

import (
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

type InsightListFilter struct {
	OpenOnly bool
	Limit    int
	Offset   int
}

type EnergyLogFilter struct {
	Since   time.Time
	DayPart model.DayPart
	// Weekday restricts to one day of the week when set.
	Weekday *time.Weekday
	Limit   int
}
