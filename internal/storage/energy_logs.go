package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

func (r *SQLRepository) AddEnergyLog(ctx context.Context, l model.EnergyLog) error {
	if err := l.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO energy_logs (id, energy_level, focus_quality, day_part, weekday, logged_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		l.ID, string(l.Level), string(l.Focus), string(l.DayPart), int(l.Weekday), mustTime(l.LoggedAt),
	)
	if err != nil {
		return fmt.Errorf("insert energy log %s: %w", l.ID, err)
	}
	return nil
}

// ListEnergyLogs returns matching readings, newest first.
func (r *SQLRepository) ListEnergyLogs(ctx context.Context, filter EnergyLogFilter) ([]model.EnergyLog, error) {
	query := `SELECT id, energy_level, focus_quality, day_part, weekday, logged_at FROM energy_logs WHERE 1 = 1`
	args := make([]any, 0, 4)
	if !filter.Since.IsZero() {
		query += ` AND logged_at >= ?`
		args = append(args, mustTime(filter.Since))
	}
	if filter.DayPart != "" {
		query += ` AND day_part = ?`
		args = append(args, string(filter.DayPart))
	}
	if filter.Weekday != nil {
		query += ` AND weekday = ?`
		args = append(args, int(*filter.Weekday))
	}
	query += ` ORDER BY logged_at DESC, id DESC`
	query += r.pagination(&args, filter.Limit, 0)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.EnergyLog, 0)
	for rows.Next() {
		var l model.EnergyLog
		var level, focus, part, logged string
		var weekday int
		if err := rows.Scan(&l.ID, &level, &focus, &part, &weekday, &logged); err != nil {
			return nil, err
		}
		at, err := parseRequiredTime(logged)
		if err != nil {
			return nil, err
		}
		l.Level = model.EnergyLevel(level)
		l.Focus = model.FocusQuality(focus)
		l.DayPart = model.DayPart(part)
		l.Weekday = time.Weekday(weekday)
		l.LoggedAt = at
		out = append(out, l)
	}
	return out, rows.Err()
}
