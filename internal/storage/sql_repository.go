package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sandeepkv93/taskpilot/internal/model"
)

// sqlTimeLayout is fixed width so text ordering matches time ordering.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) IsValid() bool {
	return d == DialectSQLite || d == DialectPostgres
}

const insightColumns = `external_task_id, project_id, title, description, energy_level, estimated_minutes,
	priority_score, eisenhower_quadrant, source_priority, due_at, first_step, subtasks_json,
	first_seen_at, last_updated_at, completed`

// insightSelect joins the stored guidance, which analysis upserts never touch.
const insightSelect = `SELECT i.external_task_id, i.project_id, i.title, i.description, i.energy_level,
	i.estimated_minutes, i.priority_score, i.eisenhower_quadrant, i.source_priority, i.due_at, i.first_step,
	i.subtasks_json, i.first_seen_at, i.last_updated_at, i.completed,
	g.unstuck_json, g.questions_json, g.answers_json
	FROM task_insights i LEFT JOIN task_guidance g ON g.external_task_id = i.external_task_id`

type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(db *sql.DB, dialect Dialect) (*SQLRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if !dialect.IsValid() {
		return nil, fmt.Errorf("storage: unsupported dialect %q", dialect)
	}
	if dialect == DialectSQLite {
		// One connection serializes writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}
	return &SQLRepository{db: db, dialect: dialect}, nil
}

// Open connects to the store, applies migrations and returns a ready repository.
func Open(driver, dsn string) (*SQLRepository, error) {
	dialect := Dialect(driver)
	if !dialect.IsValid() {
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	repo, err := NewSQLRepository(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) UpsertInsight(ctx context.Context, in model.Insight) (model.Insight, error) {
	if err := in.Validate(); err != nil {
		return model.Insight{}, err
	}
	subtasks, err := encodeSubtasks(in.Subtasks)
	if err != nil {
		return model.Insight{}, err
	}
	_, err = r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO task_insights (`+insightColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_task_id) DO UPDATE SET
			project_id = COALESCE(excluded.project_id, task_insights.project_id),
			title = excluded.title,
			description = excluded.description,
			energy_level = excluded.energy_level,
			estimated_minutes = excluded.estimated_minutes,
			priority_score = excluded.priority_score,
			eisenhower_quadrant = excluded.eisenhower_quadrant,
			source_priority = excluded.source_priority,
			due_at = excluded.due_at,
			first_step = excluded.first_step,
			subtasks_json = excluded.subtasks_json,
			last_updated_at = excluded.last_updated_at,
			completed = excluded.completed`),
		in.ExternalTaskID, nullString(in.ProjectID), in.Title, in.Description, string(in.EnergyLevel), in.EstimatedMinutes,
		in.PriorityScore, string(in.Quadrant), in.SourcePriority, nullTime(in.DueAt), in.FirstStep, subtasks,
		mustTime(in.FirstSeenAt), mustTime(in.LastUpdatedAt), boolInt(in.Completed),
	)
	if err != nil {
		return model.Insight{}, fmt.Errorf("upsert insight %s: %w", in.ExternalTaskID, err)
	}
	return r.GetInsight(ctx, in.ExternalTaskID)
}

func (r *SQLRepository) GetInsight(ctx context.Context, externalTaskID string) (model.Insight, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(insightSelect+` WHERE i.external_task_id = ?`), externalTaskID)
	item, err := scanInsight(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Insight{}, ErrNotFound
		}
		return model.Insight{}, err
	}
	return item, nil
}

func (r *SQLRepository) ListInsights(ctx context.Context, filter InsightListFilter) ([]model.Insight, error) {
	query := insightSelect
	args := make([]any, 0, 3)
	if filter.OpenOnly {
		query += ` WHERE i.completed = ?`
		args = append(args, boolInt(false))
	}
	query += ` ORDER BY i.first_seen_at ASC, i.external_task_id ASC`
	query += r.pagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Insight, 0)
	for rows.Next() {
		item, scanErr := scanInsight(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLRepository) SetProjectID(ctx context.Context, externalTaskID, projectID string) error {
	if strings.TrimSpace(projectID) == "" {
		return errors.New("storage: refusing to store an empty project id")
	}
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE task_insights SET project_id = ? WHERE external_task_id = ?`),
		projectID, externalTaskID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLRepository) MarkCompleted(ctx context.Context, externalTaskID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE task_insights SET completed = ?, last_updated_at = ? WHERE external_task_id = ?`),
		boolInt(true), mustTime(at), externalTaskID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func nullString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqlTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqlTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

// parseRequiredTime also reads rows written before the fixed-width layout.
func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func encodeSubtasks(items []model.Subtask) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode subtasks: %w", err)
	}
	return string(raw), nil
}

func decodeSubtasks(raw string) ([]model.Subtask, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []model.Subtask
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode subtasks: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) pagination(args *[]any, limit, offset int) string {
	sql := ""
	switch {
	case limit > 0:
		sql += " LIMIT ?"
		*args = append(*args, limit)
	case offset > 0 && r.dialect == DialectSQLite:
		// sqlite only accepts OFFSET after a LIMIT clause.
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInsight(s scanner) (model.Insight, error) {
	var out model.Insight
	var project sql.NullString
	var energy, quadrant string
	var due sql.NullString
	var subtasks string
	var firstSeen, lastUpdated string
	var completed int
	var unstuck, questions, answers sql.NullString
	if err := s.Scan(&out.ExternalTaskID, &project, &out.Title, &out.Description, &energy, &out.EstimatedMinutes,
		&out.PriorityScore, &quadrant, &out.SourcePriority, &due, &out.FirstStep, &subtasks,
		&firstSeen, &lastUpdated, &completed, &unstuck, &questions, &answers); err != nil {
		return model.Insight{}, err
	}
	dueAt, err := parseNullableTime(due)
	if err != nil {
		return model.Insight{}, err
	}
	firstSeenAt, err := parseRequiredTime(firstSeen)
	if err != nil {
		return model.Insight{}, err
	}
	lastUpdatedAt, err := parseRequiredTime(lastUpdated)
	if err != nil {
		return model.Insight{}, err
	}
	items, err := decodeSubtasks(subtasks)
	if err != nil {
		return model.Insight{}, err
	}
	if out.Unstuck, err = decodeUnstuck(unstuck); err != nil {
		return model.Insight{}, err
	}
	if out.Clarification, err = decodeClarification(questions, answers); err != nil {
		return model.Insight{}, err
	}
	if project.Valid {
		out.ProjectID = project.String
	}
	out.EnergyLevel = model.EnergyLevel(energy)
	out.Quadrant = model.Quadrant(quadrant)
	out.DueAt = dueAt
	out.Subtasks = items
	out.FirstSeenAt = firstSeenAt
	out.LastUpdatedAt = lastUpdatedAt
	out.Completed = completed == 1
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
