package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
)

const (
	colUnstuck   = "unstuck_json"
	colQuestions = "questions_json"
	colAnswers   = "answers_json"
)

func (r *SQLRepository) SetUnstuck(ctx context.Context, externalTaskID string, help model.Unstuck) error {
	raw, err := json.Marshal(help)
	if err != nil {
		return fmt.Errorf("encode unstuck help: %w", err)
	}
	at := help.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	return r.upsertGuidance(ctx, externalTaskID, colUnstuck, string(raw), at)
}

func (r *SQLRepository) SetClarifyingQuestions(ctx context.Context, externalTaskID string, questions []string, at time.Time) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode clarifying questions: %w", err)
	}
	return r.upsertGuidance(ctx, externalTaskID, colQuestions, string(raw), at)
}

func (r *SQLRepository) SetClarifyingAnswers(ctx context.Context, externalTaskID string, answers map[string]string, at time.Time) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode clarifying answers: %w", err)
	}
	return r.upsertGuidance(ctx, externalTaskID, colAnswers, string(raw), at)
}

// upsertGuidance writes one guidance column for an existing insight. column is
// always one of the col* constants.
func (r *SQLRepository) upsertGuidance(ctx context.Context, externalTaskID, column, value string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO task_guidance (external_task_id, `+column+`, updated_at)
		SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM task_insights WHERE external_task_id = ?)
		ON CONFLICT (external_task_id) DO UPDATE SET
			`+column+` = excluded.`+column+`,
			updated_at = excluded.updated_at`),
		externalTaskID, value, mustTime(at), externalTaskID,
	)
	if err != nil {
		return fmt.Errorf("store %s for %s: %w", strings.TrimSuffix(column, "_json"), externalTaskID, err)
	}
	return checkRowsAffected(res)
}

func decodeUnstuck(raw sql.NullString) (*model.Unstuck, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var out model.Unstuck
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, fmt.Errorf("decode unstuck help: %w", err)
	}
	return &out, nil
}

func decodeClarification(questions, answers sql.NullString) (*model.Clarification, error) {
	hasQuestions := questions.Valid && strings.TrimSpace(questions.String) != ""
	hasAnswers := answers.Valid && strings.TrimSpace(answers.String) != ""
	if !hasQuestions && !hasAnswers {
		return nil, nil
	}
	out := &model.Clarification{}
	if hasQuestions {
		if err := json.Unmarshal([]byte(questions.String), &out.Questions); err != nil {
			return nil, fmt.Errorf("decode clarifying questions: %w", err)
		}
	}
	if hasAnswers {
		if err := json.Unmarshal([]byte(answers.String), &out.Answers); err != nil {
			return nil, fmt.Errorf("decode clarifying answers: %w", err)
		}
	}
	return out, nil
}
