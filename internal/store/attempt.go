package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/grading"
)

type attemptRepo struct {
	db *sqlx.DB
}

func saveAttempt(ctx context.Context, ex execer, attempt assessment.Attempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	if attempt.SubmittedAt.IsZero() {
		attempt.SubmittedAt = time.Now().UTC()
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO attempts (id, student_id, kind, submitted_at, answers)
		VALUES (?, ?, ?, ?, ?)`,
		attempt.ID, attempt.StudentID, string(attempt.Kind),
		attempt.SubmittedAt.Format(timeLayout), string(answers))
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *attemptRepo) SaveAttempt(ctx context.Context, attempt assessment.Attempt) error {
	return saveAttempt(ctx, r.db, attempt)
}

// RecordMastery writes the attempt and its grading result together so
// a partially graded attempt is never visible.
func (r *attemptRepo) RecordMastery(ctx context.Context, attempt assessment.Attempt, result *grading.MasteryResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode mastery result: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := saveAttempt(ctx, tx, attempt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mastery_results (attempt_id, result, created_at)
		VALUES (?, ?, ?)`,
		attempt.ID, string(payload), time.Now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("insert mastery result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mastery result: %w", err)
	}
	return nil
}

func (r *attemptRepo) Attempt(ctx context.Context, id string) (*assessment.Attempt, error) {
	var row struct {
		ID          string `db:"id"`
		StudentID   string `db:"student_id"`
		Kind        string `db:"kind"`
		SubmittedAt string `db:"submitted_at"`
		Answers     string `db:"answers"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT id, student_id, kind, submitted_at, answers
		FROM attempts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	attempt := assessment.Attempt{
		ID:        row.ID,
		StudentID: row.StudentID,
		Kind:      assessment.AttemptKind(row.Kind),
	}
	attempt.SubmittedAt, _ = time.Parse(timeLayout, row.SubmittedAt)
	if err := json.Unmarshal([]byte(row.Answers), &attempt.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &attempt, nil
}

func (r *attemptRepo) MasteryResult(ctx context.Context, attemptID string) (*grading.MasteryResult, error) {
	var payload string
	err := r.db.GetContext(ctx, &payload,
		`SELECT result FROM mastery_results WHERE attempt_id = ?`, attemptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mastery result: %w", err)
	}
	var result grading.MasteryResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode mastery result: %w", err)
	}
	return &result, nil
}
