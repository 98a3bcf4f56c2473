package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type goalRepo struct {
	db *sqlx.DB
}

type goalRow struct {
	ID         string `db:"id"`
	StudentID  string `db:"student_id"`
	TargetDate string `db:"target_date"`
	TopicIDs   string `db:"topic_ids"`
	Active     bool   `db:"active"`
	CreatedAt  string `db:"created_at"`
}

func (r goalRow) goal() (LearningGoal, error) {
	var topicIDs []string
	if err := json.Unmarshal([]byte(r.TopicIDs), &topicIDs); err != nil {
		return LearningGoal{}, fmt.Errorf("decode topic ids: %w", err)
	}
	target, err := time.Parse(dateLayout, r.TargetDate)
	if err != nil {
		return LearningGoal{}, fmt.Errorf("parse target date: %w", err)
	}
	created, _ := time.Parse(timeLayout, r.CreatedAt)
	return LearningGoal{
		ID:         r.ID,
		StudentID:  r.StudentID,
		TargetDate: target,
		TopicIDs:   topicIDs,
		Active:     r.Active,
		CreatedAt:  created,
	}, nil
}

// Create deactivates the student's prior active goal, inserts the new
// goal and its initial nodes, all in one transaction. A failure at
// any point leaves no partial goal behind.
func (r *goalRepo) Create(ctx context.Context, goal LearningGoal, nodes []LearningPathNode) error {
	topicIDs, err := json.Marshal(goal.TopicIDs)
	if err != nil {
		return fmt.Errorf("encode topic ids: %w", err)
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE goals SET active = 0 WHERE student_id = ? AND active = 1`,
		goal.StudentID); err != nil {
		return fmt.Errorf("deactivate prior goal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO goals (id, student_id, target_date, topic_ids, active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`,
		goal.ID, goal.StudentID, goal.TargetDate.Format(dateLayout),
		string(topicIDs), goal.CreatedAt.Format(timeLayout)); err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}

	for _, n := range nodes {
		if err := insertNode(ctx, tx, n); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit goal: %w", err)
	}
	return nil
}

func (r *goalRepo) Get(ctx context.Context, goalID string) (*LearningGoal, error) {
	var row goalRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, student_id, target_date, topic_ids, active, created_at
		FROM goals WHERE id = ?`, goalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	g, err := row.goal()
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *goalRepo) ActiveGoal(ctx context.Context, studentID string) (*LearningGoal, error) {
	var row goalRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, student_id, target_date, topic_ids, active, created_at
		FROM goals
		WHERE student_id = ? AND active = 1
		ORDER BY created_at DESC
		LIMIT 1`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active goal: %w", err)
	}
	g, err := row.goal()
	if err != nil {
		return nil, err
	}
	return &g, nil
}
