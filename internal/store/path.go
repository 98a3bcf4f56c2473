package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/pathwise/internal/assessment"
)

type pathRepo struct {
	db *sqlx.DB
}

type nodeRow struct {
	ID            string `db:"id"`
	GoalID        string `db:"goal_id"`
	TopicID       string `db:"topic_id"`
	SubtopicID    string `db:"subtopic_id"`
	ScheduledDate string `db:"scheduled_date"`
	Difficulty    string `db:"difficulty"`
	Status        string `db:"status"`
	OrderIndex    int    `db:"order_index"`
	EstimatedMins int    `db:"estimated_mins"`
}

func (r nodeRow) node() (LearningPathNode, error) {
	scheduled, err := time.Parse(dateLayout, r.ScheduledDate)
	if err != nil {
		return LearningPathNode{}, fmt.Errorf("parse scheduled date: %w", err)
	}
	return LearningPathNode{
		ID:            r.ID,
		GoalID:        r.GoalID,
		TopicID:       r.TopicID,
		SubtopicID:    r.SubtopicID,
		ScheduledDate: scheduled,
		Difficulty:    assessment.Difficulty(r.Difficulty),
		Status:        NodeStatus(r.Status),
		OrderIndex:    r.OrderIndex,
		EstimatedMins: r.EstimatedMins,
	}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertNode(ctx context.Context, ex execer, n LearningPathNode) error {
	if n.Status == "" {
		n.Status = NodeStatusPending
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO path_nodes
			(id, goal_id, topic_id, subtopic_id, scheduled_date,
			 difficulty, status, order_index, estimated_mins)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.GoalID, n.TopicID, n.SubtopicID,
		n.ScheduledDate.Format(dateLayout),
		string(n.Difficulty), string(n.Status), n.OrderIndex, n.EstimatedMins)
	if isUniqueViolation(err) {
		return fmt.Errorf("node %s at (%s, %d): %w",
			n.ID, n.ScheduledDate.Format(dateLayout), n.OrderIndex, ErrSlotConflict)
	}
	if err != nil {
		return fmt.Errorf("insert path node: %w", err)
	}
	return nil
}

func (r *pathRepo) ListByGoal(ctx context.Context, goalID string) ([]LearningPathNode, error) {
	var rows []nodeRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, goal_id, topic_id, subtopic_id, scheduled_date,
		       difficulty, status, order_index, estimated_mins
		FROM path_nodes
		WHERE goal_id = ?
		ORDER BY scheduled_date, order_index`, goalID)
	if err != nil {
		return nil, fmt.Errorf("list path nodes: %w", err)
	}
	nodes := make([]LearningPathNode, len(rows))
	for i, row := range rows {
		n, err := row.node()
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}

func (r *pathRepo) Insert(ctx context.Context, node LearningPathNode) error {
	return insertNode(ctx, r.db, node)
}

func (r *pathRepo) UpdateStatus(ctx context.Context, nodeID string, status NodeStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid node status %q", status)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE path_nodes SET status = ? WHERE id = ?`, string(status), nodeID)
	if err != nil {
		return fmt.Errorf("update node status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// EscalateDifficulty only touches pending nodes; completed, skipped
// and in-progress nodes keep their tier.
func (r *pathRepo) EscalateDifficulty(ctx context.Context, goalID, topicID string, from, to assessment.Difficulty) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE path_nodes SET difficulty = ?
		WHERE goal_id = ? AND topic_id = ?
		  AND status = ? AND difficulty = ?`,
		string(to), goalID, topicID, string(NodeStatusPending), string(from))
	if err != nil {
		return 0, fmt.Errorf("escalate difficulty: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
