package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/pathwise/internal/grading"
)

const (
	timeLayout = time.RFC3339Nano
	dateLayout = "2006-01-02"
)

type competencyRepo struct {
	db *sqlx.DB
}

type competencyRow struct {
	StudentID      string `db:"student_id"`
	UnitID         string `db:"unit_id"`
	Score          int    `db:"score"`
	Classification string `db:"classification"`
	Attempts       int    `db:"attempts"`
	Correct        int    `db:"correct"`
	UpdatedAt      string `db:"updated_at"`
}

func (r competencyRow) record() CompetencyRecord {
	t, _ := time.Parse(timeLayout, r.UpdatedAt)
	return CompetencyRecord{
		StudentID:      r.StudentID,
		UnitID:         r.UnitID,
		Score:          r.Score,
		Classification: r.Classification,
		Attempts:       r.Attempts,
		Correct:        r.Correct,
		UpdatedAt:      t,
	}
}

func (r *competencyRepo) Upsert(ctx context.Context, rec CompetencyRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO competency_records
			(student_id, unit_id, score, classification, attempts, correct, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, unit_id) DO UPDATE SET
			score = excluded.score,
			classification = excluded.classification,
			attempts = excluded.attempts,
			correct = excluded.correct,
			updated_at = excluded.updated_at`,
		rec.StudentID, rec.UnitID, rec.Score, rec.Classification,
		rec.Attempts, rec.Correct, rec.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert competency record: %w", err)
	}
	return nil
}

func (r *competencyRepo) Accumulate(ctx context.Context, studentID, unitID string, attempts, correct int) error {
	if attempts < 1 {
		return fmt.Errorf("accumulate competency record: attempts must be positive, got %d", attempts)
	}
	score := (200*correct + attempts) / (2 * attempts)
	// The SQL thresholds and labels mirror grading.BandFor; the inline
	// arithmetic duplicates the insert-case score above because SQLite
	// resolves column names in DO UPDATE to their pre-update values.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO competency_records
			(student_id, unit_id, score, classification, attempts, correct, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, unit_id) DO UPDATE SET
			score = (200*(correct + excluded.correct) + (attempts + excluded.attempts))
				/ (2*(attempts + excluded.attempts)),
			classification = CASE
				WHEN (200*(correct + excluded.correct) + (attempts + excluded.attempts))
					/ (2*(attempts + excluded.attempts)) < 50 THEN 'weak'
				WHEN (200*(correct + excluded.correct) + (attempts + excluded.attempts))
					/ (2*(attempts + excluded.attempts)) >= 80 THEN 'strong'
				ELSE 'needs-review'
			END,
			attempts = attempts + excluded.attempts,
			correct = correct + excluded.correct,
			updated_at = excluded.updated_at`,
		studentID, unitID, score, string(grading.BandFor(score)), attempts, correct,
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("accumulate competency record: %w", err)
	}
	return nil
}

func (r *competencyRepo) Get(ctx context.Context, studentID, unitID string) (*CompetencyRecord, error) {
	var row competencyRow
	err := r.db.GetContext(ctx, &row, `
		SELECT student_id, unit_id, score, classification, attempts, correct, updated_at
		FROM competency_records
		WHERE student_id = ? AND unit_id = ?`, studentID, unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get competency record: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

func (r *competencyRepo) ListByStudent(ctx context.Context, studentID string) ([]CompetencyRecord, error) {
	var rows []competencyRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT student_id, unit_id, score, classification, attempts, correct, updated_at
		FROM competency_records
		WHERE student_id = ?
		ORDER BY unit_id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list competency records: %w", err)
	}
	recs := make([]CompetencyRecord, len(rows))
	for i, row := range rows {
		recs[i] = row.record()
	}
	return recs, nil
}

func (r *competencyRepo) UpsertTopicProgress(ctx context.Context, tp TopicProgress) error {
	if tp.UpdatedAt.IsZero() {
		tp.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO topic_progress (student_id, topic_id, score, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (student_id, topic_id) DO UPDATE SET
			score = excluded.score,
			updated_at = excluded.updated_at`,
		tp.StudentID, tp.TopicID, tp.Score, tp.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert topic progress: %w", err)
	}
	return nil
}

func (r *competencyRepo) TopicProgressByStudent(ctx context.Context, studentID string) ([]TopicProgress, error) {
	type row struct {
		StudentID string `db:"student_id"`
		TopicID   string `db:"topic_id"`
		Score     int    `db:"score"`
		UpdatedAt string `db:"updated_at"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows, `
		SELECT student_id, topic_id, score, updated_at
		FROM topic_progress
		WHERE student_id = ?
		ORDER BY topic_id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list topic progress: %w", err)
	}
	out := make([]TopicProgress, len(rows))
	for i, r := range rows {
		t, _ := time.Parse(timeLayout, r.UpdatedAt)
		out[i] = TopicProgress{StudentID: r.StudentID, TopicID: r.TopicID, Score: r.Score, UpdatedAt: t}
	}
	return out, nil
}

func (r *competencyRepo) UpsertSubtopicLevel(ctx context.Context, sl SubtopicLevel) error {
	if sl.UpdatedAt.IsZero() {
		sl.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subtopic_levels (student_id, subtopic_id, level, class, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (student_id, subtopic_id) DO UPDATE SET
			level = excluded.level,
			class = excluded.class,
			updated_at = excluded.updated_at`,
		sl.StudentID, sl.SubtopicID, sl.Level, sl.Class, sl.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert subtopic level: %w", err)
	}
	return nil
}
