package store

import "github.com/jmoiron/sqlx"

// schema is applied idempotently on open. Competency records are
// never deleted, only upserted; attempts are append-only.
const schema = `
CREATE TABLE IF NOT EXISTS competency_records (
	student_id     TEXT NOT NULL,
	unit_id        TEXT NOT NULL,
	score          INTEGER NOT NULL,
	classification TEXT NOT NULL,
	attempts       INTEGER NOT NULL DEFAULT 0,
	correct        INTEGER NOT NULL DEFAULT 0,
	updated_at     TEXT NOT NULL,
	PRIMARY KEY (student_id, unit_id)
);

CREATE TABLE IF NOT EXISTS topic_progress (
	student_id TEXT NOT NULL,
	topic_id   TEXT NOT NULL,
	score      INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (student_id, topic_id)
);

CREATE TABLE IF NOT EXISTS subtopic_levels (
	student_id  TEXT NOT NULL,
	subtopic_id TEXT NOT NULL,
	level       INTEGER NOT NULL,
	class       TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (student_id, subtopic_id)
);

CREATE TABLE IF NOT EXISTS goals (
	id          TEXT PRIMARY KEY,
	student_id  TEXT NOT NULL,
	target_date TEXT NOT NULL,
	topic_ids   TEXT NOT NULL,
	active      INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_goals_student_active
	ON goals (student_id, active);

CREATE TABLE IF NOT EXISTS path_nodes (
	id             TEXT PRIMARY KEY,
	goal_id        TEXT NOT NULL REFERENCES goals (id),
	topic_id       TEXT NOT NULL,
	subtopic_id    TEXT NOT NULL,
	scheduled_date TEXT NOT NULL,
	difficulty     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	order_index    INTEGER NOT NULL,
	estimated_mins INTEGER NOT NULL DEFAULT 0,
	UNIQUE (goal_id, scheduled_date, order_index)
);

CREATE INDEX IF NOT EXISTS idx_path_nodes_goal
	ON path_nodes (goal_id, scheduled_date, order_index);

CREATE TABLE IF NOT EXISTS attempts (
	id           TEXT PRIMARY KEY,
	student_id   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	submitted_at TEXT NOT NULL,
	answers      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mastery_results (
	attempt_id TEXT PRIMARY KEY REFERENCES attempts (id),
	result     TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS generator_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at    TEXT NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	purpose       TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	latency_ms    INTEGER NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT ''
);
`

func migrate(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	return err
}
