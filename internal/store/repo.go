package store

import (
	"context"
	"time"

	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/generator"
	"github.com/abhisek/pathwise/internal/grading"
)

// CompetencyRecord is the rolling mastery score for one
// (student, knowledge unit) pair. Records are upserted, never deleted.
type CompetencyRecord struct {
	StudentID      string    `db:"student_id" json:"studentId"`
	UnitID         string    `db:"unit_id" json:"knowledgeUnitId"`
	Score          int       `db:"score" json:"score"`
	Classification string    `db:"classification" json:"classification"`
	Attempts       int       `db:"attempts" json:"attempts"`
	Correct        int       `db:"correct" json:"correct"`
	UpdatedAt      time.Time `db:"-" json:"updatedAt"`
}

// TopicProgress is the rolling per-topic score used by the scheduler
// to pace a goal.
type TopicProgress struct {
	StudentID string    `db:"student_id" json:"studentId"`
	TopicID   string    `db:"topic_id" json:"topicId"`
	Score     int       `db:"score" json:"score"`
	UpdatedAt time.Time `db:"-" json:"updatedAt"`
}

// SubtopicLevel is the diagnostic level for one (student, subtopic).
type SubtopicLevel struct {
	StudentID  string    `db:"student_id" json:"studentId"`
	SubtopicID string    `db:"subtopic_id" json:"subtopicId"`
	Level      int       `db:"level" json:"level"`
	Class      string    `db:"class" json:"classification"`
	UpdatedAt  time.Time `db:"-" json:"updatedAt"`
}

// LearningGoal is a student's target date plus topic set. Exactly one
// goal is active per student; creating a new one deactivates the prior.
type LearningGoal struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"studentId"`
	TargetDate time.Time `json:"targetDate"`
	TopicIDs   []string  `json:"topicIds"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NodeStatus is the lifecycle state of a path node. Only pending
// nodes may be rescheduled or re-tiered.
type NodeStatus string

const (
	NodeStatusPending    NodeStatus = "pending"
	NodeStatusInProgress NodeStatus = "in_progress"
	NodeStatusCompleted  NodeStatus = "completed"
	NodeStatusSkipped    NodeStatus = "skipped"
)

// Valid reports whether s is a known node status.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusPending, NodeStatusInProgress, NodeStatusCompleted, NodeStatusSkipped:
		return true
	}
	return false
}

// LearningPathNode is one scheduled learning activity. Nodes for a
// goal are unique per (scheduled date, order index) slot; negative
// order indices are reserved for reinforcement nodes so they sort
// before same-day regular nodes.
type LearningPathNode struct {
	ID            string                `json:"id"`
	GoalID        string                `json:"goalId"`
	TopicID       string                `json:"topicId"`
	SubtopicID    string                `json:"subtopicId"`
	ScheduledDate time.Time             `json:"scheduledDate"`
	Difficulty    assessment.Difficulty `json:"difficulty"`
	Status        NodeStatus            `json:"status"`
	OrderIndex    int                   `json:"orderIndex"`
	EstimatedMins int                   `json:"estimatedMins"`
}

// CompetencyRepo reads and upserts mastery state.
type CompetencyRepo interface {
	// Upsert writes the record, replacing any prior row for the
	// same (student, unit) pair.
	Upsert(ctx context.Context, rec CompetencyRecord) error

	// Accumulate folds additional attempt and correct counts into
	// the (student, unit) record in a single statement, recomputing
	// score and classification in the database so concurrent writers
	// never lose each other's increments.
	Accumulate(ctx context.Context, studentID, unitID string, attempts, correct int) error

	// Get returns the record for (student, unit) or ErrNotFound.
	Get(ctx context.Context, studentID, unitID string) (*CompetencyRecord, error)

	// ListByStudent returns all unit records for a student ordered
	// by unit ID.
	ListByStudent(ctx context.Context, studentID string) ([]CompetencyRecord, error)

	// UpsertTopicProgress writes the per-topic rolling score.
	UpsertTopicProgress(ctx context.Context, tp TopicProgress) error

	// TopicProgressByStudent returns all topic scores for a student.
	TopicProgressByStudent(ctx context.Context, studentID string) ([]TopicProgress, error)

	// UpsertSubtopicLevel writes a diagnostic subtopic level.
	UpsertSubtopicLevel(ctx context.Context, sl SubtopicLevel) error
}

// GoalRepo manages learning goals.
type GoalRepo interface {
	// Create inserts the goal and its initial path nodes in one
	// transaction, deactivating any prior active goal for the
	// student first.
	Create(ctx context.Context, goal LearningGoal, nodes []LearningPathNode) error

	// Get returns a goal by ID or ErrNotFound.
	Get(ctx context.Context, goalID string) (*LearningGoal, error)

	// ActiveGoal returns the student's active goal or ErrNotFound.
	ActiveGoal(ctx context.Context, studentID string) (*LearningGoal, error)
}

// PathRepo manages learning path nodes.
type PathRepo interface {
	// ListByGoal returns the goal's nodes ordered by
	// (scheduled date, order index).
	ListByGoal(ctx context.Context, goalID string) ([]LearningPathNode, error)

	// Insert adds a single node. A collision on the goal's
	// (scheduled date, order index) slot returns ErrSlotConflict.
	Insert(ctx context.Context, node LearningPathNode) error

	// UpdateStatus transitions a node's lifecycle state.
	UpdateStatus(ctx context.Context, nodeID string, status NodeStatus) error

	// EscalateDifficulty re-tiers all still-pending nodes of the
	// topic from one difficulty to another in place, returning the
	// number of nodes changed. Completed and skipped nodes are
	// never touched.
	EscalateDifficulty(ctx context.Context, goalID, topicID string, from, to assessment.Difficulty) (int, error)
}

// AttemptRepo is the append-only attempt history.
type AttemptRepo interface {
	// SaveAttempt appends an attempt. Attempts are immutable.
	SaveAttempt(ctx context.Context, attempt assessment.Attempt) error

	// RecordMastery appends the attempt and its grading result in
	// one transaction so a partially graded attempt is never
	// visible.
	RecordMastery(ctx context.Context, attempt assessment.Attempt, result *grading.MasteryResult) error

	// Attempt returns an attempt by ID or ErrNotFound.
	Attempt(ctx context.Context, id string) (*assessment.Attempt, error)

	// MasteryResult returns the grading result recorded for an
	// attempt, or ErrNotFound.
	MasteryResult(ctx context.Context, attemptID string) (*grading.MasteryResult, error)
}

// GeneratorEvent is a stored generator event.
type GeneratorEvent struct {
	ID        int64
	CreatedAt time.Time
	generator.EventData
}

// EventRepo persists generator events. It satisfies
// generator.EventSink so providers can be wired to it directly.
type EventRepo interface {
	// AppendGeneratorEvent records a content-generator API call.
	AppendGeneratorEvent(ctx context.Context, data generator.EventData) error
	// ListGeneratorEvents returns the most recent events, newest first.
	ListGeneratorEvents(ctx context.Context, limit int) ([]GeneratorEvent, error)
}
