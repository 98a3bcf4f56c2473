// Package engine orchestrates the tutoring operations over the
// competency store: diagnostics, mastery tests, goal creation,
// performance signals and coverage-gated assessment generation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/coverage"
	"github.com/abhisek/pathwise/internal/curriculum"
	"github.com/abhisek/pathwise/internal/diagnostic"
	"github.com/abhisek/pathwise/internal/generator"
	"github.com/abhisek/pathwise/internal/grading"
	"github.com/abhisek/pathwise/internal/scheduler"
	"github.com/abhisek/pathwise/internal/store"
	"github.com/abhisek/pathwise/internal/strategy"
)

// ErrGoalNotActive rejects signals against deactivated goals.
var ErrGoalNotActive = errors.New("engine: goal is not active")

// maxGenerationAttempts bounds regeneration when the coverage
// validator rejects a generated question set.
const maxGenerationAttempts = 3

// Repos bundles the store repositories the engine works against.
type Repos struct {
	Competency store.CompetencyRepo
	Goals      store.GoalRepo
	Paths      store.PathRepo
	Attempts   store.AttemptRepo
}

// ReposFrom builds the bundle from a store.
func ReposFrom(s *store.Store) Repos {
	return Repos{
		Competency: s.CompetencyRepo(),
		Goals:      s.GoalRepo(),
		Paths:      s.PathRepo(),
		Attempts:   s.AttemptRepo(),
	}
}

// Engine wires the curriculum, content generator, grader and
// scheduler together.
type Engine struct {
	cur        *curriculum.Curriculum
	provider   generator.Provider
	judge      grading.Judge
	repos      Repos
	sched      *scheduler.Scheduler
	strategies *strategy.Tracker

	gradeOpts grading.Options
	log       *slog.Logger
	now       func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithGradingOptions overrides judge fan-out settings.
func WithGradingOptions(opts grading.Options) Option {
	return func(e *Engine) { e.gradeOpts = opts }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock overrides the time source for the engine and scheduler.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine. provider may be nil if assessment generation
// is not used; judge may be nil if mastery tests are not graded.
func New(cur *curriculum.Curriculum, provider generator.Provider, judge grading.Judge, repos Repos, opts ...Option) *Engine {
	e := &Engine{
		cur:        cur,
		provider:   provider,
		judge:      judge,
		repos:      repos,
		strategies: strategy.NewTracker(),
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.sched = scheduler.New(cur, repos.Paths, repos.Competency, scheduler.WithClock(e.now))
	return e
}

// SubmitDiagnostic analyzes a diagnostic attempt, persists it and
// upserts the per-subtopic competency levels.
func (e *Engine) SubmitDiagnostic(ctx context.Context, studentID string, answers []assessment.AnswerRecord, goalTopics []string) (*diagnostic.CompetencyProfile, error) {
	if studentID == "" {
		return nil, &assessment.InvalidInputError{Field: "studentId", Reason: "required"}
	}
	if len(answers) == 0 {
		return nil, &assessment.InvalidInputError{Field: "answers", Reason: "no answers submitted"}
	}

	// Analyze first: a malformed submission must not leave an
	// attempt behind.
	profile, err := diagnostic.Analyze(answers, e.cur, goalTopics)
	if err != nil {
		return nil, err
	}

	attempt := assessment.Attempt{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		Kind:        assessment.KindDiagnostic,
		SubmittedAt: e.now().UTC(),
		Answers:     answers,
	}
	if err := e.repos.Attempts.SaveAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save diagnostic attempt: %w", err)
	}

	for _, sl := range profile.Subtopics {
		err := e.repos.Competency.UpsertSubtopicLevel(ctx, store.SubtopicLevel{
			StudentID:  studentID,
			SubtopicID: sl.SubtopicID,
			Level:      sl.Level,
			Class:      string(sl.Class),
		})
		if err != nil {
			return nil, fmt.Errorf("upsert subtopic level: %w", err)
		}
	}

	e.log.Info("diagnostic submitted",
		"student_id", studentID,
		"attempt_id", attempt.ID,
		"subtopics", len(profile.Subtopics),
		"weaknesses", len(profile.Weaknesses))
	return profile, nil
}

// SubmitMasteryTest grades a mastery attempt, records it atomically
// with its result and rolls the per-unit competency records forward.
func (e *Engine) SubmitMasteryTest(ctx context.Context, studentID string, questions []assessment.Question, answers []assessment.AnswerSubmission) (*grading.MasteryResult, error) {
	if studentID == "" {
		return nil, &assessment.InvalidInputError{Field: "studentId", Reason: "required"}
	}
	if e.judge == nil {
		return nil, errors.New("engine: no equivalence judge configured")
	}

	result, err := grading.Grade(ctx, questions, answers, e.judge, e.gradeOpts)
	if err != nil {
		return nil, err
	}

	attempt := assessment.Attempt{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		Kind:        assessment.KindMastery,
		SubmittedAt: e.now().UTC(),
	}
	for _, ga := range result.Answers {
		attempt.Answers = append(attempt.Answers, assessment.AnswerRecord{
			QuestionID: ga.QuestionID,
			SubtopicID: ga.SubtopicID,
			Correct:    ga.Correct,
			Answer:     ga.Answer,
		})
		// Question families are keyed by subtopic: a repeat miss in the
		// same subtopic moves the next explanation to a new variant.
		e.strategies.Record(studentID, ga.SubtopicID, ga.Correct)
	}
	result.AttemptID = attempt.ID

	if err := e.repos.Attempts.RecordMastery(ctx, attempt, result); err != nil {
		return nil, fmt.Errorf("record mastery result: %w", err)
	}

	for _, u := range result.Units {
		if err := e.rollCompetency(ctx, studentID, u); err != nil {
			return nil, err
		}
	}

	e.log.Info("mastery test graded",
		"student_id", studentID,
		"attempt_id", attempt.ID,
		"overall_score", result.OverallScore,
		"weak_units", len(result.WeakUnitIDs))
	return result, nil
}

// rollCompetency folds a unit breakdown into the student's rolling
// competency record. The accumulation happens in a single store
// statement, so concurrent submissions for the same student cannot
// drop each other's counts.
func (e *Engine) rollCompetency(ctx context.Context, studentID string, u grading.UnitBreakdown) error {
	if err := e.repos.Competency.Accumulate(ctx, studentID, u.UnitID, u.Total, u.Correct); err != nil {
		return fmt.Errorf("roll competency record: %w", err)
	}
	return nil
}

// CreateGoal plans a learning path for the target date and persists
// goal plus nodes in one transaction, deactivating any prior goal.
// Horizons shorter than the minimum are rejected before any mutation.
func (e *Engine) CreateGoal(ctx context.Context, studentID string, targetDate time.Time, topicIDs []string) (*store.LearningGoal, []store.LearningPathNode, error) {
	if studentID == "" {
		return nil, nil, &assessment.InvalidInputError{Field: "studentId", Reason: "required"}
	}

	progress, err := e.repos.Competency.TopicProgressByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("load topic progress: %w", err)
	}
	mastery := make(map[string]int, len(progress))
	for _, tp := range progress {
		mastery[tp.TopicID] = tp.Score
	}

	goal := store.LearningGoal{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		TargetDate: targetDate,
		TopicIDs:   topicIDs,
		Active:     true,
		CreatedAt:  e.now().UTC(),
	}
	nodes, err := e.sched.CreatePath(goal, mastery)
	if err != nil {
		return nil, nil, err
	}

	if err := e.repos.Goals.Create(ctx, goal, nodes); err != nil {
		return nil, nil, fmt.Errorf("persist goal: %w", err)
	}

	e.log.Info("goal created",
		"student_id", studentID,
		"goal_id", goal.ID,
		"target_date", targetDate.Format("2006-01-02"),
		"nodes", len(nodes))
	return &goal, nodes, nil
}

// ReportSignal applies a performance signal to the student's goal.
// Signals for the same goal are serialized; re-applying the same
// signal is a no-op beyond the progress upsert.
func (e *Engine) ReportSignal(ctx context.Context, sig scheduler.PerformanceSignal) (*scheduler.PathDelta, error) {
	goal, err := e.repos.Goals.Get(ctx, sig.GoalID)
	if err != nil {
		return nil, err
	}
	if !goal.Active {
		return nil, ErrGoalNotActive
	}
	inGoal := false
	for _, id := range goal.TopicIDs {
		if id == sig.TopicID {
			inGoal = true
			break
		}
	}
	if !inGoal {
		return nil, &assessment.InvalidInputError{
			Field:  "topicId",
			Reason: fmt.Sprintf("topic %s is not part of goal %s", sig.TopicID, goal.ID),
		}
	}

	delta, err := e.sched.ApplyPerformanceSignal(ctx, *goal, sig)
	if err != nil {
		return nil, err
	}
	e.log.Info("performance signal applied",
		"goal_id", sig.GoalID,
		"topic_id", sig.TopicID,
		"score", sig.Score,
		"inserted", len(delta.Inserted),
		"escalated", len(delta.Escalated))
	return delta, nil
}

// Path returns the goal's nodes ordered by (date, order index).
func (e *Engine) Path(ctx context.Context, goalID string) ([]store.LearningPathNode, error) {
	if _, err := e.repos.Goals.Get(ctx, goalID); err != nil {
		return nil, err
	}
	return e.repos.Paths.ListByGoal(ctx, goalID)
}

// ExplanationVariant names the teaching variant to use next for the
// student on the given subtopic, per the repeat-miss escalation ladder.
func (e *Engine) ExplanationVariant(studentID, subtopicID string) string {
	return e.strategies.Stage(studentID, subtopicID).ExplanationVariant()
}

// GenerateRequest describes an assessment to generate.
type GenerateRequest struct {
	TopicID         string                `json:"topicId"`
	RequiredUnitIDs []string              `json:"requiredUnitIds"`
	Count           int                   `json:"count"`
	Difficulty      assessment.Difficulty `json:"difficulty"`
}

// GenerateAssessment asks the content generator for a question set
// and gates it behind the coverage validator, regenerating a bounded
// number of times. The last validation failure is surfaced if no
// attempt passes.
func (e *Engine) GenerateAssessment(ctx context.Context, req GenerateRequest) ([]assessment.Question, error) {
	if e.provider == nil {
		return nil, errors.New("engine: no content generator configured")
	}
	topic, err := e.cur.Topic(req.TopicID)
	if err != nil {
		return nil, &assessment.InvalidInputError{Field: "topicId", Reason: "unknown topic " + req.TopicID, Err: err}
	}
	required := make([]curriculum.KnowledgeUnit, 0, len(req.RequiredUnitIDs))
	for _, id := range req.RequiredUnitIDs {
		u, err := e.cur.Unit(id)
		if err != nil {
			return nil, &assessment.InvalidInputError{Field: "requiredUnitIds", Reason: "unknown unit " + id, Err: err}
		}
		required = append(required, u)
	}
	if len(required) == 0 {
		required = e.cur.TopicUnits(req.TopicID)
	}
	count := req.Count
	if count <= 0 {
		count = 5
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = assessment.DifficultyMedium
	}
	if !difficulty.Valid() {
		return nil, &assessment.InvalidInputError{Field: "difficulty", Reason: "unknown tier " + string(difficulty)}
	}

	allowed := append(e.cur.TopicUnits(req.TopicID), e.cur.FoundationalUnits()...)
	genReq := assessment.BuildGenerationRequest(assessment.QuestionSetRequest{
		Topic:         topic,
		RequiredUnits: required,
		AllowedUnits:  allowed,
		Count:         count,
		Difficulty:    difficulty,
	})
	genCtx := generator.WithPurpose(ctx, "question-set")

	var lastErr error
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		resp, err := e.provider.Generate(genCtx, genReq)
		if err != nil {
			return nil, fmt.Errorf("generate question set: %w", err)
		}

		questions, err := assessment.DecodeQuestionSet(resp.Content)
		if err != nil {
			lastErr = err
			e.log.Warn("generated question set failed decoding",
				"topic_id", req.TopicID, "attempt", attempt, "error", err)
			continue
		}

		res := coverage.Validate(questions, required, e.cur)
		if res.OK {
			e.log.Info("question set accepted",
				"topic_id", req.TopicID, "questions", len(questions), "attempt", attempt)
			return questions, nil
		}
		lastErr = res.Err()
		e.log.Warn("generated question set failed coverage",
			"topic_id", req.TopicID, "attempt", attempt, "violations", len(res.Violations))
	}
	return nil, lastErr
}
