// Package scheduler produces and incrementally updates learning
// paths: an ordered sequence of dated activity nodes derived from a
// goal's deadline and the student's current mastery, adjusted as
// performance signals arrive.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/curriculum"
	"github.com/abhisek/pathwise/internal/store"
)

// Pacing and update thresholds.
const (
	// MinutesPerMasteryPoint is the heuristic study cost of one
	// mastery percentage point. Deliberately a named constant so it
	// can be tuned without touching the pacing formula.
	MinutesPerMasteryPoint = 3

	// MinHorizonDays is the minimum viable goal horizon. Shorter
	// goals are rejected outright.
	MinHorizonDays = 14

	// ReinforceBelowScore triggers reinforcement node insertion.
	ReinforceBelowScore = 60

	// EscalateAtScore triggers in-place difficulty escalation.
	EscalateAtScore = 80

	// MaxReinforcementNodes caps insertions per signal.
	MaxReinforcementNodes = 3

	// Reinforcement nodes live in a reserved negative order range
	// so they always sort before same-day regular nodes.
	reinforcementOrderMin = -100

	maxConflictRetries = 3

	defaultNodeMinutes = 20
)

var (
	// ErrHorizonTooShort rejects goals whose deadline is closer
	// than MinHorizonDays. This is a hard precondition checked
	// before any state mutation.
	ErrHorizonTooShort = errors.New("scheduler: goal horizon shorter than minimum")

	// ErrSchedulingConflict is returned when slot conflicts persist
	// past the bounded retry count. The whole signal is safe to
	// retry.
	ErrSchedulingConflict = errors.New("scheduler: persistent slot conflict, retry the signal")
)

// PerformanceSignal is a grading or diagnostic outcome for one topic
// of an active goal.
type PerformanceSignal struct {
	GoalID      string   `json:"goalId"`
	TopicID     string   `json:"topicId"`
	Score       int      `json:"score"`
	WeakUnitIDs []string `json:"weakUnitIds"`
}

// PathDelta describes what a signal changed.
type PathDelta struct {
	Inserted  []store.LearningPathNode `json:"inserted"`
	Escalated []string                 `json:"escalatedNodeIds"`
	Progress  store.TopicProgress      `json:"progress"`
}

// Scheduler plans paths against the curriculum and mutates them
// through the path repository. Signals for the same goal are
// serialized by a per-goal mutex.
type Scheduler struct {
	cur        *curriculum.Curriculum
	paths      store.PathRepo
	competency store.CompetencyRepo

	minutesPerPoint int
	now             func() time.Time

	goalLocks keyedMutex
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithMinutesPerPoint overrides the pacing constant.
func WithMinutesPerPoint(m int) Option {
	return func(s *Scheduler) {
		if m > 0 {
			s.minutesPerPoint = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New builds a Scheduler.
func New(cur *curriculum.Curriculum, paths store.PathRepo, competency store.CompetencyRepo, opts ...Option) *Scheduler {
	s := &Scheduler{
		cur:             cur,
		paths:           paths,
		competency:      competency,
		minutesPerPoint: MinutesPerMasteryPoint,
		now:             time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreatePath plans the initial node list for a goal. mastery maps
// topic ID to the student's current score; unknown topics count as 0.
// The plan is returned, not persisted: the caller stores the goal and
// nodes in one transaction.
func (s *Scheduler) CreatePath(goal store.LearningGoal, mastery map[string]int) ([]store.LearningPathNode, error) {
	today := dateOnly(s.now())
	target := dateOnly(goal.TargetDate)

	days := int(target.Sub(today).Hours() / 24)
	if days < MinHorizonDays {
		return nil, fmt.Errorf("%w: %d days until %s, need at least %d",
			ErrHorizonTooShort, days, target.Format("2006-01-02"), MinHorizonDays)
	}
	if len(goal.TopicIDs) == 0 {
		return nil, &assessment.InvalidInputError{Field: "topicIds", Reason: "goal has no topics"}
	}

	topics, gap, err := s.orderTopics(goal.TopicIDs, mastery)
	if err != nil {
		return nil, err
	}

	// Denser schedule the bigger the gap and the closer the deadline.
	minutesPerDay := ceilDiv(s.minutesPerPoint*gap, days)
	if minutesPerDay <= 0 {
		minutesPerDay = defaultNodeMinutes
	}

	var nodes []store.LearningPathNode
	day := today
	usedToday := 0
	orderIndex := 0

	place := func(topicID string, st curriculum.Subtopic, difficulty assessment.Difficulty) {
		mins := st.EstimatedMins
		if mins <= 0 {
			mins = defaultNodeMinutes
		}
		if usedToday >= minutesPerDay && day.Before(target) {
			day = day.AddDate(0, 0, 1)
			usedToday = 0
			orderIndex = 0
		}
		nodes = append(nodes, store.LearningPathNode{
			ID:            uuid.NewString(),
			GoalID:        goal.ID,
			TopicID:       topicID,
			SubtopicID:    st.ID,
			ScheduledDate: day,
			Difficulty:    difficulty,
			Status:        store.NodeStatusPending,
			OrderIndex:    orderIndex,
			EstimatedMins: mins,
		})
		usedToday += mins
		orderIndex++
	}

	for _, topicID := range topics {
		difficulty := assessment.DifficultyMedium
		if mastery[topicID] < 50 {
			difficulty = assessment.DifficultyEasy
		}
		for _, st := range s.cur.SubtopicsForTopic(topicID) {
			place(topicID, st, difficulty)
		}
	}
	return nodes, nil
}

// orderTopics sorts the goal's topics by ascending mastery, then by
// curriculum sequence, and returns the total mastery gap.
func (s *Scheduler) orderTopics(topicIDs []string, mastery map[string]int) ([]string, int, error) {
	seq := make(map[string]int, len(topicIDs))
	gap := 0
	for _, id := range topicIDs {
		t, err := s.cur.Topic(id)
		if err != nil {
			return nil, 0, &assessment.InvalidInputError{Field: "topicIds", Reason: "unknown topic " + id, Err: err}
		}
		seq[id] = t.Sequence
		gap += 100 - mastery[id]
	}

	ordered := append([]string(nil), topicIDs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		mi, mj := mastery[ordered[i]], mastery[ordered[j]]
		if mi != mj {
			return mi < mj
		}
		return seq[ordered[i]] < seq[ordered[j]]
	})
	return ordered, gap, nil
}

// ApplyPerformanceSignal updates an active goal's path from a new
// score. Signals for the same goal are serialized; slot conflicts
// from concurrent writers are retried with a fresh scan.
func (s *Scheduler) ApplyPerformanceSignal(ctx context.Context, goal store.LearningGoal, sig PerformanceSignal) (*PathDelta, error) {
	unlock := s.goalLocks.lock(goal.ID)
	defer unlock()

	delta := &PathDelta{}

	if sig.Score < ReinforceBelowScore {
		inserted, err := s.insertReinforcement(ctx, goal, sig)
		if err != nil {
			return nil, err
		}
		delta.Inserted = inserted
	}

	if sig.Score >= EscalateAtScore {
		escalated, err := s.escalate(ctx, goal.ID, sig.TopicID)
		if err != nil {
			return nil, err
		}
		delta.Escalated = escalated
	}

	// The progress upsert happens on every signal and is idempotent.
	progress := store.TopicProgress{
		StudentID: goal.StudentID,
		TopicID:   sig.TopicID,
		Score:     sig.Score,
	}
	if err := s.competency.UpsertTopicProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("upsert topic progress: %w", err)
	}
	delta.Progress = progress
	return delta, nil
}

// insertReinforcement adds up to MaxReinforcementNodes easy nodes,
// one per distinct weak subtopic, each on the first conflict-free
// date strictly after today. Subtopics that already carry a pending
// reinforcement node are skipped, which makes re-applying the same
// signal a no-op.
func (s *Scheduler) insertReinforcement(ctx context.Context, goal store.LearningGoal, sig PerformanceSignal) ([]store.LearningPathNode, error) {
	subtopics := s.weakSubtopics(sig)
	if len(subtopics) == 0 {
		return nil, nil
	}

	var inserted []store.LearningPathNode
	for attempt := 0; ; attempt++ {
		nodes, err := s.paths.ListByGoal(ctx, goal.ID)
		if err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}

		conflict, err := s.placeReinforcement(ctx, goal, sig.TopicID, subtopics, nodes, &inserted)
		if err != nil {
			return nil, err
		}
		if !conflict {
			return inserted, nil
		}
		if attempt+1 >= maxConflictRetries {
			return nil, ErrSchedulingConflict
		}
	}
}

// placeReinforcement performs one scan-and-insert pass. It reports
// whether a slot conflict from a concurrent writer requires a rescan.
func (s *Scheduler) placeReinforcement(ctx context.Context, goal store.LearningGoal, topicID string, subtopics []string, nodes []store.LearningPathNode, inserted *[]store.LearningPathNode) (bool, error) {
	today := dateOnly(s.now())

	occupied := make(map[string]bool, len(nodes))
	pendingReinforced := make(map[string]bool)
	for _, n := range nodes {
		occupied[slotKey(n.ScheduledDate, n.OrderIndex)] = true
		if n.OrderIndex < 0 && n.Status == store.NodeStatusPending {
			pendingReinforced[n.SubtopicID] = true
		}
	}
	for _, n := range *inserted {
		pendingReinforced[n.SubtopicID] = true
	}

	for _, subtopicID := range subtopics {
		if len(*inserted) >= MaxReinforcementNodes {
			break
		}
		if pendingReinforced[subtopicID] {
			continue
		}

		// Linear forward scan for the first free slot strictly
		// after today.
		day := today.AddDate(0, 0, 1)
		order := reinforcementOrderMin
		for occupied[slotKey(day, order)] {
			order++
			if order >= 0 {
				day = day.AddDate(0, 0, 1)
				order = reinforcementOrderMin
			}
		}

		node := store.LearningPathNode{
			ID:            uuid.NewString(),
			GoalID:        goal.ID,
			TopicID:       topicID,
			SubtopicID:    subtopicID,
			ScheduledDate: day,
			Difficulty:    assessment.DifficultyEasy,
			Status:        store.NodeStatusPending,
			OrderIndex:    order,
			EstimatedMins: defaultNodeMinutes,
		}
		err := s.paths.Insert(ctx, node)
		if errors.Is(err, store.ErrSlotConflict) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("insert reinforcement node: %w", err)
		}
		occupied[slotKey(day, order)] = true
		*inserted = append(*inserted, node)
	}
	return false, nil
}

// weakSubtopics resolves the signal's weak units to their teaching
// subtopics, deduplicated in signal order. Foundational units have no
// teaching subtopic and are skipped.
func (s *Scheduler) weakSubtopics(sig PerformanceSignal) []string {
	seen := make(map[string]bool)
	var out []string
	for _, uid := range sig.WeakUnitIDs {
		subtopicID, ok := s.cur.UnitSubtopic(uid)
		if !ok || seen[subtopicID] {
			continue
		}
		seen[subtopicID] = true
		out = append(out, subtopicID)
	}
	return out
}

// escalate re-tiers the topic's pending easy nodes to hard in place
// and returns their IDs.
func (s *Scheduler) escalate(ctx context.Context, goalID, topicID string) ([]string, error) {
	nodes, err := s.paths.ListByGoal(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("scan path: %w", err)
	}
	var ids []string
	for _, n := range nodes {
		if n.TopicID == topicID && n.Status == store.NodeStatusPending && n.Difficulty == assessment.DifficultyEasy {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := s.paths.EscalateDifficulty(ctx, goalID, topicID, assessment.DifficultyEasy, assessment.DifficultyHard); err != nil {
		return nil, fmt.Errorf("escalate nodes: %w", err)
	}
	return ids, nil
}

func slotKey(day time.Time, order int) string {
	return fmt.Sprintf("%s/%d", day.Format("2006-01-02"), order)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// keyedMutex serializes work per goal ID.
// keyedMutex serializes work per key. Entries are reference-counted
// and removed once the last holder unlocks, so the map stays bounded
// by the number of keys currently in flight.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
