package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/curriculum"
	"github.com/abhisek/pathwise/internal/store"
)

func testCurriculum(t *testing.T) *curriculum.Curriculum {
	t.Helper()
	topics := []curriculum.Topic{
		{
			ID:       "topic-algebra",
			Name:     "Algebra",
			Sequence: 1,
			Subtopics: []curriculum.Subtopic{
				{ID: "sub-linear", Name: "Linear equations", Sequence: 1, UnitIDs: []string{"unit-t1"}, EstimatedMins: 20},
				{ID: "sub-quadratic", Name: "Quadratic equations", Sequence: 2, UnitIDs: []string{"unit-m1"}, Prerequisites: []string{"sub-linear"}, EstimatedMins: 25},
			},
			Units: []curriculum.KnowledgeUnit{
				{ID: "unit-t1", Code: "T1", Name: "Isolate the variable"},
				{ID: "unit-m1", Code: "M1", Name: "Quadratic formula"},
			},
		},
		{
			ID:       "topic-geometry",
			Name:     "Geometry",
			Sequence: 2,
			Subtopics: []curriculum.Subtopic{
				{ID: "sub-angles", Name: "Angles", Sequence: 1, UnitIDs: []string{"unit-m2"}, EstimatedMins: 15},
			},
			Units: []curriculum.KnowledgeUnit{
				{ID: "unit-m2", Code: "M2", Name: "Angle sum"},
			},
		},
	}
	foundational := []curriculum.KnowledgeUnit{
		{ID: "unit-f1", Code: "F1", Name: "Order of operations"},
	}
	c, err := curriculum.New(topics, foundational)
	if err != nil {
		t.Fatalf("curriculum: %v", err)
	}
	return c
}

var testToday = time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testToday }

func testScheduler(t *testing.T) (*Scheduler, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	s := New(testCurriculum(t), st.PathRepo(), st.CompetencyRepo(), WithClock(fixedClock))
	return s, st
}

func testGoal(days int, topicIDs ...string) store.LearningGoal {
	return store.LearningGoal{
		ID:         "g1",
		StudentID:  "s1",
		TargetDate: testToday.AddDate(0, 0, days),
		TopicIDs:   topicIDs,
	}
}

func TestCreatePath_RejectsShortHorizon(t *testing.T) {
	s, _ := testScheduler(t)

	_, err := s.CreatePath(testGoal(13, "topic-algebra"), nil)
	if !errors.Is(err, ErrHorizonTooShort) {
		t.Fatalf("13-day horizon: got %v, want ErrHorizonTooShort", err)
	}

	if _, err := s.CreatePath(testGoal(14, "topic-algebra"), nil); err != nil {
		t.Fatalf("14-day horizon must be accepted: %v", err)
	}
}

func TestCreatePath_OrdersTopicsByAscendingMastery(t *testing.T) {
	s, _ := testScheduler(t)

	mastery := map[string]int{"topic-algebra": 80, "topic-geometry": 20}
	nodes, err := s.CreatePath(testGoal(30, "topic-algebra", "topic-geometry"), mastery)
	if err != nil {
		t.Fatalf("CreatePath: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("node count = %d, want 3", len(nodes))
	}
	if nodes[0].TopicID != "topic-geometry" {
		t.Errorf("least-known topic must come first, got %s", nodes[0].TopicID)
	}
	// Equal mastery falls back to curriculum sequence.
	nodes, err = s.CreatePath(testGoal(30, "topic-geometry", "topic-algebra"), nil)
	if err != nil {
		t.Fatalf("CreatePath: %v", err)
	}
	if nodes[0].TopicID != "topic-algebra" {
		t.Errorf("tie should follow curriculum sequence, got %s", nodes[0].TopicID)
	}
}

func TestCreatePath_PacingSpreadsNodes(t *testing.T) {
	s, _ := testScheduler(t)

	// Gap 60, 30 days: ceil(3*60/30) = 6 minutes/day, so every
	// 20-minute subtopic lands on its own day.
	mastery := map[string]int{"topic-algebra": 40}
	nodes, err := s.CreatePath(testGoal(30, "topic-algebra"), mastery)
	if err != nil {
		t.Fatalf("CreatePath: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(nodes))
	}
	if !nodes[0].ScheduledDate.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first node date = %v, want today", nodes[0].ScheduledDate)
	}
	if !nodes[1].ScheduledDate.After(nodes[0].ScheduledDate) {
		t.Errorf("low budget should spread nodes across days: %v / %v", nodes[0].ScheduledDate, nodes[1].ScheduledDate)
	}
	for _, n := range nodes {
		if n.ScheduledDate.After(dateOnly(testGoal(30).TargetDate)) {
			t.Errorf("node scheduled past target date: %v", n.ScheduledDate)
		}
		if n.Status != store.NodeStatusPending || n.OrderIndex < 0 {
			t.Errorf("unexpected initial node: %+v", n)
		}
	}
}

func TestCreatePath_HighBudgetPacksSameDay(t *testing.T) {
	s, _ := testScheduler(t)

	// Gap 100, 14 days: ceil(300/14) = 22 minutes/day, first two
	// subtopics (20+25) share day one before the budget trips.
	nodes, err := s.CreatePath(testGoal(14, "topic-algebra"), nil)
	if err != nil {
		t.Fatalf("CreatePath: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(nodes))
	}
	if !nodes[0].ScheduledDate.Equal(nodes[1].ScheduledDate) {
		t.Errorf("both subtopics should share the first day")
	}
	if nodes[0].OrderIndex != 0 || nodes[1].OrderIndex != 1 {
		t.Errorf("order indices = %d, %d", nodes[0].OrderIndex, nodes[1].OrderIndex)
	}
}

func TestCreatePath_SubtopicsFollowSequence(t *testing.T) {
	s, _ := testScheduler(t)

	nodes, err := s.CreatePath(testGoal(30, "topic-algebra"), nil)
	if err != nil {
		t.Fatalf("CreatePath: %v", err)
	}
	if nodes[0].SubtopicID != "sub-linear" || nodes[1].SubtopicID != "sub-quadratic" {
		t.Errorf("subtopic order: %s, %s", nodes[0].SubtopicID, nodes[1].SubtopicID)
	}
}

func createGoalWithPath(t *testing.T, s *Scheduler, st *store.Store, mastery map[string]int, topicIDs ...string) store.LearningGoal {
	t.Helper()
	goal := testGoal(30, topicIDs...)
	nodes, err := s.CreatePath(goal, mastery)
	if err != nil {
		t.Fatalf("CreatePath: %v", err)
	}
	goal.Active = true
	if err := st.GoalRepo().Create(context.Background(), goal, nodes); err != nil {
		t.Fatalf("persist goal: %v", err)
	}
	return goal
}

func TestApplySignal_LowScoreInsertsReinforcement(t *testing.T) {
	s, st := testScheduler(t)
	ctx := context.Background()
	goal := createGoalWithPath(t, s, st, nil, "topic-algebra")

	sig := PerformanceSignal{
		GoalID:  goal.ID,
		TopicID: "topic-algebra",
		Score:   45,
		// unit-f1 is foundational and resolves to no subtopic.
		WeakUnitIDs: []string{"unit-t1", "unit-m1", "unit-f1"},
	}
	delta, err := s.ApplyPerformanceSignal(ctx, goal, sig)
	if err != nil {
		t.Fatalf("ApplyPerformanceSignal: %v", err)
	}
	if len(delta.Inserted) != 2 {
		t.Fatalf("inserted = %d nodes, want 2", len(delta.Inserted))
	}
	tomorrow := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	for _, n := range delta.Inserted {
		if n.Difficulty != assessment.DifficultyEasy {
			t.Errorf("reinforcement difficulty = %s", n.Difficulty)
		}
		if n.OrderIndex >= 0 || n.OrderIndex < -100 {
			t.Errorf("order index %d outside reserved range", n.OrderIndex)
		}
		if n.ScheduledDate.Before(tomorrow) {
			t.Errorf("reinforcement scheduled at %v, must be strictly after today", n.ScheduledDate)
		}
	}
	if delta.Progress.Score != 45 {
		t.Errorf("progress score = %d", delta.Progress.Score)
	}

	// Re-applying the same signal is a no-op beyond the upsert.
	again, err := s.ApplyPerformanceSignal(ctx, goal, sig)
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if len(again.Inserted) != 0 {
		t.Errorf("re-application inserted %d nodes, want 0", len(again.Inserted))
	}
}

func TestApplySignal_ReinforcementCapped(t *testing.T) {
	s, st := testScheduler(t)
	ctx := context.Background()
	goal := createGoalWithPath(t, s, st, nil, "topic-algebra", "topic-geometry")

	sig := PerformanceSignal{
		GoalID:      goal.ID,
		TopicID:     "topic-algebra",
		Score:       10,
		WeakUnitIDs: []string{"unit-t1", "unit-m1", "unit-m2", "unit-t1"},
	}
	delta, err := s.ApplyPerformanceSignal(ctx, goal, sig)
	if err != nil {
		t.Fatalf("ApplyPerformanceSignal: %v", err)
	}
	if len(delta.Inserted) > MaxReinforcementNodes {
		t.Errorf("inserted %d nodes, cap is %d", len(delta.Inserted), MaxReinforcementNodes)
	}
	seen := make(map[string]bool)
	for _, n := range delta.Inserted {
		if seen[n.SubtopicID] {
			t.Errorf("duplicate reinforcement for %s", n.SubtopicID)
		}
		seen[n.SubtopicID] = true
	}
}

func TestApplySignal_MidScoreOnlyUpsertsProgress(t *testing.T) {
	s, st := testScheduler(t)
	ctx := context.Background()
	goal := createGoalWithPath(t, s, st, nil, "topic-algebra")
	before, _ := st.PathRepo().ListByGoal(ctx, goal.ID)

	delta, err := s.ApplyPerformanceSignal(ctx, goal, PerformanceSignal{
		GoalID: goal.ID, TopicID: "topic-algebra", Score: 70,
		WeakUnitIDs: []string{"unit-t1"},
	})
	if err != nil {
		t.Fatalf("ApplyPerformanceSignal: %v", err)
	}
	if len(delta.Inserted) != 0 || len(delta.Escalated) != 0 {
		t.Errorf("mid score mutated path: %+v", delta)
	}

	after, _ := st.PathRepo().ListByGoal(ctx, goal.ID)
	if len(after) != len(before) {
		t.Errorf("node count changed: %d -> %d", len(before), len(after))
	}
	progress, err := st.CompetencyRepo().TopicProgressByStudent(ctx, "s1")
	if err != nil || len(progress) != 1 || progress[0].Score != 70 {
		t.Errorf("progress = %+v, err %v", progress, err)
	}
}

func TestApplySignal_HighScoreEscalatesPendingEasy(t *testing.T) {
	s, st := testScheduler(t)
	ctx := context.Background()
	// Low mastery so initial nodes are easy.
	goal := createGoalWithPath(t, s, st, map[string]int{"topic-algebra": 20}, "topic-algebra")

	nodes, _ := st.PathRepo().ListByGoal(ctx, goal.ID)
	if err := st.PathRepo().UpdateStatus(ctx, nodes[0].ID, store.NodeStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	delta, err := s.ApplyPerformanceSignal(ctx, goal, PerformanceSignal{
		GoalID: goal.ID, TopicID: "topic-algebra", Score: 85,
	})
	if err != nil {
		t.Fatalf("ApplyPerformanceSignal: %v", err)
	}
	if len(delta.Escalated) != 1 {
		t.Fatalf("escalated = %v, want exactly the pending node", delta.Escalated)
	}

	after, _ := st.PathRepo().ListByGoal(ctx, goal.ID)
	for _, n := range after {
		switch n.ID {
		case nodes[0].ID:
			if n.Difficulty != assessment.DifficultyEasy {
				t.Error("completed node was escalated")
			}
		default:
			if n.Status == store.NodeStatusPending && n.Difficulty != assessment.DifficultyHard {
				t.Errorf("pending node %s not escalated", n.ID)
			}
		}
	}

	// Idempotent: nothing left to escalate.
	again, err := s.ApplyPerformanceSignal(ctx, goal, PerformanceSignal{
		GoalID: goal.ID, TopicID: "topic-algebra", Score: 85,
	})
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if len(again.Escalated) != 0 {
		t.Errorf("re-application escalated %v", again.Escalated)
	}
}

func TestApplySignal_ScansPastOccupiedSlots(t *testing.T) {
	s, st := testScheduler(t)
	ctx := context.Background()
	goal := createGoalWithPath(t, s, st, nil, "topic-algebra")

	// Occupy the first reserved slot for tomorrow.
	blocker := store.LearningPathNode{
		ID: "blocker", GoalID: goal.ID, TopicID: "topic-algebra", SubtopicID: "sub-angles",
		ScheduledDate: time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		Difficulty:    assessment.DifficultyEasy, OrderIndex: -100,
	}
	if err := st.PathRepo().Insert(ctx, blocker); err != nil {
		t.Fatalf("Insert blocker: %v", err)
	}

	delta, err := s.ApplyPerformanceSignal(ctx, goal, PerformanceSignal{
		GoalID: goal.ID, TopicID: "topic-algebra", Score: 30,
		WeakUnitIDs: []string{"unit-t1"},
	})
	if err != nil {
		t.Fatalf("ApplyPerformanceSignal: %v", err)
	}
	if len(delta.Inserted) != 1 {
		t.Fatalf("inserted = %d, want 1", len(delta.Inserted))
	}
	n := delta.Inserted[0]
	if n.ScheduledDate.Equal(blocker.ScheduledDate) && n.OrderIndex == blocker.OrderIndex {
		t.Errorf("reinforcement node collided with occupied slot")
	}
}

func TestApplySignal_ConcurrentSignalsSerialized(t *testing.T) {
	s, st := testScheduler(t)
	ctx := context.Background()
	goal := createGoalWithPath(t, s, st, nil, "topic-algebra")

	sig := PerformanceSignal{
		GoalID: goal.ID, TopicID: "topic-algebra", Score: 30,
		WeakUnitIDs: []string{"unit-t1"},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ApplyPerformanceSignal(ctx, goal, sig); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent signal failed: %v", err)
	}

	nodes, err := st.PathRepo().ListByGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("ListByGoal: %v", err)
	}
	reinforcements := 0
	for _, n := range nodes {
		if n.OrderIndex < 0 {
			reinforcements++
		}
	}
	if reinforcements != 1 {
		t.Errorf("reinforcement nodes = %d, want 1 (same signal applied concurrently)", reinforcements)
	}
}

func TestApplySignal_TwoTopicScenario(t *testing.T) {
	s, st := testScheduler(t)
	ctx := context.Background()
	goal := createGoalWithPath(t, s, st, nil, "topic-algebra", "topic-geometry")

	// The student finished the first algebra activity before signals arrive.
	nodes, err := st.PathRepo().ListByGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("ListByGoal: %v", err)
	}
	var completedID string
	for _, n := range nodes {
		if n.TopicID == "topic-algebra" {
			completedID = n.ID
			break
		}
	}
	if err := st.PathRepo().UpdateStatus(ctx, completedID, store.NodeStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	// 60 sits between the reinforcement and escalation thresholds:
	// the path is left alone and only progress is recorded.
	delta, err := s.ApplyPerformanceSignal(ctx, goal, PerformanceSignal{
		GoalID: goal.ID, TopicID: "topic-algebra", Score: 60,
		WeakUnitIDs: []string{"unit-t1"},
	})
	if err != nil {
		t.Fatalf("algebra signal: %v", err)
	}
	if len(delta.Inserted) != 0 || len(delta.Escalated) != 0 {
		t.Errorf("score 60 mutated the path: inserted=%d escalated=%d",
			len(delta.Inserted), len(delta.Escalated))
	}

	delta, err = s.ApplyPerformanceSignal(ctx, goal, PerformanceSignal{
		GoalID: goal.ID, TopicID: "topic-geometry", Score: 20,
		WeakUnitIDs: []string{"unit-m2"},
	})
	if err != nil {
		t.Fatalf("geometry signal: %v", err)
	}
	if len(delta.Inserted) != 1 {
		t.Fatalf("inserted = %d nodes, want 1", len(delta.Inserted))
	}
	tomorrow := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	n := delta.Inserted[0]
	if n.TopicID != "topic-geometry" || n.SubtopicID != "sub-angles" {
		t.Errorf("reinforcement placed at %s/%s", n.TopicID, n.SubtopicID)
	}
	if n.OrderIndex >= 0 {
		t.Errorf("order index = %d, want negative", n.OrderIndex)
	}
	if n.ScheduledDate.Before(tomorrow) {
		t.Errorf("scheduled %v, must be strictly after today", n.ScheduledDate)
	}

	after, err := st.PathRepo().ListByGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("ListByGoal: %v", err)
	}
	for _, n := range after {
		if n.ID == completedID && n.Status != store.NodeStatusCompleted {
			t.Errorf("completed node mutated to %s", n.Status)
		}
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	var km keyedMutex

	var wg sync.WaitGroup
	for i := range 9 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			unlock := km.lock(fmt.Sprintf("goal-%d", n%3))
			unlock()
		}(i)
	}
	wg.Wait()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Errorf("lock table holds %d entries after all holders released", len(km.locks))
	}
}
