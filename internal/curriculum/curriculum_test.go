package curriculum

import (
	"reflect"
	"testing"
)

func testTopics() []Topic {
	return []Topic{
		{
			ID:       "topic-algebra",
			Name:     "Algebra",
			Sequence: 1,
			Subtopics: []Subtopic{
				{ID: "sub-linear", Name: "Linear equations", Sequence: 1, UnitIDs: []string{"unit-t1", "unit-t2"}, EstimatedMins: 20},
				{ID: "sub-quadratic", Name: "Quadratic equations", Sequence: 2, UnitIDs: []string{"unit-m1"}, Prerequisites: []string{"sub-linear"}, EstimatedMins: 25},
			},
			Units: []KnowledgeUnit{
				{ID: "unit-t1", Code: "T1", Name: "Isolate the variable"},
				{ID: "unit-t2", Code: "T2", Name: "Balance both sides"},
				{ID: "unit-m1", Code: "M1", Name: "Quadratic formula"},
			},
		},
		{
			ID:       "topic-geometry",
			Name:     "Geometry",
			Sequence: 2,
			Subtopics: []Subtopic{
				{ID: "sub-angles", Name: "Angles", Sequence: 1, UnitIDs: []string{"unit-m2"}, EstimatedMins: 15},
			},
			Units: []KnowledgeUnit{
				{ID: "unit-m2", Code: "M2", Name: "Angle sum of a triangle"},
			},
		},
	}
}

func testFoundational() []KnowledgeUnit {
	return []KnowledgeUnit{
		{ID: "unit-f1", Code: "F1", Name: "Order of operations"},
	}
}

func mustCurriculum(t *testing.T) *Curriculum {
	t.Helper()
	c, err := New(testTopics(), testFoundational())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Lookups(t *testing.T) {
	c := mustCurriculum(t)

	u, err := c.Unit("unit-t1")
	if err != nil {
		t.Fatalf("Unit: %v", err)
	}
	if u.Code != "T1" || u.TopicID != "topic-algebra" {
		t.Errorf("unexpected unit: %+v", u)
	}

	st, err := c.Subtopic("sub-quadratic")
	if err != nil {
		t.Fatalf("Subtopic: %v", err)
	}
	if st.TopicID != "topic-algebra" {
		t.Errorf("expected subtopic topic backfilled, got %q", st.TopicID)
	}

	if _, err := c.Unit("unit-nope"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestAllowedUnits_IncludesFoundationalPool(t *testing.T) {
	c := mustCurriculum(t)

	allowed := c.AllowedUnits("topic-geometry")
	if !allowed["unit-m2"] {
		t.Error("topic unit missing from allowed set")
	}
	if !allowed["unit-f1"] {
		t.Error("foundational unit missing from allowed set")
	}
	if allowed["unit-t1"] {
		t.Error("other topic's unit should not be allowed")
	}
}

func TestSubtopicsInOrder_RespectsPrerequisites(t *testing.T) {
	c := mustCurriculum(t)

	order := c.SubtopicsInOrder()
	idx := make(map[string]int, len(order))
	for i, id := range order {
		idx[id] = i
	}
	if idx["sub-linear"] > idx["sub-quadratic"] {
		t.Errorf("prerequisite ordered after dependent: %v", order)
	}

	// Determinism: repeated builds yield identical order.
	c2, err := New(testTopics(), testFoundational())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !reflect.DeepEqual(order, c2.SubtopicsInOrder()) {
		t.Error("topological order is not deterministic")
	}
}

func TestPrerequisitesResolved(t *testing.T) {
	c := mustCurriculum(t)

	if c.PrerequisitesResolved("sub-quadratic", map[string]bool{}) {
		t.Error("unmastered prerequisite should block")
	}
	if !c.PrerequisitesResolved("sub-quadratic", map[string]bool{"sub-linear": true}) {
		t.Error("mastered prerequisite should resolve")
	}
	if !c.PrerequisitesResolved("sub-linear", nil) {
		t.Error("subtopic without prerequisites is always resolved")
	}
}

func TestTopics_SequenceOrder(t *testing.T) {
	c := mustCurriculum(t)
	topics := c.Topics()
	if topics[0].ID != "topic-algebra" || topics[1].ID != "topic-geometry" {
		t.Errorf("topics out of sequence order: %v, %v", topics[0].ID, topics[1].ID)
	}
}

func TestNew_DoesNotMutateDefinitions(t *testing.T) {
	topics := []Topic{
		{
			ID:       "topic-algebra",
			Name:     "Algebra",
			Sequence: 1,
			Subtopics: []Subtopic{
				// Deliberately out of sequence order.
				{ID: "sub-quadratic", Name: "Quadratic equations", Sequence: 2, UnitIDs: []string{"unit-m1"}, Prerequisites: []string{"sub-linear"}},
				{ID: "sub-linear", Name: "Linear equations", Sequence: 1, UnitIDs: []string{"unit-t1"}},
			},
			Units: []KnowledgeUnit{
				{ID: "unit-t1", Code: "T1", Name: "Isolate the variable"},
				{ID: "unit-m1", Code: "M1", Name: "Quadratic formula"},
			},
		},
	}

	if _, err := New(topics, nil); err != nil {
		t.Fatalf("New: %v", err)
	}

	if topics[0].Subtopics[0].ID != "sub-quadratic" || topics[0].Subtopics[1].ID != "sub-linear" {
		t.Errorf("caller's subtopic order changed: %s, %s",
			topics[0].Subtopics[0].ID, topics[0].Subtopics[1].ID)
	}
	for _, st := range topics[0].Subtopics {
		if st.TopicID != "" {
			t.Errorf("caller's subtopic %s stamped with topic %s", st.ID, st.TopicID)
		}
	}
	for _, u := range topics[0].Units {
		if u.TopicID != "" {
			t.Errorf("caller's unit %s stamped with topic %s", u.ID, u.TopicID)
		}
	}
}
