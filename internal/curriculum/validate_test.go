package curriculum

import (
	"strings"
	"testing"
)

func TestValidate_DuplicateUnitID(t *testing.T) {
	topics := testTopics()
	topics[1].Units = append(topics[1].Units, KnowledgeUnit{ID: "unit-t1", Code: "X9", Name: "dup"})

	_, err := New(topics, nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate unit ID") {
		t.Errorf("expected duplicate unit ID error, got %v", err)
	}
}

func TestValidate_DuplicateUnitCode(t *testing.T) {
	topics := testTopics()
	topics[1].Units = append(topics[1].Units, KnowledgeUnit{ID: "unit-x", Code: "T1", Name: "dup code"})

	_, err := New(topics, nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate unit code") {
		t.Errorf("expected duplicate unit code error, got %v", err)
	}
}

func TestValidate_DanglingPrerequisite(t *testing.T) {
	topics := testTopics()
	topics[0].Subtopics[0].Prerequisites = []string{"sub-missing"}

	_, err := New(topics, nil)
	if err == nil || !strings.Contains(err.Error(), "nonexistent prerequisite") {
		t.Errorf("expected dangling prerequisite error, got %v", err)
	}
}

func TestValidate_DanglingUnitReference(t *testing.T) {
	topics := testTopics()
	topics[0].Subtopics[0].UnitIDs = append(topics[0].Subtopics[0].UnitIDs, "unit-ghost")

	_, err := New(topics, nil)
	if err == nil || !strings.Contains(err.Error(), "nonexistent unit") {
		t.Errorf("expected dangling unit error, got %v", err)
	}
}

func TestValidate_PrerequisiteCycle(t *testing.T) {
	topics := testTopics()
	topics[0].Subtopics[0].Prerequisites = []string{"sub-quadratic"}
	// sub-quadratic already requires sub-linear, so this is a 2-cycle.

	_, err := New(topics, nil)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestValidate_TopicWithoutSubtopics(t *testing.T) {
	topics := testTopics()
	topics[1].Subtopics = nil

	_, err := New(topics, nil)
	if err == nil || !strings.Contains(err.Error(), "no subtopics") {
		t.Errorf("expected no-subtopics error, got %v", err)
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	topics := testTopics()
	topics[0].Subtopics[0].Prerequisites = []string{"sub-missing"}
	topics[1].Units[0].Code = ""

	_, err := New(topics, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "nonexistent prerequisite") || !strings.Contains(msg, "empty code") {
		t.Errorf("expected both errors reported, got: %v", msg)
	}
}
