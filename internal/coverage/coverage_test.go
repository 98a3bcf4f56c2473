package coverage

import (
	"errors"
	"testing"

	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/curriculum"
)

func testCurriculum(t *testing.T) *curriculum.Curriculum {
	t.Helper()
	topics := []curriculum.Topic{
		{
			ID:       "topic-algebra",
			Name:     "Algebra",
			Sequence: 1,
			Subtopics: []curriculum.Subtopic{
				{ID: "sub-linear", Name: "Linear equations", Sequence: 1, UnitIDs: []string{"unit-t1", "unit-t2"}},
				{ID: "sub-quadratic", Name: "Quadratic equations", Sequence: 2, UnitIDs: []string{"unit-m1"}},
			},
			Units: []curriculum.KnowledgeUnit{
				{ID: "unit-t1", Code: "T1", Name: "Isolate the variable"},
				{ID: "unit-t2", Code: "T2", Name: "Balance both sides"},
				{ID: "unit-m1", Code: "M1", Name: "Quadratic formula"},
			},
		},
		{
			ID:       "topic-geometry",
			Name:     "Geometry",
			Sequence: 2,
			Subtopics: []curriculum.Subtopic{
				{ID: "sub-angles", Name: "Angles", Sequence: 1, UnitIDs: []string{"unit-m2"}},
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

func requiredUnits(t *testing.T, c *curriculum.Curriculum, ids ...string) []curriculum.KnowledgeUnit {
	t.Helper()
	units := make([]curriculum.KnowledgeUnit, 0, len(ids))
	for _, id := range ids {
		u, err := c.Unit(id)
		if err != nil {
			t.Fatalf("unit %q: %v", id, err)
		}
		units = append(units, u)
	}
	return units
}

func validSet() []assessment.Question {
	return []assessment.Question{
		{
			ID:            "q1",
			SubtopicID:    "sub-linear",
			Difficulty:    assessment.DifficultyEasy,
			Text:          "Solve x + 3 = 5",
			PrimaryUnitID: "unit-t1",
			Steps: []assessment.Step{
				{Index: 0, Text: "Subtract 3", UnitID: "unit-t2", UnitCode: "T2"},
				{Index: 1, Text: "x = 2", UnitID: "unit-t1", UnitCode: "T1"},
			},
			CorrectAnswer: "2",
		},
		{
			ID:                "q2",
			SubtopicID:        "sub-quadratic",
			Difficulty:        assessment.DifficultyMedium,
			Text:              "Solve x^2 - 4 = 0 using what you know about balancing",
			PrimaryUnitID:     "unit-m1",
			SupportingUnitIDs: []string{"unit-t2"},
			Steps: []assessment.Step{
				{Index: 0, Text: "Apply the quadratic formula", UnitID: "unit-m1", UnitCode: "M1"},
			},
			IsCombination: true,
			CorrectAnswer: "x = 2 or x = -2",
		},
	}
}

func TestValidate_AcceptsCompliantSet(t *testing.T) {
	c := testCurriculum(t)
	required := requiredUnits(t, c, "unit-t1", "unit-t2", "unit-m1")

	res := Validate(validSet(), required, c)
	if !res.OK {
		t.Fatalf("expected OK, got violations: %+v", res.Violations)
	}
	if res.Err() != nil {
		t.Errorf("Err() should be nil for OK result")
	}
}

func TestValidate_CoverageCompleteness(t *testing.T) {
	c := testCurriculum(t)
	// unit-m1 is required but validSet without q2 never cites it.
	qs := validSet()[:1]
	qs[0].IsCombination = true
	qs[0].SupportingUnitIDs = []string{"unit-t2"}
	required := requiredUnits(t, c, "unit-t1", "unit-m1")

	res := Validate(qs, required, c)
	if res.OK {
		t.Fatal("expected failure")
	}
	if !hasViolation(res, "coverage-completeness", "unit-m1") {
		t.Errorf("missing completeness violation for unit-m1: %+v", res.Violations)
	}
}

func TestValidate_PrimaryOutsideAllowedSet(t *testing.T) {
	c := testCurriculum(t)
	qs := validSet()
	// unit-m2 belongs to the geometry topic; q1 is an algebra question.
	qs[0].PrimaryUnitID = "unit-m2"

	res := Validate(qs, requiredUnits(t, c, "unit-m1"), c)
	if !hasViolation(res, "primary-citation", "unit-m2") {
		t.Errorf("expected primary-citation violation: %+v", res.Violations)
	}
}

func TestValidate_FoundationalUnitAlwaysAllowed(t *testing.T) {
	c := testCurriculum(t)
	qs := validSet()
	qs[0].SupportingUnitIDs = []string{"unit-f1"}
	qs[0].Steps = append(qs[0].Steps, assessment.Step{Index: 2, Text: "Apply order of operations", UnitID: "unit-f1", UnitCode: "F1"})

	res := Validate(qs, requiredUnits(t, c, "unit-t1", "unit-m1"), c)
	if !res.OK {
		t.Errorf("foundational citations should pass: %+v", res.Violations)
	}
}

func TestValidate_StepCodeMismatch(t *testing.T) {
	c := testCurriculum(t)
	qs := validSet()
	qs[0].Steps[0].UnitCode = "WRONG"

	res := Validate(qs, requiredUnits(t, c, "unit-t1"), c)
	if !hasViolation(res, "step-citation", "unit-t2") {
		t.Errorf("expected step-citation violation: %+v", res.Violations)
	}
}

func TestValidate_StepUnitOutsideAllowedSet(t *testing.T) {
	c := testCurriculum(t)
	qs := validSet()
	qs[0].Steps[0].UnitID = "unit-m2"
	qs[0].Steps[0].UnitCode = "M2"

	res := Validate(qs, requiredUnits(t, c, "unit-t1"), c)
	if !hasViolation(res, "step-citation", "unit-m2") {
		t.Errorf("expected step-citation violation: %+v", res.Violations)
	}
}

func TestValidate_RequiresCombinationQuestion(t *testing.T) {
	c := testCurriculum(t)
	qs := validSet()
	qs[1].IsCombination = false

	res := Validate(qs, requiredUnits(t, c, "unit-t1"), c)
	if !hasViolation(res, "combination", "") {
		t.Errorf("expected combination violation: %+v", res.Violations)
	}
}

func TestValidate_CombinationNeedsTwoSubtopics(t *testing.T) {
	c := testCurriculum(t)
	qs := validSet()
	// Flagged as combination but only cites units taught in sub-quadratic.
	qs[1].SupportingUnitIDs = nil
	qs[1].Steps = []assessment.Step{
		{Index: 0, Text: "Quadratic formula", UnitID: "unit-m1", UnitCode: "M1"},
	}

	res := Validate(qs, requiredUnits(t, c, "unit-m1"), c)
	if !hasViolation(res, "combination", "") {
		t.Errorf("single-subtopic combination question should fail: %+v", res.Violations)
	}
}

func TestValidate_UnknownSubtopic(t *testing.T) {
	c := testCurriculum(t)
	qs := validSet()
	qs[0].SubtopicID = "sub-ghost"

	res := Validate(qs, requiredUnits(t, c, "unit-m1"), c)
	if !hasViolation(res, "primary-citation", "") {
		t.Errorf("expected violation for unknown subtopic: %+v", res.Violations)
	}
}

func TestResult_ErrCarriesViolations(t *testing.T) {
	c := testCurriculum(t)
	res := Validate(nil, requiredUnits(t, c, "unit-t1"), c)

	err := res.Err()
	var vf *ValidationFailure
	if !errors.As(err, &vf) {
		t.Fatalf("expected ValidationFailure, got %v", err)
	}
	if len(vf.Violations) == 0 {
		t.Error("violations not carried on error")
	}
}

func TestValidate_Deterministic(t *testing.T) {
	c := testCurriculum(t)
	qs := validSet()
	qs[0].PrimaryUnitID = "unit-m2"
	required := requiredUnits(t, c, "unit-t1", "unit-m1")

	first := Validate(qs, required, c)
	for range 5 {
		again := Validate(qs, required, c)
		if len(again.Violations) != len(first.Violations) {
			t.Fatal("violation count varies across runs")
		}
		for i := range again.Violations {
			if again.Violations[i] != first.Violations[i] {
				t.Fatal("violation order varies across runs")
			}
		}
	}
}

func hasViolation(res Result, rule, unitID string) bool {
	for _, v := range res.Violations {
		if v.Rule == rule && (unitID == "" || v.UnitID == unitID) {
			return true
		}
	}
	return false
}
