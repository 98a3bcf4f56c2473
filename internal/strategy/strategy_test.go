package strategy

import "testing"

func TestTracker_AdvancesOnIncorrect(t *testing.T) {
	tr := NewTracker()

	if got := tr.Stage("s1", "linear-solve"); got != StageFirstAttempt {
		t.Fatalf("fresh pair stage = %v", got)
	}
	if got := tr.Record("s1", "linear-solve", false); got != StageSecondAttempt {
		t.Errorf("after 1 miss = %v, want second attempt", got)
	}
	if got := tr.Record("s1", "linear-solve", false); got != StageEscalated {
		t.Errorf("after 2 misses = %v, want escalated", got)
	}
	// Escalated is terminal while failures continue.
	if got := tr.Record("s1", "linear-solve", false); got != StageEscalated {
		t.Errorf("after 3 misses = %v, want escalated", got)
	}
}

func TestTracker_CorrectResets(t *testing.T) {
	tr := NewTracker()
	tr.Record("s1", "linear-solve", false)
	tr.Record("s1", "linear-solve", false)

	if got := tr.Record("s1", "linear-solve", true); got != StageFirstAttempt {
		t.Errorf("correct answer should reset, got %v", got)
	}
	if got := tr.Stage("s1", "linear-solve"); got != StageFirstAttempt {
		t.Errorf("stage after reset = %v", got)
	}
}

func TestTracker_PairsAreIndependent(t *testing.T) {
	tr := NewTracker()
	tr.Record("s1", "linear-solve", false)

	if got := tr.Stage("s2", "linear-solve"); got != StageFirstAttempt {
		t.Errorf("other student affected: %v", got)
	}
	if got := tr.Stage("s1", "quadratic-solve"); got != StageFirstAttempt {
		t.Errorf("other family affected: %v", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.Record("s1", "linear-solve", false)
	tr.Reset("s1", "linear-solve")

	if got := tr.Stage("s1", "linear-solve"); got != StageFirstAttempt {
		t.Errorf("stage after Reset = %v", got)
	}
}

func TestStage_ExplanationVariants(t *testing.T) {
	cases := []struct {
		stage Stage
		want  string
	}{
		{StageFirstAttempt, "standard"},
		{StageSecondAttempt, "worked-example"},
		{StageEscalated, "alternative-method"},
	}
	for _, tc := range cases {
		if got := tc.stage.ExplanationVariant(); got != tc.want {
			t.Errorf("%v.ExplanationVariant() = %q, want %q", tc.stage, got, tc.want)
		}
	}
}
