// Package coverage gates generated assessments: a question set is only
// accepted when every question and solution step cites allowed
// knowledge units and the set as a whole covers the required units.
package coverage

import (
	"fmt"
	"strings"

	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/curriculum"
)

// Violation describes one way a question set failed validation.
type Violation struct {
	Rule       string `json:"rule"`
	QuestionID string `json:"questionId,omitempty"`
	UnitID     string `json:"unitId,omitempty"`
	Reason     string `json:"reason"`
}

// Result is the outcome of validating a question set.
type Result struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations,omitempty"`
}

// Err returns a *ValidationFailure carrying the violations, or nil
// when the result is OK.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &ValidationFailure{Violations: r.Violations}
}

// ValidationFailure is returned when generated content is rejected.
// Callers must regenerate; an uncovered assessment is never used.
type ValidationFailure struct {
	Violations []Violation
}

func (e *ValidationFailure) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("coverage validation failed: %s: %s", v.Rule, v.Reason)
	}
	rules := make([]string, 0, len(e.Violations))
	seen := make(map[string]bool)
	for _, v := range e.Violations {
		if !seen[v.Rule] {
			seen[v.Rule] = true
			rules = append(rules, v.Rule)
		}
	}
	return fmt.Sprintf("coverage validation failed: %d violations (%s)", len(e.Violations), strings.Join(rules, ", "))
}

// Rule checks one property of a question set. Rules are stateless and
// safe for concurrent use.
type Rule interface {
	// Name returns a short identifier for error messages, e.g.
	// "primary-citation", "coverage-completeness".
	Name() string

	// Check returns all violations found, or nil if the rule passes.
	Check(questions []assessment.Question, in Input) []Violation
}

// Input carries the context rules validate against.
type Input struct {
	// Required is the unit set the questions must collectively cover.
	Required []curriculum.KnowledgeUnit

	// Curriculum resolves unit/subtopic lookups and allowed sets.
	Curriculum *curriculum.Curriculum
}

// DefaultRules returns the rule chain in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		&PrimaryCitationRule{},
		&StepCitationRule{},
		&CompletenessRule{},
		&CombinationRule{},
	}
}

// Validate runs all rules against the question set. It is pure and
// deterministic: no I/O, identical input yields identical output.
// All rules run, so the result carries every violation, not just the first.
func Validate(questions []assessment.Question, required []curriculum.KnowledgeUnit, cur *curriculum.Curriculum) Result {
	in := Input{Required: required, Curriculum: cur}

	var violations []Violation
	for _, rule := range DefaultRules() {
		violations = append(violations, rule.Check(questions, in)...)
	}

	return Result{OK: len(violations) == 0, Violations: violations}
}

// allowedFor resolves the allowed unit set for a question via its
// subtopic's topic, falling back to the foundational pool only when
// the subtopic is unknown (which is itself reported by the rules).
func allowedFor(q assessment.Question, cur *curriculum.Curriculum) (map[string]bool, bool) {
	st, err := cur.Subtopic(q.SubtopicID)
	if err != nil {
		return nil, false
	}
	return cur.AllowedUnits(st.TopicID), true
}
