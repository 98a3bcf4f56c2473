package coverage

import (
	"fmt"

	"github.com/abhisek/pathwise/internal/assessment"
)

// PrimaryCitationRule checks that every question has a non-empty
// primary knowledge unit drawn from the allowed set for its topic.
type PrimaryCitationRule struct{}

func (r *PrimaryCitationRule) Name() string { return "primary-citation" }

func (r *PrimaryCitationRule) Check(questions []assessment.Question, in Input) []Violation {
	var out []Violation
	for _, q := range questions {
		allowed, ok := allowedFor(q, in.Curriculum)
		if !ok {
			out = append(out, Violation{
				Rule:       r.Name(),
				QuestionID: q.ID,
				Reason:     fmt.Sprintf("question references unknown subtopic %q", q.SubtopicID),
			})
			continue
		}
		if q.PrimaryUnitID == "" {
			out = append(out, Violation{
				Rule:       r.Name(),
				QuestionID: q.ID,
				Reason:     "primary knowledge unit is empty",
			})
			continue
		}
		if !allowed[q.PrimaryUnitID] {
			out = append(out, Violation{
				Rule:       r.Name(),
				QuestionID: q.ID,
				UnitID:     q.PrimaryUnitID,
				Reason:     fmt.Sprintf("primary unit %q is not in the allowed set for the question's topic", q.PrimaryUnitID),
			})
		}
		for _, uid := range q.SupportingUnitIDs {
			if !allowed[uid] {
				out = append(out, Violation{
					Rule:       r.Name(),
					QuestionID: q.ID,
					UnitID:     uid,
					Reason:     fmt.Sprintf("supporting unit %q is not in the allowed set for the question's topic", uid),
				})
			}
		}
	}
	return out
}

// StepCitationRule checks that every solution step cites exactly one
// allowed knowledge unit, with a code matching the curriculum.
type StepCitationRule struct{}

func (r *StepCitationRule) Name() string { return "step-citation" }

func (r *StepCitationRule) Check(questions []assessment.Question, in Input) []Violation {
	var out []Violation
	for _, q := range questions {
		allowed, ok := allowedFor(q, in.Curriculum)
		if !ok {
			continue // reported by primary-citation
		}
		for _, s := range q.Steps {
			if s.UnitID == "" {
				out = append(out, Violation{
					Rule:       r.Name(),
					QuestionID: q.ID,
					Reason:     fmt.Sprintf("step %d has no unit citation", s.Index),
				})
				continue
			}
			if !allowed[s.UnitID] {
				out = append(out, Violation{
					Rule:       r.Name(),
					QuestionID: q.ID,
					UnitID:     s.UnitID,
					Reason:     fmt.Sprintf("step %d cites unit %q outside the allowed set", s.Index, s.UnitID),
				})
				continue
			}
			if u, err := in.Curriculum.Unit(s.UnitID); err == nil && u.Code != s.UnitCode {
				out = append(out, Violation{
					Rule:       r.Name(),
					QuestionID: q.ID,
					UnitID:     s.UnitID,
					Reason:     fmt.Sprintf("step %d cites code %q but unit %q has code %q", s.Index, s.UnitCode, s.UnitID, u.Code),
				})
			}
		}
	}
	return out
}

// CompletenessRule checks that the union of every question's primary
// and supporting units covers all required units at least once.
type CompletenessRule struct{}

func (r *CompletenessRule) Name() string { return "coverage-completeness" }

func (r *CompletenessRule) Check(questions []assessment.Question, in Input) []Violation {
	cited := make(map[string]bool)
	for _, q := range questions {
		cited[q.PrimaryUnitID] = true
		for _, uid := range q.SupportingUnitIDs {
			cited[uid] = true
		}
	}

	var out []Violation
	for _, u := range in.Required {
		if !cited[u.ID] {
			out = append(out, Violation{
				Rule:   r.Name(),
				UnitID: u.ID,
				Reason: fmt.Sprintf("required unit %q [%s] is not cited by any question", u.ID, u.Code),
			})
		}
	}
	return out
}

// CombinationRule checks that at least one question is flagged as a
// combination question and cites units from two or more distinct
// subtopics. Foundational pool units belong to no subtopic and do not
// count toward the distinct-subtopic requirement.
type CombinationRule struct{}

func (r *CombinationRule) Name() string { return "combination" }

func (r *CombinationRule) Check(questions []assessment.Question, in Input) []Violation {
	for _, q := range questions {
		if !q.IsCombination {
			continue
		}
		subtopics := make(map[string]bool)
		for _, uid := range q.CitedUnits() {
			if st, ok := in.Curriculum.UnitSubtopic(uid); ok {
				subtopics[st] = true
			}
		}
		if len(subtopics) >= 2 {
			return nil
		}
	}
	return []Violation{{
		Rule:   r.Name(),
		Reason: "no combination question cites units from two or more distinct subtopics",
	}}
}
