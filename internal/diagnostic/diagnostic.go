// Package diagnostic turns raw diagnostic answers into a competency
// profile: per-subtopic levels, strength/weakness classification,
// misconception patterns and a recommended starting point.
package diagnostic

import (
	"github.com/abhisek/pathwise/internal/assessment"
	"github.com/abhisek/pathwise/internal/curriculum"
)

// Classification buckets a subtopic level.
type Classification string

const (
	ClassStrength Classification = "strength"
	ClassWeakness Classification = "weakness"
	ClassNeutral  Classification = "neutral"
)

// Level thresholds. A subtopic at or above StrengthLevel counts as a
// strength; strictly below WeaknessLevel counts as a weakness.
const (
	StrengthLevel = 70
	WeaknessLevel = 50
)

// SubtopicLevel is the scored outcome for one subtopic. Subtopics with
// zero answered questions are omitted entirely: untested is not weak.
type SubtopicLevel struct {
	SubtopicID string         `json:"subtopicId"`
	Answered   int            `json:"answered"`
	Correct    int            `json:"correct"`
	Level      int            `json:"level"`
	Class      Classification `json:"classification"`
}

// CompetencyProfile is the full diagnostic result.
type CompetencyProfile struct {
	Subtopics        []SubtopicLevel `json:"subtopics"`
	Strengths        []string        `json:"strengths"`
	Weaknesses       []string        `json:"weaknesses"`
	Misconceptions   []string        `json:"misconceptions"`
	RecommendedStart string          `json:"recommendedStart"`
}

// Analyze scores diagnostic responses against the curriculum. It is a
// pure function: identical input always yields the identical profile.
// goalTopics narrows the recommended-start search; empty means all
// topics are in scope.
func Analyze(responses []assessment.AnswerRecord, cur *curriculum.Curriculum, goalTopics []string) (*CompetencyProfile, error) {
	type tally struct {
		answered int
		correct  int
	}
	tallies := make(map[string]*tally)
	var misconceptions []string
	seenTag := make(map[string]bool)

	for _, r := range responses {
		if r.SubtopicID == "" {
			return nil, &assessment.InvalidInputError{
				Field:  "responses",
				Reason: "answer record without a subtopic",
			}
		}
		if _, err := cur.Subtopic(r.SubtopicID); err != nil {
			return nil, &assessment.InvalidInputError{
				Field:  "responses",
				Reason: "unknown subtopic " + r.SubtopicID,
				Err:    err,
			}
		}
		t := tallies[r.SubtopicID]
		if t == nil {
			t = &tally{}
			tallies[r.SubtopicID] = t
		}
		t.answered++
		if r.Correct {
			t.correct++
		} else if tag := r.MisconceptionTag; tag != "" && !seenTag[tag] {
			seenTag[tag] = true
			misconceptions = append(misconceptions, tag)
		}
	}

	profile := &CompetencyProfile{Misconceptions: misconceptions}
	mastered := make(map[string]bool)
	levelByID := make(map[string]int)

	// Walk subtopics in topological order so the output is stable
	// regardless of response ordering.
	for _, id := range cur.SubtopicsInOrder() {
		t, ok := tallies[id]
		if !ok {
			continue
		}
		level := roundPercent(t.correct, t.answered)
		levelByID[id] = level
		sl := SubtopicLevel{
			SubtopicID: id,
			Answered:   t.answered,
			Correct:    t.correct,
			Level:      level,
			Class:      classify(level),
		}
		profile.Subtopics = append(profile.Subtopics, sl)
		switch sl.Class {
		case ClassStrength:
			profile.Strengths = append(profile.Strengths, id)
			mastered[id] = true
		case ClassWeakness:
			profile.Weaknesses = append(profile.Weaknesses, id)
		}
	}

	seen := make(map[string]bool, len(tallies))
	for id := range tallies {
		seen[id] = true
	}
	profile.RecommendedStart = recommendStart(cur, goalTopics, profile.Weaknesses, levelByID, mastered, seen)
	return profile, nil
}

func classify(level int) Classification {
	switch {
	case level >= StrengthLevel:
		return ClassStrength
	case level < WeaknessLevel:
		return ClassWeakness
	default:
		return ClassNeutral
	}
}

// roundPercent computes round-half-up(100*correct/answered) as an
// integer percentage.
func roundPercent(correct, answered int) int {
	if answered <= 0 {
		return 0
	}
	return (200*correct + answered) / (2 * answered)
}

// recommendStart picks the lowest-level weakness whose prerequisites
// are all mastered, restricted to the goal topics. When no weakness
// qualifies it falls back to the first untested subtopic in
// curriculum order.
func recommendStart(cur *curriculum.Curriculum, goalTopics, weaknesses []string, levels map[string]int, mastered, seen map[string]bool) string {
	inGoal := func(subtopicID string) bool {
		if len(goalTopics) == 0 {
			return true
		}
		st, err := cur.Subtopic(subtopicID)
		if err != nil {
			return false
		}
		for _, tid := range goalTopics {
			if st.TopicID == tid {
				return true
			}
		}
		return false
	}

	best := ""
	bestLevel := 0
	for _, id := range weaknesses {
		if !inGoal(id) || !cur.PrerequisitesResolved(id, mastered) {
			continue
		}
		if best == "" || levels[id] < bestLevel {
			best = id
			bestLevel = levels[id]
		}
	}
	if best != "" {
		return best
	}

	for _, topic := range cur.Topics() {
		for _, st := range cur.SubtopicsForTopic(topic.ID) {
			if seen[st.ID] || !inGoal(st.ID) {
				continue
			}
			return st.ID
		}
	}
	return ""
}
