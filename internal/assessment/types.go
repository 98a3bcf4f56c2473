package assessment

import "time"

// Difficulty is a question difficulty tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty tier.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Step is one solution step of a question. Every step cites exactly
// one knowledge unit.
type Step struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	UnitID   string `json:"knowledgeUnitId"`
	UnitCode string `json:"unitCode"`
}

// Question is a generated assessment item. Every question declares a
// primary knowledge unit; supporting units are optional.
type Question struct {
	ID                string     `json:"id"`
	SubtopicID        string     `json:"subtopicId"`
	Difficulty        Difficulty `json:"difficulty"`
	Text              string     `json:"text"`
	PrimaryUnitID     string     `json:"primaryKnowledgeUnit"`
	SupportingUnitIDs []string   `json:"supportingKnowledgeUnits"`
	Steps             []Step     `json:"steps"`
	IsCombination     bool       `json:"isCombinationQuestion"`
	CorrectAnswer     string     `json:"correctAnswer"`
}

// CitedUnits returns the deduplicated set of unit IDs this question
// cites: primary, supporting, and per-step citations.
func (q Question) CitedUnits() []string {
	seen := make(map[string]bool)
	var units []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			units = append(units, id)
		}
	}
	add(q.PrimaryUnitID)
	for _, id := range q.SupportingUnitIDs {
		add(id)
	}
	for _, s := range q.Steps {
		add(s.UnitID)
	}
	return units
}

// AnswerRecord is one judged response within a submitted attempt.
type AnswerRecord struct {
	QuestionID       string `json:"questionId"`
	SubtopicID       string `json:"subtopicId"`
	Correct          bool   `json:"correct"`
	Answer           string `json:"answer"`
	MisconceptionTag string `json:"misconceptionTag,omitempty"`
}

// AnswerSubmission is one raw (not yet judged) answer to a question.
type AnswerSubmission struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// AttemptKind distinguishes diagnostic from mastery-test attempts.
type AttemptKind string

const (
	KindDiagnostic AttemptKind = "diagnostic"
	KindMastery    AttemptKind = "mastery"
)

// Attempt is one student's submission against a question set.
// Attempts are immutable after creation (append-only history).
type Attempt struct {
	ID          string         `json:"id"`
	StudentID   string         `json:"studentId"`
	Kind        AttemptKind    `json:"kind"`
	SubmittedAt time.Time      `json:"submittedAt"`
	Answers     []AnswerRecord `json:"answers"`
}
