package assessment

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/abhisek/pathwise/internal/generator"
)

// Wire types mirror the generator schema (snake_case). They exist so
// untrusted JSON is validated and mapped explicitly instead of being
// unmarshalled straight into domain entities.
type questionSetWire struct {
	Questions []questionWire `json:"questions"`
}

type questionWire struct {
	SubtopicID        string     `json:"subtopic_id"`
	Difficulty        string     `json:"difficulty"`
	Text              string     `json:"text"`
	PrimaryUnitID     string     `json:"primary_unit_id"`
	SupportingUnitIDs []string   `json:"supporting_unit_ids"`
	Steps             []stepWire `json:"steps"`
	IsCombination     bool       `json:"is_combination"`
	CorrectAnswer     string     `json:"correct_answer"`
}

type stepWire struct {
	Text     string `json:"text"`
	UnitID   string `json:"unit_id"`
	UnitCode string `json:"unit_code"`
}

// DecodeQuestionSet validates raw generator output against
// QuestionSetSchema and maps it to domain questions. Freshly decoded
// questions get generated IDs; coverage validation is a separate gate.
func DecodeQuestionSet(raw json.RawMessage) ([]Question, error) {
	if err := generator.ValidateJSON(QuestionSetSchema, raw); err != nil {
		return nil, &InvalidInputError{Field: "questions", Reason: "generator output failed schema validation", Err: err}
	}

	var wire questionSetWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &InvalidInputError{Field: "questions", Reason: "unmarshal question set", Err: err}
	}

	if len(wire.Questions) == 0 {
		return nil, &InvalidInputError{Field: "questions", Reason: "question set is empty"}
	}

	questions := make([]Question, 0, len(wire.Questions))
	for i, qw := range wire.Questions {
		q, err := mapQuestion(qw)
		if err != nil {
			return nil, &InvalidInputError{
				Field:  fmt.Sprintf("questions[%d]", i),
				Reason: err.Error(),
			}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func mapQuestion(w questionWire) (Question, error) {
	d := Difficulty(w.Difficulty)
	if !d.Valid() {
		return Question{}, fmt.Errorf("unknown difficulty %q", w.Difficulty)
	}
	if w.Text == "" {
		return Question{}, fmt.Errorf("question text is empty")
	}
	if w.PrimaryUnitID == "" {
		return Question{}, fmt.Errorf("primary knowledge unit is empty")
	}
	if w.SubtopicID == "" {
		return Question{}, fmt.Errorf("subtopic_id is empty")
	}

	steps := make([]Step, len(w.Steps))
	for i, sw := range w.Steps {
		if sw.UnitID == "" || sw.UnitCode == "" {
			return Question{}, fmt.Errorf("step %d is missing its unit citation", i)
		}
		steps[i] = Step{
			Index:    i,
			Text:     sw.Text,
			UnitID:   sw.UnitID,
			UnitCode: sw.UnitCode,
		}
	}

	return Question{
		ID:                uuid.NewString(),
		SubtopicID:        w.SubtopicID,
		Difficulty:        d,
		Text:              w.Text,
		PrimaryUnitID:     w.PrimaryUnitID,
		SupportingUnitIDs: w.SupportingUnitIDs,
		Steps:             steps,
		IsCombination:     w.IsCombination,
		CorrectAnswer:     w.CorrectAnswer,
	}, nil
}
