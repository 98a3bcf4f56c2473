package assessment

import (
	"fmt"
	"strings"

	"github.com/abhisek/pathwise/internal/curriculum"
	"github.com/abhisek/pathwise/internal/generator"
)

const generationSystemPrompt = `You are an assessment author for an adaptive tutoring system.

Rules:
- Generate the requested number of questions for the given topic.
- Every question must declare exactly one primary knowledge unit ID drawn from the allowed unit list.
- Supporting unit IDs must also come from the allowed list.
- Every solution step must cite exactly one knowledge unit by ID and code.
- Between them, the questions must cite every required unit at least once.
- At least one question must be a combination question (is_combination=true) whose cited units span two or more subtopics.
- Use plain ASCII text for all math. No LaTeX, no Unicode symbols.
- Answers must be correct and in simplest form.`

// QuestionSetRequest describes a question set to generate.
type QuestionSetRequest struct {
	Topic         curriculum.Topic
	RequiredUnits []curriculum.KnowledgeUnit
	AllowedUnits  []curriculum.KnowledgeUnit
	Count         int
	Difficulty    Difficulty
	MaxTokens     int
}

// BuildGenerationRequest constructs the generator request for a
// question set. Output must still pass DecodeQuestionSet and the
// coverage validator before use.
func BuildGenerationRequest(req QuestionSetRequest) generator.Request {
	var b strings.Builder

	fmt.Fprintf(&b, "Topic: %s (%s)\n", req.Topic.Name, req.Topic.ID)
	fmt.Fprintf(&b, "Questions to generate: %d\n", req.Count)
	fmt.Fprintf(&b, "Target difficulty: %s\n", req.Difficulty)

	b.WriteString("\nSubtopics:\n")
	for _, st := range req.Topic.Subtopics {
		fmt.Fprintf(&b, "- %s: %s (units: %s)\n", st.ID, st.Name, strings.Join(st.UnitIDs, ", "))
	}

	b.WriteString("\nAllowed knowledge units:\n")
	for _, u := range req.AllowedUnits {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", u.ID, u.Code, u.Name)
	}

	b.WriteString("\nRequired units (each must be cited by at least one question):\n")
	for _, u := range req.RequiredUnits {
		fmt.Fprintf(&b, "- %s [%s]\n", u.ID, u.Code)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	return generator.Request{
		System: generationSystemPrompt,
		Messages: []generator.Message{
			{Role: generator.RoleUser, Content: b.String()},
		},
		Schema:      QuestionSetSchema,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}
}
