package assessment

import "github.com/abhisek/pathwise/internal/generator"

// QuestionSetSchema defines the JSON schema for generated question sets.
// Generator output must validate against this schema before any field
// is trusted as a domain entity.
var QuestionSetSchema = &generator.Schema{
	Name:        "question-set",
	Description: "A set of assessment questions with per-step knowledge unit citations",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"subtopic_id": map[string]any{
							"type":        "string",
							"description": "Subtopic this question belongs to",
						},
						"difficulty": map[string]any{
							"type":        "string",
							"enum":        []any{"easy", "medium", "hard"},
							"description": "Difficulty tier",
						},
						"text": map[string]any{
							"type":        "string",
							"description": "The question prompt shown to the student",
						},
						"primary_unit_id": map[string]any{
							"type":        "string",
							"description": "ID of the primary knowledge unit this question tests",
						},
						"supporting_unit_ids": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "IDs of additional knowledge units exercised",
						},
						"steps": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"text": map[string]any{
										"type":        "string",
										"description": "The solution step",
									},
									"unit_id": map[string]any{
										"type":        "string",
										"description": "ID of the single knowledge unit this step cites",
									},
									"unit_code": map[string]any{
										"type":        "string",
										"description": "Human-readable code of the cited unit, e.g. T1",
									},
								},
								"required":             []any{"text", "unit_id", "unit_code"},
								"additionalProperties": false,
							},
							"description": "Worked solution steps, each citing exactly one unit",
						},
						"is_combination": map[string]any{
							"type":        "boolean",
							"description": "True if the question combines units from two or more subtopics",
						},
						"correct_answer": map[string]any{
							"type":        "string",
							"description": "The canonical correct answer",
						},
					},
					"required": []any{
						"subtopic_id", "difficulty", "text", "primary_unit_id",
						"supporting_unit_ids", "steps", "is_combination", "correct_answer",
					},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}
