package generator

import (
	"context"
	"encoding/json"
	"fmt"
)

// EquivalenceSchema is the JSON schema for equivalence judgments.
var EquivalenceSchema = &Schema{
	Name:        "answer-equivalence",
	Description: "Judgment of whether a student's answer is mathematically equivalent to the correct answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"equivalent": map[string]any{
				"type":        "boolean",
				"description": "true if the student's answer is mathematically equivalent to the correct answer",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "One sentence explaining the judgment",
			},
		},
		"required":             []any{"equivalent", "reasoning"},
		"additionalProperties": false,
	},
}

const judgeSystemPrompt = `You are a strict mathematical equivalence judge. ` +
	`Given a student's answer and the correct answer, decide whether they are ` +
	`mathematically equivalent. "x=2" and "2" are equivalent; "1/2" and "0.5" ` +
	`are equivalent; different values are never equivalent. Judge the ` +
	`mathematics only, not formatting or spelling.`

// JudgeConfig holds configuration for the equivalence judge.
type JudgeConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultJudgeConfig returns deterministic judging defaults.
func DefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		MaxTokens:   128,
		Temperature: 0,
	}
}

// EquivalenceJudge delegates mathematical-equivalence decisions to the
// content generator. It satisfies the grading package's judge contract.
type EquivalenceJudge struct {
	provider Provider
	cfg      JudgeConfig
}

// NewEquivalenceJudge creates an equivalence judge over the provider.
func NewEquivalenceJudge(provider Provider, cfg JudgeConfig) *EquivalenceJudge {
	return &EquivalenceJudge{provider: provider, cfg: cfg}
}

type equivalenceOutput struct {
	Equivalent bool   `json:"equivalent"`
	Reasoning  string `json:"reasoning"`
}

// Judge returns whether studentAnswer is equivalent to correctAnswer.
func (j *EquivalenceJudge) Judge(ctx context.Context, studentAnswer, correctAnswer string) (bool, error) {
	ctx = WithPurpose(ctx, "equivalence-judge")

	userMsg := fmt.Sprintf("Correct answer: %s\nStudent answer: %s", correctAnswer, studentAnswer)

	resp, err := j.provider.Generate(ctx, Request{
		System: judgeSystemPrompt,
		Messages: []Message{
			{Role: RoleUser, Content: userMsg},
		},
		Schema:      EquivalenceSchema,
		MaxTokens:   j.cfg.MaxTokens,
		Temperature: j.cfg.Temperature,
	})
	if err != nil {
		return false, fmt.Errorf("equivalence judgment failed: %w", err)
	}

	var out equivalenceOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return false, fmt.Errorf("parse equivalence response: %w", err)
	}

	return out.Equivalent, nil
}
