package generator

import (
	"context"
	"encoding/json"
)

// Provider is the abstraction over the external content generator.
// The engine treats it as an untrusted oracle: structured output is
// schema-validated here, and question sets are additionally gated by
// the coverage validator before they reach a student.
type Provider interface {
	// Generate sends a prompt and returns structured JSON.
	// When req.Schema is set the provider uses its native structured
	// output mechanism and the returned Content is the validated JSON.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured with.
	ModelID() string
}

// Request describes what to send to the generator.
type Request struct {
	// System sets the generator's role and constraints.
	System string

	// Messages is the conversation. Single-turn generation (the common
	// case here) carries one user message.
	Messages []Message

	// Schema, when set, is the JSON Schema the response must conform to.
	// When nil the response Content is raw text as json.RawMessage.
	Schema *Schema

	// MaxTokens caps the response length.
	MaxTokens int

	// Temperature controls randomness, 0.0 - 1.0. Judging runs at 0.
	Temperature float64
}

// Message is a single conversation message.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the generator.
type Schema struct {
	// Name identifies this schema (tool name for Anthropic, schema
	// name for OpenAI). Kebab-case, e.g. "question-set".
	Name string

	// Description tells the generator what the schema represents.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the generator's output.
type Response struct {
	// Content is the generated output. Schema-validated JSON when a
	// Schema was requested.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is normalized to: "end", "max_tokens", "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
