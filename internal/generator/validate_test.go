package generator

import (
	"encoding/json"
	"errors"
	"testing"
)

var boolSchema = &Schema{
	Name: "test-bool",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ok": map[string]any{"type": "boolean"},
		},
		"required":             []any{"ok"},
		"additionalProperties": false,
	},
}

func TestValidateJSON_NilSchema(t *testing.T) {
	if err := ValidateJSON(nil, json.RawMessage(`not even json`)); err != nil {
		t.Errorf("nil schema should pass everything, got %v", err)
	}
}

func TestValidateJSON_Valid(t *testing.T) {
	if err := ValidateJSON(boolSchema, json.RawMessage(`{"ok":true}`)); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestValidateJSON_MalformedJSON(t *testing.T) {
	err := ValidateJSON(boolSchema, json.RawMessage(`{"ok":`))
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestValidateJSON_SchemaViolation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing required", `{}`},
		{"wrong type", `{"ok":"yes"}`},
		{"extra property", `{"ok":true,"extra":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJSON(boolSchema, json.RawMessage(tc.raw))
			var invErr *ErrInvalidResponse
			if !errors.As(err, &invErr) {
				t.Errorf("expected ErrInvalidResponse, got %v", err)
			}
		})
	}
}

func TestValidateJSON_SchemaCached(t *testing.T) {
	// Second validation with the same schema name hits the cache.
	if err := ValidateJSON(boolSchema, json.RawMessage(`{"ok":false}`)); err != nil {
		t.Fatal(err)
	}
	if _, ok := schemaCache.Load(boolSchema.Name); !ok {
		t.Error("schema not cached after validation")
	}
}
