package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildResponseSchema returns the JSON-Schema (draft 2020-12 subset) for the
// extraction response as a generic map. It is passed to providers that accept
// a schema and used locally as a structural gate after sanitization. The
// schema is deliberately loose about presence: the validator downstream owns
// the required-field policy, so nothing here is required.
func BuildResponseSchema(categories []string) map[string]any {
	category := map[string]any{"type": "string"}
	if len(categories) > 0 {
		category = map[string]any{"type": "string", "enum": categories}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"document_class": map[string]any{"type": "string", "enum": []string{"invoice", "receipt", "other"}},
			"direction":      map[string]any{"type": "string", "enum": []string{"income", "expense"}},
			"date":           map[string]any{"type": "string"},
			"amount":         map[string]any{"type": "number"},
			"tax_amount":     map[string]any{"type": "number"},
			"counterparty":   map[string]any{"type": "string"},
			"description":    map[string]any{"type": "string"},
			"category":       category,
			"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}
}

// structuralSchema is the local gate: no category enum, since out-of-vocabulary
// labels are repaired by the validator rather than rejected here.
var structuralSchema = mustCompile(BuildResponseSchema(nil))

// ValidateAgainstResponseSchema checks a sanitized payload against the
// structural response schema.
func ValidateAgainstResponseSchema(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := structuralSchema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}
