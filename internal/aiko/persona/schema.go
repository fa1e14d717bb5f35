package persona

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// customSchema constrains user-submitted custom persona definitions before
// they reach Template.Validate. Keeping the structural checks in a schema
// gives users a precise pointer at the offending field instead of a generic
// decode error.
const customSchema = `{
  "$schema": "https://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "system_prompt"],
  "additionalProperties": false,
  "properties": {
    "name":          {"type": "string", "minLength": 1, "maxLength": 64, "pattern": "^[^\\s]+$"},
    "description":   {"type": "string", "maxLength": 256},
    "system_prompt": {"type": "string", "minLength": 1, "maxLength": 8192},
    "temperature":   {"type": "number", "minimum": 0, "maximum": 2},
    "max_tokens":    {"type": "integer", "minimum": 1, "maximum": 32768},
    "greeting":      {"type": "string", "maxLength": 1024},
    "traits":        {"type": "array", "items": {"type": "string", "minLength": 1}, "maxItems": 16},
    "avatar":        {"type": "string", "maxLength": 512}
  }
}`

var compiledCustomSchema = jsonschema.MustCompileString("persona.schema.json", customSchema)

// ParseCustom decodes a user-submitted JSON persona definition, validates it
// against the schema, and fills in defaults for the optional sampling
// fields. The returned template still has to pass the catalog's collision
// check before it becomes visible.
func ParseCustom(data []byte) (Template, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Template{}, fmt.Errorf("persona: definition is not valid JSON: %w", err)
	}
	if err := compiledCustomSchema.Validate(raw); err != nil {
		return Template{}, fmt.Errorf("persona: definition rejected: %w", err)
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("persona: decode definition: %w", err)
	}

	if t.Temperature == 0 {
		t.Temperature = 0.8
	}
	if t.MaxTokens == 0 {
		t.MaxTokens = 1024
	}
	if t.Description == "" {
		t.Description = "Custom persona"
	}

	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}
