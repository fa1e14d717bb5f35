// Package persona implements the persona catalog, alias resolution, and
// per-user persona selection for Aiko.
//
// Built-in personas come from YAML catalogs embedded at build time; custom
// personas are added at runtime through the command surface after schema
// validation. Names are unique across both sets combined.
package persona

import (
	"fmt"
	"strings"
)

// Template is a persona definition: the system prompt and sampling
// parameters applied to every completion while the persona is selected.
// Immutable once registered except via explicit remove+add.
type Template struct {
	// Name is the canonical, unique identifier.
	Name string `yaml:"name" json:"name"`
	// Description is a one-line summary shown by `persona list`.
	Description string `yaml:"description" json:"description"`
	// SystemPrompt is sent as the leading system message.
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`
	// Temperature is the sampling temperature, 0–2.
	Temperature float64 `yaml:"temperature" json:"temperature"`
	// MaxTokens caps the completion length. Must be positive.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
	// Greeting is sent when a user first selects the persona.
	Greeting string `yaml:"greeting" json:"greeting"`
	// Traits is an ordered list of personality descriptors, used in
	// user-facing help text.
	Traits []string `yaml:"traits" json:"traits,omitempty"`
	// Avatar is an optional image URL.
	Avatar string `yaml:"avatar" json:"avatar,omitempty"`
}

// Validate checks the structural invariants shared by built-in and custom
// templates.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("persona: name must not be empty")
	}
	if t.Temperature < 0 || t.Temperature > 2 {
		return fmt.Errorf("persona %q: temperature %v out of range [0, 2]", t.Name, t.Temperature)
	}
	if t.MaxTokens <= 0 {
		return fmt.Errorf("persona %q: max_tokens must be positive, got %d", t.Name, t.MaxTokens)
	}
	if strings.TrimSpace(t.SystemPrompt) == "" {
		return fmt.Errorf("persona %q: system_prompt must not be empty", t.Name)
	}
	return nil
}
