package persona

import "testing"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(mustLoad(t, SetSimple), "default")
}

func TestCurrent_DefaultsWithoutSelection(t *testing.T) {
	m := newTestManager(t)
	if got := m.Current("@alice:test"); got.Name != "default" {
		t.Errorf("Current() = %q, want default persona", got.Name)
	}
}

func TestCurrent_ConfiguredDefault(t *testing.T) {
	m := NewManager(mustLoad(t, SetSimple), "assistant")
	if got := m.Current("@alice:test"); got.Name != "assistant" {
		t.Errorf("Current() = %q, want configured default assistant", got.Name)
	}
}

func TestCurrent_UnknownDefaultFallsBack(t *testing.T) {
	// A misconfigured default must not panic or fail — fall back to "default".
	m := NewManager(mustLoad(t, SetSimple), "no-such-persona")
	if got := m.Current("@alice:test"); got.Name != FallbackName {
		t.Errorf("Current() = %q, want fallback %q", got.Name, FallbackName)
	}
}

func TestSwitch_StoresCanonicalName(t *testing.T) {
	m := newTestManager(t)

	// Switching via an alias must record the canonical name, so alias-table
	// changes can never orphan user state.
	if !m.Switch("@alice:test", "助手") {
		t.Fatal("Switch via alias failed")
	}
	if got := m.Selections()["@alice:test"]; got != "assistant" {
		t.Errorf("stored selection = %q, want canonical %q", got, "assistant")
	}
	if got := m.Current("@alice:test"); got.Name != "assistant" {
		t.Errorf("Current() = %q, want assistant", got.Name)
	}
}

func TestSwitch_UnknownPersona(t *testing.T) {
	m := newTestManager(t)
	if m.Switch("@alice:test", "ghost") {
		t.Error("Switch should fail for unresolvable names")
	}
	if len(m.Selections()) != 0 {
		t.Error("failed Switch must not mutate state")
	}
}

func TestReset(t *testing.T) {
	m := newTestManager(t)
	m.Switch("@alice:test", "writer")
	m.Reset("@alice:test")
	if got := m.Current("@alice:test"); got.Name != "default" {
		t.Errorf("Current() after Reset = %q, want default", got.Name)
	}
}

func TestCurrent_RemovedCustomFallsBack(t *testing.T) {
	m := newTestManager(t)
	m.AddCustom(Template{Name: "temp", SystemPrompt: "p", Temperature: 0.5, MaxTokens: 128})
	m.Switch("@alice:test", "temp")
	m.RemoveCustom("temp")

	if got := m.Current("@alice:test"); got.Name != "default" {
		t.Errorf("Current() with dangling selection = %q, want default", got.Name)
	}
}

func TestRestoreSelections(t *testing.T) {
	m := newTestManager(t)
	m.RestoreSelections(map[string]string{
		"@alice:test": "writer",
		"@bob:test":   "gone-persona", // must be dropped, not restored
	})
	if got := m.Current("@alice:test"); got.Name != "writer" {
		t.Errorf("restored selection = %q, want writer", got.Name)
	}
	if got := m.Current("@bob:test"); got.Name != "default" {
		t.Errorf("unresolvable restored selection should default, got %q", got.Name)
	}
}
