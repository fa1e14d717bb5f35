package persona

import (
	"slices"
	"testing"
)

func mustLoad(t *testing.T, set Set) *Catalog {
	t.Helper()
	c, err := Load(set)
	if err != nil {
		t.Fatalf("Load(%q) failed: %v", set, err)
	}
	return c
}

func TestLoad_BothSetsShareIdentities(t *testing.T) {
	simple := mustLoad(t, SetSimple)
	complexSet := mustLoad(t, SetComplex)

	var simpleNames, complexNames []string
	for _, p := range simple.List() {
		simpleNames = append(simpleNames, p.Name)
	}
	for _, p := range complexSet.List() {
		complexNames = append(complexNames, p.Name)
	}

	if !slices.Equal(simpleNames, complexNames) {
		t.Errorf("catalog sets diverge: simple=%v complex=%v", simpleNames, complexNames)
	}
}

func TestResolve_Order(t *testing.T) {
	c := mustLoad(t, SetSimple)

	tests := []struct {
		name  string
		query string
		want  string
		found bool
	}{
		{"canonical exact", "assistant", "assistant", true},
		{"alias exact", "helper", "assistant", true},
		{"translated alias", "助手", "assistant", true},
		{"case-insensitive alias", "HELPER", "assistant", true},
		{"case-insensitive canonical", "Assistant", "assistant", true},
		{"unknown", "nonexistent", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Resolve(tt.query)
			if ok != tt.found {
				t.Fatalf("Resolve(%q) found=%v, want %v", tt.query, ok, tt.found)
			}
			if ok && got.Name != tt.want {
				t.Errorf("Resolve(%q).Name = %q, want %q", tt.query, got.Name, tt.want)
			}
		})
	}
}

func TestResolve_CustomShadowsNothing(t *testing.T) {
	c := mustLoad(t, SetSimple)
	if !c.AddCustom(Template{
		Name:         "pirate",
		SystemPrompt: "You are a pirate.",
		Temperature:  1.0,
		MaxTokens:    512,
	}) {
		t.Fatal("AddCustom failed for fresh name")
	}

	got, ok := c.Resolve("pirate")
	if !ok || got.Name != "pirate" {
		t.Fatalf("Resolve(pirate) = (%v, %v)", got.Name, ok)
	}
	// Case-insensitive resolution reaches customs too, via the alias index.
	if got, ok := c.Resolve("PIRATE"); !ok || got.Name != "pirate" {
		t.Errorf("Resolve(PIRATE) = (%v, %v), want pirate", got.Name, ok)
	}
}

func TestAliasRoundTrip(t *testing.T) {
	c := mustLoad(t, SetSimple)

	// Every alias in the static table must resolve to its canonical name,
	// and ListAliases on the canonical must contain the alias.
	for alias, canonical := range aliasTable {
		got, ok := c.Resolve(alias)
		if !ok {
			t.Errorf("Resolve(%q) not found", alias)
			continue
		}
		if got.Name != canonical {
			t.Errorf("Resolve(%q).Name = %q, want %q", alias, got.Name, canonical)
		}
		if !slices.Contains(c.ListAliases(canonical), alias) {
			t.Errorf("ListAliases(%q) missing %q", canonical, alias)
		}
	}
}

func TestListAliases_IncludesCanonicalAndLowercase(t *testing.T) {
	c := mustLoad(t, SetSimple)
	aliases := c.ListAliases("assistant")
	if !slices.Contains(aliases, "assistant") {
		t.Errorf("ListAliases(assistant) = %v, missing canonical name", aliases)
	}
	if !slices.IsSorted(aliases) {
		t.Errorf("ListAliases should be sorted, got %v", aliases)
	}
}

func TestAddCustom_Collisions(t *testing.T) {
	c := mustLoad(t, SetSimple)

	base := Template{SystemPrompt: "prompt", Temperature: 0.5, MaxTokens: 256}

	// Collision with a built-in name fails.
	builtin := base
	builtin.Name = "assistant"
	if c.AddCustom(builtin) {
		t.Error("AddCustom should reject built-in name collision")
	}

	// First insertion of a fresh name succeeds, second fails.
	fresh := base
	fresh.Name = "x"
	if !c.AddCustom(fresh) {
		t.Fatal("AddCustom failed for fresh name")
	}
	if c.AddCustom(fresh) {
		t.Error("AddCustom should reject duplicate custom name")
	}

	// Collision check is case-sensitive exact: "Assistant" is allowed even
	// though the alias index would resolve it to the built-in.
	shadow := base
	shadow.Name = "Assistant"
	if !c.AddCustom(shadow) {
		t.Error("AddCustom should use case-sensitive exact matching only")
	}
	// And exact resolution of the custom now wins over the alias fallback.
	if got, _ := c.Resolve("Assistant"); got.SystemPrompt != "prompt" {
		t.Error("exact canonical match should win over case-insensitive alias")
	}
}

func TestRemoveCustom(t *testing.T) {
	c := mustLoad(t, SetSimple)

	if c.RemoveCustom("assistant") {
		t.Error("RemoveCustom must not delete built-ins")
	}
	if c.RemoveCustom("never-existed") {
		t.Error("RemoveCustom should return false for unknown names")
	}

	c.AddCustom(Template{Name: "temp", SystemPrompt: "p", Temperature: 0.5, MaxTokens: 128})
	if !c.RemoveCustom("temp") {
		t.Fatal("RemoveCustom failed for existing custom persona")
	}
	if _, ok := c.Resolve("temp"); ok {
		t.Error("removed persona still resolvable")
	}
}

func TestAddCustom_RejectsInvalid(t *testing.T) {
	c := mustLoad(t, SetSimple)
	tests := []Template{
		{Name: "", SystemPrompt: "p", Temperature: 0.5, MaxTokens: 10},
		{Name: "bad-temp", SystemPrompt: "p", Temperature: 3.0, MaxTokens: 10},
		{Name: "bad-tokens", SystemPrompt: "p", Temperature: 0.5, MaxTokens: 0},
		{Name: "no-prompt", SystemPrompt: "  ", Temperature: 0.5, MaxTokens: 10},
	}
	for _, tt := range tests {
		if c.AddCustom(tt) {
			t.Errorf("AddCustom(%q) should fail validation", tt.Name)
		}
	}
}
