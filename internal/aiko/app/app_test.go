package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aikobot/aiko/internal/aiko/matrix"
	"github.com/aikobot/aiko/internal/aiko/persona"
)

func testConfig(dbPath string) *Config {
	return &Config{
		DatabasePath: dbPath,
		Matrix: matrix.Config{
			Homeserver:  "http://localhost:8008",
			UserID:      "@aiko:localhost",
			AccessToken: "test-token",
		},
		PersonaSet: persona.SetSimple,
	}
}

func TestNew_WithoutPersistence(t *testing.T) {
	a, err := New(testConfig(""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.db != nil {
		t.Error("db must be nil when no database path is configured")
	}
	if a.router == nil || a.handlers == nil {
		t.Error("router and handlers must be wired")
	}
}

func TestNew_RestoresPersistedState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "aiko.db")
	ctx := context.Background()

	a1, err := New(testConfig(dbPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Persist a custom persona and a selection the way the command handlers
	// do, then bring up a second instance against the same file.
	raw := []byte(`{"name":"pirate","description":"arr","system_prompt":"You are a pirate."}`)
	if err := a1.db.SaveCustomPersona(ctx, "pirate", raw); err != nil {
		t.Fatalf("SaveCustomPersona: %v", err)
	}
	if err := a1.db.SavePersonaSelection(ctx, "!room:localhost", "pirate"); err != nil {
		t.Fatalf("SavePersonaSelection: %v", err)
	}
	a1.db.Close()

	a2, err := New(testConfig(dbPath))
	if err != nil {
		t.Fatalf("New (second instance): %v", err)
	}
	defer a2.db.Close()

	if _, ok := a2.personas.Catalog().Resolve("pirate"); !ok {
		t.Error("custom persona must be restored at startup")
	}
	if got := a2.personas.CurrentName("!room:localhost"); got != "pirate" {
		t.Errorf("CurrentName = %q, want restored selection", got)
	}
}

func TestNew_UnknownDefaultPersonaFallsBack(t *testing.T) {
	cfg := testConfig("")
	cfg.DefaultPersona = "no-such-persona"

	// An unknown default logs a warning and falls back rather than failing
	// startup.
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := a.personas.Current("anyone").Name; got == "" {
		t.Error("Current must still resolve a usable persona")
	}
}
