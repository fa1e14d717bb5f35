package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aikobot/aiko/internal/aiko/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "aiko-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

// --- Conversations ---

func TestSaveAndLoadConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &store.ConversationRecord{
		Key:  "!room:example.org",
		Kind: store.KindDirect,
		Data: []byte(`{"messages":[]}`),
	}
	if err := s.SaveConversation(ctx, rec); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	got, err := s.LoadConversation(ctx, "!room:example.org")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if got == nil {
		t.Fatal("LoadConversation returned nil for existing key")
	}
	if got.Kind != store.KindDirect {
		t.Errorf("Kind: got %q, want %q", got.Kind, store.KindDirect)
	}
	if string(got.Data) != `{"messages":[]}` {
		t.Errorf("Data: got %q", got.Data)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt must be stamped on save")
	}
}

func TestLoadConversation_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LoadConversation(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for missing key", got)
	}
}

func TestSaveConversation_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &store.ConversationRecord{Key: "k", Kind: store.KindDirect, Data: []byte(`1`)}
	second := &store.ConversationRecord{Key: "k", Kind: store.KindGroup, Data: []byte(`2`)}
	if err := s.SaveConversation(ctx, first); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	if err := s.SaveConversation(ctx, second); err != nil {
		t.Fatalf("SaveConversation (upsert): %v", err)
	}

	got, err := s.LoadConversation(ctx, "k")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if got.Kind != store.KindGroup || string(got.Data) != "2" {
		t.Errorf("upsert did not replace: %+v", got)
	}
}

func TestListConversations_FiltersByKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, rec := range []*store.ConversationRecord{
		{Key: "d1", Kind: store.KindDirect, Data: []byte(`{}`)},
		{Key: "g1", Kind: store.KindGroup, Data: []byte(`{}`)},
		{Key: "d2", Kind: store.KindDirect, Data: []byte(`{}`)},
	} {
		if err := s.SaveConversation(ctx, rec); err != nil {
			t.Fatalf("SaveConversation: %v", err)
		}
	}

	direct, err := s.ListConversations(ctx, store.KindDirect)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(direct) != 2 {
		t.Errorf("got %d direct records, want 2", len(direct))
	}
}

func TestSweepConversationsOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &store.ConversationRecord{
		Key: "old", Kind: store.KindDirect, Data: []byte(`{}`),
		UpdatedAt: time.Now().Add(-8 * 24 * time.Hour),
	}
	fresh := &store.ConversationRecord{Key: "fresh", Kind: store.KindDirect, Data: []byte(`{}`)}
	if err := s.SaveConversation(ctx, old); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	if err := s.SaveConversation(ctx, fresh); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	n, err := s.SweepConversationsOlderThan(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("SweepConversationsOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d, want 1", n)
	}

	if got, _ := s.LoadConversation(ctx, "old"); got != nil {
		t.Error("old record must be swept")
	}
	if got, _ := s.LoadConversation(ctx, "fresh"); got == nil {
		t.Error("fresh record must survive the sweep")
	}
}

func TestDeleteConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &store.ConversationRecord{Key: "k", Kind: store.KindDirect, Data: []byte(`{}`)}
	if err := s.SaveConversation(ctx, rec); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	if err := s.DeleteConversation(ctx, "k"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if got, _ := s.LoadConversation(ctx, "k"); got != nil {
		t.Error("record must be gone after delete")
	}
	// Deleting a missing key is a no-op.
	if err := s.DeleteConversation(ctx, "k"); err != nil {
		t.Errorf("DeleteConversation (missing): %v", err)
	}
}

// --- Personas ---

func TestCustomPersonaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveCustomPersona(ctx, "pirate", []byte(`{"name":"pirate"}`)); err != nil {
		t.Fatalf("SaveCustomPersona: %v", err)
	}

	records, err := s.ListCustomPersonas(ctx)
	if err != nil {
		t.Fatalf("ListCustomPersonas: %v", err)
	}
	if len(records) != 1 || records[0].Name != "pirate" {
		t.Fatalf("records = %+v", records)
	}

	if err := s.DeleteCustomPersona(ctx, "pirate"); err != nil {
		t.Fatalf("DeleteCustomPersona: %v", err)
	}
	records, err = s.ListCustomPersonas(ctx)
	if err != nil {
		t.Fatalf("ListCustomPersonas: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records after delete, want 0", len(records))
	}
}

func TestPersonaSelections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SavePersonaSelection(ctx, "!a:example.org", "writer"); err != nil {
		t.Fatalf("SavePersonaSelection: %v", err)
	}
	if err := s.SavePersonaSelection(ctx, "!a:example.org", "sage"); err != nil {
		t.Fatalf("SavePersonaSelection (upsert): %v", err)
	}
	if err := s.SavePersonaSelection(ctx, "group_!b:example.org", "assistant"); err != nil {
		t.Fatalf("SavePersonaSelection: %v", err)
	}

	selections, err := s.PersonaSelections(ctx)
	if err != nil {
		t.Fatalf("PersonaSelections: %v", err)
	}
	if selections["!a:example.org"] != "sage" {
		t.Errorf("selection = %q, want upserted value", selections["!a:example.org"])
	}
	if len(selections) != 2 {
		t.Errorf("got %d selections, want 2", len(selections))
	}

	if err := s.DeletePersonaSelection(ctx, "!a:example.org"); err != nil {
		t.Fatalf("DeletePersonaSelection: %v", err)
	}
	selections, _ = s.PersonaSelections(ctx)
	if _, ok := selections["!a:example.org"]; ok {
		t.Error("selection must be gone after delete")
	}
}

// --- Sync state ---

func TestSyncValueRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if got, err := s.GetSyncValue(ctx, "next_batch"); err != nil || got != "" {
		t.Fatalf("GetSyncValue (empty) = %q, %v", got, err)
	}
	if err := s.SetSyncValue(ctx, "next_batch", "s123"); err != nil {
		t.Fatalf("SetSyncValue: %v", err)
	}
	if err := s.SetSyncValue(ctx, "next_batch", "s456"); err != nil {
		t.Fatalf("SetSyncValue (upsert): %v", err)
	}
	got, err := s.GetSyncValue(ctx, "next_batch")
	if err != nil {
		t.Fatalf("GetSyncValue: %v", err)
	}
	if got != "s456" {
		t.Errorf("GetSyncValue = %q, want s456", got)
	}
}
