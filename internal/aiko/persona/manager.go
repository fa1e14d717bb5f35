package persona

import (
	"log/slog"
	"sync"
)

// FallbackName is the persona of last resort. Current falls back to it when
// the configured default is itself missing from the catalog, which is a
// configuration error but must not take the bot down.
const FallbackName = "default"

// Manager owns per-user persona selection over a Catalog. User state is
// created lazily, mutated by Switch, cleared by Reset, and never expires —
// deliberately unlike conversation contexts.
//
// Switching a persona does NOT clear conversation history. That is the
// calling layer's decision; the chat command handler clears history right
// after a successful switch so personas are never mixed mid-context.
type Manager struct {
	mu          sync.RWMutex
	catalog     *Catalog
	defaultName string
	selections  map[string]string // userID → canonical persona name
}

// NewManager creates a Manager over catalog. defaultName is the persona
// used for users who have never switched; empty means FallbackName.
func NewManager(catalog *Catalog, defaultName string) *Manager {
	if defaultName == "" {
		defaultName = FallbackName
	}
	if _, ok := catalog.Resolve(defaultName); !ok {
		slog.Warn("persona: configured default not in catalog, using fallback",
			"default", defaultName, "fallback", FallbackName)
		defaultName = FallbackName
	}
	return &Manager{
		catalog:     catalog,
		defaultName: defaultName,
		selections:  make(map[string]string),
	}
}

// Catalog returns the underlying catalog.
func (m *Manager) Catalog() *Catalog { return m.catalog }

// DefaultName returns the effective default persona name.
func (m *Manager) DefaultName() string { return m.defaultName }

// Current returns the template for the user's selected persona, falling back
// to the configured default and finally to the literal "default" template.
// It never fails: if even the fallback is missing the zero template is
// returned, which the caller treats as an empty system prompt.
func (m *Manager) Current(userID string) Template {
	m.mu.RLock()
	name, ok := m.selections[userID]
	m.mu.RUnlock()

	if ok {
		if t, found := m.catalog.Resolve(name); found {
			return t
		}
		// Selected persona vanished (custom removed); fall through to default.
		slog.Warn("persona: selection no longer resolvable, using default",
			"user_id", userID, "selection", name)
	}

	if t, found := m.catalog.Resolve(m.defaultName); found {
		return t
	}
	t, _ := m.catalog.Resolve(FallbackName)
	return t
}

// CurrentName returns the canonical name Current would resolve, without
// fetching the template.
func (m *Manager) CurrentName(userID string) string {
	return m.Current(userID).Name
}

// Switch resolves nameOrAlias through the catalog and, on success, stores
// the persona's canonical name as the user's selection — never the alias,
// so later alias-table changes cannot orphan the state. Returns false when
// the name does not resolve.
func (m *Manager) Switch(userID, nameOrAlias string) bool {
	t, ok := m.catalog.Resolve(nameOrAlias)
	if !ok {
		return false
	}

	m.mu.Lock()
	m.selections[userID] = t.Name
	m.mu.Unlock()
	return true
}

// Reset clears the user's selection, returning them to the default persona.
func (m *Manager) Reset(userID string) {
	m.mu.Lock()
	delete(m.selections, userID)
	m.mu.Unlock()
}

// AddCustom registers a custom persona. Returns false on a name collision
// with any built-in or existing custom persona (case-sensitive exact match
// only — aliases are not consulted).
func (m *Manager) AddCustom(t Template) bool {
	return m.catalog.AddCustom(t)
}

// RemoveCustom removes a custom persona. Built-in names are protected and
// return false rather than an error.
func (m *Manager) RemoveCustom(name string) bool {
	return m.catalog.RemoveCustom(name)
}

// Selections returns a snapshot of every user's selected persona name.
// Used by the persistence layer.
func (m *Manager) Selections() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.selections))
	for k, v := range m.selections {
		out[k] = v
	}
	return out
}

// RestoreSelections replaces the selection map wholesale, dropping entries
// that no longer resolve. Called once at startup before any traffic.
func (m *Manager) RestoreSelections(selections map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, name := range selections {
		if _, ok := m.catalog.Resolve(name); !ok {
			slog.Warn("persona: dropping persisted selection for unknown persona",
				"user_id", userID, "persona", name)
			continue
		}
		m.selections[userID] = name
	}
}
