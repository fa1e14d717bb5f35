package convo

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config holds the tunables shared by the direct and group stores.
type Config struct {
	// IdleTimeout is the staleness threshold: a context accessed after this
	// much inactivity is discarded and recreated. Default: 1 hour.
	IdleTimeout time.Duration

	// MaxHistory is the stored-history bound in user/assistant pairs.
	// Default: 10 (20 messages).
	MaxHistory int

	// MaxContextTokens is the estimated token budget applied when building
	// prompt messages. Default: 3000.
	MaxContextTokens int

	// DefaultPersona is assigned to freshly created contexts.
	DefaultPersona string

	// ContextEnabled gates whether stored history is included at
	// prompt-build time at all.
	ContextEnabled bool
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:      time.Hour,
		MaxHistory:       10,
		MaxContextTokens: 3000,
		DefaultPersona:   "default",
		ContextEnabled:   true,
	}
}

// withDefaults fills zero fields in place of the documented defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = d.MaxHistory
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = d.MaxContextTokens
	}
	if c.DefaultPersona == "" {
		c.DefaultPersona = d.DefaultPersona
	}
	return c
}

// Store owns direct (per-user) conversation contexts. Safe for concurrent
// use. Idle expiry is read-triggered: a stale context is not discarded
// until the next access after its timeout elapses; CleanupExpired exists
// separately to bound memory for keys that are never re-accessed.
type Store struct {
	mu       sync.Mutex
	config   Config
	contexts map[string]*Context
}

// NewStore creates a Store with cfg (zero fields defaulted).
func NewStore(cfg Config) *Store {
	return &Store{
		config:   cfg.withDefaults(),
		contexts: make(map[string]*Context),
	}
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.config }

// GetOrCreate returns a snapshot of the context for key, constructing a
// fresh one when the key is absent or the existing context has been idle
// past the timeout. Stale contexts are replaced wholesale, never merged.
func (s *Store) GetOrCreate(key string) Context {
	return s.getOrCreateAt(key, time.Now())
}

// getOrCreateAt is the time-injectable core of GetOrCreate (for testing).
func (s *Store) getOrCreateAt(key string, now time.Time) Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.liveLocked(key, now)
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	return cp
}

// liveLocked returns the live context for key, recreating it when absent or
// expired. Must be called with s.mu held.
func (s *Store) liveLocked(key string, now time.Time) *Context {
	c := s.contexts[key]
	if c != nil && !c.expired(now, s.config.IdleTimeout) {
		return c
	}
	if c != nil {
		slog.Debug("convo: context expired, recreating",
			"key", key, "idle", now.Sub(c.UpdatedAt))
	}
	c = &Context{
		ID:         uuid.New().String(),
		Key:        key,
		Persona:    s.config.DefaultPersona,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxHistory: s.config.MaxHistory,
	}
	s.contexts[key] = c
	return c
}

// AddMessage appends a message to the context for key, creating or
// recreating the context first when needed.
func (s *Store) AddMessage(key, role, content string) {
	s.addMessageAt(key, role, content, time.Now())
}

func (s *Store) addMessageAt(key, role, content string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveLocked(key, now).append(role, content, now)
}

// ClearHistory empties the message list for key, preserving the persona and
// creation time. A no-op for unknown keys.
func (s *Store) ClearHistory(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contexts[key]; ok {
		c.clear(time.Now())
	}
}

// SetPersona records the persona name on the context for key, creating the
// context when absent.
func (s *Store) SetPersona(key, persona string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.liveLocked(key, now)
	c.Persona = persona
	c.UpdatedAt = now
}

// Delete removes the context for key entirely.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, key)
}

// BuildContextMessages assembles the prompt for the next completion:
// [system, history..., user], history only when ContextEnabled, then
// token-budget truncation (system prompt and most recent exchanges always
// survive; older history drops first).
func (s *Store) BuildContextMessages(key, systemPrompt, userMessage string) []Message {
	return s.buildContextMessagesAt(key, systemPrompt, userMessage, time.Now())
}

func (s *Store) buildContextMessagesAt(key, systemPrompt, userMessage string, now time.Time) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.liveLocked(key, now)
	return c.buildPrompt(systemPrompt, userMessage, s.config.ContextEnabled, s.config.MaxContextTokens, now)
}

// Stats returns the derived statistics for key. ok is false when no context
// exists (Stats never creates one).
func (s *Store) Stats(key string) (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.contexts[key]
	if !found {
		return Stats{}, false
	}
	return c.stats(), true
}

// CleanupExpired removes every context idle past the timeout and returns
// the removal count. Intended for a periodic schedule; it operates on a
// snapshot of keys so concurrent request-path mutation stays safe.
func (s *Store) CleanupExpired() int {
	return s.cleanupExpiredAt(time.Now())
}

func (s *Store) cleanupExpiredAt(now time.Time) int {
	s.mu.Lock()
	keys := make([]string, 0, len(s.contexts))
	for key := range s.contexts {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	removed := 0
	for _, key := range keys {
		s.mu.Lock()
		if c, ok := s.contexts[key]; ok && c.expired(now, s.config.IdleTimeout) {
			delete(s.contexts, key)
			removed++
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		slog.Info("convo: swept expired contexts", "removed", removed)
	}
	return removed
}

// Len returns the number of live contexts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// Export returns deep copies of every context, for best-effort persistence.
func (s *Store) Export() []Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Context, 0, len(s.contexts))
	for _, c := range s.contexts {
		cp := *c
		cp.Messages = append([]Message(nil), c.Messages...)
		out = append(out, cp)
	}
	return out
}

// Restore inserts a persisted context unless a live one already exists
// under the same key. Called once at startup.
func (s *Store) Restore(c Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[c.Key]; ok {
		return
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = s.config.MaxHistory
	}
	cp := c
	s.contexts[c.Key] = &cp
}
