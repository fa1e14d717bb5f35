// Package cache provides a namespaced TTL cache used to memoize persona
// lookups and completion-API responses. Entries expire lazily on read and
// eagerly on a periodic sweep; at capacity the least-accessed entry is
// evicted.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Well-known namespaces with their own default TTL tiers.
const (
	NamespacePersona      = "persona"
	NamespaceConversation = "conversation"
	NamespaceResponse     = "response"
)

// Config holds the cache tunables.
type Config struct {
	// Capacity bounds the total entry count across namespaces.
	// Default: 1000.
	Capacity int
	// DefaultTTL applies to namespaces without an explicit tier.
	// Default: 5 minutes.
	DefaultTTL time.Duration
	// PersonaTTL, ConversationTTL, and ResponseTTL configure the three
	// namespace tiers independently.
	PersonaTTL      time.Duration
	ConversationTTL time.Duration
	ResponseTTL     time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:        1000,
		DefaultTTL:      5 * time.Minute,
		PersonaTTL:      30 * time.Minute,
		ConversationTTL: 10 * time.Minute,
		ResponseTTL:     2 * time.Minute,
	}
}

// entry is one cached value. accesses counts successful Gets since the last
// Set; seq is a monotonic insertion counter used as the deterministic
// eviction tie-break.
type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
	accesses int
	seq      uint64
}

// Stats is the counters snapshot returned by Stats.
type Stats struct {
	Entries    int            `json:"entries"`
	PerNS      map[string]int `json:"per_namespace"`
	Hits       uint64         `json:"hits"`
	Misses     uint64         `json:"misses"`
	Evictions  uint64         `json:"evictions"`
	Expirations uint64        `json:"expirations"`
}

// Cache is a namespaced TTL cache with least-accessed eviction. Safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	config  Config
	entries map[string]*entry // key: "namespace:id"
	nextSeq uint64

	hits, misses, evictions, expirations uint64
}

// New creates a Cache with cfg (zero fields defaulted).
func New(cfg Config) *Cache {
	d := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = d.Capacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = d.DefaultTTL
	}
	if cfg.PersonaTTL <= 0 {
		cfg.PersonaTTL = d.PersonaTTL
	}
	if cfg.ConversationTTL <= 0 {
		cfg.ConversationTTL = d.ConversationTTL
	}
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = d.ResponseTTL
	}
	return &Cache{
		config:  cfg,
		entries: make(map[string]*entry),
	}
}

// ttlFor resolves the default TTL tier for a namespace.
func (c *Cache) ttlFor(namespace string) time.Duration {
	switch namespace {
	case NamespacePersona:
		return c.config.PersonaTTL
	case NamespaceConversation:
		return c.config.ConversationTTL
	case NamespaceResponse:
		return c.config.ResponseTTL
	default:
		return c.config.DefaultTTL
	}
}

func cacheKey(namespace, id string) string { return namespace + ":" + id }

// Set stores value under namespace:id. An explicit ttl overrides the
// namespace tier. Setting resets the entry's access counter.
func (c *Cache) Set(namespace, id string, value any, ttl ...time.Duration) {
	c.setAt(namespace, id, value, time.Now(), ttl...)
}

func (c *Cache) setAt(namespace, id string, value any, now time.Time, ttl ...time.Duration) {
	effective := c.ttlFor(namespace)
	if len(ttl) > 0 && ttl[0] > 0 {
		effective = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(namespace, id)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.Capacity {
		c.evictLocked()
	}

	c.nextSeq++
	c.entries[key] = &entry{
		value:    value,
		storedAt: now,
		ttl:      effective,
		seq:      c.nextSeq,
	}
}

// Get returns the live value under namespace:id. Expired entries are purged
// on the spot and reported as misses. A hit increments the entry's access
// counter.
func (c *Cache) Get(namespace, id string) (any, bool) {
	return c.getAt(namespace, id, time.Now())
}

func (c *Cache) getAt(namespace, id string, now time.Time) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(namespace, id)
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if now.Sub(e.storedAt) > e.ttl {
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return nil, false
	}

	e.accesses++
	c.hits++
	return e.value, true
}

// Delete removes namespace:id if present.
func (c *Cache) Delete(namespace, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(namespace, id))
}

// ClearNamespace removes every entry in the namespace and returns the count.
func (c *Cache) ClearNamespace(namespace string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := namespace + ":"
	removed := 0
	for key := range c.entries {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep purges every TTL-expired entry and returns the count. Run on a
// fixed interval independent of the access pattern.
func (c *Cache) Sweep() int {
	return c.sweepAt(time.Now())
}

func (c *Cache) sweepAt(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.storedAt) > e.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.expirations += uint64(removed)
		slog.Debug("cache: swept expired entries", "removed", removed)
	}
	return removed
}

// Stats returns a snapshot of the counters and per-namespace entry counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	perNS := make(map[string]int)
	for key := range c.entries {
		for i := 0; i < len(key); i++ {
			if key[i] == ':' {
				perNS[key[:i]]++
				break
			}
		}
	}
	return Stats{
		Entries:     len(c.entries),
		PerNS:       perNS,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

// evictLocked removes the entry with the fewest recorded accesses; ties go
// to the earliest-inserted entry, which keeps eviction deterministic for a
// given insertion sequence. Must be called with c.mu held.
func (c *Cache) evictLocked() {
	var victim string
	minAccesses := -1
	var minSeq uint64

	for key, e := range c.entries {
		if minAccesses == -1 || e.accesses < minAccesses ||
			(e.accesses == minAccesses && e.seq < minSeq) {
			victim = key
			minAccesses = e.accesses
			minSeq = e.seq
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.evictions++
		slog.Debug("cache: evicted least-accessed entry", "key", victim, "accesses", minAccesses)
	}
}
