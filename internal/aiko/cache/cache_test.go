package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(capacity int) *Cache {
	return New(Config{
		Capacity:        capacity,
		DefaultTTL:      time.Minute,
		PersonaTTL:      time.Hour,
		ConversationTTL: 30 * time.Minute,
		ResponseTTL:     time.Minute,
	})
}

func TestSetGet(t *testing.T) {
	c := newTestCache(10)
	c.Set("ns", "k", "v")

	got, ok := c.Get("ns", "k")
	if !ok || got != "v" {
		t.Fatalf("Get = (%v, %v), want (v, true)", got, ok)
	}
	if _, ok := c.Get("ns", "missing"); ok {
		t.Error("Get should miss for unknown id")
	}
	if _, ok := c.Get("other", "k"); ok {
		t.Error("namespaces must be isolated")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(10)
	now := time.Now()
	c.setAt("ns", "k", "v", now, 100*time.Millisecond)

	if _, ok := c.getAt("ns", "k", now.Add(50*time.Millisecond)); !ok {
		t.Error("entry should be visible within its TTL")
	}
	if _, ok := c.getAt("ns", "k", now.Add(150*time.Millisecond)); ok {
		t.Error("entry should be gone after its TTL")
	}
	// Lazy purge: the expired entry was removed on read.
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after lazy purge", c.Len())
	}
}

func TestNamespaceTTLTiers(t *testing.T) {
	c := newTestCache(10)
	now := time.Now()
	c.setAt(NamespacePersona, "k", "v", now)
	c.setAt(NamespaceResponse, "k", "v", now)

	// 30 minutes in: the persona tier (1h) survives, the response tier (1m)
	// does not.
	later := now.Add(30 * time.Minute)
	if _, ok := c.getAt(NamespacePersona, "k", later); !ok {
		t.Error("persona-tier entry expired too early")
	}
	if _, ok := c.getAt(NamespaceResponse, "k", later); ok {
		t.Error("response-tier entry should have expired")
	}
}

func TestEviction_LeastAccessed(t *testing.T) {
	c := newTestCache(3)
	c.Set("ns", "a", 1)
	c.Set("ns", "b", 2)
	c.Set("ns", "c", 3)

	// a and c gather accesses; b stays at zero.
	c.Get("ns", "a")
	c.Get("ns", "a")
	c.Get("ns", "c")

	c.Set("ns", "d", 4)

	if _, ok := c.Get("ns", "b"); ok {
		t.Error("least-accessed entry b should have been evicted")
	}
	for _, id := range []string{"a", "c", "d"} {
		if _, ok := c.Get("ns", id); !ok {
			t.Errorf("entry %q should have survived eviction", id)
		}
	}
}

func TestEviction_TieBreakIsDeterministic(t *testing.T) {
	// With all access counts equal, the earliest-inserted entry loses.
	// Run the same insertion sequence repeatedly to pin determinism.
	for run := 0; run < 10; run++ {
		c := newTestCache(3)
		c.Set("ns", "first", 1)
		c.Set("ns", "second", 2)
		c.Set("ns", "third", 3)
		c.Set("ns", "fourth", 4)

		if _, ok := c.Get("ns", "first"); ok {
			t.Fatalf("run %d: earliest-inserted entry should be the tie-break victim", run)
		}
		if _, ok := c.Get("ns", "second"); !ok {
			t.Fatalf("run %d: second entry should survive", run)
		}
	}
}

func TestSetResetsAccessCounter(t *testing.T) {
	c := newTestCache(2)
	c.Set("ns", "a", 1)
	c.Get("ns", "a")
	c.Get("ns", "a")
	// Overwriting resets a's counter to zero, making it the eviction victim
	// (tie with b broken by insertion order after the re-Set).
	c.Set("ns", "b", 2)
	c.Get("ns", "b")
	c.Set("ns", "a", 1)

	c.Set("ns", "c", 3)
	if _, ok := c.Get("ns", "a"); ok {
		t.Error("re-Set entry should have a zeroed access counter and lose eviction")
	}
}

func TestClearNamespace(t *testing.T) {
	c := newTestCache(10)
	for i := 0; i < 3; i++ {
		c.Set("keep", fmt.Sprintf("k%d", i), i)
		c.Set("drop", fmt.Sprintf("k%d", i), i)
	}

	if removed := c.ClearNamespace("drop"); removed != 3 {
		t.Errorf("ClearNamespace removed %d, want 3", removed)
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3 surviving entries", c.Len())
	}
	if _, ok := c.Get("keep", "k0"); !ok {
		t.Error("other namespaces must be untouched")
	}
}

func TestSweep(t *testing.T) {
	c := newTestCache(10)
	now := time.Now()
	c.setAt("ns", "old", 1, now, 10*time.Millisecond)
	c.setAt("ns", "fresh", 2, now, time.Hour)

	if removed := c.sweepAt(now.Add(time.Second)); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if _, ok := c.getAt("ns", "fresh", now.Add(time.Second)); !ok {
		t.Error("unexpired entry must survive the sweep")
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(10)
	c.Set(NamespacePersona, "a", 1)
	c.Set(NamespaceResponse, "b", 2)
	c.Get(NamespacePersona, "a")
	c.Get(NamespacePersona, "missing")

	s := c.Stats()
	if s.Entries != 2 {
		t.Errorf("Entries = %d, want 2", s.Entries)
	}
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", s.Hits, s.Misses)
	}
	if s.PerNS[NamespacePersona] != 1 || s.PerNS[NamespaceResponse] != 1 {
		t.Errorf("PerNS = %v", s.PerNS)
	}
}
