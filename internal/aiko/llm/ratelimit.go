package llm

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the maximum number of chat completions allowed
	// per sender per minute when no explicit limit is configured.
	DefaultRateLimit = 20

	// defaultRateLimitWindow is the sliding window duration.
	defaultRateLimitWindow = time.Minute
)

// RateLimitMessage is the reply sent to senders who exceed the per-minute
// chat limit.
const RateLimitMessage = "⏳ You're sending messages faster than I can think. Give me a moment and try again."

// RateLimiter enforces a per-sender sliding-window limit on completion
// calls. It holds each sender's call timestamps within the current window
// and prunes stale entries on every Allow call, keeping memory bounded to
// O(limit) per active sender.
//
// Safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string][]time.Time
}

// NewRateLimiter returns a RateLimiter allowing at most limit calls per
// sender within window. limit ≤ 0 defaults to DefaultRateLimit; window ≤ 0
// defaults to one minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string][]time.Time),
	}
}

// Allow reports whether senderID may make another call, recording the
// current timestamp when it may. Returns false once the sender's quota for
// the current window is exhausted.
func (r *RateLimiter) Allow(senderID string) bool {
	return r.allowAt(senderID, time.Now())
}

func (r *RateLimiter) allowAt(senderID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)

	existing := r.counters[senderID]
	valid := existing[:0] // reuse backing array
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.limit {
		r.counters[senderID] = valid
		return false
	}

	r.counters[senderID] = append(valid, now)
	return true
}

// Remaining returns the calls senderID can still make within the current
// window. Zero means the next Allow will refuse.
func (r *RateLimiter) Remaining(senderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	count := 0
	for _, t := range r.counters[senderID] {
		if t.After(cutoff) {
			count++
		}
	}
	rem := r.limit - count
	if rem < 0 {
		return 0
	}
	return rem
}
