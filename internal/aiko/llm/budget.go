package llm

import (
	"sync"
	"time"
)

// DefaultTokenBudget is the maximum number of completion tokens allowed per
// sender per UTC day when no explicit budget is configured.
const DefaultTokenBudget = 100_000

// BudgetExceededMessage is the reply surfaced to a sender who has exhausted
// their daily token allowance.
const BudgetExceededMessage = "I've reached my daily conversation limit with you. Let's pick this up tomorrow!"

// TokenBudget enforces a per-sender daily token budget for completion
// calls. Counters reset at midnight UTC. Callers should:
//  1. Call Allow before issuing a completion.
//  2. Call RecordUsage with the reported usage after a successful call.
//
// Safe for concurrent use.
type TokenBudget struct {
	mu     sync.Mutex
	budget int
	usage  map[string]*dailyUsage
}

// dailyUsage tracks one sender's consumption within the current UTC day.
type dailyUsage struct {
	tokens  int
	resetAt time.Time // next midnight UTC
}

// NewTokenBudget returns a TokenBudget allowing at most dailyBudget tokens
// per sender per UTC day. dailyBudget ≤ 0 defaults to DefaultTokenBudget.
func NewTokenBudget(dailyBudget int) *TokenBudget {
	if dailyBudget <= 0 {
		dailyBudget = DefaultTokenBudget
	}
	return &TokenBudget{
		budget: dailyBudget,
		usage:  make(map[string]*dailyUsage),
	}
}

// Budget returns the configured daily limit per sender.
func (tb *TokenBudget) Budget() int { return tb.budget }

// Allow reports whether senderID still has budget today. It does not
// consume tokens — RecordUsage does, with the actual reported usage.
func (tb *TokenBudget) Allow(senderID string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.resetIfNeeded(senderID)

	u := tb.usage[senderID]
	if u == nil {
		return true
	}
	return u.tokens < tb.budget
}

// RecordUsage adds tokens to senderID's running daily total.
func (tb *TokenBudget) RecordUsage(senderID string, tokens int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.resetIfNeeded(senderID)

	u := tb.usage[senderID]
	if u == nil {
		u = &dailyUsage{resetAt: nextMidnightUTC()}
		tb.usage[senderID] = u
	}
	u.tokens += tokens
}

// Remaining returns the tokens senderID may still consume today, zero when
// exhausted.
func (tb *TokenBudget) Remaining(senderID string) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.resetIfNeeded(senderID)

	u := tb.usage[senderID]
	if u == nil {
		return tb.budget
	}
	if rem := tb.budget - u.tokens; rem > 0 {
		return rem
	}
	return 0
}

// resetIfNeeded drops the sender's entry when the UTC day has rolled over.
// Must be called with tb.mu held.
func (tb *TokenBudget) resetIfNeeded(senderID string) {
	u := tb.usage[senderID]
	if u == nil {
		return
	}
	if time.Now().UTC().After(u.resetAt) {
		delete(tb.usage, senderID)
	}
}

// nextMidnightUTC returns midnight UTC at the start of the next calendar day.
func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
