package convo

import "time"

// Context is one conversation's state. The key is the user ID for direct
// conversations or "group_<id>" for groups.
type Context struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Messages  []Message `json:"messages"`
	Persona   string    `json:"persona"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// MaxHistory bounds stored history to MaxHistory user/assistant pairs:
	// len(Messages) never exceeds 2×MaxHistory after an append.
	MaxHistory int `json:"max_history"`
}

// append stamps, estimates, and stores a message, then trims the front so
// the pair-count bound holds. Storage trimming is independent of the token
// budget applied at prompt-build time.
func (c *Context) append(role, content string, now time.Time) {
	c.Messages = append(c.Messages, newMessage(role, content, now))
	c.UpdatedAt = now

	if limit := 2 * c.MaxHistory; limit > 0 && len(c.Messages) > limit {
		c.Messages = c.Messages[len(c.Messages)-limit:]
	}
}

// clear empties the history while preserving persona and creation time.
func (c *Context) clear(now time.Time) {
	c.Messages = nil
	c.UpdatedAt = now
}

// expired reports whether the context has been idle longer than timeout.
func (c *Context) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(c.UpdatedAt) > timeout
}

// Stats is the derived, read-only view of a context.
type Stats struct {
	MessageCount int       `json:"message_count"`
	// Rounds counts user-role messages only. It is not paired against
	// assistant replies: a turn that fails after the user message is stored
	// leaves Rounds ahead of the reply count. Callers display both numbers.
	Rounds      int       `json:"rounds"`
	TotalTokens int       `json:"total_tokens"`
	Persona     string    `json:"persona"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// stats derives the statistics view. No mutation.
func (c *Context) stats() Stats {
	s := Stats{
		MessageCount: len(c.Messages),
		Persona:      c.Persona,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			s.Rounds++
		}
		s.TotalTokens += tokensOf(m)
	}
	return s
}

// buildPrompt assembles [system, history..., user] and applies the token
// budget. When includeHistory is false the stored messages are skipped
// entirely and the result is exactly [system, user].
func (c *Context) buildPrompt(systemPrompt, userMessage string, includeHistory bool, budget int, now time.Time) []Message {
	size := 2
	if includeHistory {
		size += len(c.Messages)
	}
	assembled := make([]Message, 0, size)
	assembled = append(assembled, newMessage(RoleSystem, systemPrompt, now))
	if includeHistory {
		assembled = append(assembled, c.Messages...)
	}
	assembled = append(assembled, newMessage(RoleUser, userMessage, now))

	return truncateToBudget(assembled, budget)
}

// truncateToBudget walks the assembled list from the end backward,
// accumulating token counts, and stops including earlier messages once the
// running total would exceed budget — except the element at index 0 (the
// system message), which is always kept. The result preserves chronological
// order: system prompt, then an unbroken tail of the most recent messages.
func truncateToBudget(msgs []Message, budget int) []Message {
	if len(msgs) <= 1 || budget <= 0 {
		return msgs
	}

	keepFrom := len(msgs)
	total := 0
	for i := len(msgs) - 1; i >= 1; i-- {
		tok := tokensOf(msgs[i])
		if total+tok > budget {
			break
		}
		total += tok
		keepFrom = i
	}

	if keepFrom == 1 {
		return msgs
	}

	out := make([]Message, 0, 1+len(msgs)-keepFrom)
	out = append(out, msgs[0])
	out = append(out, msgs[keepFrom:]...)
	return out
}
