// Package convo implements Aiko's conversation state: per-user and
// per-group contexts with idle-expiry recreation, length-bounded history,
// and token-budgeted prompt assembly.
//
// The direct Store and the GroupStore share one engine — the Context type
// and its trimming/budgeting methods — instantiated twice, so the
// truncation logic cannot diverge between the two shapes.
package convo

import (
	"time"

	"github.com/aikobot/aiko/internal/aiko/token"
)

// Message roles, matching the completion API wire values.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn stored in a context. Immutable once stored;
// front-trimming is the only removal path.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Tokens is the estimate computed at insertion and cached thereafter.
	Tokens int `json:"tokens"`
}

// newMessage stamps a message with the given time and its token estimate.
func newMessage(role, content string, now time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Tokens:    token.Estimate(content),
	}
}

// tokensOf returns the cached estimate, recomputing when the cache is
// missing (zero on non-empty content — e.g. a record restored from an older
// persisted format).
func tokensOf(m Message) int {
	if m.Tokens == 0 && m.Content != "" {
		return token.Estimate(m.Content)
	}
	return m.Tokens
}

// GroupMessage is a Message tagged with its sender, kept in the
// group-specific list alongside the shared history.
type GroupMessage struct {
	Message
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
}
