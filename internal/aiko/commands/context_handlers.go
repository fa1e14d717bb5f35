package commands

import (
	"context"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/aikobot/aiko/internal/aiko/convo"
)

// HandleClear forgets the conversation history, keeping the persona.
func (h *Handlers) HandleClear(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	key, isGroup := h.conversationKey(ctx, evt)
	if isGroup {
		h.deps.Groups.ClearHistory(evt.RoomID.String())
	} else {
		h.deps.Convos.ClearHistory(key)
	}
	h.saveSnapshot(ctx, key, isGroup, evt.RoomID.String())
	return "Forgotten! We're starting fresh.", nil
}

// HandleStats shows the conversation's statistics.
func (h *Handlers) HandleStats(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	key, isGroup := h.conversationKey(ctx, evt)

	var (
		stats convo.Stats
		extra string
		found bool
	)
	if isGroup {
		gs, ok := h.deps.Groups.Stats(evt.RoomID.String())
		stats, found = gs.Stats, ok
		if ok {
			extra = fmt.Sprintf("\nMembers: %d, Shared context: %v", gs.MemberCount, gs.SharedContext)
		}
	} else {
		stats, found = h.deps.Convos.Stats(key)
	}
	if !found {
		return "No conversation yet. Say something first!", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation stats:\n")
	fmt.Fprintf(&b, "Messages: %d (rounds: %d)\n", stats.MessageCount, stats.Rounds)
	fmt.Fprintf(&b, "Tokens: %d\n", stats.TotalTokens)
	fmt.Fprintf(&b, "Persona: %s\n", h.deps.Personas.CurrentName(key))
	fmt.Fprintf(&b, "Started: %s, Last activity: %s",
		stats.CreatedAt.Format("2006-01-02 15:04"), stats.UpdatedAt.Format("2006-01-02 15:04"))
	b.WriteString(extra)
	return b.String(), nil
}

// HandleGroupInfo summarizes the group conversation.
func (h *Handlers) HandleGroupInfo(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	_, isGroup := h.conversationKey(ctx, evt)
	if !isGroup {
		return "This is a direct chat, not a group.", nil
	}

	gs, ok := h.deps.Groups.Stats(evt.RoomID.String())
	if !ok {
		return "No group conversation yet. Say something first!", nil
	}
	return fmt.Sprintf("Group conversation:\nMembers: %d\nMessages: %d\nShared context: %v",
		gs.MemberCount, gs.MessageCount, gs.SharedContext), nil
}

// HandleGroupMembers lists the members the group conversation has seen.
func (h *Handlers) HandleGroupMembers(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	_, isGroup := h.conversationKey(ctx, evt)
	if !isGroup {
		return "This is a direct chat, not a group.", nil
	}

	members := h.deps.Groups.Members(evt.RoomID.String())
	if len(members) == 0 {
		return "I haven't seen anyone speak here yet.", nil
	}
	return fmt.Sprintf("Members I've talked with (%d):\n• %s",
		len(members), strings.Join(members, "\n• ")), nil
}

// HandleGroupShared toggles whether shared history is included in prompts.
func (h *Handlers) HandleGroupShared(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	_, isGroup := h.conversationKey(ctx, evt)
	if !isGroup {
		return "This is a direct chat, not a group.", nil
	}

	arg, ok := cmd.GetArg(0)
	if !ok {
		return "Usage: !group shared on|off", nil
	}

	roomID := evt.RoomID.String()
	switch strings.ToLower(arg) {
	case "on":
		h.deps.Groups.SetSharedContext(roomID, true)
		return "Shared context enabled: I'll remember the group's conversation.", nil
	case "off":
		h.deps.Groups.SetSharedContext(roomID, false)
		return "Shared context disabled: each message stands alone now.", nil
	default:
		return "Usage: !group shared on|off", nil
	}
}
