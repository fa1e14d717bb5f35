package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/aikobot/aiko/common/trace"
	"github.com/aikobot/aiko/common/version"
	"github.com/aikobot/aiko/internal/aiko/cache"
	"github.com/aikobot/aiko/internal/aiko/convo"
	"github.com/aikobot/aiko/internal/aiko/llm"
	"github.com/aikobot/aiko/internal/aiko/persona"
	"github.com/aikobot/aiko/internal/aiko/store"
)

// Deps are the collaborators the command handlers need. DB and lookups are
// optional; everything else is required.
type Deps struct {
	Convos    *convo.Store
	Groups    *convo.GroupStore
	Personas  *persona.Manager
	Cache     *cache.Cache
	Client    *llm.Client
	Completer llm.Completer
	Model     string
	// BotName tags the bot's own messages in group history.
	BotName string
	Limiter *llm.RateLimiter
	Budget    *llm.TokenBudget
	// DB is the optional persistence collaborator. When nil the bot runs
	// purely in memory.
	DB *store.Store
	// IsGroupRoom reports whether a room holds more than two members.
	IsGroupRoom func(ctx context.Context, roomID string) bool
	// DisplayName resolves a user ID to a display name.
	DisplayName func(ctx context.Context, userID string) string
}

// Handlers holds all command handlers and their dependencies.
type Handlers struct {
	deps  Deps
	locks *convo.KeyedLock
}

// NewHandlers creates a Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		deps:  deps,
		locks: convo.NewKeyedLock(),
	}
}

// RegisterAll registers every command on the router.
func (h *Handlers) RegisterAll(r *Router) {
	r.Register("help", h.HandleHelp)
	r.Register("version", h.HandleVersion)

	r.Register("persona", h.HandlePersonaShow)
	r.Register("persona.list", h.HandlePersonaList)
	r.Register("persona.show", h.HandlePersonaShow)
	r.Register("persona.switch", h.HandlePersonaSwitch)
	r.Register("persona.aliases", h.HandlePersonaAliases)
	r.Register("persona.create", h.HandlePersonaCreate)
	r.Register("persona.remove", h.HandlePersonaRemove)
	r.Register("persona.reset", h.HandlePersonaReset)

	r.Register("clear", h.HandleClear)
	r.Register("stats", h.HandleStats)

	r.Register("group", h.HandleGroupInfo)
	r.Register("group.members", h.HandleGroupMembers)
	r.Register("group.shared", h.HandleGroupShared)

	r.Register("image", h.HandleImage)
	r.Register("video", h.HandleVideo)
	r.Register("translate", h.HandleTranslate)

	r.Register("cache", h.HandleCacheStats)
	r.Register("cache.stats", h.HandleCacheStats)
}

// conversationKey resolves the event's room to a conversation key and
// whether the room is a group chat.
func (h *Handlers) conversationKey(ctx context.Context, evt *event.Event) (string, bool) {
	roomID := evt.RoomID.String()
	if h.deps.IsGroupRoom != nil && h.deps.IsGroupRoom(ctx, roomID) {
		return convo.GroupKey(roomID), true
	}
	return roomID, false
}

// HandleChat runs the chat flow for a non-command message and returns the
// reply text. User-facing failures (rate limit, budget, provider errors)
// come back as the reply, not as an error.
func (h *Handlers) HandleChat(ctx context.Context, evt *event.Event, body string) (string, error) {
	sender := evt.Sender.String()
	roomID := evt.RoomID.String()
	ctx = trace.WithTraceID(ctx, trace.GenerateID())

	if !h.deps.Limiter.Allow(sender) {
		return llm.RateLimitMessage, nil
	}
	if !h.deps.Budget.Allow(sender) {
		return llm.BudgetExceededMessage, nil
	}

	key, isGroup := h.conversationKey(ctx, evt)

	// One completion at a time per conversation. Concurrent turns in the
	// same room would interleave their history writes.
	h.locks.Lock(key)
	defer h.locks.Unlock(key)

	tmpl := h.deps.Personas.Current(key)
	params := llm.Params{
		Model:       h.deps.Model,
		Temperature: tmpl.Temperature,
		MaxTokens:   tmpl.MaxTokens,
	}

	var prompt []convo.Message
	if isGroup {
		name := sender
		if h.deps.DisplayName != nil {
			name = h.deps.DisplayName(ctx, sender)
		}
		tagged := name + ": " + body
		prompt = h.deps.Groups.BuildGroupContextMessages(roomID, tmpl.SystemPrompt, tagged)
		h.deps.Groups.AddMember(roomID, sender)
		h.deps.Groups.AddGroupMessage(roomID, sender, name, convo.RoleUser, tagged)
	} else {
		prompt = h.deps.Convos.BuildContextMessages(key, tmpl.SystemPrompt, body)
		h.deps.Convos.AddMessage(key, convo.RoleUser, body)
	}

	reply, usage, err := h.deps.Completer.Complete(ctx, toLLMMessages(prompt), params)
	if err != nil {
		slog.Error("chat completion failed",
			"trace_id", trace.FromContext(ctx), "room", roomID, "err", err)
		return llm.UserMessage(err), nil
	}

	if isGroup {
		botName := h.deps.BotName
		if botName == "" {
			botName = "Aiko"
		}
		h.deps.Groups.AddGroupMessage(roomID, "", botName, convo.RoleAssistant, reply)
	} else {
		h.deps.Convos.AddMessage(key, convo.RoleAssistant, reply)
	}
	h.deps.Budget.RecordUsage(sender, usage.TotalTokens)

	h.saveSnapshot(ctx, key, isGroup, roomID)

	return reply, nil
}

// toLLMMessages converts the stored prompt into the provider wire shape.
func toLLMMessages(msgs []convo.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// saveSnapshot persists the conversation best-effort. Persistence failures
// never surface to the user.
func (h *Handlers) saveSnapshot(ctx context.Context, key string, isGroup bool, roomID string) {
	if h.deps.DB == nil {
		return
	}

	var (
		data []byte
		err  error
		kind string
	)
	if isGroup {
		kind = store.KindGroup
		data, err = json.Marshal(h.deps.Groups.GetOrCreate(roomID))
	} else {
		kind = store.KindDirect
		data, err = json.Marshal(h.deps.Convos.GetOrCreate(key))
	}
	if err != nil {
		slog.Warn("failed to encode conversation snapshot", "key", key, "err", err)
		return
	}

	rec := &store.ConversationRecord{Key: key, Kind: kind, Data: data}
	if err := h.deps.DB.SaveConversation(ctx, rec); err != nil {
		slog.Warn("failed to persist conversation snapshot", "key", key, "err", err)
	}
}

// HandleHelp shows the available commands.
func (h *Handlers) HandleHelp(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return `Aiko — your AI chat companion

Just send a message to chat. Commands:

Persona:
• !persona — show the active persona
• !persona list — list available personas
• !persona switch <name> — switch persona (clears history)
• !persona aliases <name> — show a persona's aliases
• !persona create <json> — add a custom persona
• !persona remove <name> — remove a custom persona
• !persona reset — back to the default persona

Conversation:
• !clear — forget this conversation's history
• !stats — conversation statistics

Groups:
• !group — group conversation info
• !group members — list tracked members
• !group shared on|off — include shared history in replies

Media:
• !image <prompt> [--size WxH] — generate an image
• !video <action> <prompt> — submit a video job
• !translate <lang> <text> — translate text

Other:
• !cache stats — cache statistics
• !version — build information`, nil
}

// HandleVersion shows build information.
func (h *Handlers) HandleVersion(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return fmt.Sprintf("Aiko\nVersion: %s\nCommit: %s\nBuild Time: %s",
		version.Version, version.GitCommit, version.BuildTime), nil
}

// HandleCacheStats reports cache statistics.
func (h *Handlers) HandleCacheStats(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	s := h.deps.Cache.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "Cache: %d entries\n", s.Entries)
	for ns, n := range s.PerNS {
		fmt.Fprintf(&b, "• %s: %d\n", ns, n)
	}
	fmt.Fprintf(&b, "Hits: %d, Misses: %d, Evictions: %d, Expirations: %d",
		s.Hits, s.Misses, s.Evictions, s.Expirations)
	return b.String(), nil
}
