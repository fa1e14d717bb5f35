package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/aikobot/aiko/internal/aiko/persona"
)

// HandlePersonaList lists every available persona, builtins first.
func (h *Handlers) HandlePersonaList(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	key, _ := h.conversationKey(ctx, evt)
	current := h.deps.Personas.CurrentName(key)

	var b strings.Builder
	b.WriteString("Available personas:\n")
	for _, t := range h.deps.Personas.Catalog().List() {
		marker := "• "
		if t.Name == current {
			marker = "▸ "
		}
		fmt.Fprintf(&b, "%s%s — %s\n", marker, t.Name, t.Description)
	}
	b.WriteString("\nSwitch with !persona switch <name>")
	return b.String(), nil
}

// HandlePersonaShow shows the active persona, or a named one when given.
func (h *Handlers) HandlePersonaShow(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	key, _ := h.conversationKey(ctx, evt)

	var t persona.Template
	if name, ok := cmd.GetArg(0); ok {
		resolved, found := h.deps.Personas.Catalog().Resolve(name)
		if !found {
			return fmt.Sprintf("I don't know a persona called %q. Try !persona list.", name), nil
		}
		t = resolved
	} else {
		t = h.deps.Personas.Current(key)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Persona: %s\n%s\n", t.Name, t.Description)
	fmt.Fprintf(&b, "Temperature: %.1f, Max tokens: %d", t.Temperature, t.MaxTokens)
	if len(t.Traits) > 0 {
		fmt.Fprintf(&b, "\nTraits: %s", strings.Join(t.Traits, ", "))
	}
	return b.String(), nil
}

// HandlePersonaSwitch switches the conversation to another persona. A
// successful switch clears the conversation history so the new persona
// starts from a clean slate.
func (h *Handlers) HandlePersonaSwitch(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	name, ok := cmd.GetArg(0)
	if !ok {
		return "Usage: !persona switch <name>", nil
	}

	key, isGroup := h.conversationKey(ctx, evt)
	if !h.deps.Personas.Switch(key, name) {
		return fmt.Sprintf("I don't know a persona called %q. Try !persona list.", name), nil
	}

	canonical := h.deps.Personas.CurrentName(key)
	if isGroup {
		h.deps.Groups.ClearHistory(evt.RoomID.String())
	} else {
		h.deps.Convos.SetPersona(key, canonical)
		h.deps.Convos.ClearHistory(key)
	}

	if h.deps.DB != nil {
		if err := h.deps.DB.SavePersonaSelection(ctx, key, canonical); err != nil {
			slog.Warn("failed to persist persona selection", "key", key, "err", err)
		}
	}

	t, _ := h.deps.Personas.Catalog().Resolve(canonical)
	reply := fmt.Sprintf("Switched to %s. Conversation history cleared.", canonical)
	if t.Greeting != "" {
		reply += "\n\n" + t.Greeting
	}
	return reply, nil
}

// HandlePersonaAliases lists the aliases of a persona.
func (h *Handlers) HandlePersonaAliases(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	name, ok := cmd.GetArg(0)
	if !ok {
		key, _ := h.conversationKey(ctx, evt)
		name = h.deps.Personas.CurrentName(key)
	}

	t, found := h.deps.Personas.Catalog().Resolve(name)
	if !found {
		return fmt.Sprintf("I don't know a persona called %q. Try !persona list.", name), nil
	}

	aliases := h.deps.Personas.Catalog().ListAliases(t.Name)
	return fmt.Sprintf("Aliases for %s: %s", t.Name, strings.Join(aliases, ", ")), nil
}

// HandlePersonaCreate adds a custom persona from a JSON definition.
func (h *Handlers) HandlePersonaCreate(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	raw := strings.TrimSpace(cmd.Rest)
	if raw == "" {
		return `Usage: !persona create {"name":"pirate","description":"...","system_prompt":"..."}`, nil
	}

	t, err := persona.ParseCustom([]byte(raw))
	if err != nil {
		return fmt.Sprintf("That persona definition isn't valid: %v", err), nil
	}

	if !h.deps.Personas.AddCustom(t) {
		return fmt.Sprintf("A persona named %q already exists.", t.Name), nil
	}

	if h.deps.DB != nil {
		if err := h.deps.DB.SaveCustomPersona(ctx, t.Name, []byte(raw)); err != nil {
			slog.Warn("failed to persist custom persona", "name", t.Name, "err", err)
		}
	}

	return fmt.Sprintf("Created persona %s. Activate it with !persona switch %s", t.Name, t.Name), nil
}

// HandlePersonaRemove removes a custom persona. Builtins are protected.
func (h *Handlers) HandlePersonaRemove(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	name, ok := cmd.GetArg(0)
	if !ok {
		return "Usage: !persona remove <name>", nil
	}

	if h.deps.Personas.Catalog().IsBuiltin(name) {
		return fmt.Sprintf("%s is a built-in persona and can't be removed.", name), nil
	}
	if !h.deps.Personas.RemoveCustom(name) {
		return fmt.Sprintf("No custom persona named %q.", name), nil
	}

	if h.deps.DB != nil {
		if err := h.deps.DB.DeleteCustomPersona(ctx, name); err != nil {
			slog.Warn("failed to remove persisted custom persona", "name", name, "err", err)
		}
	}

	return fmt.Sprintf("Removed persona %s.", name), nil
}

// HandlePersonaReset resets the conversation to the default persona.
func (h *Handlers) HandlePersonaReset(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	key, isGroup := h.conversationKey(ctx, evt)
	h.deps.Personas.Reset(key)

	canonical := h.deps.Personas.CurrentName(key)
	if isGroup {
		h.deps.Groups.ClearHistory(evt.RoomID.String())
	} else {
		h.deps.Convos.SetPersona(key, canonical)
		h.deps.Convos.ClearHistory(key)
	}

	if h.deps.DB != nil {
		if err := h.deps.DB.DeletePersonaSelection(ctx, key); err != nil {
			slog.Warn("failed to remove persisted persona selection", "key", key, "err", err)
		}
	}

	return fmt.Sprintf("Back to %s. Conversation history cleared.", canonical), nil
}
