// Package commands provides command parsing and routing for Aiko, plus the
// chat flow used for every non-command message.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"maunium.net/go/mautrix/event"
)

// Command is a parsed command.
type Command struct {
	Name       string
	Subcommand string
	Args       []string
	Flags      map[string]string
	// Rest is the raw text after the consumed name/subcommand tokens,
	// whitespace preserved. Used by handlers that take free-form input
	// (custom persona JSON, prompts).
	Rest string
}

// ErrNotACommand is returned by Route when the message does not start with
// the command prefix. Callers use errors.Is to fall through to the chat
// flow.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// Handler handles one command.
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router routes commands to handlers. A handler may be registered under a
// bare name ("image") or a dotted name+subcommand key ("persona.switch");
// the second token of a message is consumed as a subcommand only when a
// dotted key for it exists.
type Router struct {
	handlers map[string]Handler
	prefix   string
}

// NewRouter creates a router with the given command prefix.
func NewRouter(prefix string) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Register registers a handler under key ("name" or "name.subcommand").
func (r *Router) Register(key string, handler Handler) {
	r.handlers[key] = handler
}

// Route parses text and dispatches it to the matching handler.
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.prefix) {
		return "", ErrNotACommand
	}

	rest := strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	if rest == "" {
		return "", fmt.Errorf("empty command")
	}

	name, rest := cutField(rest)
	cmd := &Command{
		Name:  name,
		Args:  []string{},
		Flags: make(map[string]string),
	}

	handlerKey := name
	if sub, after := cutField(rest); sub != "" {
		if _, ok := r.handlers[name+"."+sub]; ok {
			cmd.Subcommand = sub
			handlerKey = name + "." + sub
			rest = after
		}
	}
	cmd.Rest = rest

	// Remaining tokens split into positional args and --flag [value] pairs.
	parts := strings.Fields(rest)
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		if strings.HasPrefix(part, "--") {
			flagName := strings.TrimPrefix(part, "--")
			if i+1 < len(parts) && !strings.HasPrefix(parts[i+1], "--") {
				cmd.Flags[flagName] = parts[i+1]
				i++
			} else {
				cmd.Flags[flagName] = "true"
			}
		} else {
			cmd.Args = append(cmd.Args, part)
		}
	}

	handler, ok := r.handlers[handlerKey]
	if !ok {
		return "", fmt.Errorf("unknown command: %s (try %shelp)", handlerKey, r.prefix)
	}
	return handler(ctx, cmd, evt)
}

// GetFlag returns a flag value with a default.
func (c *Command) GetFlag(name, defaultValue string) string {
	if val, ok := c.Flags[name]; ok {
		return val
	}
	return defaultValue
}

// HasFlag reports whether a flag is present.
func (c *Command) HasFlag(name string) bool {
	_, ok := c.Flags[name]
	return ok
}

// GetArg returns an argument by index.
func (c *Command) GetArg(index int) (string, bool) {
	if index < 0 || index >= len(c.Args) {
		return "", false
	}
	return c.Args[index], true
}

// ArgsText joins the positional arguments back into free text, with flags
// stripped. Used for prompts where --flag options may be interleaved.
func (c *Command) ArgsText() string {
	return strings.Join(c.Args, " ")
}

// cutField splits off the first whitespace-delimited field of s and returns
// it with the trimmed remainder.
func cutField(s string) (field, rest string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx:])
}
