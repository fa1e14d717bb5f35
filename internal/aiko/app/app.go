// Package app wires the Aiko chat companion together: persistence, persona
// catalog, conversation stores, the completion pipeline, the Matrix
// transport, and the periodic sweeps.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/aikobot/aiko/common/retry"
	"github.com/aikobot/aiko/internal/aiko/cache"
	"github.com/aikobot/aiko/internal/aiko/commands"
	"github.com/aikobot/aiko/internal/aiko/convo"
	"github.com/aikobot/aiko/internal/aiko/llm"
	"github.com/aikobot/aiko/internal/aiko/matrix"
	"github.com/aikobot/aiko/internal/aiko/persona"
	"github.com/aikobot/aiko/internal/aiko/store"
)

const (
	// defaultSweepInterval is how often the in-memory stores and cache are
	// swept for expired entries.
	defaultSweepInterval = time.Hour
	// defaultRetention is how long persisted conversation snapshots survive
	// without activity before the daily sweep removes them.
	defaultRetention = 7 * 24 * time.Hour
	// typingTimeout caps how long the typing indicator stays on while a
	// completion is in flight.
	typingTimeout = 30 * time.Second
)

// Config holds application configuration.
type Config struct {
	// DatabasePath is the SQLite file. Empty disables persistence: the bot
	// runs purely in memory and forgets everything on restart.
	DatabasePath string
	Matrix       matrix.Config
	LLM          llm.Config

	// PersonaSet selects the embedded catalog variant ("simple" or
	// "complex").
	PersonaSet persona.Set
	// DefaultPersona is the persona used when none is selected.
	DefaultPersona string

	// Conversation tunables. Zero values take the convo package defaults.
	Conversation convo.Config
	// MaxGroupMembers caps tracked members per group, 0 for the default.
	MaxGroupMembers int

	Cache cache.Config

	// RateLimit is the per-sender completions-per-minute cap, 0 for the
	// default.
	RateLimit int
	// TokenBudget is the per-sender daily token cap, 0 for the default.
	TokenBudget int

	// SweepInterval overrides the in-memory sweep cadence, 0 for hourly.
	SweepInterval time.Duration
	// Retention overrides how long persisted snapshots are kept, 0 for
	// seven days.
	Retention time.Duration

	// CommandPrefix is the leading marker for commands, "!" when empty.
	CommandPrefix string
	// BotName tags the bot's messages in group history.
	BotName string
}

// App is the assembled application.
type App struct {
	config   *Config
	db       *store.Store // nil when persistence is disabled
	convos   *convo.Store
	groups   *convo.GroupStore
	personas *persona.Manager
	cache    *cache.Cache
	matrix   *matrix.Client
	router   *commands.Router
	handlers *commands.Handlers

	// roomKinds remembers group/direct per room so the member-count lookup
	// happens once per room, not once per message.
	roomKinds *cache.Cache
}

// New wires the application. No network traffic happens until Run.
func New(config *Config) (*App, error) {
	var db *store.Store
	if config.DatabasePath != "" {
		slog.Info("opening database", "path", config.DatabasePath)
		var err error
		db, err = store.New(config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	} else {
		slog.Warn("no database path configured; conversations will not survive restarts")
	}

	catalog, err := persona.Load(config.PersonaSet)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("failed to load persona catalog: %w", err)
	}

	defaultPersona := config.DefaultPersona
	if defaultPersona == "" {
		defaultPersona = persona.FallbackName
	}
	personas := persona.NewManager(catalog, defaultPersona)

	convoCfg := config.Conversation
	convoCfg.DefaultPersona = defaultPersona
	convos := convo.NewStore(convoCfg)
	groups := convo.NewGroupStore(convoCfg, config.MaxGroupMembers)

	responseCache := cache.New(config.Cache)

	client := llm.NewClient(config.LLM)
	completer := llm.Chain(client,
		llm.WithTiming(),
		llm.WithCache(responseCache),
		llm.WithRetry(retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		}),
	)

	matrixCfg := config.Matrix
	matrixCfg.Store = db
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	a := &App{
		config:    config,
		db:        db,
		convos:    convos,
		groups:    groups,
		personas:  personas,
		cache:     responseCache,
		matrix:    matrixClient,
		roomKinds: cache.New(cache.Config{}),
	}

	handlers := commands.NewHandlers(commands.Deps{
		Convos:      convos,
		Groups:      groups,
		Personas:    personas,
		Cache:       responseCache,
		Client:      client,
		Completer:   completer,
		Model:       config.LLM.Model,
		BotName:     config.BotName,
		Limiter:     llm.NewRateLimiter(config.RateLimit, 0),
		Budget:      llm.NewTokenBudget(config.TokenBudget),
		DB:          db,
		IsGroupRoom: a.isGroupRoom,
		DisplayName: matrixClient.GetDisplayName,
	})

	prefix := config.CommandPrefix
	if prefix == "" {
		prefix = "!"
	}
	router := commands.NewRouter(prefix)
	handlers.RegisterAll(router)

	a.router = router
	a.handlers = handlers

	if db != nil {
		a.restore(context.Background())
	}

	return a, nil
}

// restore reloads custom personas, persona selections, and conversation
// snapshots from the database. Failures are logged, never fatal: the bot is
// useful with empty memory.
func (a *App) restore(ctx context.Context) {
	customs, err := a.db.ListCustomPersonas(ctx)
	if err != nil {
		slog.Warn("failed to restore custom personas", "err", err)
	} else {
		for _, rec := range customs {
			t, err := persona.ParseCustom(rec.Data)
			if err != nil {
				slog.Warn("skipping invalid stored persona", "name", rec.Name, "err", err)
				continue
			}
			a.personas.AddCustom(t)
		}
		if len(customs) > 0 {
			slog.Info("restored custom personas", "count", len(customs))
		}
	}

	selections, err := a.db.PersonaSelections(ctx)
	if err != nil {
		slog.Warn("failed to restore persona selections", "err", err)
	} else if len(selections) > 0 {
		a.personas.RestoreSelections(selections)
		slog.Info("restored persona selections", "count", len(selections))
	}

	direct, err := a.db.ListConversations(ctx, store.KindDirect)
	if err != nil {
		slog.Warn("failed to restore direct conversations", "err", err)
	} else {
		for _, rec := range direct {
			var c convo.Context
			if err := json.Unmarshal(rec.Data, &c); err != nil {
				slog.Warn("skipping corrupt conversation snapshot", "key", rec.Key, "err", err)
				continue
			}
			a.convos.Restore(c)
		}
		if len(direct) > 0 {
			slog.Info("restored direct conversations", "count", len(direct))
		}
	}

	groups, err := a.db.ListConversations(ctx, store.KindGroup)
	if err != nil {
		slog.Warn("failed to restore group conversations", "err", err)
	} else {
		for _, rec := range groups {
			var gc convo.GroupContext
			if err := json.Unmarshal(rec.Data, &gc); err != nil {
				slog.Warn("skipping corrupt group snapshot", "key", rec.Key, "err", err)
				continue
			}
			a.groups.Restore(gc)
		}
		if len(groups) > 0 {
			slog.Info("restored group conversations", "count", len(groups))
		}
	}
}

// Run starts the Matrix sync and the periodic sweeps, then blocks until an
// interrupt signal arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	go a.sweepLoop(ctx)
	if a.db != nil {
		go a.retentionLoop(ctx)
	}

	slog.Info("Aiko is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop shuts the transport down and closes the database.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	if a.db != nil {
		slog.Info("closing database")
		a.db.Close()
	}
}

// sweepLoop periodically drops idle conversations and expired cache entries.
func (a *App) sweepLoop(ctx context.Context) {
	interval := a.config.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := a.convos.CleanupExpired() + a.groups.CleanupExpired()
			expired := a.cache.Sweep()
			slog.Debug("sweep complete", "conversations_removed", removed, "cache_expired", expired)
		}
	}
}

// retentionLoop removes stale persisted snapshots once a day.
func (a *App) retentionLoop(ctx context.Context) {
	retention := a.config.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.db.SweepConversationsOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				slog.Warn("retention sweep failed", "err", err)
			} else if n > 0 {
				slog.Info("retention sweep removed stale snapshots", "count", n)
			}
		}
	}
}

// isGroupRoom reports whether a room has more than two joined members. The
// answer is cached per room; membership changes are picked up after the
// cache entry's TTL.
func (a *App) isGroupRoom(ctx context.Context, roomID string) bool {
	if v, ok := a.roomKinds.Get(cache.NamespaceConversation, roomID); ok {
		if isGroup, ok := v.(bool); ok {
			return isGroup
		}
	}

	count, err := a.matrix.JoinedMemberCount(ctx, roomID)
	if err != nil {
		slog.Warn("failed to count room members, assuming direct chat", "room", roomID, "err", err)
		return false
	}
	isGroup := count > 2
	a.roomKinds.Set(cache.NamespaceConversation, roomID, isGroup)
	return isGroup
}

// handleMessage routes one incoming Matrix message: commands go through the
// router, everything else through the chat flow.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}
	text := msgContent.Body
	roomID := evt.RoomID.String()

	response, err := a.router.Route(ctx, text, evt)
	if err != nil {
		if !errors.Is(err, commands.ErrNotACommand) {
			// A prefixed command that failed to parse or dispatch.
			if sendErr := a.matrix.SendNotice(ctx, roomID, fmt.Sprintf("Error: %s", err)); sendErr != nil {
				slog.Error("failed to send error notice", "room", roomID, "err", sendErr)
			}
			return
		}

		// Ordinary chat. Show a typing indicator while the completion runs.
		if err := a.matrix.SetTyping(ctx, roomID, true, typingTimeout); err != nil {
			slog.Debug("failed to set typing indicator", "room", roomID, "err", err)
		}
		reply, chatErr := a.handlers.HandleChat(ctx, evt, text)
		if err := a.matrix.SetTyping(ctx, roomID, false, 0); err != nil {
			slog.Debug("failed to clear typing indicator", "room", roomID, "err", err)
		}
		if chatErr != nil {
			slog.Error("chat handler failed", "room", roomID, "err", chatErr)
			return
		}
		if reply != "" {
			if err := a.matrix.SendText(ctx, roomID, reply); err != nil {
				slog.Error("failed to send chat reply", "room", roomID, "err", err)
			}
		}
		return
	}

	if response != "" {
		if err := a.matrix.SendNotice(ctx, roomID, response); err != nil {
			slog.Error("failed to send command response", "room", roomID, "err", err)
		}
	}
}
