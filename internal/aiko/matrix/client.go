// Package matrix provides the Matrix transport for Aiko: a mautrix client
// wrapper that syncs with the homeserver, auto-joins invites, and forwards
// text messages to the chat handler.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aikobot/aiko/internal/aiko/store"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// AllowedRooms restricts the bot to the listed room IDs. Empty means the
	// bot responds in every room it is a member of.
	AllowedRooms []string
	// Store is an optional persistence layer for the sync position
	// (next_batch token). When nil, an in-memory store is used and room
	// history replays on every restart.
	Store *store.Store
}

// Client wraps the mautrix client.
type Client struct {
	client     *mautrix.Client
	config     *Config
	stopCh     chan struct{}
	msgHandler MessageHandler
}

// MessageHandler processes incoming Matrix text messages.
type MessageHandler func(ctx context.Context, evt *event.Event)

// New creates a Matrix client. It does not connect until Start.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		stopCh: make(chan struct{}),
	}

	if config.Store != nil {
		client.Store = newSyncStore(config.Store)
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no store configured, history will replay on restart")
	}

	return c, nil
}

// Start registers event handlers and begins syncing in the background.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleMembership)

	// Sync with exponential back-off reconnection. Without retries a
	// transient homeserver error would silently kill the sync goroutine and
	// leave the bot deaf to all new messages.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			// Sync returns nil only after a clean StopSync.
			return
		}
	}()

	return nil
}

// Stop shuts the sync loop down.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendText sends a plain text message to a room.
func (c *Client) SendText(ctx context.Context, roomID, message string) error {
	if _, err := c.client.SendText(ctx, id.RoomID(roomID), message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendNotice sends a notice, used for command output so other bots ignore it.
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// SetTyping toggles the bot's typing indicator in a room.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}

// JoinedMemberCount returns how many users share the room with the bot. Used
// to distinguish direct chats (two members) from group rooms.
func (c *Client) JoinedMemberCount(ctx context.Context, roomID string) (int, error) {
	resp, err := c.client.JoinedMembers(ctx, id.RoomID(roomID))
	if err != nil {
		return 0, fmt.Errorf("failed to get joined members: %w", err)
	}
	return len(resp.Joined), nil
}

// IsAllowedRoom reports whether the bot should respond in roomID.
func (c *Client) IsAllowedRoom(roomID string) bool {
	if len(c.config.AllowedRooms) == 0 {
		return true
	}
	for _, allowed := range c.config.AllowedRooms {
		if allowed == roomID {
			return true
		}
	}
	return false
}

// GetUserID returns the bot's own user ID.
func (c *Client) GetUserID() string {
	return c.config.UserID
}

// GetDisplayName gets a user's display name, falling back to the user ID.
func (c *Client) GetDisplayName(ctx context.Context, userID string) string {
	profile, err := c.client.GetProfile(ctx, id.UserID(userID))
	if err != nil || profile.DisplayName == "" {
		return userID
	}
	return profile.DisplayName
}

// handleMessage filters incoming events down to other users' text messages
// in allowed rooms and forwards them to the registered handler.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}

	if !c.IsAllowedRoom(evt.RoomID.String()) {
		return
	}

	if c.msgHandler != nil {
		c.msgHandler(ctx, evt)
	}
}

// handleMembership auto-joins rooms the bot is invited to.
func (c *Client) handleMembership(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != c.config.UserID {
		return
	}
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}
	if !c.IsAllowedRoom(evt.RoomID.String()) {
		slog.Info("ignoring invite to disallowed room", "room", evt.RoomID)
		return
	}

	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		// M_FORBIDDEN is what homeservers return when the bot is already a
		// member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("invite join refused, continuing", "room", evt.RoomID)
			return
		}
		slog.Error("failed to join room on invite", "room", evt.RoomID, "err", err)
		return
	}
	slog.Info("joined room on invite", "room", evt.RoomID, "inviter", evt.Sender)
}
