package convo

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxMembers bounds group membership when no explicit limit is
// configured.
const DefaultMaxMembers = 100

// GroupKey derives the conversation key for a group ID.
func GroupKey(groupID string) string { return "group_" + groupID }

// GroupContext extends Context with membership and a sender-tagged message
// list. The store exclusively owns the member set.
type GroupContext struct {
	Context
	Members map[string]bool `json:"members"`
	// GroupMessages mirrors Messages with sender attribution, for
	// user-facing history display.
	GroupMessages []GroupMessage `json:"group_messages"`
	// SharedContext gates whether stored history is included when building
	// the next prompt. When false only the system prompt and the new user
	// message are sent, regardless of stored history.
	SharedContext bool `json:"shared_context"`
}

// GroupStats is the derived view of a group context.
type GroupStats struct {
	Stats
	MemberCount   int  `json:"member_count"`
	SharedContext bool `json:"shared_context"`
}

// GroupStore owns group conversation contexts plus the user→groups reverse
// index, which is kept consistent on every membership change, group
// deletion, and expiry-driven recreation. Safe for concurrent use.
type GroupStore struct {
	mu         sync.Mutex
	config     Config
	maxMembers int
	groups     map[string]*GroupContext       // keyed by GroupKey(groupID)
	userGroups map[string]map[string]struct{} // userID → set of group IDs
}

// NewGroupStore creates a GroupStore with cfg. maxMembers ≤ 0 defaults to
// DefaultMaxMembers.
func NewGroupStore(cfg Config, maxMembers int) *GroupStore {
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}
	return &GroupStore{
		config:     cfg.withDefaults(),
		maxMembers: maxMembers,
		groups:     make(map[string]*GroupContext),
		userGroups: make(map[string]map[string]struct{}),
	}
}

// GetOrCreate returns a snapshot of the group's context, recreating it when
// absent or idle past the timeout. Recreation discards the stale context
// wholesale — history and membership both — and scrubs the reverse index.
func (g *GroupStore) GetOrCreate(groupID string) GroupContext {
	return g.getOrCreateAt(groupID, time.Now())
}

func (g *GroupStore) getOrCreateAt(groupID string, now time.Time) GroupContext {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.liveLocked(groupID, now).snapshot()
}

// liveLocked returns the live context for groupID, recreating when needed.
// Must be called with g.mu held.
func (g *GroupStore) liveLocked(groupID string, now time.Time) *GroupContext {
	key := GroupKey(groupID)
	gc := g.groups[key]
	if gc != nil && !gc.expired(now, g.config.IdleTimeout) {
		return gc
	}
	if gc != nil {
		slog.Debug("convo: group context expired, recreating",
			"group_id", groupID, "idle", now.Sub(gc.UpdatedAt))
		g.dropMembersLocked(groupID, gc)
	}
	gc = &GroupContext{
		Context: Context{
			ID:         uuid.New().String(),
			Key:        key,
			Persona:    g.config.DefaultPersona,
			CreatedAt:  now,
			UpdatedAt:  now,
			MaxHistory: g.config.MaxHistory,
		},
		Members:       make(map[string]bool),
		SharedContext: true,
	}
	g.groups[key] = gc
	return gc
}

// AddGroupMessage records a sender-attributed message: it appends to both
// the shared message list (what prompts are built from) and the
// group-specific tagged list, trimming both to the same bound.
func (g *GroupStore) AddGroupMessage(groupID, senderID, senderName, role, content string) {
	g.addGroupMessageAt(groupID, senderID, senderName, role, content, time.Now())
}

func (g *GroupStore) addGroupMessageAt(groupID, senderID, senderName, role, content string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gc := g.liveLocked(groupID, now)
	gc.append(role, content, now)
	gc.GroupMessages = append(gc.GroupMessages, GroupMessage{
		Message:    newMessage(role, content, now),
		SenderID:   senderID,
		SenderName: senderName,
	})
	if limit := 2 * gc.MaxHistory; limit > 0 && len(gc.GroupMessages) > limit {
		gc.GroupMessages = gc.GroupMessages[len(gc.GroupMessages)-limit:]
	}
}

// AddMember adds userID to the group, enforcing the member cap: overflow is
// rejected and logged, existing members are never evicted. Returns false
// when the cap is reached. Adding an existing member is a successful no-op.
func (g *GroupStore) AddMember(groupID, userID string) bool {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	gc := g.liveLocked(groupID, now)
	if gc.Members[userID] {
		return true
	}
	if len(gc.Members) >= g.maxMembers {
		slog.Warn("convo: group member cap reached, rejecting join",
			"group_id", groupID, "user_id", userID, "max_members", g.maxMembers)
		return false
	}

	gc.Members[userID] = true
	gc.UpdatedAt = now

	set := g.userGroups[userID]
	if set == nil {
		set = make(map[string]struct{})
		g.userGroups[userID] = set
	}
	set[groupID] = struct{}{}
	return true
}

// RemoveMember removes userID from the group and updates the reverse index,
// deleting the user's entry entirely when it becomes empty. Returns false
// when the user is not a member.
func (g *GroupStore) RemoveMember(groupID, userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	gc := g.groups[GroupKey(groupID)]
	if gc == nil || !gc.Members[userID] {
		return false
	}

	delete(gc.Members, userID)
	gc.UpdatedAt = time.Now()
	g.unindexLocked(groupID, userID)
	return true
}

// Members returns the group's member IDs, sorted.
func (g *GroupStore) Members(groupID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	gc := g.groups[GroupKey(groupID)]
	if gc == nil {
		return nil
	}
	out := make([]string, 0, len(gc.Members))
	for id := range gc.Members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// UserGroups returns the IDs of every group the user belongs to, sorted.
// Empty (nil) when the user has no memberships.
func (g *GroupStore) UserGroups(userID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	set := g.userGroups[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetSharedContext toggles whether the group's stored history feeds prompt
// assembly.
func (g *GroupStore) SetSharedContext(groupID string, enabled bool) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	gc := g.liveLocked(groupID, now)
	gc.SharedContext = enabled
	gc.UpdatedAt = now
}

// ClearHistory empties both message lists, preserving membership, persona,
// and creation time.
func (g *GroupStore) ClearHistory(groupID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gc, ok := g.groups[GroupKey(groupID)]; ok {
		gc.clear(time.Now())
		gc.GroupMessages = nil
	}
}

// Delete removes the group entirely, scrubbing every member's reverse-index
// entry.
func (g *GroupStore) Delete(groupID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := GroupKey(groupID)
	gc := g.groups[key]
	if gc == nil {
		return
	}
	g.dropMembersLocked(groupID, gc)
	delete(g.groups, key)
}

// BuildGroupContextMessages assembles the group prompt. With SharedContext
// disabled the result is exactly [system, user]; otherwise the shared
// history is included under the same token-budget truncation as direct
// conversations.
func (g *GroupStore) BuildGroupContextMessages(groupID, systemPrompt, userMessage string) []Message {
	return g.buildGroupContextMessagesAt(groupID, systemPrompt, userMessage, time.Now())
}

func (g *GroupStore) buildGroupContextMessagesAt(groupID, systemPrompt, userMessage string, now time.Time) []Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	gc := g.liveLocked(groupID, now)
	include := gc.SharedContext && g.config.ContextEnabled
	return gc.buildPrompt(systemPrompt, userMessage, include, g.config.MaxContextTokens, now)
}

// Stats returns the derived statistics for the group. ok is false when no
// context exists.
func (g *GroupStore) Stats(groupID string) (GroupStats, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gc := g.groups[GroupKey(groupID)]
	if gc == nil {
		return GroupStats{}, false
	}
	return GroupStats{
		Stats:         gc.stats(),
		MemberCount:   len(gc.Members),
		SharedContext: gc.SharedContext,
	}, true
}

// CleanupExpired removes every group idle past the timeout, scrubbing the
// reverse index, and returns the removal count. Operates on a key snapshot.
func (g *GroupStore) CleanupExpired() int {
	return g.cleanupExpiredAt(time.Now())
}

func (g *GroupStore) cleanupExpiredAt(now time.Time) int {
	g.mu.Lock()
	type pair struct{ key, groupID string }
	keys := make([]pair, 0, len(g.groups))
	for key := range g.groups {
		keys = append(keys, pair{key, key[len("group_"):]})
	}
	g.mu.Unlock()

	removed := 0
	for _, p := range keys {
		g.mu.Lock()
		if gc, ok := g.groups[p.key]; ok && gc.expired(now, g.config.IdleTimeout) {
			g.dropMembersLocked(p.groupID, gc)
			delete(g.groups, p.key)
			removed++
		}
		g.mu.Unlock()
	}

	if removed > 0 {
		slog.Info("convo: swept expired group contexts", "removed", removed)
	}
	return removed
}

// Len returns the number of live group contexts.
func (g *GroupStore) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.groups)
}

// Export returns deep copies of every live group context, for persistence.
func (g *GroupStore) Export() []GroupContext {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]GroupContext, 0, len(g.groups))
	for _, gc := range g.groups {
		out = append(out, gc.snapshot())
	}
	return out
}

// Restore installs a previously exported group context under its own key and
// rebuilds the reverse index for its members. Used at startup only; an
// existing live context for the same group is replaced.
func (g *GroupStore) Restore(gc GroupContext) {
	if len(gc.Key) <= len("group_") {
		return
	}
	groupID := gc.Key[len("group_"):]

	g.mu.Lock()
	defer g.mu.Unlock()

	if old := g.groups[gc.Key]; old != nil {
		g.dropMembersLocked(groupID, old)
	}

	cp := gc.snapshot()
	g.groups[gc.Key] = &cp
	for userID := range cp.Members {
		set := g.userGroups[userID]
		if set == nil {
			set = make(map[string]struct{})
			g.userGroups[userID] = set
		}
		set[groupID] = struct{}{}
	}
}

// dropMembersLocked removes every member of gc from the reverse index.
// Must be called with g.mu held.
func (g *GroupStore) dropMembersLocked(groupID string, gc *GroupContext) {
	for userID := range gc.Members {
		g.unindexLocked(groupID, userID)
	}
}

// unindexLocked removes one user→group edge, deleting the user's entry
// entirely when its set becomes empty. Must be called with g.mu held.
func (g *GroupStore) unindexLocked(groupID, userID string) {
	set := g.userGroups[userID]
	if set == nil {
		return
	}
	delete(set, groupID)
	if len(set) == 0 {
		delete(g.userGroups, userID)
	}
}

// snapshot deep-copies a group context.
func (gc *GroupContext) snapshot() GroupContext {
	cp := *gc
	cp.Messages = append([]Message(nil), gc.Messages...)
	cp.GroupMessages = append([]GroupMessage(nil), gc.GroupMessages...)
	cp.Members = make(map[string]bool, len(gc.Members))
	for id := range gc.Members {
		cp.Members[id] = true
	}
	return cp
}
