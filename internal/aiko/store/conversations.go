package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Conversation kinds.
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// ConversationRecord is one persisted conversation snapshot.
type ConversationRecord struct {
	Key       string
	Kind      string
	Data      []byte
	UpdatedAt time.Time
}

// SaveConversation upserts a conversation snapshot.
func (s *Store) SaveConversation(ctx context.Context, rec *ConversationRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (key, kind, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, rec.Key, rec.Kind, string(rec.Data), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", rec.Key, err)
	}
	return nil
}

// LoadConversation retrieves one snapshot by key. Returns (nil, nil) when no
// row exists.
func (s *Store) LoadConversation(ctx context.Context, key string) (*ConversationRecord, error) {
	rec := &ConversationRecord{}
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT key, kind, data, updated_at FROM conversations WHERE key = ?
	`, key).Scan(&rec.Key, &rec.Kind, &data, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", key, err)
	}
	rec.Data = []byte(data)
	return rec, nil
}

// ListConversations returns all snapshots of the given kind, newest first.
func (s *Store) ListConversations(ctx context.Context, kind string) ([]*ConversationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, kind, data, updated_at
		FROM conversations
		WHERE kind = ?
		ORDER BY updated_at DESC
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var records []*ConversationRecord
	for rows.Next() {
		rec := &ConversationRecord{}
		var data string
		if err := rows.Scan(&rec.Key, &rec.Kind, &data, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		rec.Data = []byte(data)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return records, nil
}

// DeleteConversation removes one snapshot. Deleting a missing key is not an
// error.
func (s *Store) DeleteConversation(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", key, err)
	}
	return nil
}

// SweepConversationsOlderThan removes snapshots not updated since cutoff and
// returns how many were removed.
func (s *Store) SweepConversationsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep conversations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept conversations: %w", err)
	}
	return n, nil
}
