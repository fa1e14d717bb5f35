package store

import (
	"context"
	"fmt"
	"time"
)

// CustomPersonaRecord is one persisted user-submitted persona, kept as the
// validated JSON it was submitted with.
type CustomPersonaRecord struct {
	Name      string
	Data      []byte
	CreatedAt time.Time
}

// SaveCustomPersona upserts a custom persona definition.
func (s *Store) SaveCustomPersona(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_personas (name, data, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data
	`, name, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save custom persona %s: %w", name, err)
	}
	return nil
}

// ListCustomPersonas returns all stored custom personas in creation order.
func (s *Store) ListCustomPersonas(ctx context.Context) ([]*CustomPersonaRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, data, created_at FROM custom_personas ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom personas: %w", err)
	}
	defer rows.Close()

	var records []*CustomPersonaRecord
	for rows.Next() {
		rec := &CustomPersonaRecord{}
		var data string
		if err := rows.Scan(&rec.Name, &data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan custom persona: %w", err)
		}
		rec.Data = []byte(data)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating custom personas: %w", err)
	}
	return records, nil
}

// DeleteCustomPersona removes a stored custom persona.
func (s *Store) DeleteCustomPersona(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM custom_personas WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete custom persona %s: %w", name, err)
	}
	return nil
}

// SavePersonaSelection records the active persona for a conversation key.
func (s *Store) SavePersonaSelection(ctx context.Context, conversationKey, persona string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persona_selections (conversation_key, persona, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_key) DO UPDATE SET
			persona = excluded.persona,
			updated_at = excluded.updated_at
	`, conversationKey, persona, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save persona selection for %s: %w", conversationKey, err)
	}
	return nil
}

// PersonaSelections returns the stored selections as key -> persona name.
func (s *Store) PersonaSelections(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conversation_key, persona FROM persona_selections`)
	if err != nil {
		return nil, fmt.Errorf("failed to load persona selections: %w", err)
	}
	defer rows.Close()

	selections := make(map[string]string)
	for rows.Next() {
		var key, persona string
		if err := rows.Scan(&key, &persona); err != nil {
			return nil, fmt.Errorf("failed to scan persona selection: %w", err)
		}
		selections[key] = persona
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating persona selections: %w", err)
	}
	return selections, nil
}

// DeletePersonaSelection removes the stored selection for a conversation key.
func (s *Store) DeletePersonaSelection(ctx context.Context, conversationKey string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM persona_selections WHERE conversation_key = ?`, conversationKey); err != nil {
		return fmt.Errorf("failed to delete persona selection for %s: %w", conversationKey, err)
	}
	return nil
}
