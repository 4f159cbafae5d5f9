package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MemoryStore persists context records scoped to a user, with substring
// search over content and title.
type MemoryStore struct {
	db *DB
}

// NewMemoryStore returns a memory store that uses the given DB.
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Insert persists a memory entry. An empty ID is assigned. Tags are
// stored as JSON.
func (s *MemoryStore) Insert(ctx context.Context, entry *MemoryEntry) error {
	if entry.ID == "" {
		entry.ID = "mem_" + uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("memory insert: marshal tags: %w", err)
	}
	query := s.db.rebind(`INSERT INTO memories (id, user_id, title, content, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err = s.db.SQLDB().ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Title, entry.Content,
		string(tagsJSON), entry.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("memory insert: %w", s.db.translate(err))
	}
	return nil
}

// SearchContent returns the user's entries whose content contains the
// given fragment, newest first.
func (s *MemoryStore) SearchContent(ctx context.Context, userID, fragment string, limit int) ([]*MemoryEntry, error) {
	return s.search(ctx, userID, "content", fragment, limit)
}

// SearchTitle returns the user's entries whose title contains the
// given fragment, newest first.
func (s *MemoryStore) SearchTitle(ctx context.Context, userID, fragment string, limit int) ([]*MemoryEntry, error) {
	return s.search(ctx, userID, "title", fragment, limit)
}

func (s *MemoryStore) search(ctx context.Context, userID, column, fragment string, limit int) ([]*MemoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := s.db.rebind(`SELECT id, user_id, title, content, tags, created_at
		FROM memories WHERE user_id = ? AND ` + column + ` LIKE ?
		ORDER BY created_at DESC LIMIT ?`)
	rows, err := s.db.SQLDB().QueryContext(ctx, query, userID, "%"+fragment+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", s.db.translate(err))
	}
	defer func() { _ = rows.Close() }()

	var out []*MemoryEntry
	for rows.Next() {
		entry, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("memory scan: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Recent returns the user's newest entries.
func (s *MemoryStore) Recent(ctx context.Context, userID string, limit int) ([]*MemoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.db.rebind(`SELECT id, user_id, title, content, tags, created_at
		FROM memories WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	rows, err := s.db.SQLDB().QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory recent: %w", s.db.translate(err))
	}
	defer func() { _ = rows.Close() }()

	var out []*MemoryEntry
	for rows.Next() {
		entry, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("memory scan: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanMemory(row rowScanner) (*MemoryEntry, error) {
	var entry MemoryEntry
	var tagsJSON, createdAt string
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Title, &entry.Content,
		&tagsJSON, &createdAt); err != nil {
		return nil, err
	}
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &entry.Tags)
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &entry, nil
}
