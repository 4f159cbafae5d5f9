package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ToolConfigStore persists per-user tool enablement, credentials, and
// granted action lists.
type ToolConfigStore struct {
	db *DB
}

// NewToolConfigStore returns a tool config store that uses the given DB.
func NewToolConfigStore(db *DB) *ToolConfigStore {
	return &ToolConfigStore{db: db}
}

// LoadAll returns every config row for the given user. A missing table
// surfaces as ErrMissingTable so callers can degrade to an empty set.
func (s *ToolConfigStore) LoadAll(ctx context.Context, userID string) ([]*UserToolConfig, error) {
	query := s.db.rebind(`SELECT user_id, tool_id, enabled, credential, permissions, config, created_at, updated_at
		FROM user_tool_configs WHERE user_id = ?`)
	rows, err := s.db.SQLDB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("tool configs load: %w", s.db.translate(err))
	}
	defer func() { _ = rows.Close() }()

	var out []*UserToolConfig
	for rows.Next() {
		cfg, err := scanToolConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("tool configs scan: %w", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tool configs rows: %w", s.db.translate(err))
	}
	return out, nil
}

// Upsert writes the config row for (cfg.UserID, cfg.ToolID), creating
// it on first enable. Idempotent; last write wins under concurrency.
func (s *ToolConfigStore) Upsert(ctx context.Context, cfg *UserToolConfig) error {
	permsJSON, err := json.Marshal(cfg.Permissions)
	if err != nil {
		return fmt.Errorf("tool config upsert: marshal permissions: %w", err)
	}
	if cfg.Config == nil {
		cfg.Config = map[string]any{}
	}
	confJSON, err := json.Marshal(cfg.Config)
	if err != nil {
		return fmt.Errorf("tool config upsert: marshal config: %w", err)
	}
	now := time.Now().UTC()
	query := s.db.rebind(`INSERT INTO user_tool_configs
		(user_id, tool_id, enabled, credential, permissions, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, tool_id) DO UPDATE SET
			enabled = excluded.enabled,
			credential = excluded.credential,
			permissions = excluded.permissions,
			config = excluded.config,
			updated_at = excluded.updated_at`)
	_, err = s.db.SQLDB().ExecContext(ctx, query,
		cfg.UserID, cfg.ToolID, cfg.Enabled, cfg.Credential,
		string(permsJSON), string(confJSON),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("tool config upsert: %w", s.db.translate(err))
	}
	cfg.UpdatedAt = now
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	return nil
}

// SetEnabled flips the enabled flag for an existing row. Permissions
// and credential are left untouched.
func (s *ToolConfigStore) SetEnabled(ctx context.Context, userID, toolID string, enabled bool) error {
	query := s.db.rebind(`UPDATE user_tool_configs SET enabled = ?, updated_at = ?
		WHERE user_id = ? AND tool_id = ?`)
	res, err := s.db.SQLDB().ExecContext(ctx, query,
		enabled, time.Now().UTC().Format(time.RFC3339), userID, toolID)
	if err != nil {
		return fmt.Errorf("tool config set enabled: %w", s.db.translate(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("tool config set enabled: no row for %s/%s", userID, toolID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToolConfig(row rowScanner) (*UserToolConfig, error) {
	var cfg UserToolConfig
	var permsJSON, confJSON, createdAt, updatedAt string
	if err := row.Scan(&cfg.UserID, &cfg.ToolID, &cfg.Enabled, &cfg.Credential,
		&permsJSON, &confJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if permsJSON != "" {
		_ = json.Unmarshal([]byte(permsJSON), &cfg.Permissions)
	}
	if confJSON != "" {
		_ = json.Unmarshal([]byte(confJSON), &cfg.Config)
	}
	cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &cfg, nil
}
