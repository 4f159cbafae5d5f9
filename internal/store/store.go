package store

import (
	"errors"
	"time"
)

// ErrMissingTable reports that a backing table does not exist yet.
// The hosted store is migrated by the dashboard backend, so a fresh
// deployment may serve reads before the schema lands; callers that can
// degrade (the capability registry) treat this as an empty result.
var ErrMissingTable = errors.New("store: table does not exist")

// UserToolConfig is one row per (user, tool): whether the tool is
// enabled, the stored credential, and which actions the user has
// authorized the assistant to invoke unattended. Rows are never hard
// deleted; disabling a tool keeps its permissions.
type UserToolConfig struct {
	UserID      string
	ToolID      string
	Enabled     bool
	Credential  string
	Permissions []string
	Config      map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPermission reports whether the given action ID is in the granted set.
func (c *UserToolConfig) HasPermission(actionID string) bool {
	for _, p := range c.Permissions {
		if p == actionID {
			return true
		}
	}
	return false
}

// MemoryEntry is one stored context record.
type MemoryEntry struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	Tags      []string
	CreatedAt time.Time
}

// HasTag reports whether the entry carries the given tag.
func (m *MemoryEntry) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
