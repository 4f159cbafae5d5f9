package localtools

import (
	"context"
	"fmt"

	"github.com/memodash/memodash/internal/identity"
	"github.com/memodash/memodash/internal/recall"
	"github.com/memodash/memodash/internal/store"
)

// MemoryBackend is what the memory tool needs from the context store.
type MemoryBackend interface {
	Insert(ctx context.Context, entry *store.MemoryEntry) error
	Recent(ctx context.Context, userID string, limit int) ([]*store.MemoryEntry, error)
}

// Searcher retrieves context records for the search action.
type Searcher interface {
	Recall(ctx context.Context, userID, query string) []recall.Result
}

// Memory is the in-process handler behind the dashboard.memory tool.
// Dispatch injects user_id into params; every query is scoped to it.
type Memory struct {
	backend  MemoryBackend
	searcher Searcher
}

func NewMemory(backend MemoryBackend, searcher Searcher) *Memory {
	return &Memory{backend: backend, searcher: searcher}
}

func (m *Memory) Handle(ctx context.Context, actionID string, params map[string]any) (map[string]any, error) {
	userID, err := callerID(ctx, params)
	if err != nil {
		return nil, err
	}

	switch actionID {
	case "search":
		query, _ := params["query"].(string)
		results := m.searcher.Recall(ctx, userID, query)
		return map[string]any{"results": results, "count": len(results)}, nil

	case "save":
		content, _ := params["content"].(string)
		if content == "" {
			return nil, fmt.Errorf("save: content is required")
		}
		title, _ := params["title"].(string)
		entry := &store.MemoryEntry{
			UserID:  userID,
			Title:   title,
			Content: content,
			Tags:    []string{"noted"},
		}
		if err := m.backend.Insert(ctx, entry); err != nil {
			return nil, fmt.Errorf("save: %w", err)
		}
		return map[string]any{"id": entry.ID}, nil

	case "list":
		limit := intParam(params, "limit", 20)
		entries, err := m.backend.Recent(ctx, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		return map[string]any{"memories": entries, "count": len(entries)}, nil

	default:
		return nil, fmt.Errorf("memory: unknown action %q", actionID)
	}
}

// callerID resolves the acting user. Dispatch injects user_id into
// params; direct callers may carry it on the context instead.
func callerID(ctx context.Context, params map[string]any) (string, error) {
	if userID, _ := params["user_id"].(string); userID != "" {
		return userID, nil
	}
	if userID := identity.User(ctx); userID != "" {
		return userID, nil
	}
	return "", fmt.Errorf("caller identity missing")
}

func intParam(params map[string]any, name string, def int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
