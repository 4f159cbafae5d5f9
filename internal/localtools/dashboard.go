package localtools

import (
	"context"
	"fmt"
	"time"
)

// APIKey is one dashboard credential as the key service reports it.
type APIKey struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked,omitempty"`
}

// KeyService is the dashboard backend's key management surface,
// consumed as an external collaborator.
type KeyService interface {
	List(ctx context.Context, userID string) ([]APIKey, error)
	Create(ctx context.Context, userID, label string) (APIKey, error)
	Revoke(ctx context.Context, userID, keyID string) error
}

// APIKeys is the in-process handler behind the dashboard.api_keys tool.
type APIKeys struct {
	keys KeyService
}

func NewAPIKeys(keys KeyService) *APIKeys {
	return &APIKeys{keys: keys}
}

func (a *APIKeys) Handle(ctx context.Context, actionID string, params map[string]any) (map[string]any, error) {
	userID, err := callerID(ctx, params)
	if err != nil {
		return nil, err
	}

	switch actionID {
	case "list":
		keys, err := a.keys.List(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list keys: %w", err)
		}
		return map[string]any{"keys": keys, "count": len(keys)}, nil

	case "create":
		label, _ := params["label"].(string)
		if label == "" {
			return nil, fmt.Errorf("create key: label is required")
		}
		key, err := a.keys.Create(ctx, userID, label)
		if err != nil {
			return nil, fmt.Errorf("create key: %w", err)
		}
		return map[string]any{"key": key}, nil

	case "revoke":
		keyID, _ := params["key_id"].(string)
		if keyID == "" {
			return nil, fmt.Errorf("revoke key: key_id is required")
		}
		if err := a.keys.Revoke(ctx, userID, keyID); err != nil {
			return nil, fmt.Errorf("revoke key: %w", err)
		}
		return map[string]any{"revoked": keyID}, nil

	default:
		return nil, fmt.Errorf("api_keys: unknown action %q", actionID)
	}
}

// UsageSummary is one billing-period rollup from the usage service.
type UsageSummary struct {
	Period       string `json:"period"`
	Requests     int64  `json:"requests"`
	StoredBytes  int64  `json:"stored_bytes"`
	MemoriesHeld int64  `json:"memories_held"`
}

// UsageService is the dashboard backend's usage reporting surface.
type UsageService interface {
	Summary(ctx context.Context, userID, period string) (UsageSummary, error)
}

// Usage is the in-process handler behind the dashboard.usage tool.
type Usage struct {
	usage UsageService
}

func NewUsage(usage UsageService) *Usage {
	return &Usage{usage: usage}
}

func (u *Usage) Handle(ctx context.Context, actionID string, params map[string]any) (map[string]any, error) {
	userID, err := callerID(ctx, params)
	if err != nil {
		return nil, err
	}

	switch actionID {
	case "summary":
		period, _ := params["period"].(string)
		if period == "" {
			period = "month"
		}
		summary, err := u.usage.Summary(ctx, userID, period)
		if err != nil {
			return nil, fmt.Errorf("usage summary: %w", err)
		}
		return map[string]any{"summary": summary}, nil

	default:
		return nil, fmt.Errorf("usage: unknown action %q", actionID)
	}
}
