package capability

import "context"

// Handler executes actions for a local-kind tool in process.
type Handler interface {
	Handle(ctx context.Context, actionID string, params map[string]any) (map[string]any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, actionID string, params map[string]any) (map[string]any, error)

func (f HandlerFunc) Handle(ctx context.Context, actionID string, params map[string]any) (map[string]any, error) {
	return f(ctx, actionID, params)
}
