package identity

import "context"

type contextKey struct{}

// WithUser returns a context that carries the given user ID. Use
// User(ctx) to retrieve it. When the request has no authenticated
// user, do not call WithUser.
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, userID)
}

// User returns the user ID from the context, or empty string if not set.
func User(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v := ctx.Value(contextKey{})
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
