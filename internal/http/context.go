package http

import "context"

type contextKey string

const userKey contextKey = "username"

// WithUser stores the authenticated username on the context.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey, username)
}

// UserFrom returns the username bound to the context, empty if absent.
func UserFrom(ctx context.Context) string {
	if u, ok := ctx.Value(userKey).(string); ok {
		return u
	}
	return ""
}
