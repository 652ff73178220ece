package handlers

import (
	"context"
)

type ctxKey string

const usernameKey ctxKey = "username"

// NewContextWithUsername returns ctx carrying the authenticated username
func NewContextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromContext extracts the authenticated username from the context
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok
}
