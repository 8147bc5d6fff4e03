// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/bizcard-snap/internal/ctxkeys"
)

// WithUsername returns a copy of ctx carrying the authenticated username.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxkeys.Username{}, username)
}

// Username returns the authenticated username from the context, or "" if not authenticated.
func Username(ctx context.Context) string {
	if username, ok := ctx.Value(ctxkeys.Username{}).(string); ok {
		return username
	}
	return ""
}
