// ABOUTME: Request-context carriage of the authenticated user ID
// ABOUTME: Handlers read the ID placed there by the auth middleware

package auth

import "context"

type contextKey struct{}

// WithUserID returns a context carrying the authenticated user's ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user ID. The bool is false
// when the request never passed the auth middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
}
