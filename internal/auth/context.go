// ABOUTME: Authentication context for carrying the verified caller across the HTTP boundary
// ABOUTME: Handlers convert it to an explicit caller id immediately via CallerID

package auth

import (
	"context"
)

// AuthContext holds the authenticated identity extracted from a request.
type AuthContext struct {
	ParticipantID int64
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}

// CallerID returns the authenticated participant id, or false if the
// request was not authenticated.
func CallerID(ctx context.Context) (int64, bool) {
	auth := FromContext(ctx)
	if auth == nil {
		return 0, false
	}
	return auth.ParticipantID, true
}
