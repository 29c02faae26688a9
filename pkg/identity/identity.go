// Package identity carries the authenticated user id through request
// contexts. It sits below the HTTP middleware and the push-stream transport
// so neither has to import the other.
package identity

import (
	"context"

	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
)

// contextKey keeps the user id out of reach of other packages' context
// values.
type contextKey struct {
	name string
}

var userIDKey = contextKey{"userID"}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID extracts the authenticated user id from the context.
func UserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", pkgerrors.NewNotAuthorized("user context required")
	}
	return userID, nil
}
