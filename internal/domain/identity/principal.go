package identity

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// WithPrincipal stores the authenticated user id in ctx
func WithPrincipal(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, principalKey{}, userID)
}

// PrincipalFromContext returns the authenticated user id stored in ctx
func PrincipalFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(principalKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
