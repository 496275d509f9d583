package invoicing

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/identity"
	"github.com/invoicer/backend/internal/domain/shared"
)

// PrincipalResolver identifies the user on whose behalf an operation runs
type PrincipalResolver interface {
	Resolve(ctx context.Context) (uuid.UUID, error)
}

// PrincipalResolverFunc adapts a function to PrincipalResolver
type PrincipalResolverFunc func(ctx context.Context) (uuid.UUID, error)

// Resolve calls f(ctx)
func (f PrincipalResolverFunc) Resolve(ctx context.Context) (uuid.UUID, error) {
	return f(ctx)
}

// ContextPrincipalResolver reads the principal placed in the request context
// by the JWT middleware.
type ContextPrincipalResolver struct{}

// Resolve returns shared.ErrUnauthenticated when no principal is present
func (ContextPrincipalResolver) Resolve(ctx context.Context) (uuid.UUID, error) {
	id, ok := identity.PrincipalFromContext(ctx)
	if !ok {
		return uuid.Nil, shared.ErrUnauthenticated
	}
	return id, nil
}
