package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
)

// Principal is the authenticated caller, taken from the access token.
type Principal struct {
	UserID uuid.UUID
	Role   enums.Role
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom reports false on routes that skip Auth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
