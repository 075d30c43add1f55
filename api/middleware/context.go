package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
)

// Identity is the authenticated caller as established by Auth.
type Identity struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext reports false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == uuid.Nil {
		return Identity{}, false
	}
	return id, true
}
