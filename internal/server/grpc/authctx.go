package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// Caller is the principal behind an authenticated request.
type Caller struct {
	UserID uuid.UUID
	Token  string // raw bearer, revoked by SignOut
}

type callerKey struct{}

// WithCaller stores c in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromCtx returns the caller set by the auth interceptors. A caller
// without a user id does not count.
func CallerFromCtx(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.UserID == uuid.Nil {
		return Caller{}, false
	}
	return c, true
}

// UserIDFromCtx returns the authenticated user id.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	c, ok := CallerFromCtx(ctx)
	return c.UserID, ok
}

func tokenFromCtx(ctx context.Context) string {
	c, _ := CallerFromCtx(ctx)
	return c.Token
}
