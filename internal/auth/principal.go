package auth

import (
	"context"
	"time"

	"fourwcycle/internal/models"
)

// Principal is the authenticated caller of an admin operation.
type Principal struct {
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal attached to ctx, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// RequireAdmin returns an Unauthorized error unless ctx carries an admin principal.
func RequireAdmin(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok || p.Role != RoleAdmin {
		return nil, models.NewUnauthorizedError("Unauthorized")
	}
	return p, nil
}

// Operator is the principal used by trusted command-line tools.
func Operator(name string) *Principal {
	return &Principal{Subject: name, Role: RoleAdmin}
}
