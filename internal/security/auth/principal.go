package auth

import (
	"context"
	"time"

	"github.com/intelliod/ems/internal/domain"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Email     string
	Role      domain.Role
	TokenID   string
	ExpiresAt time.Time
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller stored by WithPrincipal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
