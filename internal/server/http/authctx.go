package httpserver

import (
	"context"

	"github.com/and161185/userauth/internal/model"
)

type ctxKey string

const claimsKey ctxKey = "ua.claims"

// WithClaims stores verified token claims in context.
func WithClaims(ctx context.Context, c model.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromCtx fetches claims placed by AuthGate.
func ClaimsFromCtx(ctx context.Context) (model.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(model.Claims)
	return c, ok
}
