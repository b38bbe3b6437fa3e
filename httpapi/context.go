package httpapi

import (
	"context"

	"garageflow/identity"
)

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

func withPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFromContext returns the principal resolved by the auth middleware
// for this request, if any.
func PrincipalFromContext(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(identity.Principal)
	return p, ok
}
