package httpx

import "context"

type ctxKey string

const (
	CtxKeyPrincipalID ctxKey = "principal_id"
	CtxKeyScopes      ctxKey = "scopes"
	CtxKeyClaims      ctxKey = "claims"
)

// PrincipalIDFromContext returns the authenticated principal id, or "" when
// the request did not pass the authn middleware.
func PrincipalIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyPrincipalID).(string); ok {
		return v
	}
	return ""
}

// ScopesFromContext returns the granted scopes for the request.
func ScopesFromContext(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyScopes).([]string); ok {
		return v
	}
	return nil
}
