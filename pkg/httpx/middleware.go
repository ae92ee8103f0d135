package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/halcyonsec/authcore/pkg/jwtx"
)

// Middleware is a standard http.Handler wrapper.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares right-to-left so the first listed runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequireAuth verifies a Bearer access token and stores the principal id,
// scopes, and full claims in the request context. Refresh tokens presented
// here are rejected by the "typ" claim check.
// RequireAnyScope rejects requests whose token carries none of the listed
// scopes. Must run after RequireAuth.
func RequireAnyScope(scopes ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted := ScopesFromContext(r.Context())
			for _, want := range scopes {
				for _, got := range granted {
					if got == want {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			WriteJSON(w, http.StatusForbidden, map[string]string{
				"error": "insufficient_scope",
			})
		})
	}
}

func RequireAuth(verifier jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "invalid_token", "error_description": "missing bearer token",
				})
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(auth[len(prefix):]))
			if err == nil {
				err = claims.ValidateType(jwtx.TokenTypeAccess)
			}
			if err != nil {
				WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "invalid_token", "error_description": "token verification failed",
				})
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, CtxKeyPrincipalID, claims.Subject)
			ctx = context.WithValue(ctx, CtxKeyScopes, claims.Scopes)
			ctx = context.WithValue(ctx, CtxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
