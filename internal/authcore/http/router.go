package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/service"
	"github.com/halcyonsec/authcore/internal/authcore/store"
	"github.com/halcyonsec/authcore/pkg/httpx"
	"github.com/halcyonsec/authcore/pkg/jwtx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store              store.Store
	AuthService        *service.AuthService
	ChallengeService   *service.ChallengeService
	TokenService       *service.TokenService
	SessionService     *service.SessionService
	KeyRotationService *service.KeyRotationService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTokens()
	r.registerSessions()
	r.registerKeys()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// Credential and MFA endpoints take authentication attempts, so they get
	// the strict per-IP budget.
	r.Mux.Handle("POST /v1/authenticate",
		httpx.Chain(&AuthenticateHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/mfa/challenge",
		httpx.Chain(&ChallengeHandler{Auth: r.AuthService, Challenge: r.ChallengeService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/mfa/verify",
		httpx.Chain(&VerifyHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTokens() {
	r.Mux.Handle("POST /v1/token/refresh",
		httpx.Chain(&RefreshHandler{Token: r.TokenService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(&LogoutHandler{Token: r.TokenService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	r.Mux.Handle("GET /v1/sessions",
		httpx.Chain(&SessionsHandler{Sessions: r.SessionService},
			httpx.RequireAuth(r.verifier),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/sessions/revoke",
		httpx.Chain(&RevokeSessionsHandler{Sessions: r.SessionService},
			httpx.RequireAuth(r.verifier),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerKeys() {
	r.Mux.Handle("POST /v1/keys/rotate",
		httpx.Chain(&KeyRotationHandler{KeyRotation: r.KeyRotationService},
			httpx.RequireAuth(r.verifier),
			httpx.RequireAnyScope("admin:write"),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys))
}
