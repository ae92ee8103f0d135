package http

import (
	"net/http"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/service"
	"github.com/halcyonsec/authcore/pkg/httpx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

// SessionsHandler serves GET /v1/sessions: all active session families for
// the authenticated principal. Requires a valid access token.
type SessionsHandler struct {
	Sessions *service.SessionService
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	principalID := httpx.PrincipalIDFromContext(ctx)
	families, err := h.Sessions.ListActive(ctx, principalID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	out := make([]sessionResponse, 0, len(families))
	for _, f := range families {
		out = append(out, newSessionResponse(f))
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// RevokeSessionsHandler serves POST /v1/sessions/revoke: revokes every
// active family for the authenticated principal, including the one behind
// the presenting access token. The access token itself stays valid until
// its own expiry; only refresh capability is cut.
type RevokeSessionsHandler struct {
	Sessions *service.SessionService
}

func (h *RevokeSessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	principalID := httpx.PrincipalIDFromContext(ctx)
	if err := h.Sessions.RevokeAll(ctx, principalID, domain.RevokeLogout); err != nil {
		writeServiceError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
