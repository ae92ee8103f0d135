package http

import (
	"net/http"

	"github.com/halcyonsec/authcore/internal/authcore/service"
	"github.com/halcyonsec/authcore/pkg/httpx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

// RefreshHandler serves POST /v1/token/refresh. Each refresh token works
// exactly once; presenting a superseded token revokes the whole session
// family and the caller must authenticate again.
type RefreshHandler struct {
	Token *service.TokenService
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	DeviceFP     string `json:"device_fingerprint,omitempty"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		errInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Token.Refresh(ctx, req.RefreshToken, riskContextFrom(r, req.DeviceFP))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

// LogoutHandler serves POST /v1/logout: revokes the session family behind
// the presented refresh token. Idempotent; a second logout of the same
// family also returns 204.
type LogoutHandler struct {
	Token *service.TokenService
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req logoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		errInvalidRequest.WriteError(w)
		return
	}

	if err := h.Token.Logout(ctx, req.RefreshToken); err != nil {
		writeServiceError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
