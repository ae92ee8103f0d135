package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/halcyonsec/authcore/internal/authcore/service"
	"github.com/halcyonsec/authcore/pkg/httpx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

// AuthenticateHandler serves POST /v1/authenticate.
//
// A correct secret under acceptable risk returns a token pair directly.
// When risk evaluation demands a second factor the response is 401 with an
// already-issued challenge the client completes at /v1/mfa/verify.
type AuthenticateHandler struct {
	Auth *service.AuthService
}

type authenticateRequest struct {
	PrincipalID string `json:"principal_id"`
	Secret      string `json:"secret"`
	Scope       string `json:"scope,omitempty"`
	DeviceFP    string `json:"device_fingerprint,omitempty"`
}

func (h *AuthenticateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authenticateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PrincipalID = strings.TrimSpace(req.PrincipalID)
	if req.PrincipalID == "" || req.Secret == "" {
		errInvalidRequest.WriteError(w)
		return
	}

	scope := httpx.ParseSpaceDelimitedFields(req.Scope)
	attempt := riskContextFrom(r, req.DeviceFP)

	res, err := h.Auth.Authenticate(ctx, req.PrincipalID, req.Secret, scope, attempt)

	var mfaErr *service.MFARequiredError
	if errors.As(err, &mfaErr) {
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusUnauthorized, mfaRequiredResponse{
			Code: "mfa_required",
			Challenge: challengeResponse{
				ChallengeID: res.Challenge.ID,
				Factor:      string(res.Challenge.Kind),
				ExpiresAt:   res.Challenge.ExpiresAt,
			},
		})
		return
	}
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(res.Tokens))
}
