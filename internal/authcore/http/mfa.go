package http

import (
	"net/http"
	"strings"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/service"
	"github.com/halcyonsec/authcore/pkg/httpx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

// ChallengeHandler serves POST /v1/mfa/challenge: re-issues a challenge
// when the previous one expired or went terminal FAILED. The principal must
// re-present credentials; a challenge is never minted for an unauthenticated
// caller.
type ChallengeHandler struct {
	Auth      *service.AuthService
	Challenge *service.ChallengeService
}

type challengeRequest struct {
	PrincipalID string `json:"principal_id"`
	Secret      string `json:"secret"`
	Factor      string `json:"factor"`
	Scope       string `json:"scope,omitempty"`
	DeviceFP    string `json:"device_fingerprint,omitempty"`
}

func (h *ChallengeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req challengeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := domain.FactorKind(strings.ToUpper(strings.TrimSpace(req.Factor)))
	if req.PrincipalID == "" || req.Secret == "" || !kind.Valid() {
		errInvalidRequest.WriteError(w)
		return
	}

	attempt := riskContextFrom(r, req.DeviceFP)
	if _, err := h.Auth.Credential.Verify(ctx, req.PrincipalID, req.Secret, attempt); err != nil {
		writeServiceError(w, log, err)
		return
	}

	scope := httpx.ParseSpaceDelimitedFields(req.Scope)
	ch, err := h.Challenge.Issue(ctx, req.PrincipalID, kind, scope)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, challengeResponse{
		ChallengeID: ch.ID,
		Factor:      string(ch.Kind),
		ExpiresAt:   ch.ExpiresAt,
	})
}

// VerifyHandler serves POST /v1/mfa/verify: completes a pending challenge
// and returns the token pair the original authentication was after.
type VerifyHandler struct {
	Auth *service.AuthService
}

type verifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
	DeviceFP    string `json:"device_fingerprint,omitempty"`
}

func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ChallengeID == "" || req.Code == "" {
		errInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Auth.CompleteChallenge(ctx, req.ChallengeID, req.Code, riskContextFrom(r, req.DeviceFP))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}
