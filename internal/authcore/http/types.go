package http

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

// maxBodyBytes caps request bodies; nothing this API accepts is large.
const maxBodyBytes = 1 << 16

// tokenResponse is the success envelope for authentication and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

func newTokenResponse(pair *domain.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		Scope:        strings.TrimSpace(pair.Scope),
	}
}

// challengeResponse tells the client how to complete a step-up.
type challengeResponse struct {
	ChallengeID string    `json:"challenge_id"`
	Factor      string    `json:"factor"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// mfaRequiredResponse is the 401 body when authentication needs a second
// factor. The embedded challenge is already issued and dispatched.
type mfaRequiredResponse struct {
	Code      string            `json:"error"`
	Challenge challengeResponse `json:"challenge"`
}

type sessionResponse struct {
	FamilyID     string    `json:"family_id"`
	Generation   int64     `json:"generation"`
	Scope        []string  `json:"scope,omitempty"`
	RiskLevel    string    `json:"risk_level"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func newSessionResponse(f domain.SessionFamily) sessionResponse {
	return sessionResponse{
		FamilyID:     f.ID,
		Generation:   f.Generation,
		Scope:        f.Scope,
		RiskLevel:    string(f.RiskLevel),
		CreatedAt:    f.CreatedAt,
		LastActivity: f.LastActivity,
		ExpiresAt:    f.ExpiresAt,
	}
}

type healthChecks struct {
	Database string `json:"database,omitempty"`
	Signer   string `json:"signer,omitempty"`
}

type healthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *healthChecks `json:"checks,omitempty"`
}

// decodeJSON parses a bounded JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		errInvalidBody.WriteError(w)
		return false
	}
	return true
}

// riskContextFrom extracts the contextual signals for risk scoring from the
// request: the caller's network origin, the self-reported device
// fingerprint, and the local hour.
func riskContextFrom(r *http.Request, deviceFP string) domain.RiskContext {
	return domain.RiskContext{
		Origin:    clientIP(r),
		DeviceFP:  deviceFP,
		HourOfDay: time.Now().Hour(),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if _, err := netip.ParseAddr(first); err == nil {
			return first
		}
	}
	host := r.RemoteAddr
	if ap, err := netip.ParseAddrPort(host); err == nil {
		return ap.Addr().String()
	}
	return host
}
