package domain

import "time"

// TokenPair is what a successful authentication or refresh returns: a
// short-lived self-contained access token and a single-use refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // access token lifetime
	Scope        string        `json:"scope,omitempty"`      // space-delimited
}

// RevokeReason is the closed set of reasons a family or token is revoked.
// Revocation records are append-only.
type RevokeReason string

const (
	RevokeLogout         RevokeReason = "LOGOUT"
	RevokeReplayDetected RevokeReason = "REPLAY_DETECTED"
	RevokeAdmin          RevokeReason = "ADMIN"
	RevokeRotationWindow RevokeReason = "EXPIRED_ROTATION_WINDOW"
	RevokeCredentialRoll RevokeReason = "CREDENTIAL_ROTATED"
)

// RevocationRecord marks a family (and optionally a specific token) revoked.
type RevocationRecord struct {
	ID        string
	FamilyID  string
	TokenHash string
	Reason    RevokeReason
	CreatedAt time.Time
}
