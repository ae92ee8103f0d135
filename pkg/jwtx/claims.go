package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type values carried in the "typ" claim. Validation always checks the
// type so an access token can never be presented at the refresh endpoint and
// vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Default token TTLs. Access tokens are deliberately short-lived so family
// revocation propagates within a bounded window even without per-request
// registry checks.
const (
	DefaultAccessTokenTTL  = 10 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the signed claims both token kinds carry. The session family id
// (sid) and generation (gen) tie every token back to its lineage in the
// registry.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the session family identifier.
	SID string `json:"sid,omitempty"`

	// Generation is the rotation counter within the family. Exactly one
	// refresh token per (sid, gen) is ever valid.
	Generation int64 `json:"gen"`

	// Scopes granted to this token, e.g. ["profile:read"].
	Scopes []string `json:"scopes,omitempty"`

	// TokenType distinguishes access from refresh tokens.
	TokenType string `json:"typ,omitempty"`
}

// NewClaims builds minimally-correct claims for either token type.
func NewClaims(
	tokenType, subject, sid string,
	generation int64,
	scopes []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:        sid,
		Generation: generation,
		Scopes:     scopes,
		TokenType:  tokenType,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer matches the expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateType checks the token carries the expected "typ" claim.
func (c *Claims) ValidateType(expected string) error {
	if c.TokenType != expected {
		return ErrTokenType
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// HasScope reports whether the claims grant the given scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}
