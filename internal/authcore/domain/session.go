package domain

import "time"

// SessionFamily is the lineage of refresh tokens descended from one
// successful authentication. Generation counts rotations; at most one
// refresh token per (family, generation) is ever valid, and issuing
// generation N+1 invalidates generation N. Mutated only by the token
// issuer's transactional check-and-advance and by revocation triggers.
type SessionFamily struct {
	ID          string
	PrincipalID string

	// Generation is the current rotation counter. The stored RefreshHash is
	// the fingerprint of the one valid refresh token at this generation.
	Generation  int64
	RefreshHash string

	Scope     []string
	RiskLevel RiskLevel

	Revoked      bool
	RevokeReason RevokeReason

	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// Active reports whether the family can still mint tokens at t.
func (f SessionFamily) Active(t time.Time) bool {
	return !f.Revoked && t.Before(f.ExpiresAt)
}
