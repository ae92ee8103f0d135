package domain

import "time"

// ChallengeStatus is the state of an issued MFA challenge. VERIFIED, FAILED
// and EXPIRED are terminal; a retry requires a fresh challenge.
type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "PENDING"
	ChallengeVerified ChallengeStatus = "VERIFIED"
	ChallengeFailed   ChallengeStatus = "FAILED"
	ChallengeExpired  ChallengeStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s ChallengeStatus) Terminal() bool {
	return s == ChallengeVerified || s == ChallengeFailed || s == ChallengeExpired
}

// Challenge is one issued MFA attempt. CodeHash is set for SMS/EMAIL
// challenges (fingerprint of the dispatched code); TOTP and biometric
// challenges verify against the enrolled factor instead. Scope records what
// the pending authentication asked for, so tokens can be minted after
// verification succeeds.
type Challenge struct {
	ID          string
	PrincipalID string
	FactorID    string
	Kind        FactorKind
	CodeHash    string
	Scope       []string
	Status      ChallengeStatus
	Attempts    int
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// ExpiredAt reports whether the challenge's TTL has elapsed at t. Expiry is
// enforced lazily by comparing at verification time; no sweeper is needed
// for correctness.
func (c Challenge) ExpiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt)
}
