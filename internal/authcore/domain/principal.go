package domain

import "time"

// PrincipalStatus is the account state of an identity.
type PrincipalStatus string

const (
	PrincipalActive   PrincipalStatus = "ACTIVE"
	PrincipalLocked   PrincipalStatus = "LOCKED"
	PrincipalDisabled PrincipalStatus = "DISABLED"
)

// Principal is the identity being authenticated. The lockout bookkeeping
// lives on the row so the failure window survives restarts and stays exact
// under concurrent guesses (increments run inside a store transaction).
type Principal struct {
	ID     string
	Status PrincipalStatus

	// Sliding-window lockout state, mutated only by the credential verifier.
	FailureCount    int
	WindowStartedAt *time.Time
	LockedUntil     *time.Time

	// Last observed context, feeding the risk evaluator's change signals.
	LastOrigin   string
	LastDeviceFP string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credential is one primary secret bound to a Principal. Rotation replaces
// the row (stamping ReplacedAt on the old one), never edits it in place. The
// PHC hash string carries algorithm parameters and salt.
type Credential struct {
	ID           string
	PrincipalID  string
	PasswordHash string
	CreatedAt    time.Time
	ReplacedAt   *time.Time
}
