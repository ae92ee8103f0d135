package store

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrStaleGeneration reports a conditional generation advance that
	// matched no row: another caller already rotated, or the family is
	// revoked. The token service treats this as a replay signal.
	ErrStaleGeneration = errors.New("store: stale generation")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. Sub-repositories keep concerns tidy and let transactional
// code use the same interfaces as plain calls.
type Store interface {
	Principals() Principals
	Credentials() Credentials
	Factors() Factors
	Challenges() Challenges
	SessionFamilies() SessionFamilies
	Revocations() Revocations
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and
	// rolling back on error. Multi-step operations that must be atomic
	// (lockout increments, refresh rotation) go through here.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Principals interface {
	// GetPrincipalByID returns a principal by id.
	GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error)

	// CreatePrincipal inserts a new principal (id is provided via ULID).
	CreatePrincipal(ctx context.Context, p domain.Principal) error

	// UpdateStatus sets the account status (administrative operations and
	// lockout transitions).
	UpdateStatus(ctx context.Context, principalID string, status domain.PrincipalStatus) error

	// UpdateLockoutState persists the sliding-window failure counter. Must
	// be called inside a transaction to keep lockout thresholds exact.
	UpdateLockoutState(ctx context.Context, principalID string, failureCount int,
		windowStartedAt, lockedUntil *time.Time, status domain.PrincipalStatus) error

	// UpdateLastContext records the origin and device fingerprint of the
	// latest successful authentication for risk-change signals.
	UpdateLastContext(ctx context.Context, principalID, origin, deviceFP string) error

	// DeletePrincipal cascades to credentials, factors, and families.
	DeletePrincipal(ctx context.Context, principalID string) error
}

type Credentials interface {
	// GetActiveCredential returns the one credential with replaced_at NULL.
	GetActiveCredential(ctx context.Context, principalID string) (domain.Credential, error)

	// CreateCredential inserts a new credential row.
	CreateCredential(ctx context.Context, c domain.Credential) error

	// ReplaceCredential stamps the active credential replaced and inserts
	// the new one. Rotation never edits a credential in place.
	ReplaceCredential(ctx context.Context, principalID string, next domain.Credential) error
}

type Factors interface {
	// CreateFactor enrolls a second factor (sealed secret).
	CreateFactor(ctx context.Context, f domain.MFAFactor) error

	// GetFactorByID fetches one factor.
	GetFactorByID(ctx context.Context, id string) (domain.MFAFactor, error)

	// ListFactors returns all enrolled factors for a principal.
	ListFactors(ctx context.Context, principalID string) ([]domain.MFAFactor, error)

	// GetFactorByKind returns the principal's factor of the given kind.
	GetFactorByKind(ctx context.Context, principalID string, kind domain.FactorKind) (domain.MFAFactor, error)

	// DeleteFactor removes an enrolled factor.
	DeleteFactor(ctx context.Context, id string) error
}

type Challenges interface {
	// CreateChallenge stores a freshly issued challenge.
	CreateChallenge(ctx context.Context, c domain.Challenge) error

	// GetChallengeByID fetches a challenge for verification.
	GetChallengeByID(ctx context.Context, id string) (domain.Challenge, error)

	// UpdateChallengeState persists status and attempt count after a
	// verification attempt.
	UpdateChallengeState(ctx context.Context, id string, status domain.ChallengeStatus, attempts int) error

	// DeleteChallenge removes a consumed challenge so it cannot mint a
	// second token pair.
	DeleteChallenge(ctx context.Context, id string) error

	// DeleteExpiredChallenges is housekeeping; expiry is enforced lazily at
	// verification regardless.
	DeleteExpiredChallenges(ctx context.Context) error
}

type SessionFamilies interface {
	// CreateFamily inserts a new session family at generation 0.
	CreateFamily(ctx context.Context, f domain.SessionFamily) error

	// GetFamilyByID returns a family by id.
	GetFamilyByID(ctx context.Context, id string) (domain.SessionFamily, error)

	// ListActiveFamilies returns the non-revoked, non-expired families for
	// a principal.
	ListActiveFamilies(ctx context.Context, principalID string) ([]domain.SessionFamily, error)

	// AdvanceGeneration performs the atomic check-and-advance: generation
	// moves from expected to expected+1 and the new refresh fingerprint is
	// stored, only if the family still sits at expected and is not revoked.
	// Returns ErrStaleGeneration when no row matched. This is the single
	// point of mutual exclusion in the engine, scoped to one family row.
	AdvanceGeneration(ctx context.Context, familyID string, expected int64, newRefreshHash string, lastActivity time.Time) error

	// RevokeFamily flips the revoked flag with a reason.
	RevokeFamily(ctx context.Context, familyID string, reason domain.RevokeReason) error

	// RevokeAllFamilies bulk-revokes every family for a principal (e.g. on
	// credential rotation).
	RevokeAllFamilies(ctx context.Context, principalID string, reason domain.RevokeReason) error

	// DeleteExpiredFamilies is housekeeping.
	DeleteExpiredFamilies(ctx context.Context) error
}

type Revocations interface {
	// AppendRevocation writes an append-only revocation record.
	AppendRevocation(ctx context.Context, r domain.RevocationRecord) error

	// ListRevocations returns records for a family, newest first.
	ListRevocations(ctx context.Context, familyID string) ([]domain.RevocationRecord, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with sealed private material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// GetSigningKeyByKid fetches a signing key by its key identifier.
	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// ListActiveSigningKeys returns non-retired, non-expired keys, newest
	// first.
	ListActiveSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// ListAllSigningKeys returns every key, including retired ones still in
	// their verification grace period.
	ListAllSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// RetireSigningKey marks a key retired; it verifies but no longer signs.
	RetireSigningKey(ctx context.Context, kid string) error

	// DeleteExpiredSigningKeys removes keys past their grace period.
	DeleteExpiredSigningKeys(ctx context.Context) error
}
