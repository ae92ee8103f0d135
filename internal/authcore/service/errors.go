package service

import (
	"errors"
	"fmt"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

// Error taxonomy surfaced to the transport layer. Raw store and crypto
// errors never cross this boundary; anything unexpected is wrapped as
// ErrDependencyUnavailable.
var (
	ErrInvalidCredential     = errors.New("invalid_credential")
	ErrAccountLocked         = errors.New("account_locked")
	ErrPrincipalDisabled     = errors.New("principal_disabled")
	ErrMFAFailed             = errors.New("mfa_failed")
	ErrMFAExpired            = errors.New("mfa_expired")
	ErrFactorNotEnrolled     = errors.New("factor_not_enrolled")
	ErrChallengeNotFound     = errors.New("challenge_not_found")
	ErrTokenExpired          = errors.New("token_expired")
	ErrTokenRevoked          = errors.New("token_revoked")
	ErrReplayDetected        = errors.New("replay_detected")
	ErrDependencyUnavailable = errors.New("dependency_unavailable")
)

// MFARequiredError is returned by the authentication flow when risk
// evaluation demands a second factor. It carries the factor the caller
// must complete so the transport can steer the client to the challenge
// endpoint.
type MFARequiredError struct {
	PrincipalID string
	Factor      domain.FactorKind
}

func (e *MFARequiredError) Error() string {
	return fmt.Sprintf("mfa_required: %s", e.Factor)
}

// depErr wraps an internal failure as ErrDependencyUnavailable while
// keeping the cause on the chain for logging.
func depErr(err error) error {
	return fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
}
