package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/audit"
	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/store"
	"github.com/halcyonsec/authcore/pkg/cryptox"
	"github.com/halcyonsec/authcore/pkg/idx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

const (
	// DefaultLockoutThreshold is how many failures inside the window lock
	// the account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutWindow is both the sliding failure window and the lock
	// duration once tripped.
	DefaultLockoutWindow = 15 * time.Minute
)

// CredentialService verifies primary credentials and owns the per-principal
// lockout state machine. All failure counting happens inside a transaction
// so the threshold is exact even under concurrent guessing.
type CredentialService struct {
	Store store.Store
	Audit *audit.Dispatcher

	LockoutThreshold int
	LockoutWindow    time.Duration
}

func (s *CredentialService) threshold() int {
	if s.LockoutThreshold > 0 {
		return s.LockoutThreshold
	}
	return DefaultLockoutThreshold
}

func (s *CredentialService) window() time.Duration {
	if s.LockoutWindow > 0 {
		return s.LockoutWindow
	}
	return DefaultLockoutWindow
}

// Verify checks the presented secret for a principal. On success the lockout
// counter resets and the last-seen context is recorded for risk scoring. On
// failure the counter advances; crossing the threshold locks the account
// until the window elapses or an administrator clears it.
//
// An unknown principal still burns a full hash verification so the response
// time does not reveal which identifiers exist.
func (s *CredentialService) Verify(ctx context.Context, principalID, secret string, attempt domain.RiskContext) (domain.Principal, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	var principal domain.Principal
	var outcome error

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Principals().GetPrincipalByID(ctx, principalID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				cryptox.DummyVerify()
				outcome = ErrInvalidCredential
				return nil
			}
			return err
		}

		if p.Status == domain.PrincipalDisabled {
			cryptox.DummyVerify()
			outcome = ErrPrincipalDisabled
			return nil
		}

		if p.Status == domain.PrincipalLocked {
			if p.LockedUntil != nil && now.After(*p.LockedUntil) {
				// Lock elapsed; clear and fall through to verification.
				if err := tx.Principals().UpdateLockoutState(ctx, p.ID, 0, nil, nil, domain.PrincipalActive); err != nil {
					return err
				}
				p.Status = domain.PrincipalActive
				p.FailureCount = 0
				p.WindowStartedAt = nil
				p.LockedUntil = nil
			} else {
				cryptox.DummyVerify()
				outcome = ErrAccountLocked
				return nil
			}
		}

		cred, err := tx.Credentials().GetActiveCredential(ctx, p.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				cryptox.DummyVerify()
				outcome = ErrInvalidCredential
				return nil
			}
			return err
		}

		if err := cryptox.VerifyPassword(secret, cred.PasswordHash); err != nil {
			if !errors.Is(err, cryptox.ErrPasswordMismatch) {
				return err
			}
			return s.recordFailure(ctx, tx, &p, now, &outcome)
		}

		// Success resets the window entirely.
		if p.FailureCount > 0 || p.WindowStartedAt != nil {
			if err := tx.Principals().UpdateLockoutState(ctx, p.ID, 0, nil, nil, domain.PrincipalActive); err != nil {
				return err
			}
		}
		if err := tx.Principals().UpdateLastContext(ctx, p.ID, attempt.Origin, attempt.DeviceFP); err != nil {
			return err
		}

		principal = p
		return nil
	})
	if err != nil {
		l.Error("credential verification failed", slog.Any("error", err), slog.String("principal_id", principalID))
		return domain.Principal{}, depErr(err)
	}

	if outcome != nil {
		s.Audit.Emit(audit.Event{
			EventType:   audit.EventAuthFailure,
			PrincipalID: principalID,
			Origin:      attempt.Origin,
			Success:     false,
			Error:       outcome.Error(),
		})
		if errors.Is(outcome, ErrAccountLocked) {
			s.Audit.Emit(audit.Event{
				EventType:   audit.EventAccountLocked,
				PrincipalID: principalID,
				Origin:      attempt.Origin,
			})
		}
		return domain.Principal{}, outcome
	}

	s.Audit.Emit(audit.Event{
		EventType:   audit.EventAuthSuccess,
		PrincipalID: principal.ID,
		Origin:      attempt.Origin,
		Success:     true,
	})
	return principal, nil
}

// recordFailure advances the sliding-window counter and locks the account
// when the threshold is crossed. Runs inside the caller's transaction.
func (s *CredentialService) recordFailure(ctx context.Context, tx store.Tx, p *domain.Principal, now time.Time, outcome *error) error {
	count := p.FailureCount + 1
	windowStart := p.WindowStartedAt
	if windowStart == nil || now.Sub(*windowStart) > s.window() {
		count = 1
		windowStart = &now
	}

	status := p.Status
	var lockedUntil *time.Time
	if count >= s.threshold() {
		status = domain.PrincipalLocked
		until := now.Add(s.window())
		lockedUntil = &until
	}

	if err := tx.Principals().UpdateLockoutState(ctx, p.ID, count, windowStart, lockedUntil, status); err != nil {
		return err
	}

	*outcome = ErrInvalidCredential
	return nil
}

// RotateCredential replaces the principal's secret and revokes every
// outstanding session family: tokens minted under the old credential must
// not outlive it.
func (s *CredentialService) RotateCredential(ctx context.Context, principalID, newSecret string) error {
	hash, err := cryptox.HashPassword(newSecret)
	if err != nil {
		return depErr(err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		next := domain.Credential{
			ID:           idx.New().String(),
			PrincipalID:  principalID,
			PasswordHash: hash,
		}
		if err := tx.Credentials().ReplaceCredential(ctx, principalID, next); err != nil {
			return err
		}
		return tx.SessionFamilies().RevokeAllFamilies(ctx, principalID, domain.RevokeCredentialRoll)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredential
		}
		return depErr(err)
	}

	s.Audit.Emit(audit.Event{
		EventType:   audit.EventCredentialRotate,
		PrincipalID: principalID,
		Success:     true,
	})
	return nil
}

// Register creates a principal with an initial credential. Returns the new
// principal id.
func (s *CredentialService) Register(ctx context.Context, secret string) (domain.Principal, error) {
	hash, err := cryptox.HashPassword(secret)
	if err != nil {
		return domain.Principal{}, depErr(err)
	}

	p := domain.Principal{
		ID:     idx.New().String(),
		Status: domain.PrincipalActive,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().CreatePrincipal(ctx, p); err != nil {
			return err
		}
		return tx.Credentials().CreateCredential(ctx, domain.Credential{
			ID:           idx.New().String(),
			PrincipalID:  p.ID,
			PasswordHash: hash,
		})
	})
	if err != nil {
		return domain.Principal{}, depErr(err)
	}
	return p, nil
}

// ClearLockout is the administrative unlock.
func (s *CredentialService) ClearLockout(ctx context.Context, principalID string) error {
	err := s.Store.Principals().UpdateLockoutState(ctx, principalID, 0, nil, nil, domain.PrincipalActive)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredential
	}
	if err != nil {
		return depErr(err)
	}
	return nil
}

// SetStatus is the administrative enable/disable switch.
func (s *CredentialService) SetStatus(ctx context.Context, principalID string, status domain.PrincipalStatus) error {
	err := s.Store.Principals().UpdateStatus(ctx, principalID, status)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredential
	}
	if err != nil {
		return depErr(err)
	}
	return nil
}

// Profile assembles the risk profile for a principal: last-seen context plus
// enrolled factor kinds.
func (s *CredentialService) Profile(ctx context.Context, principalID string) (domain.RiskProfile, error) {
	p, err := s.Store.Principals().GetPrincipalByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RiskProfile{}, ErrInvalidCredential
		}
		return domain.RiskProfile{}, depErr(err)
	}
	return s.ProfileOf(ctx, p)
}

// ProfileOf assembles the risk profile from an already-loaded principal.
// Verify records the attempt's context on the row before it returns, so
// callers that need to score that same attempt must build the profile from
// the principal Verify handed back, which still carries the prior baseline.
func (s *CredentialService) ProfileOf(ctx context.Context, p domain.Principal) (domain.RiskProfile, error) {
	factors, err := s.Store.Factors().ListFactors(ctx, p.ID)
	if err != nil {
		return domain.RiskProfile{}, depErr(err)
	}

	kinds := make([]domain.FactorKind, 0, len(factors))
	for _, f := range factors {
		kinds = append(kinds, f.Kind)
	}

	return domain.RiskProfile{
		LastOrigin:      p.LastOrigin,
		LastDeviceFP:    p.LastDeviceFP,
		EnrolledFactors: kinds,
	}, nil
}
