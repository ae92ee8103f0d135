package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/audit"
	"github.com/halcyonsec/authcore/internal/authcore/channel"
	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/store"
	"github.com/halcyonsec/authcore/pkg/cryptox"
	"github.com/halcyonsec/authcore/pkg/idx"
	"github.com/halcyonsec/authcore/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// DefaultChallengeTTL bounds how long an issued challenge is answerable.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultChallengeAttempts is the failed-attempt budget before a
	// challenge goes terminal FAILED.
	DefaultChallengeAttempts = 3

	// challengeCodeDigits is the length of codes sent over SMS and email.
	challengeCodeDigits = 6
)

// ChallengeService issues and verifies MFA challenges. A challenge is
// answerable only while PENDING; VERIFIED, FAILED and EXPIRED are terminal,
// and verification after a terminal state replays the stored verdict without
// side effects.
type ChallengeService struct {
	Store   store.Store
	Keyring *cryptox.Keyring
	Channel channel.Dispatcher
	Audit   *audit.Dispatcher

	TTL         time.Duration
	MaxAttempts int
}

func (s *ChallengeService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultChallengeTTL
}

func (s *ChallengeService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultChallengeAttempts
}

// EnrollTOTP generates a fresh TOTP seed for the principal, seals it, and
// returns the provisioning URL for the authenticator app. The raw seed never
// touches the database.
func (s *ChallengeService) EnrollTOTP(ctx context.Context, principalID, issuer string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: principalID,
	})
	if err != nil {
		return "", depErr(err)
	}

	if _, err := s.EnrollFactor(ctx, principalID, domain.FactorTOTP, []byte(key.Secret())); err != nil {
		return "", err
	}
	return key.URL(), nil
}

// EnrollFactor seals the factor secret under the current encryption key and
// stores it. For SMS/EMAIL the secret is the delivery address; for BIOMETRIC
// it is the enrolled assertion material.
func (s *ChallengeService) EnrollFactor(ctx context.Context, principalID string, kind domain.FactorKind, secret []byte) (domain.MFAFactor, error) {
	if !kind.Valid() {
		return domain.MFAFactor{}, ErrFactorNotEnrolled
	}

	sealed, err := s.Keyring.Seal(secret, []byte(principalID))
	if err != nil {
		return domain.MFAFactor{}, depErr(err)
	}

	f := domain.MFAFactor{
		ID:           idx.New().String(),
		PrincipalID:  principalID,
		Kind:         kind,
		SealedSecret: sealed,
		EnrolledAt:   time.Now().UTC(),
	}
	if err := s.Store.Factors().CreateFactor(ctx, f); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.MFAFactor{}, store.ErrAlreadyExists
		}
		return domain.MFAFactor{}, depErr(err)
	}
	return f, nil
}

// Issue creates a PENDING challenge for the principal's enrolled factor of
// the given kind. SMS and EMAIL challenges generate a single-use numeric
// code and dispatch it out of band; TOTP and BIOMETRIC verify against the
// enrolled secret, so nothing is dispatched.
//
// The granted scope rides on the challenge so token issuance after a
// VERIFIED verdict knows what the original authentication asked for.
func (s *ChallengeService) Issue(ctx context.Context, principalID string, kind domain.FactorKind, scope []string) (domain.Challenge, error) {
	l := slogx.FromContext(ctx)

	factor, err := s.Store.Factors().GetFactorByKind(ctx, principalID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Challenge{}, ErrFactorNotEnrolled
		}
		return domain.Challenge{}, depErr(err)
	}

	now := time.Now().UTC()
	ch := domain.Challenge{
		ID:          idx.New().String(),
		PrincipalID: principalID,
		FactorID:    factor.ID,
		Kind:        kind,
		Scope:       scope,
		Status:      domain.ChallengePending,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.ttl()),
	}

	if kind == domain.FactorSMS || kind == domain.FactorEmail {
		code, err := cryptox.GenerateNumericCode(challengeCodeDigits)
		if err != nil {
			return domain.Challenge{}, depErr(err)
		}
		ch.CodeHash = cryptox.FingerprintToken(code)

		if err := s.Channel.Send(ctx, principalID, kind, code); err != nil {
			l.Error("challenge dispatch failed", slog.Any("error", err), slog.String("kind", string(kind)))
			return domain.Challenge{}, depErr(err)
		}
	}

	if err := s.Store.Challenges().CreateChallenge(ctx, ch); err != nil {
		return domain.Challenge{}, depErr(err)
	}

	s.Audit.Emit(audit.Event{
		EventType:   audit.EventChallengeIssued,
		PrincipalID: principalID,
		Success:     true,
		Metadata:    map[string]string{"factor": string(kind)},
	})
	return ch, nil
}

// Verify checks a presented code against a challenge.
//
// Terminal states are idempotent: a challenge already VERIFIED returns
// successfully again without re-checking the code or touching the attempt
// counter; FAILED and EXPIRED keep returning their original verdict until
// the caller issues a fresh challenge.
func (s *ChallengeService) Verify(ctx context.Context, challengeID, code string) (domain.Challenge, error) {
	now := time.Now().UTC()

	var result domain.Challenge
	var outcome error
	var replayed bool

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		ch, err := tx.Challenges().GetChallengeByID(ctx, challengeID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				outcome = ErrChallengeNotFound
				return nil
			}
			return err
		}

		// Replay the stored verdict for terminal challenges.
		if ch.Status.Terminal() {
			result = ch
			outcome = terminalOutcome(ch.Status)
			replayed = true
			return nil
		}

		if ch.ExpiredAt(now) {
			ch.Status = domain.ChallengeExpired
			if err := tx.Challenges().UpdateChallengeState(ctx, ch.ID, ch.Status, ch.Attempts); err != nil {
				return err
			}
			result = ch
			outcome = ErrMFAExpired
			return nil
		}

		factor, err := tx.Factors().GetFactorByID(ctx, ch.FactorID)
		if err != nil {
			return err
		}

		ok, err := s.checkCode(ch, factor, code, now)
		if err != nil {
			return err
		}

		if ok {
			ch.Status = domain.ChallengeVerified
			if err := tx.Challenges().UpdateChallengeState(ctx, ch.ID, ch.Status, ch.Attempts); err != nil {
				return err
			}
			result = ch
			return nil
		}

		ch.Attempts++
		if ch.Attempts >= s.maxAttempts() {
			ch.Status = domain.ChallengeFailed
		}
		if err := tx.Challenges().UpdateChallengeState(ctx, ch.ID, ch.Status, ch.Attempts); err != nil {
			return err
		}
		result = ch
		outcome = ErrMFAFailed
		return nil
	})
	if err != nil {
		return domain.Challenge{}, depErr(err)
	}

	if outcome != nil {
		if !replayed && !errors.Is(outcome, ErrChallengeNotFound) {
			s.Audit.Emit(audit.Event{
				EventType:   audit.EventChallengeFailed,
				PrincipalID: result.PrincipalID,
				Success:     false,
				Error:       outcome.Error(),
			})
		}
		return result, outcome
	}

	if replayed {
		return result, nil
	}

	s.Audit.Emit(audit.Event{
		EventType:   audit.EventChallengePassed,
		PrincipalID: result.PrincipalID,
		Success:     true,
		Metadata:    map[string]string{"factor": string(result.Kind)},
	})
	return result, nil
}

// checkCode validates the presented code for the challenge's factor kind.
func (s *ChallengeService) checkCode(ch domain.Challenge, factor domain.MFAFactor, code string, now time.Time) (bool, error) {
	switch ch.Kind {
	case domain.FactorTOTP:
		seed, err := s.Keyring.Open(factor.SealedSecret, []byte(ch.PrincipalID))
		if err != nil {
			return false, err
		}
		// One step of clock skew either side.
		ok, err := totp.ValidateCustom(code, string(seed), now, totp.ValidateOpts{
			Period:    30,
			Skew:      1,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return false, nil // malformed code counts as a failed attempt
		}
		return ok, nil

	case domain.FactorSMS, domain.FactorEmail:
		presented := cryptox.FingerprintToken(code)
		return subtle.ConstantTimeCompare([]byte(presented), []byte(ch.CodeHash)) == 1, nil

	case domain.FactorBiometric:
		enrolled, err := s.Keyring.Open(factor.SealedSecret, []byte(ch.PrincipalID))
		if err != nil {
			return false, err
		}
		presented := cryptox.FingerprintToken(code)
		expected := cryptox.FingerprintToken(string(enrolled))
		return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1, nil
	}
	return false, nil
}

// consume removes a challenge after token issuance. A consumed challenge
// surfaces as ErrChallengeNotFound on any later verify.
func (s *ChallengeService) consume(ctx context.Context, challengeID string) error {
	if err := s.Store.Challenges().DeleteChallenge(ctx, challengeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return depErr(err)
	}
	return nil
}

func terminalOutcome(status domain.ChallengeStatus) error {
	switch status {
	case domain.ChallengeFailed:
		return ErrMFAFailed
	case domain.ChallengeExpired:
		return ErrMFAExpired
	}
	return nil // VERIFIED replays as success
}
