package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/audit"
	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/store"
	"github.com/halcyonsec/authcore/pkg/cryptox"
	"github.com/halcyonsec/authcore/pkg/idx"
	"github.com/halcyonsec/authcore/pkg/jwtx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

// TokenService mints, rotates, validates and revokes token pairs. Both
// halves of a pair are signed JWTs; the refresh token additionally has its
// fingerprint pinned in the session family row, so only the single
// most-recently-issued refresh token per family is ever usable.
type TokenService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager
	Risk       *RiskService
	Credential *CredentialService
	Audit      *audit.Dispatcher

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (s *TokenService) accessTTL(scale float64) time.Duration {
	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}
	return scaleTTL(ttl, scale)
}

func (s *TokenService) refreshTTL(scale float64) time.Duration {
	ttl := s.RefreshTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultRefreshTokenTTL
	}
	return scaleTTL(ttl, scale)
}

func scaleTTL(ttl time.Duration, scale float64) time.Duration {
	if scale <= 0 || scale >= 1 {
		return ttl
	}
	return time.Duration(float64(ttl) * scale)
}

// IssueInitial creates a new session family at generation 0 and returns its
// first token pair. Called after credential verification (and MFA, when the
// risk assessment demanded it) has fully succeeded.
func (s *TokenService) IssueInitial(ctx context.Context, principalID string, scope []string, assessment domain.RiskAssessment) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	familyID := idx.New().String()
	refreshTTL := s.refreshTTL(assessment.TTLScale)

	pair, refreshFP, err := s.mint(principalID, familyID, 0, scope, assessment.TTLScale, refreshTTL, now)
	if err != nil {
		return nil, depErr(err)
	}

	family := domain.SessionFamily{
		ID:          familyID,
		PrincipalID: principalID,
		Generation:  0,
		RefreshHash: refreshFP,
		Scope:       scope,
		RiskLevel:   assessment.Level,
		CreatedAt:   now,
		ExpiresAt:   now.Add(refreshTTL),
	}
	if err := s.Store.SessionFamilies().CreateFamily(ctx, family); err != nil {
		return nil, depErr(err)
	}

	s.Audit.Emit(audit.Event{
		EventType:   audit.EventTokenIssued,
		PrincipalID: principalID,
		FamilyID:    familyID,
		RiskLevel:   string(assessment.Level),
		Success:     true,
	})
	return pair, nil
}

// Refresh rotates a presented refresh token.
//
// A refresh token is single-use: its first presentation advances the family
// generation and hands back a new pair; any later presentation carries a
// stale generation and is a replay signal that revokes the entire family.
// Concurrent presentations of the same token are resolved by the conditional
// generation advance, so exactly one caller wins and the loser is treated as
// a replay (fail-closed, even when it is a network retry).
//
// Risk is re-scored on every refresh; a risky context shortens the new
// pair's lifetimes.
func (s *TokenService) Refresh(ctx context.Context, presented string, attempt domain.RiskContext) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	claims, err := s.KeyManager.Verifier.Verify(presented)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenRevoked
	}
	if err := claims.ValidateType(jwtx.TokenTypeRefresh); err != nil {
		return nil, ErrTokenRevoked
	}

	profile, err := s.Credential.Profile(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	assessment := s.Risk.Score(profile, attempt)

	presentedFP := cryptox.FingerprintToken(presented)

	var pair *domain.TokenPair
	var outcome error
	var replayedFamily string

	txErr := s.Store.WithTx(ctx, func(tx store.Tx) error {
		family, err := tx.SessionFamilies().GetFamilyByID(ctx, claims.SID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				outcome = ErrTokenRevoked
				return nil
			}
			return err
		}

		if family.Revoked {
			outcome = ErrTokenRevoked
			return nil
		}
		if now.After(family.ExpiresAt) {
			outcome = ErrTokenExpired
			return nil
		}

		// A stale generation, or a token that is not the pinned current
		// one, means this token was already consumed. Burn the family.
		fpMatch := subtle.ConstantTimeCompare([]byte(presentedFP), []byte(family.RefreshHash)) == 1
		if claims.Generation != family.Generation || !fpMatch {
			if err := s.revokeInTx(ctx, tx, family.ID, presentedFP, domain.RevokeReplayDetected); err != nil {
				return err
			}
			replayedFamily = family.ID
			outcome = ErrReplayDetected
			return nil
		}

		// Rotation never extends the family's hard expiry, so the minted
		// refresh token must not advertise a lifetime past it.
		refreshTTL := min(s.refreshTTL(assessment.TTLScale), family.ExpiresAt.Sub(now))

		next, nextFP, err := s.mint(family.PrincipalID, family.ID, family.Generation+1, family.Scope, assessment.TTLScale, refreshTTL, now)
		if err != nil {
			return err
		}

		err = tx.SessionFamilies().AdvanceGeneration(ctx, family.ID, family.Generation, nextFP, now)
		if errors.Is(err, store.ErrStaleGeneration) {
			// Lost a race after the read; same treatment as a replay.
			if err := s.revokeInTx(ctx, tx, family.ID, presentedFP, domain.RevokeReplayDetected); err != nil {
				return err
			}
			replayedFamily = family.ID
			outcome = ErrReplayDetected
			return nil
		}
		if err != nil {
			return err
		}

		pair = next
		return nil
	})
	if txErr != nil {
		l.Error("refresh failed", slog.Any("error", txErr), slog.String("family_id", claims.SID))
		return nil, depErr(txErr)
	}

	if replayedFamily != "" {
		l.Warn("refresh token replay detected", slog.String("family_id", replayedFamily), slog.String("principal_id", claims.Subject))
		s.Audit.Emit(audit.Event{
			EventType:   audit.EventReplayDetected,
			PrincipalID: claims.Subject,
			FamilyID:    replayedFamily,
			Origin:      attempt.Origin,
			Success:     false,
			Error:       ErrReplayDetected.Error(),
		})
	}
	if outcome != nil {
		return nil, outcome
	}

	s.Audit.Emit(audit.Event{
		EventType:   audit.EventTokenRefreshed,
		PrincipalID: claims.Subject,
		FamilyID:    claims.SID,
		RiskLevel:   string(assessment.Level),
		Success:     true,
	})
	return pair, nil
}

// Revoke marks a family revoked. Outstanding refresh tokens die immediately;
// outstanding access tokens run out their short lifetimes.
func (s *TokenService) Revoke(ctx context.Context, familyID string, reason domain.RevokeReason) error {
	var principalID string

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		family, err := tx.SessionFamilies().GetFamilyByID(ctx, familyID)
		if err != nil {
			return err
		}
		principalID = family.PrincipalID
		if family.Revoked {
			return nil // already revoked; idempotent
		}
		return s.revokeInTx(ctx, tx, familyID, "", reason)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrTokenRevoked
	}
	if err != nil {
		return depErr(err)
	}

	s.Audit.Emit(audit.Event{
		EventType:   audit.EventFamilyRevoked,
		PrincipalID: principalID,
		FamilyID:    familyID,
		Success:     true,
		Metadata:    map[string]string{"reason": string(reason)},
	})
	return nil
}

// Logout revokes the family of the presented refresh token.
func (s *TokenService) Logout(ctx context.Context, presented string) error {
	claims, err := s.KeyManager.Verifier.Verify(presented)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return ErrTokenExpired
		}
		return ErrTokenRevoked
	}
	if err := claims.ValidateType(jwtx.TokenTypeRefresh); err != nil {
		return ErrTokenRevoked
	}
	return s.Revoke(ctx, claims.SID, domain.RevokeLogout)
}

// ValidateAccess checks an access token's signature, expiry, issuer and
// type. It does not consult the registry: access tokens are short-lived by
// design, so family revocation propagates within one access-token lifetime.
// Callers needing immediate revocation check the registry directly.
func (s *TokenService) ValidateAccess(ctx context.Context, token string) (*jwtx.Claims, error) {
	claims, err := s.KeyManager.Verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenRevoked
	}
	if err := claims.ValidateType(jwtx.TokenTypeAccess); err != nil {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// mint signs an access/refresh pair for the given family and generation. The
// refresh TTL is the caller's because rotation caps it at the family's
// remaining lifetime.
func (s *TokenService) mint(principalID, familyID string, generation int64, scope []string, ttlScale float64, refreshTTL time.Duration, now time.Time) (*domain.TokenPair, string, error) {
	signer := s.KeyManager.GetSigner()
	if signer == nil {
		return nil, "", errors.New("no active signing key")
	}

	accessTTL := s.accessTTL(ttlScale)
	access, err := signer.Sign(jwtx.NewClaims(
		jwtx.TokenTypeAccess, principalID, familyID, generation, scope, accessTTL, s.Issuer, now,
	))
	if err != nil {
		return nil, "", err
	}

	refresh, err := signer.Sign(jwtx.NewClaims(
		jwtx.TokenTypeRefresh, principalID, familyID, generation, scope, refreshTTL, s.Issuer, now,
	))
	if err != nil {
		return nil, "", err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    accessTTL,
		Scope:        strings.Join(scope, " "),
	}, cryptox.FingerprintToken(refresh), nil
}

// revokeInTx flips the family and appends the audit-trail record.
func (s *TokenService) revokeInTx(ctx context.Context, tx store.Tx, familyID, tokenHash string, reason domain.RevokeReason) error {
	if err := tx.SessionFamilies().RevokeFamily(ctx, familyID, reason); err != nil {
		return err
	}
	return tx.Revocations().AppendRevocation(ctx, domain.RevocationRecord{
		ID:        idx.New().String(),
		FamilyID:  familyID,
		TokenHash: tokenHash,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
}
