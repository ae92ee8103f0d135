package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/store"
	"github.com/halcyonsec/authcore/internal/authcore/store/drivers/sqlite"
	"github.com/halcyonsec/authcore/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedPrincipal(t *testing.T, s *sqlite.Store) string {
	t.Helper()
	id := idx.New().String()
	require.NoError(t, s.Principals().CreatePrincipal(context.Background(), domain.Principal{
		ID:     id,
		Status: domain.PrincipalActive,
	}))
	return id
}

func TestPrincipalLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedPrincipal(t, s)

	p, err := s.Principals().GetPrincipalByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PrincipalActive, p.Status)
	require.Zero(t, p.FailureCount)
	require.Nil(t, p.LockedUntil)

	window := time.Now().UTC().Truncate(time.Second)
	locked := window.Add(15 * time.Minute)
	require.NoError(t, s.Principals().UpdateLockoutState(ctx, id, 5, &window, &locked, domain.PrincipalLocked))

	p, err = s.Principals().GetPrincipalByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PrincipalLocked, p.Status)
	require.Equal(t, 5, p.FailureCount)
	require.NotNil(t, p.LockedUntil)

	require.NoError(t, s.Principals().UpdateLastContext(ctx, id, "203.0.113.7", "fp-abc"))
	p, err = s.Principals().GetPrincipalByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", p.LastOrigin)
	require.Equal(t, "fp-abc", p.LastDeviceFP)

	_, err = s.Principals().GetPrincipalByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCredentialReplaceKeepsSingleActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pid := seedPrincipal(t, s)

	first := domain.Credential{ID: idx.New().String(), PrincipalID: pid, PasswordHash: "hash-1"}
	require.NoError(t, s.Credentials().CreateCredential(ctx, first))

	got, err := s.Credentials().GetActiveCredential(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, "hash-1", got.PasswordHash)

	next := domain.Credential{ID: idx.New().String(), PrincipalID: pid, PasswordHash: "hash-2"}
	require.NoError(t, s.Credentials().ReplaceCredential(ctx, pid, next))

	got, err = s.Credentials().GetActiveCredential(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, "hash-2", got.PasswordHash)
	require.Nil(t, got.ReplacedAt)
}

func TestFactorUniquePerKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pid := seedPrincipal(t, s)

	f := domain.MFAFactor{
		ID:           idx.New().String(),
		PrincipalID:  pid,
		Kind:         domain.FactorTOTP,
		SealedSecret: []byte("sealed"),
	}
	require.NoError(t, s.Factors().CreateFactor(ctx, f))

	dup := f
	dup.ID = idx.New().String()
	require.ErrorIs(t, s.Factors().CreateFactor(ctx, dup), store.ErrAlreadyExists)

	byKind, err := s.Factors().GetFactorByKind(ctx, pid, domain.FactorTOTP)
	require.NoError(t, err)
	require.Equal(t, f.ID, byKind.ID)

	all, err := s.Factors().ListFactors(ctx, pid)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestChallengeStateAndExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pid := seedPrincipal(t, s)

	factor := domain.MFAFactor{
		ID:           idx.New().String(),
		PrincipalID:  pid,
		Kind:         domain.FactorSMS,
		SealedSecret: []byte("sealed"),
	}
	require.NoError(t, s.Factors().CreateFactor(ctx, factor))

	ch := domain.Challenge{
		ID:          idx.New().String(),
		PrincipalID: pid,
		FactorID:    factor.ID,
		Kind:        domain.FactorSMS,
		CodeHash:    "code-hash",
		Scope:       []string{"profile", "orders"},
		Status:      domain.ChallengePending,
		IssuedAt:    time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().Add(-time.Minute), // already expired
	}
	require.NoError(t, s.Challenges().CreateChallenge(ctx, ch))

	got, err := s.Challenges().GetChallengeByID(ctx, ch.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"profile", "orders"}, got.Scope)

	require.NoError(t, s.Challenges().UpdateChallengeState(ctx, ch.ID, domain.ChallengeFailed, 3))
	got, err = s.Challenges().GetChallengeByID(ctx, ch.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeFailed, got.Status)
	require.Equal(t, 3, got.Attempts)

	require.NoError(t, s.Challenges().DeleteExpiredChallenges(ctx))
	_, err = s.Challenges().GetChallengeByID(ctx, ch.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdvanceGenerationIsConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pid := seedPrincipal(t, s)

	fam := domain.SessionFamily{
		ID:          idx.New().String(),
		PrincipalID: pid,
		Generation:  0,
		RefreshHash: "fp-0",
		Scope:       []string{"profile"},
		RiskLevel:   domain.RiskLow,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, s.SessionFamilies().CreateFamily(ctx, fam))

	now := time.Now().UTC()
	require.NoError(t, s.SessionFamilies().AdvanceGeneration(ctx, fam.ID, 0, "fp-1", now))

	// A second advance from the same expected generation must lose.
	err := s.SessionFamilies().AdvanceGeneration(ctx, fam.ID, 0, "fp-x", now)
	require.ErrorIs(t, err, store.ErrStaleGeneration)

	got, err := s.SessionFamilies().GetFamilyByID(ctx, fam.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.Generation)
	require.Equal(t, "fp-1", got.RefreshHash)

	// Revoked families never advance.
	require.NoError(t, s.SessionFamilies().RevokeFamily(ctx, fam.ID, domain.RevokeReplayDetected))
	err = s.SessionFamilies().AdvanceGeneration(ctx, fam.ID, 1, "fp-2", now)
	require.ErrorIs(t, err, store.ErrStaleGeneration)
}

func TestRevokeAllFamilies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pid := seedPrincipal(t, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SessionFamilies().CreateFamily(ctx, domain.SessionFamily{
			ID:          idx.New().String(),
			PrincipalID: pid,
			RefreshHash: "fp",
			RiskLevel:   domain.RiskLow,
			ExpiresAt:   time.Now().UTC().Add(time.Hour),
		}))
	}

	active, err := s.SessionFamilies().ListActiveFamilies(ctx, pid)
	require.NoError(t, err)
	require.Len(t, active, 3)

	require.NoError(t, s.SessionFamilies().RevokeAllFamilies(ctx, pid, domain.RevokeCredentialRoll))

	active, err = s.SessionFamilies().ListActiveFamilies(ctx, pid)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestRevocationsAppendOnlyOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	famID := idx.New().String()
	older := domain.RevocationRecord{
		ID:        idx.New().String(),
		FamilyID:  famID,
		Reason:    domain.RevokeLogout,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	newer := domain.RevocationRecord{
		ID:        idx.New().String(),
		FamilyID:  famID,
		TokenHash: "fp-replayed",
		Reason:    domain.RevokeReplayDetected,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.Revocations().AppendRevocation(ctx, older))
	require.NoError(t, s.Revocations().AppendRevocation(ctx, newer))

	recs, err := s.Revocations().ListRevocations(ctx, famID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, domain.RevokeReplayDetected, recs[0].Reason)
}

func TestSigningKeyRetirement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := domain.SigningKey{
		ID:               idx.New().String(),
		Kid:              "kid-1",
		Algorithm:        "EdDSA",
		PrivateKeySealed: []byte("sealed"),
		ExpiresAt:        time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, s.SigningKeys().CreateSigningKey(ctx, key))

	active, err := s.SigningKeys().ListActiveSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, s.SigningKeys().RetireSigningKey(ctx, "kid-1"))

	active, err = s.SigningKeys().ListActiveSigningKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	// Retired keys stay listable for verification until expiry.
	all, err := s.SigningKeys().ListAllSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].RetiredAt)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pid := idx.New().String()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().CreatePrincipal(ctx, domain.Principal{ID: pid, Status: domain.PrincipalActive}); err != nil {
			return err
		}
		return context.Canceled // force rollback
	})
	require.Error(t, err)

	_, err = s.Principals().GetPrincipalByID(ctx, pid)
	require.ErrorIs(t, err, store.ErrNotFound)
}
