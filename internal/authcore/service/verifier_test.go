package service

import (
	"context"
	"testing"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/stretchr/testify/require"
)

func TestVerifySuccessRecordsContext(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "correct horse")

	p, err := e.credential.Verify(ctx, pid, "correct horse", calmContext())
	require.NoError(t, err)
	require.Equal(t, pid, p.ID)

	stored, err := e.store.Principals().GetPrincipalByID(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, "198.51.100.1", stored.LastOrigin)
	require.Equal(t, "device-a", stored.LastDeviceFP)
}

func TestVerifyUnknownPrincipal(t *testing.T) {
	e := newEnv(t)

	_, err := e.credential.Verify(context.Background(), "nope", "whatever", calmContext())
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestLockoutAfterThresholdEvenWithCorrectSecret(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "right-secret")

	// Threshold is 3 in the test env. Burn three wrong guesses.
	for i := 0; i < 3; i++ {
		_, err := e.credential.Verify(ctx, pid, "wrong-secret", calmContext())
		require.ErrorIs(t, err, ErrInvalidCredential)
	}

	// The correct secret is now refused until the window elapses.
	_, err := e.credential.Verify(ctx, pid, "right-secret", calmContext())
	require.ErrorIs(t, err, ErrAccountLocked)

	// Window elapses; the lock clears on the next attempt.
	time.Sleep(2100 * time.Millisecond)
	_, err = e.credential.Verify(ctx, pid, "right-secret", calmContext())
	require.NoError(t, err)

	stored, err := e.store.Principals().GetPrincipalByID(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, domain.PrincipalActive, stored.Status)
	require.Zero(t, stored.FailureCount)
}

func TestSuccessResetsFailureWindow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	for i := 0; i < 2; i++ {
		_, err := e.credential.Verify(ctx, pid, "bad", calmContext())
		require.ErrorIs(t, err, ErrInvalidCredential)
	}

	_, err := e.credential.Verify(ctx, pid, "secret", calmContext())
	require.NoError(t, err)

	// The counter restarted, so two more failures do not lock.
	for i := 0; i < 2; i++ {
		_, err := e.credential.Verify(ctx, pid, "bad", calmContext())
		require.ErrorIs(t, err, ErrInvalidCredential)
	}
	_, err = e.credential.Verify(ctx, pid, "secret", calmContext())
	require.NoError(t, err)
}

func TestAdminClearLockout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	for i := 0; i < 3; i++ {
		_, _ = e.credential.Verify(ctx, pid, "bad", calmContext())
	}
	_, err := e.credential.Verify(ctx, pid, "secret", calmContext())
	require.ErrorIs(t, err, ErrAccountLocked)

	require.NoError(t, e.credential.ClearLockout(ctx, pid))

	_, err = e.credential.Verify(ctx, pid, "secret", calmContext())
	require.NoError(t, err)
}

func TestDisabledPrincipalRefused(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	require.NoError(t, e.credential.SetStatus(ctx, pid, domain.PrincipalDisabled))

	_, err := e.credential.Verify(ctx, pid, "secret", calmContext())
	require.ErrorIs(t, err, ErrPrincipalDisabled)
}

func TestRotateCredentialRevokesFamilies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "old-secret")

	pair, err := e.token.IssueInitial(ctx, pid, []string{"profile"}, domain.RiskAssessment{Level: domain.RiskLow, TTLScale: 1})
	require.NoError(t, err)

	require.NoError(t, e.credential.RotateCredential(ctx, pid, "new-secret"))

	// Old secret dead, new secret live.
	_, err = e.credential.Verify(ctx, pid, "old-secret", calmContext())
	require.ErrorIs(t, err, ErrInvalidCredential)
	_, err = e.credential.Verify(ctx, pid, "new-secret", calmContext())
	require.NoError(t, err)

	// Tokens minted under the old credential no longer refresh.
	_, err = e.token.Refresh(ctx, pair.RefreshToken, calmContext())
	require.ErrorIs(t, err, ErrTokenRevoked)

	active, err := e.session.ListActive(ctx, pid)
	require.NoError(t, err)
	require.Empty(t, active)
}
