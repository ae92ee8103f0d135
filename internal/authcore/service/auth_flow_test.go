package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/stretchr/testify/require"
)

// riskyContext diverges from calmContext in origin, device and hour, which
// scores HIGH against a principal last seen via calmContext.
func riskyContext() domain.RiskContext {
	return domain.RiskContext{Origin: "203.0.113.66", DeviceFP: "device-z", HourOfDay: 3}
}

func TestAuthenticateLowRiskNoFactorsGoesStraightToTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	res, err := e.auth.Authenticate(ctx, pid, "secret", []string{"profile"}, calmContext())
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	require.Nil(t, res.Challenge)

	claims, err := e.keyManager.Verifier.Verify(res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.EqualValues(t, 0, claims.Generation)
}

func TestAuthenticateStepUpAndComplete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	// Baseline, then enroll TOTP.
	_, err := e.auth.Authenticate(ctx, pid, "secret", nil, calmContext())
	require.NoError(t, err)
	_, err = e.challenge.EnrollFactor(ctx, pid, domain.FactorTOTP, []byte(testTOTPSeed))
	require.NoError(t, err)

	// A divergent context now demands the TOTP factor.
	res, err := e.auth.Authenticate(ctx, pid, "secret", []string{"profile"}, riskyContext())
	var mfaErr *MFARequiredError
	require.ErrorAs(t, err, &mfaErr)
	require.Equal(t, domain.FactorTOTP, mfaErr.Factor)
	require.NotNil(t, res.Challenge)
	require.Nil(t, res.Tokens)

	pair, err := e.auth.CompleteChallenge(ctx, res.Challenge.ID, totpCode(t, time.Now()), riskyContext())
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.Equal(t, "profile", pair.Scope)

	// The challenge is consumed; it cannot mint a second pair.
	_, err = e.auth.CompleteChallenge(ctx, res.Challenge.ID, totpCode(t, time.Now()), riskyContext())
	require.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestAuthenticateStepUpWrongCodeToTerminalFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.auth.Authenticate(ctx, pid, "secret", nil, calmContext())
	require.NoError(t, err)
	_, err = e.challenge.EnrollFactor(ctx, pid, domain.FactorTOTP, []byte(testTOTPSeed))
	require.NoError(t, err)

	res, err := e.auth.Authenticate(ctx, pid, "secret", nil, riskyContext())
	var mfaErr *MFARequiredError
	require.ErrorAs(t, err, &mfaErr)

	for i := 0; i < 3; i++ {
		_, err = e.auth.CompleteChallenge(ctx, res.Challenge.ID, "000000", riskyContext())
		require.ErrorIs(t, err, ErrMFAFailed)
	}

	// Terminal FAILED: a fourth attempt, even with the right code, replays
	// the failure without re-checking anything.
	_, err = e.auth.CompleteChallenge(ctx, res.Challenge.ID, totpCode(t, time.Now()), riskyContext())
	require.ErrorIs(t, err, ErrMFAFailed)

	ch, err := e.store.Challenges().GetChallengeByID(ctx, res.Challenge.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeFailed, ch.Status)
	require.Equal(t, 3, ch.Attempts)
}

func TestAuthenticateScoresAgainstPriorBaseline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.auth.Authenticate(ctx, pid, "secret", nil, calmContext())
	require.NoError(t, err)
	_, err = e.challenge.EnrollFactor(ctx, pid, domain.FactorTOTP, []byte(testTOTPSeed))
	require.NoError(t, err)

	// Verify records the risky context before scoring runs; the step-up must
	// still fire because the change signals compare against the calm baseline
	// that preceded this attempt.
	_, err = e.auth.Authenticate(ctx, pid, "secret", nil, riskyContext())
	require.ErrorAs(t, err, new(*MFARequiredError))

	// The row itself has already moved on to the new context.
	stored, err := e.store.Principals().GetPrincipalByID(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.66", stored.LastOrigin)
	require.Equal(t, "device-z", stored.LastDeviceFP)
}

func TestAuthenticateWrongSecretNeverReachesRisk(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	res, err := e.auth.Authenticate(ctx, pid, "not-it", []string{"profile"}, riskyContext())
	require.ErrorIs(t, err, ErrInvalidCredential)
	require.Nil(t, res)
	require.False(t, errors.As(err, new(*MFARequiredError)))
}
