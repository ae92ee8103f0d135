package service

import (
	"context"
	"testing"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const testTOTPSeed = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

func totpCode(t *testing.T, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(testTOTPSeed, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestSMSChallengeHappyPath(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.challenge.EnrollFactor(ctx, pid, domain.FactorSMS, []byte("+61400000000"))
	require.NoError(t, err)

	ch, err := e.challenge.Issue(ctx, pid, domain.FactorSMS, []string{"profile"})
	require.NoError(t, err)
	require.Equal(t, domain.ChallengePending, ch.Status)

	code := e.dispatcher.lastCode(pid)
	require.Len(t, code, 6)

	got, err := e.challenge.Verify(ctx, ch.ID, code)
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeVerified, got.Status)
	require.Equal(t, []string{"profile"}, got.Scope)
}

func TestVerifyIdempotentAfterVerified(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.challenge.EnrollFactor(ctx, pid, domain.FactorSMS, []byte("+61400000000"))
	require.NoError(t, err)
	ch, err := e.challenge.Issue(ctx, pid, domain.FactorSMS, nil)
	require.NoError(t, err)

	code := e.dispatcher.lastCode(pid)
	first, err := e.challenge.Verify(ctx, ch.ID, code)
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeVerified, first.Status)

	// Repeat verification, even with a wrong code, replays the verdict
	// without touching the attempt counter.
	second, err := e.challenge.Verify(ctx, ch.ID, "000000")
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeVerified, second.Status)
	require.Equal(t, first.Attempts, second.Attempts)
}

func TestChallengeFailsClosedAfterAttemptLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.challenge.EnrollFactor(ctx, pid, domain.FactorSMS, []byte("+61400000000"))
	require.NoError(t, err)
	ch, err := e.challenge.Issue(ctx, pid, domain.FactorSMS, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := e.challenge.Verify(ctx, ch.ID, "000000")
		require.ErrorIs(t, err, ErrMFAFailed)
	}

	got, err := e.challenge.Verify(ctx, ch.ID, e.dispatcher.lastCode(pid))
	require.ErrorIs(t, err, ErrMFAFailed)
	require.Equal(t, domain.ChallengeFailed, got.Status)
	require.Equal(t, 3, got.Attempts) // replay does not advance the counter
}

func TestChallengeExpiry(t *testing.T) {
	e := newEnv(t)
	e.challenge.TTL = 10 * time.Millisecond
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.challenge.EnrollFactor(ctx, pid, domain.FactorEmail, []byte("u@example.com"))
	require.NoError(t, err)
	ch, err := e.challenge.Issue(ctx, pid, domain.FactorEmail, nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	got, err := e.challenge.Verify(ctx, ch.ID, e.dispatcher.lastCode(pid))
	require.ErrorIs(t, err, ErrMFAExpired)
	require.Equal(t, domain.ChallengeExpired, got.Status)

	// Expired is terminal; the verdict replays.
	_, err = e.challenge.Verify(ctx, ch.ID, e.dispatcher.lastCode(pid))
	require.ErrorIs(t, err, ErrMFAExpired)
}

func TestTOTPChallengeWithSkew(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.challenge.EnrollFactor(ctx, pid, domain.FactorTOTP, []byte(testTOTPSeed))
	require.NoError(t, err)

	ch, err := e.challenge.Issue(ctx, pid, domain.FactorTOTP, nil)
	require.NoError(t, err)
	require.Empty(t, e.dispatcher.lastCode(pid)) // nothing dispatched for TOTP

	// A code from the previous step still passes (skew of one step).
	got, err := e.challenge.Verify(ctx, ch.ID, totpCode(t, time.Now().Add(-30*time.Second)))
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeVerified, got.Status)
}

func TestTOTPChallengeRejectsStaleCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.challenge.EnrollFactor(ctx, pid, domain.FactorTOTP, []byte(testTOTPSeed))
	require.NoError(t, err)
	ch, err := e.challenge.Issue(ctx, pid, domain.FactorTOTP, nil)
	require.NoError(t, err)

	// Two steps back is outside the skew window.
	_, err = e.challenge.Verify(ctx, ch.ID, totpCode(t, time.Now().Add(-90*time.Second)))
	require.ErrorIs(t, err, ErrMFAFailed)
}

func TestBiometricChallenge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	assertion := "device-bound-assertion-material"
	_, err := e.challenge.EnrollFactor(ctx, pid, domain.FactorBiometric, []byte(assertion))
	require.NoError(t, err)

	ch, err := e.challenge.Issue(ctx, pid, domain.FactorBiometric, nil)
	require.NoError(t, err)

	_, err = e.challenge.Verify(ctx, ch.ID, "wrong-assertion")
	require.ErrorIs(t, err, ErrMFAFailed)

	got, err := e.challenge.Verify(ctx, ch.ID, assertion)
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeVerified, got.Status)
}

func TestIssueRequiresEnrollment(t *testing.T) {
	e := newEnv(t)
	pid := e.register(t, "secret")

	_, err := e.challenge.Issue(context.Background(), pid, domain.FactorTOTP, nil)
	require.ErrorIs(t, err, ErrFactorNotEnrolled)
}

func TestIssueSurfacesDispatchFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pid := e.register(t, "secret")

	_, err := e.challenge.EnrollFactor(ctx, pid, domain.FactorSMS, []byte("+61400000000"))
	require.NoError(t, err)

	e.dispatcher.fail = true
	_, err = e.challenge.Issue(ctx, pid, domain.FactorSMS, nil)
	require.ErrorIs(t, err, ErrDependencyUnavailable)
}

func TestVerifyUnknownChallenge(t *testing.T) {
	e := newEnv(t)

	_, err := e.challenge.Verify(context.Background(), "missing", "123456")
	require.ErrorIs(t, err, ErrChallengeNotFound)
}
