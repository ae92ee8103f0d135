package jwtx

import (
	"testing"
	"time"

	"github.com/halcyonsec/authcore/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *KeyManager {
	t.Helper()
	km, err := NewEphemeralKeyManager(KeyManagerOptions{Issuer: "authcore-test", NumKeys: 2})
	require.NoError(t, err)
	return km
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	km := newTestManager(t)

	now := time.Now().UTC()
	claims := NewClaims(TokenTypeAccess, "principal-1", "family-1", 3,
		[]string{"profile:read"}, time.Minute, "authcore-test", now)

	token, err := km.GetSigner().Sign(claims)
	require.NoError(t, err)

	got, err := km.Verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "principal-1", got.Subject)
	require.Equal(t, "family-1", got.SID)
	require.EqualValues(t, 3, got.Generation)
	require.Equal(t, TokenTypeAccess, got.TokenType)
	require.True(t, got.HasScope("profile:read"))
	require.False(t, got.HasScope("admin:write"))
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	t.Parallel()
	km := newTestManager(t)
	other := newTestManager(t)

	claims := NewClaims(TokenTypeAccess, "p", "f", 0, nil, time.Minute, "authcore-test", time.Now().UTC())
	token, err := other.GetSigner().Sign(claims)
	require.NoError(t, err)

	_, err = km.Verifier.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()
	km := newTestManager(t)

	claims := NewClaims(TokenTypeAccess, "p", "f", 0, nil, time.Minute, "authcore-test",
		time.Now().UTC().Add(-time.Hour))
	token, err := km.GetSigner().Sign(claims)
	require.NoError(t, err)

	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()
	km := newTestManager(t)

	claims := NewClaims(TokenTypeAccess, "p", "f", 0, nil, time.Minute, "someone-else", time.Now().UTC())
	token, err := km.GetSigner().Sign(claims)
	require.NoError(t, err)

	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestValidateTypeDistinguishesTokenKinds(t *testing.T) {
	t.Parallel()

	claims := NewClaims(TokenTypeRefresh, "p", "f", 1, nil, time.Minute, "iss", time.Now().UTC())
	require.NoError(t, claims.ValidateType(TokenTypeRefresh))
	require.ErrorIs(t, claims.ValidateType(TokenTypeAccess), ErrTokenType)
}

func TestRetireAndDropKey(t *testing.T) {
	t.Parallel()
	km := newTestManager(t)

	kids := km.ActiveKIDs()
	require.Len(t, kids, 2)

	claims := NewClaims(TokenTypeAccess, "p", "f", 0, nil, time.Minute, "authcore-test", time.Now().UTC())

	// Pin signing to the key we're about to retire.
	var victim Signer
	for {
		victim = km.GetSigner()
		if victim.KID() == kids[0] {
			break
		}
	}
	token, err := victim.Sign(claims)
	require.NoError(t, err)

	require.True(t, km.RetireSigner(kids[0]))
	require.Len(t, km.ActiveKIDs(), 1)

	// Retired key still verifies until dropped.
	_, err = km.Verifier.Verify(token)
	require.NoError(t, err)

	km.DropKey(kids[0])
	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, ErrUnknownKID)
}

func TestAddSignerPEMRejectsGarbage(t *testing.T) {
	t.Parallel()
	km, err := NewKeyManager("authcore-test")
	require.NoError(t, err)

	_, err = km.AddSignerPEM("kid", []byte("not-a-pem"))
	require.Error(t, err)

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	_, err = km.AddSignerPEM("kid", pemKey)
	require.NoError(t, err)
	require.NotNil(t, km.GetSigner())
}
