package service

import (
	"context"
	"testing"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/audit"
	"github.com/halcyonsec/authcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newKeyRotation(t *testing.T, e *env, km *jwtx.KeyManager) *KeyRotationService {
	t.Helper()
	auditor := audit.NewDispatcher(audit.NoopSink{}, 16)
	t.Cleanup(auditor.Close)
	return &KeyRotationService{
		Store:      e.store,
		Keyring:    e.keyring,
		KeyManager: km,
		Audit:      auditor,
	}
}

func TestBootstrapGeneratesFirstKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	km, err := jwtx.NewKeyManager("test-issuer")
	require.NoError(t, err)
	svc := newKeyRotation(t, e, km)

	require.NoError(t, svc.Bootstrap(ctx))
	require.Len(t, km.ActiveKIDs(), 1)

	// A second bootstrap loads the persisted key instead of minting more.
	km2, err := jwtx.NewKeyManager("test-issuer")
	require.NoError(t, err)
	svc2 := newKeyRotation(t, e, km2)
	require.NoError(t, svc2.Bootstrap(ctx))
	require.Equal(t, km.ActiveKIDs(), km2.ActiveKIDs())
}

func TestRotateRetiresOldKeysButKeepsVerifying(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	km, err := jwtx.NewKeyManager("test-issuer")
	require.NoError(t, err)
	svc := newKeyRotation(t, e, km)
	require.NoError(t, svc.Bootstrap(ctx))

	oldKid := km.ActiveKIDs()[0]
	signer := km.GetSigner()
	oldToken, err := signer.Sign(jwtx.NewClaims(jwtx.TokenTypeAccess, "p1", "fam", 0, nil, time.Hour, "test-issuer", time.Now()))
	require.NoError(t, err)

	res, err := svc.RotateKey(ctx, true)
	require.NoError(t, err)
	require.NotEqual(t, oldKid, res.NewKid)
	require.Contains(t, res.RetiredKids, oldKid)
	require.Equal(t, []string{res.NewKid}, km.ActiveKIDs())

	// Tokens signed by the retired key still verify inside the grace
	// period.
	claims, err := km.Verifier.Verify(oldToken)
	require.NoError(t, err)
	require.Equal(t, "p1", claims.Subject)

	// A fresh manager hydrated from the store agrees: one signer, two
	// verification keys.
	km2, err := jwtx.NewKeyManager("test-issuer")
	require.NoError(t, err)
	svc2 := newKeyRotation(t, e, km2)
	active, err := svc2.LoadPersistedKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, active)
	_, err = km2.Verifier.Verify(oldToken)
	require.NoError(t, err)
}

func TestSealedKeyUnreadableWithWrongKeyring(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	km, err := jwtx.NewKeyManager("test-issuer")
	require.NoError(t, err)
	svc := newKeyRotation(t, e, km)
	require.NoError(t, svc.Bootstrap(ctx))

	keys, err := e.store.SigningKeys().ListAllSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	_, err = e.keyring.Open(keys[0].PrivateKeySealed, []byte("wrong-kid"))
	require.Error(t, err)
}
