package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"sync"

	"github.com/halcyonsec/authcore/pkg/cryptox"
)

// KeyManager owns the signing keys for an instance and the KeySet used for
// verification and JWKS publishing. Multiple signing keys may be active at
// once; signing is distributed across them so any single key can be retired
// without a token-validity cliff.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Issuer is the issuer claim (iss) validated in tokens. Required.
	Issuer string

	// NumKeys is how many signing keys to generate for ephemeral managers.
	// Defaults to 2, capped at 10.
	NumKeys int
}

// NewEphemeralKeyManager creates a KeyManager with in-memory Ed25519 keys.
// All tokens become invalid on restart; persistent deployments load sealed
// keys from the store instead via NewKeyManager + AddSignerPEM.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	km, err := NewKeyManager(opts.Issuer)
	if err != nil {
		return nil, err
	}

	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 2
	}
	if numKeys > 10 {
		numKeys = 10
	}

	for i := 0; i < numKeys; i++ {
		pemKey, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate signer %d: %w", i+1, err)
		}
		if _, err := km.AddSignerPEM(NewKeyID(), pemKey); err != nil {
			return nil, fmt.Errorf("jwtx: add signer %d: %w", i+1, err)
		}
	}

	return km, nil
}

// NewKeyManager creates an empty KeyManager; callers add signers afterwards.
func NewKeyManager(issuer string) (*KeyManager, error) {
	if issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}

	keyset := NewKeySet()
	return &KeyManager{
		KeySet:   keyset,
		Verifier: NewVerifierEdDSA(keyset, issuer),
	}, nil
}

// AddSignerPEM loads an Ed25519 PKCS8 PEM key as an active signer and
// publishes its public key.
func (m *KeyManager) AddSignerPEM(kid string, pemKey []byte) (Signer, error) {
	signer, err := NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, err
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}
	if err := m.KeySet.AddSigner(signer); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.signers = append(m.signers, signer)
	m.mu.Unlock()
	return signer, nil
}

// GetSigner returns one of the active signers, chosen at random to spread
// signing load across keys.
func (m *KeyManager) GetSigner() Signer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.signers) == 0 {
		return nil
	}
	return m.signers[mrand.IntN(len(m.signers))]
}

// RetireSigner stops signing with the given kid. The public key stays in the
// KeySet so outstanding tokens keep verifying until the grace period ends and
// DropKey removes it.
func (m *KeyManager) RetireSigner(kid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.signers {
		if s.KID() == kid {
			m.signers = append(m.signers[:i], m.signers[i+1:]...)
			return true
		}
	}
	return false
}

// DropKey removes a retired key's public half; tokens signed by it no longer
// verify.
func (m *KeyManager) DropKey(kid string) {
	m.KeySet.Remove(kid)
}

// ActiveKIDs returns the kids currently used for signing.
func (m *KeyManager) ActiveKIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kids := make([]string, 0, len(m.signers))
	for _, s := range m.signers {
		kids = append(kids, s.KID())
	}
	return kids
}

// NewKeyID returns a random URL-safe key identifier.
func NewKeyID() string {
	var b [9]byte
	_, _ = rand.Read(b[:])
	return "key-" + base64.RawURLEncoding.EncodeToString(b[:])
}
