package service

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/audit"
	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/store"
	"github.com/halcyonsec/authcore/pkg/cryptox"
	"github.com/halcyonsec/authcore/pkg/idx"
	"github.com/halcyonsec/authcore/pkg/jwtx"
)

// DefaultKeyGracePeriod is how long a retired signing key keeps verifying
// outstanding tokens before housekeeping deletes it. Must exceed the longest
// refresh TTL or rotation strands live sessions.
const DefaultKeyGracePeriod = 30 * 24 * time.Hour

// KeyRotationService rotates the Ed25519 token-signing keys. Private key
// material is sealed by the encryption keyring before persistence, so a
// database dump alone cannot forge tokens.
type KeyRotationService struct {
	Store      store.Store
	Keyring    *cryptox.Keyring
	KeyManager *jwtx.KeyManager
	Audit      *audit.Dispatcher

	GracePeriod time.Duration
}

func (s *KeyRotationService) gracePeriod() time.Duration {
	if s.GracePeriod > 0 {
		return s.GracePeriod
	}
	return DefaultKeyGracePeriod
}

// RotateKeyResult reports what a rotation did.
type RotateKeyResult struct {
	NewKid      string   `json:"new_kid"`
	RetiredKids []string `json:"retired_kids,omitempty"`
	ActiveKids  []string `json:"active_kids"`
}

// RotateKey generates a fresh signing key and, when retireExisting is set,
// retires the current ones. Retired keys stop signing immediately but keep
// verifying until their grace period lapses.
func (s *KeyRotationService) RotateKey(ctx context.Context, retireExisting bool) (*RotateKeyResult, error) {
	kid := jwtx.NewKeyID()

	pemData, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, depErr(err)
	}

	sealed, err := s.Keyring.Seal(pemData, []byte(kid))
	if err != nil {
		return nil, depErr(err)
	}

	now := time.Now().UTC()
	newKey := domain.SigningKey{
		ID:               idx.New().String(),
		Kid:              kid,
		Algorithm:        "EdDSA",
		PrivateKeySealed: sealed,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.gracePeriod()),
	}

	var retired []string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.SigningKeys().CreateSigningKey(ctx, newKey); err != nil {
			return err
		}

		if !retireExisting {
			return nil
		}
		active, err := tx.SigningKeys().ListActiveSigningKeys(ctx)
		if err != nil {
			return err
		}
		for _, key := range active {
			if key.Kid == kid {
				continue
			}
			if err := tx.SigningKeys().RetireSigningKey(ctx, key.Kid); err != nil {
				return fmt.Errorf("retire key %s: %w", key.Kid, err)
			}
			retired = append(retired, key.Kid)
		}
		return nil
	})
	if err != nil {
		return nil, depErr(err)
	}

	// Update the in-memory manager only after the database agrees.
	if _, err := s.KeyManager.AddSignerPEM(kid, pemData); err != nil {
		return nil, depErr(err)
	}
	for _, retiredKid := range retired {
		s.KeyManager.RetireSigner(retiredKid)
	}

	s.Audit.Emit(audit.Event{
		EventType: audit.EventKeyRotated,
		Success:   true,
		Metadata:  map[string]string{"kid": kid},
	})

	return &RotateKeyResult{
		NewKid:      kid,
		RetiredKids: retired,
		ActiveKids:  s.KeyManager.ActiveKIDs(),
	}, nil
}

// LoadPersistedKeys hydrates the key manager from the store at startup.
// Active keys become signers; retired keys inside their grace period are
// loaded verify-only. Returns how many signing keys are active.
func (s *KeyRotationService) LoadPersistedKeys(ctx context.Context) (int, error) {
	keys, err := s.Store.SigningKeys().ListAllSigningKeys(ctx)
	if err != nil {
		return 0, depErr(err)
	}

	active := 0
	for _, key := range keys {
		pemData, err := s.Keyring.Open(key.PrivateKeySealed, []byte(key.Kid))
		if err != nil {
			return 0, fmt.Errorf("unseal signing key %s: %w", key.Kid, depErr(err))
		}
		if _, err := s.KeyManager.AddSignerPEM(key.Kid, pemData); err != nil {
			return 0, depErr(err)
		}
		if key.RetiredAt != nil {
			s.KeyManager.RetireSigner(key.Kid)
			continue
		}
		active++
	}
	return active, nil
}

// Bootstrap ensures at least one active signing key exists, generating one
// on a fresh database.
func (s *KeyRotationService) Bootstrap(ctx context.Context) error {
	active, err := s.LoadPersistedKeys(ctx)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	_, err = s.RotateKey(ctx, false)
	return err
}
