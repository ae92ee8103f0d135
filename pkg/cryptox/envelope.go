package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	// ErrKeyNotFound reports a blob sealed under a key version this keyring
	// does not hold (or no longer holds after its retention window).
	ErrKeyNotFound = errors.New("cryptox: key version not found")

	// ErrIntegrityFailure reports a blob whose authentication tag did not
	// verify: tampering, truncation, or a wrong additional-data binding.
	ErrIntegrityFailure = errors.New("cryptox: ciphertext integrity failure")
)

const (
	masterKeySize = 32 // AES-256
	dataKeySize   = 32
	keyIDSize     = 8 // raw bytes; 11 chars base64url
)

// Keyring envelope-encrypts long-lived secrets (MFA seeds, refresh-token
// signing material). Each Seal generates a fresh data key for the payload and
// wraps it under the current master key version; the version id is embedded
// in the blob so Open can resolve the right key after rotations.
type Keyring struct {
	mu      sync.RWMutex
	keys    map[string]*keyVersion
	current string
}

type keyVersion struct {
	id        string
	aead      cipher.AEAD
	createdAt time.Time
	retiredAt *time.Time
}

// NewKeyring creates a keyring with a single active version derived from the
// provided master key material. Arbitrary-length material is accepted and
// hashed down to an AES-256 key.
func NewKeyring(material []byte) (*Keyring, error) {
	k := &Keyring{keys: make(map[string]*keyVersion)}
	if _, err := k.addVersion(material); err != nil {
		return nil, err
	}
	return k, nil
}

// Rotate derives a fresh random master key version and makes it current.
// Previous versions remain available for Open until retired.
func (k *Keyring) Rotate() (string, error) {
	material := make([]byte, masterKeySize)
	if _, err := rand.Read(material); err != nil {
		return "", fmt.Errorf("cryptox: generate rotation key: %w", err)
	}
	return k.addVersion(material)
}

// AddVersion registers externally supplied key material as a new current
// version. This is how a key-management collaborator feeds rotations in.
func (k *Keyring) AddVersion(material []byte) (string, error) {
	return k.addVersion(material)
}

func (k *Keyring) addVersion(material []byte) (string, error) {
	if len(material) == 0 {
		return "", errors.New("cryptox: empty key material")
	}

	derived := sha256.Sum256(material)
	block, err := aes.NewCipher(derived[:])
	if err != nil {
		return "", fmt.Errorf("cryptox: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cryptox: create GCM: %w", err)
	}

	idBytes := make([]byte, keyIDSize)
	if _, err := rand.Read(idBytes); err != nil {
		return "", fmt.Errorf("cryptox: generate key id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(idBytes)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[id] = &keyVersion{id: id, aead: aead, createdAt: time.Now().UTC()}
	k.current = id
	return id, nil
}

// CurrentKeyID returns the version id Seal will use.
func (k *Keyring) CurrentKeyID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// RetireBefore drops every non-current version created before t. Data sealed
// under a dropped version must already have been re-sealed by the external
// maintenance job; Open returns ErrKeyNotFound for it afterwards.
func (k *Keyring) RetireBefore(t time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for id, v := range k.keys {
		if id == k.current {
			continue
		}
		if v.createdAt.Before(t) {
			delete(k.keys, id)
			removed++
		}
	}
	return removed
}

// Seal envelope-encrypts plaintext under the current key version. The aad is
// bound into both layers so a blob cannot be replayed under a different
// context (e.g. moving a sealed MFA seed between principals).
//
// Blob layout: [1B kid len][kid][12B wrap nonce][wrapped data key][12B data
// nonce][ciphertext]. Both GCM tags are included by Seal.
func (k *Keyring) Seal(plaintext, aad []byte) ([]byte, error) {
	k.mu.RLock()
	v, ok := k.keys[k.current]
	k.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	dataKey := make([]byte, dataKeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, fmt.Errorf("cryptox: generate data key: %w", err)
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create data cipher: %w", err)
	}
	dataAEAD, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create data GCM: %w", err)
	}

	wrapNonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, wrapNonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate wrap nonce: %w", err)
	}
	wrappedKey := v.aead.Seal(nil, wrapNonce, dataKey, aad)

	dataNonce := make([]byte, dataAEAD.NonceSize())
	if _, err := io.ReadFull(rand.Reader, dataNonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate data nonce: %w", err)
	}
	ciphertext := dataAEAD.Seal(nil, dataNonce, plaintext, aad)

	kid := []byte(v.id)
	blob := make([]byte, 0, 1+len(kid)+len(wrapNonce)+len(wrappedKey)+len(dataNonce)+len(ciphertext))
	blob = append(blob, byte(len(kid)))
	blob = append(blob, kid...)
	blob = append(blob, wrapNonce...)
	blob = append(blob, wrappedKey...)
	blob = append(blob, dataNonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// Open decrypts a blob produced by Seal, resolving the key version embedded
// in it. The same aad passed to Seal must be supplied.
func (k *Keyring) Open(blob, aad []byte) ([]byte, error) {
	if len(blob) < 2 {
		return nil, ErrIntegrityFailure
	}
	kidLen := int(blob[0])
	if len(blob) < 1+kidLen {
		return nil, ErrIntegrityFailure
	}
	kid := string(blob[1 : 1+kidLen])
	rest := blob[1+kidLen:]

	k.mu.RLock()
	v, ok := k.keys[kid]
	k.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	nonceSize := v.aead.NonceSize()
	wrappedLen := dataKeySize + v.aead.Overhead()
	if len(rest) < nonceSize+wrappedLen+nonceSize {
		return nil, ErrIntegrityFailure
	}

	wrapNonce := rest[:nonceSize]
	wrappedKey := rest[nonceSize : nonceSize+wrappedLen]
	dataKey, err := v.aead.Open(nil, wrapNonce, wrappedKey, aad)
	if err != nil {
		return nil, ErrIntegrityFailure
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create data cipher: %w", err)
	}
	dataAEAD, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create data GCM: %w", err)
	}

	tail := rest[nonceSize+wrappedLen:]
	dataNonce := tail[:dataAEAD.NonceSize()]
	ciphertext := tail[dataAEAD.NonceSize():]

	plaintext, err := dataAEAD.Open(nil, dataNonce, ciphertext, aad)
	if err != nil {
		return nil, ErrIntegrityFailure
	}
	return plaintext, nil
}
