package domain

import "time"

// SigningKey is a persisted token-signing key. The private material is
// envelope-sealed by the encryption keyring before it touches the database.
// Retired keys stay verifiable until ExpiresAt (the grace period), then
// housekeeping deletes them.
type SigningKey struct {
	ID               string
	Kid              string
	Algorithm        string
	PrivateKeySealed []byte
	CreatedAt        time.Time
	RetiredAt        *time.Time
	ExpiresAt        time.Time
}
