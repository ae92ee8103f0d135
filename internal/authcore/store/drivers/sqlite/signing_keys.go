package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

type signingKeysRepo struct {
	db dbtx
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signing_keys (id, kid, algorithm, private_key_sealed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key.ID, key.Kid, key.Algorithm, key.PrivateKeySealed, time.Now().UTC(), key.ExpiresAt.UTC())
	return mapConstraint(err)
}

func (r *signingKeysRepo) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kid, algorithm, private_key_sealed, created_at, retired_at, expires_at
		FROM signing_keys WHERE kid = ?`, kid)
	return scanSigningKey(row)
}

func (r *signingKeysRepo) ListActiveSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	return r.list(ctx, `
		SELECT id, kid, algorithm, private_key_sealed, created_at, retired_at, expires_at
		FROM signing_keys
		WHERE retired_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC`, time.Now().UTC())
}

func (r *signingKeysRepo) ListAllSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	return r.list(ctx, `
		SELECT id, kid, algorithm, private_key_sealed, created_at, retired_at, expires_at
		FROM signing_keys
		WHERE expires_at > ?
		ORDER BY created_at DESC`, time.Now().UTC())
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE signing_keys SET retired_at = ? WHERE kid = ? AND retired_at IS NULL`,
		time.Now().UTC(), kid)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM signing_keys WHERE expires_at < ?`, time.Now().UTC())
	return err
}

func (r *signingKeysRepo) list(ctx context.Context, query string, args ...any) ([]domain.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SigningKey
	for rows.Next() {
		key, err := scanSigningKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func scanSigningKey(row rowScanner) (domain.SigningKey, error) {
	var (
		key       domain.SigningKey
		retiredAt sql.NullTime
	)
	err := row.Scan(&key.ID, &key.Kid, &key.Algorithm, &key.PrivateKeySealed,
		&key.CreatedAt, &retiredAt, &key.ExpiresAt)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	key.RetiredAt = mapNullTimePtr(retiredAt)
	return key, nil
}
