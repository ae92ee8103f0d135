package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

type credentialsRepo struct {
	db dbtx
}

func (r *credentialsRepo) GetActiveCredential(ctx context.Context, principalID string) (domain.Credential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, principal_id, password_hash, created_at, replaced_at
		FROM credentials
		WHERE principal_id = ? AND replaced_at IS NULL`, principalID)

	var (
		c          domain.Credential
		replacedAt sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.PrincipalID, &c.PasswordHash, &c.CreatedAt, &replacedAt); err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	c.ReplacedAt = mapNullTimePtr(replacedAt)
	return c, nil
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.Credential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, principal_id, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.PrincipalID, c.PasswordHash, time.Now().UTC())
	return mapConstraint(err)
}

// ReplaceCredential stamps the active row and inserts the replacement. Runs
// two statements, so callers rotate inside WithTx.
func (r *credentialsRepo) ReplaceCredential(ctx context.Context, principalID string, next domain.Credential) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET replaced_at = ?
		WHERE principal_id = ? AND replaced_at IS NULL`, now, principalID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, principal_id, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		next.ID, principalID, next.PasswordHash, now)
	return mapConstraint(err)
}
