package sqlite

import (
	"context"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO challenges (id, principal_id, factor_id, kind, code_hash, scope,
		                        status, attempts, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PrincipalID, c.FactorID, string(c.Kind), c.CodeHash, joinScope(c.Scope),
		string(c.Status), c.Attempts, c.IssuedAt.UTC(), c.ExpiresAt.UTC())
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallengeByID(ctx context.Context, id string) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, principal_id, factor_id, kind, code_hash, scope, status,
		       attempts, issued_at, expires_at
		FROM challenges WHERE id = ?`, id)

	var (
		c            domain.Challenge
		kind, status string
		scope        string
	)
	err := row.Scan(&c.ID, &c.PrincipalID, &c.FactorID, &kind, &c.CodeHash, &scope,
		&status, &c.Attempts, &c.IssuedAt, &c.ExpiresAt)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	c.Kind = domain.FactorKind(kind)
	c.Status = domain.ChallengeStatus(status)
	c.Scope = splitScope(scope)
	return c, nil
}

func (r *challengesRepo) UpdateChallengeState(ctx context.Context, id string, status domain.ChallengeStatus, attempts int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE challenges SET status = ?, attempts = ? WHERE id = ?`,
		string(status), attempts, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at < ?`, time.Now().UTC())
	return err
}
