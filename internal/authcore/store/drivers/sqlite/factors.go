package sqlite

import (
	"context"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

type factorsRepo struct {
	db dbtx
}

func (r *factorsRepo) CreateFactor(ctx context.Context, f domain.MFAFactor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_factors (id, principal_id, kind, sealed_secret, enrolled_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.PrincipalID, string(f.Kind), f.SealedSecret, time.Now().UTC())
	return mapConstraint(err)
}

func (r *factorsRepo) GetFactorByID(ctx context.Context, id string) (domain.MFAFactor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, principal_id, kind, sealed_secret, enrolled_at
		FROM mfa_factors WHERE id = ?`, id)
	return scanFactor(row)
}

func (r *factorsRepo) GetFactorByKind(ctx context.Context, principalID string, kind domain.FactorKind) (domain.MFAFactor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, principal_id, kind, sealed_secret, enrolled_at
		FROM mfa_factors WHERE principal_id = ? AND kind = ?`, principalID, string(kind))
	return scanFactor(row)
}

func (r *factorsRepo) ListFactors(ctx context.Context, principalID string) ([]domain.MFAFactor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, principal_id, kind, sealed_secret, enrolled_at
		FROM mfa_factors WHERE principal_id = ?
		ORDER BY enrolled_at`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MFAFactor
	for rows.Next() {
		f, err := scanFactor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *factorsRepo) DeleteFactor(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_factors WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanFactor(row rowScanner) (domain.MFAFactor, error) {
	var (
		f    domain.MFAFactor
		kind string
	)
	if err := row.Scan(&f.ID, &f.PrincipalID, &kind, &f.SealedSecret, &f.EnrolledAt); err != nil {
		return domain.MFAFactor{}, mapNotFound(err)
	}
	f.Kind = domain.FactorKind(kind)
	return f, nil
}
