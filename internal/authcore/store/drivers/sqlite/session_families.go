package sqlite

import (
	"context"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/store"
)

type sessionFamiliesRepo struct {
	db dbtx
}

func (r *sessionFamiliesRepo) CreateFamily(ctx context.Context, f domain.SessionFamily) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_families (id, principal_id, generation, refresh_hash, scope,
		                              risk_level, revoked, revoke_reason, created_at,
		                              last_activity, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.PrincipalID, f.Generation, f.RefreshHash, joinScope(f.Scope),
		string(f.RiskLevel), f.Revoked, string(f.RevokeReason), now, now, f.ExpiresAt.UTC())
	return mapConstraint(err)
}

func (r *sessionFamiliesRepo) GetFamilyByID(ctx context.Context, id string) (domain.SessionFamily, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, principal_id, generation, refresh_hash, scope, risk_level,
		       revoked, revoke_reason, created_at, last_activity, expires_at
		FROM session_families WHERE id = ?`, id)
	return scanFamily(row)
}

func (r *sessionFamiliesRepo) ListActiveFamilies(ctx context.Context, principalID string) ([]domain.SessionFamily, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, principal_id, generation, refresh_hash, scope, risk_level,
		       revoked, revoke_reason, created_at, last_activity, expires_at
		FROM session_families
		WHERE principal_id = ? AND revoked = 0 AND expires_at > ?
		ORDER BY created_at DESC`, principalID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionFamily
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AdvanceGeneration is the conditional check-and-advance. The WHERE clause
// is the whole concurrency story: of N racing refreshers exactly one
// matches the expected generation and wins; the rest see zero rows and get
// ErrStaleGeneration.
func (r *sessionFamiliesRepo) AdvanceGeneration(ctx context.Context, familyID string, expected int64, newRefreshHash string, lastActivity time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE session_families
		SET generation = generation + 1, refresh_hash = ?, last_activity = ?
		WHERE id = ? AND generation = ? AND revoked = 0`,
		newRefreshHash, lastActivity.UTC(), familyID, expected)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrStaleGeneration
	}
	return nil
}

func (r *sessionFamiliesRepo) RevokeFamily(ctx context.Context, familyID string, reason domain.RevokeReason) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE session_families SET revoked = 1, revoke_reason = ?
		WHERE id = ? AND revoked = 0`,
		string(reason), familyID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionFamiliesRepo) RevokeAllFamilies(ctx context.Context, principalID string, reason domain.RevokeReason) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE session_families SET revoked = 1, revoke_reason = ?
		WHERE principal_id = ? AND revoked = 0`,
		string(reason), principalID)
	return err
}

func (r *sessionFamiliesRepo) DeleteExpiredFamilies(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_families WHERE expires_at < ?`, time.Now().UTC())
	return err
}

func scanFamily(row rowScanner) (domain.SessionFamily, error) {
	var (
		f            domain.SessionFamily
		scope        string
		riskLevel    string
		revokeReason string
	)
	err := row.Scan(&f.ID, &f.PrincipalID, &f.Generation, &f.RefreshHash, &scope,
		&riskLevel, &f.Revoked, &revokeReason, &f.CreatedAt, &f.LastActivity, &f.ExpiresAt)
	if err != nil {
		return domain.SessionFamily{}, mapNotFound(err)
	}
	f.Scope = splitScope(scope)
	f.RiskLevel = domain.RiskLevel(riskLevel)
	f.RevokeReason = domain.RevokeReason(revokeReason)
	return f, nil
}
