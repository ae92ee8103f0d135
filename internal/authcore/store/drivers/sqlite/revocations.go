package sqlite

import (
	"context"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

type revocationsRepo struct {
	db dbtx
}

func (r *revocationsRepo) AppendRevocation(ctx context.Context, rec domain.RevocationRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revocations (id, family_id, token_hash, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.FamilyID, rec.TokenHash, string(rec.Reason), created)
	return mapConstraint(err)
}

func (r *revocationsRepo) ListRevocations(ctx context.Context, familyID string) ([]domain.RevocationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, family_id, token_hash, reason, created_at
		FROM revocations WHERE family_id = ?
		ORDER BY created_at DESC`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RevocationRecord
	for rows.Next() {
		var (
			rec    domain.RevocationRecord
			reason string
		)
		if err := rows.Scan(&rec.ID, &rec.FamilyID, &rec.TokenHash, &reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Reason = domain.RevokeReason(reason)
		out = append(out, rec)
	}
	return out, rows.Err()
}
