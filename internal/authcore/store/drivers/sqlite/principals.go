package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

type principalsRepo struct {
	db dbtx
}

func (r *principalsRepo) GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, failure_count, window_started_at, locked_until,
		       last_origin, last_device_fp, created_at, updated_at
		FROM principals WHERE id = ?`, id)
	return scanPrincipal(row)
}

func (r *principalsRepo) CreatePrincipal(ctx context.Context, p domain.Principal) error {
	now := time.Now().UTC()
	status := p.Status
	if status == "" {
		status = domain.PrincipalActive
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO principals (id, status, failure_count, window_started_at, locked_until,
		                        last_origin, last_device_fp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(status), p.FailureCount,
		mapOptionalTime(p.WindowStartedAt), mapOptionalTime(p.LockedUntil),
		mapStringNull(p.LastOrigin), mapStringNull(p.LastDeviceFP), now, now)
	return mapConstraint(err)
}

func (r *principalsRepo) UpdateStatus(ctx context.Context, principalID string, status domain.PrincipalStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE principals SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), principalID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *principalsRepo) UpdateLockoutState(ctx context.Context, principalID string, failureCount int,
	windowStartedAt, lockedUntil *time.Time, status domain.PrincipalStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE principals
		SET failure_count = ?, window_started_at = ?, locked_until = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		failureCount, mapOptionalTime(windowStartedAt), mapOptionalTime(lockedUntil),
		string(status), time.Now().UTC(), principalID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *principalsRepo) UpdateLastContext(ctx context.Context, principalID, origin, deviceFP string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE principals SET last_origin = ?, last_device_fp = ?, updated_at = ? WHERE id = ?`,
		mapStringNull(origin), mapStringNull(deviceFP), time.Now().UTC(), principalID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *principalsRepo) DeletePrincipal(ctx context.Context, principalID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM principals WHERE id = ?`, principalID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (domain.Principal, error) {
	var (
		p                            domain.Principal
		status                       string
		windowStartedAt, lockedUntil sql.NullTime
		lastOrigin, lastDeviceFP     sql.NullString
	)
	err := row.Scan(&p.ID, &status, &p.FailureCount, &windowStartedAt, &lockedUntil,
		&lastOrigin, &lastDeviceFP, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	p.Status = domain.PrincipalStatus(status)
	p.WindowStartedAt = mapNullTimePtr(windowStartedAt)
	p.LockedUntil = mapNullTimePtr(lockedUntil)
	p.LastOrigin = mapNullString(lastOrigin)
	p.LastDeviceFP = mapNullString(lastDeviceFP)
	return p, nil
}
