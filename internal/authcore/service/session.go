package service

import (
	"context"
	"errors"

	"github.com/halcyonsec/authcore/internal/authcore/audit"
	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/halcyonsec/authcore/internal/authcore/store"
)

// SessionService is the read/administer surface over the session family
// registry. Token rotation itself lives in TokenService; this service
// answers "what sessions does this principal have" and handles bulk
// revocation.
type SessionService struct {
	Store store.Store
	Audit *audit.Dispatcher
}

// Get returns one family by id.
func (s *SessionService) Get(ctx context.Context, familyID string) (domain.SessionFamily, error) {
	family, err := s.Store.SessionFamilies().GetFamilyByID(ctx, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SessionFamily{}, ErrTokenRevoked
		}
		return domain.SessionFamily{}, depErr(err)
	}
	return family, nil
}

// ListActive returns the principal's live families, newest first.
func (s *SessionService) ListActive(ctx context.Context, principalID string) ([]domain.SessionFamily, error) {
	families, err := s.Store.SessionFamilies().ListActiveFamilies(ctx, principalID)
	if err != nil {
		return nil, depErr(err)
	}
	return families, nil
}

// RevokeAll kills every live family for a principal, e.g. "log out
// everywhere" or an administrative response to compromise.
func (s *SessionService) RevokeAll(ctx context.Context, principalID string, reason domain.RevokeReason) error {
	if err := s.Store.SessionFamilies().RevokeAllFamilies(ctx, principalID, reason); err != nil {
		return depErr(err)
	}
	s.Audit.Emit(audit.Event{
		EventType:   audit.EventFamilyRevoked,
		PrincipalID: principalID,
		Success:     true,
		Metadata:    map[string]string{"reason": string(reason), "scope": "all"},
	})
	return nil
}

// History returns the revocation records for a family, newest first.
func (s *SessionService) History(ctx context.Context, familyID string) ([]domain.RevocationRecord, error) {
	recs, err := s.Store.Revocations().ListRevocations(ctx, familyID)
	if err != nil {
		return nil, depErr(err)
	}
	return recs, nil
}
