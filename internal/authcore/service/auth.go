package service

import (
	"context"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

// AuthService orchestrates the full authentication flow: credential check,
// risk evaluation, optional MFA step-up, token issuance.
type AuthService struct {
	Credential *CredentialService
	Risk       *RiskService
	Challenge  *ChallengeService
	Token      *TokenService
}

// AuthResult is the outcome of Authenticate. Exactly one of Tokens or
// Challenge is set: Tokens when the attempt went straight through,
// Challenge when risk evaluation demanded a second factor.
type AuthResult struct {
	Tokens    *domain.TokenPair
	Challenge *domain.Challenge
}

// Authenticate runs the primary flow. Under LOW risk (or with nothing
// enrolled) a correct secret yields a token pair directly. When the risk
// assessment requires MFA, a challenge for the demanded factor is issued
// and returned together with an MFARequiredError; the caller completes it
// via CompleteChallenge.
func (s *AuthService) Authenticate(ctx context.Context, principalID, secret string, scope []string, attempt domain.RiskContext) (*AuthResult, error) {
	principal, err := s.Credential.Verify(ctx, principalID, secret, attempt)
	if err != nil {
		return nil, err
	}

	// Failures that preceded this success inside the lockout window feed the
	// velocity signal. Verify returns the pre-reset count.
	if attempt.RecentFailures == 0 {
		attempt.RecentFailures = principal.FailureCount
	}

	// Verify has already stamped this attempt's context onto the row, so the
	// profile must come from the principal it returned: that snapshot still
	// holds the previous origin and device, and those are the baseline the
	// change signals score against.
	profile, err := s.Credential.ProfileOf(ctx, principal)
	if err != nil {
		return nil, err
	}
	assessment := s.Risk.Score(profile, attempt)

	if assessment.RequireMFA {
		ch, err := s.Challenge.Issue(ctx, principal.ID, assessment.RequiredFactor, scope)
		if err != nil {
			return nil, err
		}
		return &AuthResult{Challenge: &ch}, &MFARequiredError{
			PrincipalID: principal.ID,
			Factor:      assessment.RequiredFactor,
		}
	}

	pair, err := s.Token.IssueInitial(ctx, principal.ID, scope, assessment)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: pair}, nil
}

// CompleteChallenge verifies an MFA challenge and, on a VERIFIED verdict,
// issues the token pair the original authentication was after. The risk
// context is re-scored so the pair's lifetimes reflect the present attempt,
// not the one that triggered the step-up.
func (s *AuthService) CompleteChallenge(ctx context.Context, challengeID, code string, attempt domain.RiskContext) (*domain.TokenPair, error) {
	ch, err := s.Challenge.Verify(ctx, challengeID, code)
	if err != nil {
		return nil, err
	}

	profile, err := s.Credential.Profile(ctx, ch.PrincipalID)
	if err != nil {
		return nil, err
	}
	assessment := s.Risk.Score(profile, attempt)

	pair, err := s.Token.IssueInitial(ctx, ch.PrincipalID, ch.Scope, assessment)
	if err != nil {
		return nil, err
	}

	// Consume the challenge so it cannot mint a second pair. Verify stays
	// idempotent for observers, but completion is once-only.
	if err := s.Challenge.consume(ctx, ch.ID); err != nil {
		return nil, err
	}
	return pair, nil
}
