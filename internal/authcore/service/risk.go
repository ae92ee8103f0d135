package service

import "github.com/halcyonsec/authcore/internal/authcore/domain"

// Risk score weights and bucket boundaries. The weights are additive; the
// total lands in one of three buckets.
const (
	riskPointsNewOrigin    = 2
	riskPointsNewDevice    = 2
	riskPointsVelocityLow  = 1 // one or two recent failures
	riskPointsVelocityHigh = 2 // three or more recent failures
	riskPointsOddHour      = 1 // attempt between 00:00 and 05:59 local

	riskMediumFloor = 2
	riskHighFloor   = 4
)

// TTL scale applied to token lifetimes for risky contexts.
const (
	ttlScaleNormal = 1.0
	ttlScaleHigh   = 0.5
)

// RiskService scores authentication and refresh attempts. Scoring is a pure
// function of the profile and the attempt context; the service holds no
// state, so it is trivially safe under concurrency.
//
// The same evaluation runs at initial authentication and again at every
// refresh, so a stolen refresh token presented from a new network and device
// still faces a step-up even though the credential check already happened.
type RiskService struct{}

// Score evaluates one attempt.
//
// A MEDIUM verdict requests MFA when the principal has anything enrolled.
// HIGH demands the strongest enrolled factor and halves token lifetimes; a
// HIGH verdict with nothing enrolled still goes through, but with the
// shortened lifetimes, since there is no factor to challenge.
func (s *RiskService) Score(profile domain.RiskProfile, attempt domain.RiskContext) domain.RiskAssessment {
	points := 0

	// A first-ever sighting of the principal has no baseline to diverge
	// from, so only a changed origin or device counts.
	if profile.LastOrigin != "" && attempt.Origin != "" && attempt.Origin != profile.LastOrigin {
		points += riskPointsNewOrigin
	}
	if profile.LastDeviceFP != "" && attempt.DeviceFP != "" && attempt.DeviceFP != profile.LastDeviceFP {
		points += riskPointsNewDevice
	}

	switch {
	case attempt.RecentFailures >= 3:
		points += riskPointsVelocityHigh
	case attempt.RecentFailures >= 1:
		points += riskPointsVelocityLow
	}

	if attempt.HourOfDay >= 0 && attempt.HourOfDay < 6 {
		points += riskPointsOddHour
	}

	level := domain.RiskLow
	switch {
	case points >= riskHighFloor:
		level = domain.RiskHigh
	case points >= riskMediumFloor:
		level = domain.RiskMedium
	}

	assessment := domain.RiskAssessment{
		Level:    level,
		TTLScale: ttlScaleNormal,
	}

	strongest := strongestKind(profile.EnrolledFactors)

	switch level {
	case domain.RiskHigh:
		assessment.TTLScale = ttlScaleHigh
		if strongest != "" {
			assessment.RequireMFA = true
			assessment.RequiredFactor = strongest
		}
	case domain.RiskMedium:
		if strongest != "" {
			assessment.RequireMFA = true
			assessment.RequiredFactor = strongest
		}
	}

	return assessment
}

func strongestKind(kinds []domain.FactorKind) domain.FactorKind {
	var best domain.FactorKind
	for _, k := range kinds {
		if best == "" || k.Strength() > best.Strength() {
			best = k
		}
	}
	return best
}
