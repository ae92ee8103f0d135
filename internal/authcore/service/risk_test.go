package service

import (
	"testing"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
	"github.com/stretchr/testify/require"
)

func TestScoreLowForKnownContext(t *testing.T) {
	svc := &RiskService{}

	profile := domain.RiskProfile{
		LastOrigin:      "198.51.100.1",
		LastDeviceFP:    "device-a",
		EnrolledFactors: []domain.FactorKind{domain.FactorTOTP},
	}
	got := svc.Score(profile, domain.RiskContext{Origin: "198.51.100.1", DeviceFP: "device-a", HourOfDay: 14})

	require.Equal(t, domain.RiskLow, got.Level)
	require.False(t, got.RequireMFA)
	require.InEpsilon(t, 1.0, got.TTLScale, 0.001)
}

func TestScoreFirstSightingIsLow(t *testing.T) {
	svc := &RiskService{}

	// No baseline means no divergence signals.
	got := svc.Score(domain.RiskProfile{}, domain.RiskContext{Origin: "203.0.113.9", DeviceFP: "brand-new", HourOfDay: 12})
	require.Equal(t, domain.RiskLow, got.Level)
	require.False(t, got.RequireMFA)
}

func TestScoreMediumRequestsMFAWhenEnrolled(t *testing.T) {
	svc := &RiskService{}
	profile := domain.RiskProfile{
		LastOrigin:      "198.51.100.1",
		LastDeviceFP:    "device-a",
		EnrolledFactors: []domain.FactorKind{domain.FactorEmail},
	}

	// New origin only: 2 points, MEDIUM.
	got := svc.Score(profile, domain.RiskContext{Origin: "203.0.113.9", DeviceFP: "device-a", HourOfDay: 14})
	require.Equal(t, domain.RiskMedium, got.Level)
	require.True(t, got.RequireMFA)
	require.Equal(t, domain.FactorEmail, got.RequiredFactor)
	require.InEpsilon(t, 1.0, got.TTLScale, 0.001)
}

func TestScoreMediumWithoutFactorsPassesThrough(t *testing.T) {
	svc := &RiskService{}
	profile := domain.RiskProfile{LastOrigin: "198.51.100.1", LastDeviceFP: "device-a"}

	got := svc.Score(profile, domain.RiskContext{Origin: "203.0.113.9", DeviceFP: "device-a", HourOfDay: 14})
	require.Equal(t, domain.RiskMedium, got.Level)
	require.False(t, got.RequireMFA)
}

func TestScoreHighDemandsStrongestFactorAndShortensTTL(t *testing.T) {
	svc := &RiskService{}
	profile := domain.RiskProfile{
		LastOrigin:      "198.51.100.1",
		LastDeviceFP:    "device-a",
		EnrolledFactors: []domain.FactorKind{domain.FactorEmail, domain.FactorTOTP, domain.FactorSMS},
	}

	// New origin + new device: 4 points, HIGH.
	got := svc.Score(profile, domain.RiskContext{Origin: "203.0.113.9", DeviceFP: "device-b", HourOfDay: 14})
	require.Equal(t, domain.RiskHigh, got.Level)
	require.True(t, got.RequireMFA)
	require.Equal(t, domain.FactorTOTP, got.RequiredFactor)
	require.InEpsilon(t, 0.5, got.TTLScale, 0.001)
}

func TestScoreBiometricOutranksTOTP(t *testing.T) {
	svc := &RiskService{}
	profile := domain.RiskProfile{
		LastOrigin:      "a",
		LastDeviceFP:    "b",
		EnrolledFactors: []domain.FactorKind{domain.FactorTOTP, domain.FactorBiometric},
	}

	got := svc.Score(profile, domain.RiskContext{Origin: "x", DeviceFP: "y", HourOfDay: 3})
	require.Equal(t, domain.RiskHigh, got.Level)
	require.Equal(t, domain.FactorBiometric, got.RequiredFactor)
}

func TestScoreVelocityAndOddHourStack(t *testing.T) {
	svc := &RiskService{}
	profile := domain.RiskProfile{
		LastOrigin:      "198.51.100.1",
		LastDeviceFP:    "device-a",
		EnrolledFactors: []domain.FactorKind{domain.FactorSMS},
	}

	// Three failures (2) + 3am (1) from a known device: 3 points, MEDIUM.
	got := svc.Score(profile, domain.RiskContext{
		Origin: "198.51.100.1", DeviceFP: "device-a",
		RecentFailures: 3, HourOfDay: 3,
	})
	require.Equal(t, domain.RiskMedium, got.Level)
	require.True(t, got.RequireMFA)
}
