package domain

import "time"

// FactorKind is the closed set of supported second factors. Per-kind
// verification is selected by dispatch on this tag.
type FactorKind string

const (
	FactorTOTP      FactorKind = "TOTP"
	FactorSMS       FactorKind = "SMS"
	FactorEmail     FactorKind = "EMAIL"
	FactorBiometric FactorKind = "BIOMETRIC"
)

// Strength orders factor kinds for the risk evaluator's "strongest enrolled
// factor" selection. Higher is stronger.
func (k FactorKind) Strength() int {
	switch k {
	case FactorBiometric:
		return 4
	case FactorTOTP:
		return 3
	case FactorSMS:
		return 2
	case FactorEmail:
		return 1
	default:
		return 0
	}
}

// Valid reports whether k is a member of the closed kind set.
func (k FactorKind) Valid() bool {
	switch k {
	case FactorTOTP, FactorSMS, FactorEmail, FactorBiometric:
		return true
	}
	return false
}

// MFAFactor is one enrolled second factor. The secret (TOTP seed, phone
// number, email address, or biometric device reference) is envelope-sealed at
// rest and only opened at verification time.
type MFAFactor struct {
	ID           string
	PrincipalID  string
	Kind         FactorKind
	SealedSecret []byte
	EnrolledAt   time.Time
}

// StrongestFactor picks the highest-strength factor from an enrolled set.
// Returns nil for an empty set (MFA not enforceable).
func StrongestFactor(factors []MFAFactor) *MFAFactor {
	var best *MFAFactor
	for i := range factors {
		if best == nil || factors[i].Kind.Strength() > best.Kind.Strength() {
			best = &factors[i]
		}
	}
	return best
}
