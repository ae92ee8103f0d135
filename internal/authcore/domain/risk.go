package domain

// RiskLevel buckets an attempt's risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskContext is the fixed set of contextual signals accompanying an
// authentication or refresh attempt. A closed struct rather than an
// open-ended map keeps the evaluator's contract checkable.
type RiskContext struct {
	// Origin is the network origin of the attempt (client IP).
	Origin string

	// DeviceFP is the caller-supplied device fingerprint, if any.
	DeviceFP string

	// RecentFailures is the number of failed attempts for the principal
	// inside the current lockout window (velocity signal).
	RecentFailures int

	// HourOfDay is the local hour (0-23) of the attempt for the
	// time-of-day anomaly signal.
	HourOfDay int
}

// RiskProfile is what the evaluator knows about the principal: last seen
// context and the enrolled factor kinds. Read-only from the evaluator's
// perspective; scoring itself is a pure function.
type RiskProfile struct {
	LastOrigin      string
	LastDeviceFP    string
	EnrolledFactors []FactorKind
}

// RiskAssessment is the evaluator's verdict. Consulted at initial
// authentication and again at every refresh.
type RiskAssessment struct {
	Level      RiskLevel
	RequireMFA bool

	// RequiredFactor is the factor the challenge must use when RequireMFA
	// is set; empty when the principal has nothing enrolled.
	RequiredFactor FactorKind

	// TTLScale shrinks token lifetimes for risky contexts (1.0 = normal).
	TTLScale float64
}
