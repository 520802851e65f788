package common

// Severity is the visual tier assigned to an indicator from its risk score.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "normal"
	}
}

// Score thresholds for the severity tiers. Both bounds are inclusive.
const (
	CriticalScore = 9
	WarningScore  = 7
)
