package view

import "iocviewer/internal/common"

// Classify maps a risk score to its severity tier. Scores are validated at
// ingestion; NaN falls through to Normal and +Inf to Critical.
func Classify(score float64) common.Severity {
	switch {
	case score >= common.CriticalScore:
		return common.SeverityCritical
	case score >= common.WarningScore:
		return common.SeverityWarning
	default:
		return common.SeverityNormal
	}
}
