// Package confidence implements the Confidence & Threshold Manager: context-
// scoped acceptance thresholds with history, adaptive adjustment, and
// persisted/hot-reloadable state (spec §4.4).
package confidence

import (
	"errors"
	"time"
)

// Default per-context thresholds (spec §4.4).
var defaultThresholds = map[string]float64{
	"production":  0.85,
	"staging":     0.75,
	"development": 0.65,
	"testing":     0.5,
	"research":    0.4,
}

const fallbackContext = "development"

var (
	ErrEmptyContext     = errors.New("confidence: context must not be empty")
	ErrInvalidThreshold = errors.New("confidence: threshold must be in [0,1]")
)

// Severity classifies how far a SelectorResult's confidence fell below its
// applicable threshold (spec §4.4 filter).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ThresholdViolation records one result that failed to meet its applicable
// threshold.
type ThresholdViolation struct {
	SelectorName string
	Context      string
	SubContext   string
	Threshold    float64
	Confidence   float64
	Severity     Severity
	At           time.Time
}

// ThresholdChange is the audit record appended to history on every Set
// (spec §3).
type ThresholdChange struct {
	Context    string
	SubContext string
	Old        float64
	New        float64
	At         time.Time
	By         string
	Reason     string
}

// PerformanceSample is the aggregate performance input to Adaptive (spec
// §4.4).
type PerformanceSample struct {
	TotalAttempts int
	SuccessRate   float64
	AvgConfidence float64
}

func severityFor(gap float64) Severity {
	switch {
	case gap >= 0.3:
		return SeverityCritical
	case gap >= 0.2:
		return SeverityError
	case gap >= 0.1:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
