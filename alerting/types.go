// Package alerting implements the Alert & Report Engine (spec §2 "Alert &
// Report Engine", interface-level component): threshold evaluation against
// a recent telemetry window plus periodic report generation, grounded
// directly in spec §6's Alerting/Reporting configuration shape since no
// teacher file has an equivalent threshold-evaluation component.
package alerting

import "time"

// Severity mirrors the root package's severity scale for alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is one threshold violation emitted by Engine.Evaluate.
type Alert struct {
	Severity  Severity
	Message   string
	Triggered time.Time
	Metric    string
	Value     float64
	Threshold float64
}

// Report is the periodic summary Engine.Report produces (spec §6
// "Reporting.types"): performance, usage, health, trends, recommendations.
type Report struct {
	GeneratedAt time.Time
	Type        string
	Summary     map[string]any
}
