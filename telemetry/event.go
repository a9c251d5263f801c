// Package telemetry implements the Telemetry Collector & Recorder: bounded
// in-memory event capture with oldest-evicted backpressure, adaptive
// batched drain to storage, sessions, and correlation ID propagation (spec
// §4.7).
package telemetry

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// OperationType classifies a TelemetryEvent (spec §3/§6).
type OperationType string

const (
	OperationResolution OperationType = "resolution"
	OperationValidation OperationType = "validation"
	OperationExecution  OperationType = "execution"
	OperationCleanup    OperationType = "cleanup"
)

// PerformanceMetrics is the optional performance_metrics group.
type PerformanceMetrics struct {
	ResolutionTimeMS         float64  `json:"resolution_time_ms"`
	StrategyExecutionTimeMS  float64  `json:"strategy_execution_time_ms"`
	TotalDurationMS          float64  `json:"total_duration_ms"`
	MemoryUsageMB            *float64 `json:"memory_usage_mb,omitempty"`
	CPUUsagePercent          *float64 `json:"cpu_usage_percent,omitempty"`
	NetworkRequestsCount     *int     `json:"network_requests_count,omitempty"`
	DOMOperationsCount       *int     `json:"dom_operations_count,omitempty"`
}

// QualityMetrics is the optional quality_metrics group.
type QualityMetrics struct {
	ConfidenceScore     float64 `json:"confidence_score"`
	Success             bool    `json:"success"`
	ElementsFound       int     `json:"elements_found"`
	StrategySuccessRate float64 `json:"strategy_success_rate"`
	DriftDetected       bool    `json:"drift_detected"`
	FallbackUsed        bool    `json:"fallback_used"`
	ValidationPassed    bool    `json:"validation_passed"`
}

// StrategyMetrics is the optional strategy_metrics group.
type StrategyMetrics struct {
	PrimaryStrategy         string          `json:"primary_strategy"`
	SecondaryStrategies     []string        `json:"secondary_strategies,omitempty"`
	StrategyExecutionOrder  []string        `json:"strategy_execution_order,omitempty"`
	StrategySuccessByType   map[string]bool `json:"strategy_success_by_type,omitempty"`
	StrategyTimingByTypeMS  map[string]float64 `json:"strategy_timing_by_type,omitempty"`
	StrategySwitchesCount   int             `json:"strategy_switches_count"`
}

// ErrorData is the optional error_data group.
type ErrorData struct {
	ErrorType          string `json:"error_type"`
	ErrorMessage       string `json:"error_message"`
	StackTrace         string `json:"stack_trace,omitempty"`
	RetryAttempts      int    `json:"retry_attempts"`
	FallbackAttempts   int    `json:"fallback_attempts"`
	RecoverySuccessful *bool  `json:"recovery_successful,omitempty"`
}

// ViewportSize is the optional viewport_size field within ContextData.
type ViewportSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ContextData is the optional context_data group.
type ContextData struct {
	BrowserSessionID string        `json:"browser_session_id"`
	TabContextID     string        `json:"tab_context_id"`
	PageURL          string        `json:"page_url,omitempty"`
	PageTitle        string        `json:"page_title,omitempty"`
	UserAgent        string        `json:"user_agent,omitempty"`
	ViewportSize     *ViewportSize `json:"viewport_size,omitempty"`
	TimestampContext string        `json:"timestamp_context,omitempty"`
}

// Event is the TelemetryEvent wire format (spec §6).
type Event struct {
	EventID       string          `json:"event_id"`
	CorrelationID string          `json:"correlation_id"`
	SelectorName  string          `json:"selector_name"`
	Timestamp     time.Time       `json:"timestamp"`
	OperationType OperationType   `json:"operation_type"`

	Performance *PerformanceMetrics `json:"performance_metrics,omitempty"`
	Quality     *QualityMetrics     `json:"quality_metrics,omitempty"`
	Strategy    *StrategyMetrics    `json:"strategy_metrics,omitempty"`
	Error       *ErrorData          `json:"error_data,omitempty"`
	Context     *ContextData        `json:"context_data,omitempty"`
}

// NewEventID returns a fresh UUIDv4 string for Event.EventID.
func NewEventID() string { return uuid.NewString() }

// Validate checks Event against the §6 schema, including the cross-field
// invariant success ⇔ ¬error_data.
func (e Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("telemetry: event_id required")
	}
	if _, err := uuid.Parse(e.EventID); err != nil {
		return fmt.Errorf("telemetry: event_id must be a UUID: %w", err)
	}
	if e.CorrelationID == "" {
		return fmt.Errorf("telemetry: correlation_id required")
	}
	if e.SelectorName == "" {
		return fmt.Errorf("telemetry: selector_name required")
	}
	switch e.OperationType {
	case OperationResolution, OperationValidation, OperationExecution, OperationCleanup:
	default:
		return fmt.Errorf("telemetry: invalid operation_type %q", e.OperationType)
	}
	if e.Timestamp.After(time.Now().Add(time.Second)) {
		return fmt.Errorf("telemetry: timestamp is in the future")
	}

	if e.Performance != nil {
		p := e.Performance
		if p.ResolutionTimeMS < 0 || p.StrategyExecutionTimeMS < 0 || p.TotalDurationMS < 0 {
			return fmt.Errorf("telemetry: performance_metrics durations must be >= 0")
		}
		if p.MemoryUsageMB != nil && (*p.MemoryUsageMB < 0 || *p.MemoryUsageMB > 1024) {
			return fmt.Errorf("telemetry: memory_usage_mb out of range [0,1024]")
		}
		if p.CPUUsagePercent != nil && (*p.CPUUsagePercent < 0 || *p.CPUUsagePercent > 100) {
			return fmt.Errorf("telemetry: cpu_usage_percent out of range [0,100]")
		}
		if p.NetworkRequestsCount != nil && *p.NetworkRequestsCount < 0 {
			return fmt.Errorf("telemetry: network_requests_count must be >= 0")
		}
		if p.DOMOperationsCount != nil && *p.DOMOperationsCount < 0 {
			return fmt.Errorf("telemetry: dom_operations_count must be >= 0")
		}
	}

	if e.Quality != nil {
		q := e.Quality
		if q.ConfidenceScore < 0 || q.ConfidenceScore > 1 {
			return fmt.Errorf("telemetry: confidence_score out of range [0,1]")
		}
		if q.ElementsFound < 0 {
			return fmt.Errorf("telemetry: elements_found must be >= 0")
		}
		if q.StrategySuccessRate < 0 || q.StrategySuccessRate > 1 {
			return fmt.Errorf("telemetry: strategy_success_rate out of range [0,1]")
		}
		if q.Success && e.Error != nil {
			return fmt.Errorf("telemetry: success=true must not carry error_data")
		}
		if !q.Success && e.Error == nil {
			return fmt.Errorf("telemetry: success=false requires error_data")
		}
	}

	if e.Strategy != nil {
		s := e.Strategy
		if s.PrimaryStrategy == "" {
			return fmt.Errorf("telemetry: strategy_metrics.primary_strategy required")
		}
		if s.StrategySwitchesCount < 0 {
			return fmt.Errorf("telemetry: strategy_switches_count must be >= 0")
		}
		for strat, ms := range s.StrategyTimingByTypeMS {
			if ms < 0 {
				return fmt.Errorf("telemetry: strategy_timing_by_type[%s] must be >= 0", strat)
			}
		}
	}

	if e.Error != nil {
		er := e.Error
		if er.ErrorType == "" || er.ErrorMessage == "" {
			return fmt.Errorf("telemetry: error_data.error_type and error_message required")
		}
		if er.RetryAttempts < 0 || er.FallbackAttempts < 0 {
			return fmt.Errorf("telemetry: error_data attempt counts must be >= 0")
		}
	}

	if e.Context != nil {
		c := e.Context
		if c.BrowserSessionID == "" || c.TabContextID == "" {
			return fmt.Errorf("telemetry: context_data.browser_session_id and tab_context_id required")
		}
		if c.PageURL != "" {
			if _, err := url.ParseRequestURI(c.PageURL); err != nil {
				return fmt.Errorf("telemetry: context_data.page_url invalid: %w", err)
			}
		}
		if c.ViewportSize != nil && (c.ViewportSize.Width < 1 || c.ViewportSize.Height < 1) {
			return fmt.Errorf("telemetry: viewport_size dimensions must be >= 1")
		}
	}

	return nil
}
