package selector

import "time"

// ElementInfo is an immutable snapshot of a matched element — never a live
// handle back into the document (spec §3).
type ElementInfo struct {
	TagName      string            `json:"tag_name"`
	TextContent  string            `json:"text_content"`
	Attributes   map[string]string `json:"attributes"`
	CSSClasses   []string          `json:"css_classes"`
	DOMPath      string            `json:"dom_path"`
	Visibility   bool              `json:"visibility"`
	Interactable bool              `json:"interactable"`
}

// ValidationResult is the outcome of running one ValidationRule against a
// candidate element's text content.
type ValidationResult struct {
	RuleType ValidationType `json:"rule_type"`
	Passed   bool           `json:"passed"`
	Score    float64        `json:"score"`
	Message  string         `json:"message"`
	Weight   float64        `json:"weight"`
	Details  map[string]any `json:"details,omitempty"`
}

// SelectorResult is returned by the Resolution Engine's resolve() call.
// Invariant: Success XOR FailureReason != "", and Success implies
// ElementInfo != nil.
type SelectorResult struct {
	SelectorName      string             `json:"selector_name"`
	StrategyUsed      string             `json:"strategy_used"`
	ElementInfo       *ElementInfo       `json:"element_info,omitempty"`
	ConfidenceScore   float64            `json:"confidence_score"`
	ResolutionTimeMS  int64              `json:"resolution_time_ms"`
	ValidationResults []ValidationResult `json:"validation_results"`
	Success           bool               `json:"success"`
	Timestamp         time.Time          `json:"timestamp"`
	FailureReason     string             `json:"failure_reason,omitempty"`
}
