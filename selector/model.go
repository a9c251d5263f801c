// Package selector holds the SemanticSelector data model: the named,
// strategy-backed recipe for locating an element in a document (spec §3).
package selector

import (
	"errors"
	"time"
)

// Domain-specific sentinel errors, kept at package scope the way
// engine/models/models.go keeps CrawlError's siblings.
var (
	ErrEmptyName            = errors.New("selector: name must not be empty")
	ErrDuplicatePriority    = errors.New("selector: strategy priorities must be unique")
	ErrNoPriority           = errors.New("selector: strategy priority must be >= 1")
	ErrInvalidThreshold     = errors.New("selector: confidence threshold must be in [0,1]")
	ErrRequiredZeroWeight   = errors.New("selector: required validation rule must have weight > 0")
	ErrSelectorNotFound     = errors.New("selector: not found")
	ErrDivergentRedefiniton = errors.New("selector: redefinition diverges from existing registration")
)

// StrategyType enumerates the four strategy kinds from the Strategy Kernel.
type StrategyType string

const (
	TextAnchor     StrategyType = "text_anchor"
	AttributeMatch StrategyType = "attribute_match"
	DOMRelation    StrategyType = "dom_relationship"
	RoleBased      StrategyType = "role_based"
)

// ValidationType enumerates the four validator kinds from the Validation
// Kernel.
type ValidationType string

const (
	Regex    ValidationType = "regex"
	DataType ValidationType = "data_type"
	Semantic ValidationType = "semantic"
	Custom   ValidationType = "custom"
)

// StrategyPattern is one configured strategy attached to a selector.
type StrategyPattern struct {
	ID                 string         `json:"id"`
	Type               StrategyType   `json:"type"`
	Priority           int            `json:"priority"`
	Config             map[string]any `json:"config"`
	SuccessRate        float64        `json:"success_rate"`
	AvgResolutionTime  time.Duration  `json:"avg_resolution_time_ms"`
	IsActive           bool           `json:"is_active"`
	CreatedAt          time.Time      `json:"created_at"`
	LastUpdated        time.Time      `json:"last_updated"`
}

// ValidationRule is one content-validation rule attached to a selector.
type ValidationRule struct {
	Type     ValidationType `json:"type"`
	Pattern  string         `json:"pattern"`
	Required bool           `json:"required"`
	Weight   float64        `json:"weight"`
}

// SemanticSelector is a registered, named recipe for locating an element.
// Immutable after registration except for the metrics-bearing fields inside
// its StrategyPatterns (SuccessRate, AvgResolutionTime, LastUpdated).
type SemanticSelector struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	Context            string            `json:"context"`
	Strategies         []StrategyPattern `json:"strategies"`
	ValidationRules    []ValidationRule  `json:"validation_rules"`
	ConfidenceThreshold float64          `json:"confidence_threshold"`
	Metadata           map[string]any    `json:"metadata"`
}

// Validate checks the structural invariants from spec §3: non-empty name,
// unique priorities >= 1, threshold in [0,1], required rules with weight > 0.
func (s *SemanticSelector) Validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return ErrInvalidThreshold
	}
	seen := make(map[int]struct{}, len(s.Strategies))
	for _, sp := range s.Strategies {
		if sp.Priority < 1 {
			return ErrNoPriority
		}
		if _, dup := seen[sp.Priority]; dup {
			return ErrDuplicatePriority
		}
		seen[sp.Priority] = struct{}{}
	}
	for _, vr := range s.ValidationRules {
		if vr.Required && vr.Weight <= 0 {
			return ErrRequiredZeroWeight
		}
	}
	return nil
}

// SortStrategies returns the selector's strategies (only the active ones when
// activeOnly is true) sorted ascending by priority, as the Resolution Engine
// requires (spec §4.3 step 3).
func (s *SemanticSelector) SortStrategies(activeOnly bool) []StrategyPattern {
	out := make([]StrategyPattern, 0, len(s.Strategies))
	for _, sp := range s.Strategies {
		if activeOnly && !sp.IsActive {
			continue
		}
		out = append(out, sp)
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Priority > out[j].Priority {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

// DefaultConfidenceThreshold is applied when a selector omits one (spec §3).
const DefaultConfidenceThreshold = 0.8
