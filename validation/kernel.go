// Package validation implements the Validation Kernel: four side-effect-free
// validator variants composed into per-selector rule sets, and the aggregate
// weighted-mean scoring the Resolution Engine consumes (spec §4.2).
package validation

import (
	"fmt"

	"github.com/TisoneK/selectorengine/selector"
)

// Validator is the shared operation surface every validator variant exposes.
type Validator interface {
	Type() selector.ValidationType
	// Validate runs rule against text and returns the structured result.
	Validate(text string, rule selector.ValidationRule) selector.ValidationResult
}

// Registry maps a ValidationType to its Validator implementation.
type Registry struct {
	validators map[selector.ValidationType]Validator
}

// NewRegistry builds a Registry pre-populated with the four built-in
// validator kinds, the Custom validator pre-seeded with the length/range
// built-ins (spec §4.2).
func NewRegistry() *Registry {
	r := &Registry{validators: make(map[selector.ValidationType]Validator, 4)}
	r.Register(&RegexValidator{})
	r.Register(&DataTypeValidator{})
	r.Register(&SemanticValidator{})
	r.Register(NewCustomValidator())
	return r
}

// Register installs or replaces a Validator implementation for its type.
func (r *Registry) Register(v Validator) { r.validators[v.Type()] = v }

// Get returns the Validator for typ, or an error if unknown.
func (r *Registry) Get(typ selector.ValidationType) (Validator, error) {
	v, ok := r.validators[typ]
	if !ok {
		return nil, fmt.Errorf("validation: unknown type %q", typ)
	}
	return v, nil
}

// RunAll runs every rule against text, returning each ValidationResult and
// the aggregate score (weighted mean of rule scores, spec §4.2). A rule
// whose type cannot be resolved is recorded as a zero-score failure rather
// than aborting the batch.
func (r *Registry) RunAll(text string, rules []selector.ValidationRule) ([]selector.ValidationResult, float64) {
	results := make([]selector.ValidationResult, 0, len(rules))
	var weightedSum, totalWeight float64
	for _, rule := range rules {
		var res selector.ValidationResult
		v, err := r.Get(rule.Type)
		if err != nil {
			res = selector.ValidationResult{
				RuleType: rule.Type,
				Passed:   false,
				Score:    0,
				Message:  err.Error(),
				Weight:   rule.Weight,
			}
		} else {
			res = v.Validate(text, rule)
		}
		results = append(results, res)
		weightedSum += res.Score
		totalWeight += rule.Weight
	}
	if totalWeight == 0 {
		return results, 0
	}
	return results, weightedSum / totalWeight
}

// AllRequiredPassed reports whether every required rule in results passed,
// per spec §4.3: "if any required rule fails, confidence is set to 0
// regardless of weighted mean".
func AllRequiredPassed(rules []selector.ValidationRule, results []selector.ValidationResult) bool {
	for i, rule := range rules {
		if rule.Required && (i >= len(results) || !results[i].Passed) {
			return false
		}
	}
	return true
}
