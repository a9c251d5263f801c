package validation

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/TisoneK/selectorengine/selector"
)

// CustomFunc validates text against a rule whose Pattern encodes
// implementation-specific bounds (e.g. "min:max"), returning pass/fail and
// a human-readable message.
type CustomFunc func(text string, rule selector.ValidationRule) (bool, string)

// CustomValidator looks up a named validator in a registered table. Two
// built-ins are always present: length and range (spec §4.2).
type CustomValidator struct {
	mu    sync.RWMutex
	funcs map[string]CustomFunc
}

// NewCustomValidator builds a CustomValidator pre-seeded with the length and
// range built-ins. rule.Pattern for the Custom type is "name:bounds", e.g.
// "length:2:50" or "range:0:99".
func NewCustomValidator() *CustomValidator {
	c := &CustomValidator{funcs: make(map[string]CustomFunc, 2)}
	c.RegisterFunc("length", lengthValidator)
	c.RegisterFunc("range", rangeValidator)
	return c
}

func (CustomValidator) Type() selector.ValidationType { return selector.Custom }

// RegisterFunc installs or replaces the named custom validator function.
func (c *CustomValidator) RegisterFunc(name string, fn CustomFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[name] = fn
}

func (c *CustomValidator) Validate(text string, rule selector.ValidationRule) selector.ValidationResult {
	name, bounds, ok := strings.Cut(rule.Pattern, ":")
	if !ok {
		return selector.ValidationResult{
			RuleType: selector.Custom,
			Passed:   false,
			Score:    0,
			Message:  fmt.Sprintf("malformed custom pattern %q, want name:bounds", rule.Pattern),
			Weight:   rule.Weight,
		}
	}

	c.mu.RLock()
	fn, found := c.funcs[name]
	c.mu.RUnlock()
	if !found {
		return selector.ValidationResult{
			RuleType: selector.Custom,
			Passed:   false,
			Score:    0,
			Message:  fmt.Sprintf("unknown custom validator %q", name),
			Weight:   rule.Weight,
		}
	}

	boundsRule := selector.ValidationRule{Type: selector.Custom, Pattern: bounds, Required: rule.Required, Weight: rule.Weight}
	passed, msg := fn(text, boundsRule)
	score := 0.0
	if passed {
		score = rule.Weight
	}
	return selector.ValidationResult{
		RuleType: selector.Custom,
		Passed:   passed,
		Score:    score,
		Message:  msg,
		Weight:   rule.Weight,
	}
}

// lengthValidator bounds-checks len(text) against "min:max", either side
// optional (empty means unbounded).
func lengthValidator(text string, rule selector.ValidationRule) (bool, string) {
	min, max, err := parseBounds(rule.Pattern)
	if err != nil {
		return false, err.Error()
	}
	n := float64(len(strings.TrimSpace(text)))
	if min != nil && n < *min {
		return false, fmt.Sprintf("length %d below minimum %v", int(n), *min)
	}
	if max != nil && n > *max {
		return false, fmt.Sprintf("length %d above maximum %v", int(n), *max)
	}
	return true, "length within bounds"
}

// rangeValidator parses text as a float and bounds-checks it against
// "min:max".
func rangeValidator(text string, rule selector.ValidationRule) (bool, string) {
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return false, "not numeric"
	}
	min, max, err := parseBounds(rule.Pattern)
	if err != nil {
		return false, err.Error()
	}
	if min != nil && value < *min {
		return false, fmt.Sprintf("%v below minimum %v", value, *min)
	}
	if max != nil && value > *max {
		return false, fmt.Sprintf("%v above maximum %v", value, *max)
	}
	return true, "value within bounds"
}

func parseBounds(pattern string) (min, max *float64, err error) {
	minStr, maxStr, ok := strings.Cut(pattern, ":")
	if !ok {
		return nil, nil, fmt.Errorf("malformed bounds %q, want min:max", pattern)
	}
	if minStr != "" {
		v, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid min bound %q", minStr)
		}
		min = &v
	}
	if maxStr != "" {
		v, err := strconv.ParseFloat(maxStr, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid max bound %q", maxStr)
		}
		max = &v
	}
	return min, max, nil
}
