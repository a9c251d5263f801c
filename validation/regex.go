package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/TisoneK/selectorengine/selector"
)

// RegexValidator full-matches trimmed text against rule.Pattern. Compiled
// patterns are cached since the same pattern is reused across many
// resolution attempts (spec §4.2).
type RegexValidator struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

func (v *RegexValidator) Type() selector.ValidationType { return selector.Regex }

func (v *RegexValidator) compile(pattern string) (*regexp.Regexp, error) {
	v.mu.RLock()
	if re, ok := v.cache[pattern]; ok {
		v.mu.RUnlock()
		return re, nil
	}
	v.mu.RUnlock()

	re, err := regexp.Compile(anchored(pattern))
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	if v.cache == nil {
		v.cache = make(map[string]*regexp.Regexp)
	}
	v.cache[pattern] = re
	v.mu.Unlock()
	return re, nil
}

// anchored wraps pattern so an unanchored source pattern still produces a
// full-string match, without double-anchoring a pattern that already has
// anchors.
func anchored(pattern string) string {
	if strings.HasPrefix(pattern, "^") && strings.HasSuffix(pattern, "$") {
		return pattern
	}
	return "^(?:" + pattern + ")$"
}

func (v *RegexValidator) Validate(text string, rule selector.ValidationRule) selector.ValidationResult {
	trimmed := strings.TrimSpace(text)
	re, err := v.compile(rule.Pattern)
	if err != nil {
		return selector.ValidationResult{
			RuleType: selector.Regex,
			Passed:   false,
			Score:    0,
			Message:  fmt.Sprintf("invalid pattern: %v", err),
			Weight:   rule.Weight,
		}
	}
	if re.MatchString(trimmed) {
		return selector.ValidationResult{
			RuleType: selector.Regex,
			Passed:   true,
			Score:    rule.Weight,
			Message:  "matched",
			Weight:   rule.Weight,
		}
	}
	return selector.ValidationResult{
		RuleType: selector.Regex,
		Passed:   false,
		Score:    0,
		Message:  "no match",
		Weight:   rule.Weight,
	}
}
