package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/TisoneK/selectorengine/selector"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlPattern   = regexp.MustCompile(`^https?://(?:[-\w.])+(?:\.[a-zA-Z0-9]+)+(?:[/?#][^\s]*)?$`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\(?\d{3}\)?\d{3}\d{4}$`),       // loose US
		regexp.MustCompile(`^\+?[1-9]\d{9,14}$`),            // E.164-ish international
		regexp.MustCompile(`^\d{3}\d{3}\d{4}$`),             // simple NNN-NNN-NNNN (post-strip)
	}

	dateLayouts = []string{"2006-01-02", "01/02/2006", "01-02-2006", "2006/01/02"}
	timeLayouts = []string{"15:04", "3:04 PM", "15:04:05"}
)

// DataTypeValidator checks text against one of a fixed set of built-in type
// tags (spec §4.2, exact accepted forms per SPEC_FULL.md §3).
type DataTypeValidator struct{}

func (DataTypeValidator) Type() selector.ValidationType { return selector.DataType }

func (v DataTypeValidator) Validate(text string, rule selector.ValidationRule) selector.ValidationResult {
	trimmed := strings.TrimSpace(text)
	ok := v.accepts(rule.Pattern, trimmed)
	if ok {
		return selector.ValidationResult{
			RuleType: selector.DataType,
			Passed:   true,
			Score:    rule.Weight,
			Message:  fmt.Sprintf("matches %s", rule.Pattern),
			Weight:   rule.Weight,
		}
	}
	return selector.ValidationResult{
		RuleType: selector.DataType,
		Passed:   false,
		Score:    0,
		Message:  fmt.Sprintf("does not match %s", rule.Pattern),
		Weight:   rule.Weight,
	}
}

func (DataTypeValidator) accepts(tag, text string) bool {
	switch tag {
	case "string":
		return text != ""
	case "float":
		_, err := strconv.ParseFloat(text, 64)
		return err == nil
	case "int":
		_, err := strconv.Atoi(text)
		return err == nil
	case "boolean":
		switch strings.ToLower(text) {
		case "true", "false", "1", "0", "yes", "no":
			return true
		default:
			return false
		}
	case "email":
		return emailPattern.MatchString(text)
	case "url":
		return urlPattern.MatchString(text)
	case "phone":
		stripped := strings.NewReplacer("-", "", " ", "").Replace(text)
		for _, re := range phonePatterns {
			if re.MatchString(stripped) {
				return true
			}
		}
		return false
	case "date":
		for _, layout := range dateLayouts {
			if parsesWithLayout(layout, text) {
				return true
			}
		}
		return false
	case "time":
		for _, layout := range timeLayouts {
			if parsesWithLayout(layout, text) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func parsesWithLayout(layout, text string) bool {
	_, err := time.Parse(layout, text)
	return err == nil
}
