package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/TisoneK/selectorengine/selector"
)

var (
	teamNamePattern   = regexp.MustCompile(`^[A-Za-z \-]{2,50}$`)
	teamIndicatorWord = regexp.MustCompile(`(?i)\b(fc|afc|united|city|sports|club)\b`)
	playerNamePattern = regexp.MustCompile(`^[A-Za-z \-.']{2,50}$`)
	venuePattern      = regexp.MustCompile(`^[A-Za-z \-.']{2,100}$`)

	matchStatusValues = map[string]bool{
		"ft": true, "aet": true, "ht": true, "ns": true,
		"postponed": true, "cancelled": true, "abandoned": true,
	}
	timePeriodValues = map[string]bool{
		"first_half": true, "second_half": true, "full_time": true,
		"extra_time": true, "penalty_time": true,
	}
	positionValues = map[string]bool{
		"goalkeeper": true, "defender": true, "midfielder": true,
		"forward": true, "striker": true, "winger": true, "substitute": true,
	}
	tournamentStageValues = map[string]bool{
		"group stage": true, "round of 16": true, "round of 32": true,
		"quarter final": true, "semi final": true, "final": true,
	}
)

// SemanticValidator checks text against a fixed set of domain-specific tags,
// some of which accept with partial weight (spec §4.2, SPEC_FULL.md §3).
type SemanticValidator struct{}

func (SemanticValidator) Type() selector.ValidationType { return selector.Semantic }

func (v SemanticValidator) Validate(text string, rule selector.ValidationRule) selector.ValidationResult {
	trimmed := strings.TrimSpace(text)
	switch rule.Pattern {
	case "team_name":
		return v.teamName(trimmed, rule)
	case "score":
		return v.score(trimmed, rule)
	case "match_status":
		return v.enum(trimmed, rule, matchStatusValues, false)
	case "time_period":
		return v.enum(trimmed, rule, timePeriodValues, false)
	case "position":
		return v.enum(trimmed, rule, positionValues, false)
	case "player_name":
		return v.pattern(trimmed, rule, playerNamePattern)
	case "tournament_stage":
		return v.enum(strings.ReplaceAll(trimmed, "_", " "), rule, tournamentStageValues, true)
	case "venue":
		return v.pattern(trimmed, rule, venuePattern)
	default:
		return selector.ValidationResult{
			RuleType: selector.Semantic,
			Passed:   false,
			Score:    0,
			Message:  fmt.Sprintf("unknown semantic tag %q", rule.Pattern),
			Weight:   rule.Weight,
		}
	}
}

func (SemanticValidator) teamName(text string, rule selector.ValidationRule) selector.ValidationResult {
	if !teamNamePattern.MatchString(text) || !hasLetter(text) {
		return selector.ValidationResult{RuleType: selector.Semantic, Passed: false, Score: 0, Message: "invalid team_name", Weight: rule.Weight}
	}
	if teamIndicatorWord.MatchString(text) {
		return selector.ValidationResult{RuleType: selector.Semantic, Passed: true, Score: rule.Weight, Message: "team_name with indicator", Weight: rule.Weight}
	}
	return selector.ValidationResult{RuleType: selector.Semantic, Passed: true, Score: 0.8 * rule.Weight, Message: "team_name without indicator", Weight: rule.Weight}
}

func (SemanticValidator) score(text string, rule selector.ValidationRule) selector.ValidationResult {
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 || n > 99 {
		return selector.ValidationResult{RuleType: selector.Semantic, Passed: false, Score: 0, Message: "invalid score", Weight: rule.Weight}
	}
	return selector.ValidationResult{RuleType: selector.Semantic, Passed: true, Score: rule.Weight, Message: "valid score", Weight: rule.Weight}
}

func (SemanticValidator) enum(text string, rule selector.ValidationRule, values map[string]bool, caseInsensitive bool) selector.ValidationResult {
	key := text
	if caseInsensitive {
		key = strings.ToLower(key)
	}
	if values[key] {
		return selector.ValidationResult{RuleType: selector.Semantic, Passed: true, Score: rule.Weight, Message: "matched enum", Weight: rule.Weight}
	}
	return selector.ValidationResult{RuleType: selector.Semantic, Passed: false, Score: 0, Message: fmt.Sprintf("%q not in allowed set", text), Weight: rule.Weight}
}

func (SemanticValidator) pattern(text string, rule selector.ValidationRule, re *regexp.Regexp) selector.ValidationResult {
	if re.MatchString(text) {
		return selector.ValidationResult{RuleType: selector.Semantic, Passed: true, Score: rule.Weight, Message: "matched pattern", Weight: rule.Weight}
	}
	return selector.ValidationResult{RuleType: selector.Semantic, Passed: false, Score: 0, Message: "does not match pattern", Weight: rule.Weight}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
