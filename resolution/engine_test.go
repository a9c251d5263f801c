package resolution

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TisoneK/selectorengine/analytics"
	"github.com/TisoneK/selectorengine/confidence"
	"github.com/TisoneK/selectorengine/driver"
	"github.com/TisoneK/selectorengine/selector"
	"github.com/TisoneK/selectorengine/strategy"
	"github.com/TisoneK/selectorengine/validation"
)

const matchCardHTML = `
<html><body>
  <div class="match-card">
    <span class="team-name">%s</span>
  </div>
</body></html>`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	selectors := selector.NewRegistry()
	strategies := strategy.NewRegistry()
	validators := validation.NewRegistry()
	conf := confidence.NewManager(nil)
	metrics := analytics.NewStore()
	return NewEngine(selectors, strategies, validators, conf, metrics)
}

func registerHomeTeamSelector(t *testing.T, e *Engine, caseSensitive bool) {
	t.Helper()
	require.NoError(t, e.Selectors.Register(&selector.SemanticSelector{
		Name:    "home_team_name",
		Context: "production",
		Strategies: []selector.StrategyPattern{
			{
				ID:          "anchor",
				Type:        selector.TextAnchor,
				Priority:    1,
				IsActive:    true,
				SuccessRate: 1.0,
				Config: map[string]any{
					"anchor_text":        "Manchester United",
					"proximity_selector": ".team-name",
					"case_sensitive":     caseSensitive,
				},
			},
			{
				ID:          "attr",
				Type:        selector.AttributeMatch,
				Priority:    2,
				IsActive:    true,
				SuccessRate: 1.0,
				Config: map[string]any{
					"attribute":     "class",
					"value_pattern": "^team-name$",
				},
			},
		},
		ValidationRules: []selector.ValidationRule{
			{Type: selector.Regex, Pattern: `^[A-Za-z ]+$`, Weight: 0.4, Required: true},
		},
		ConfidenceThreshold: 0.85,
	}))
}

func TestResolveE1HappyPathTextAnchorWins(t *testing.T) {
	e := newTestEngine(t)
	registerHomeTeamSelector(t, e, false)

	d, err := driver.NewFakeDriver(sprintfHTML("Manchester United"), "https://example.test")
	require.NoError(t, err)

	var attempts []AttemptEvent
	result := e.Resolve(context.Background(), "home_team_name", "", strategy.Context{Driver: d}, &Observer{
		OnAttempt: func(ev AttemptEvent) { attempts = append(attempts, ev) },
	})

	require.True(t, result.Success)
	assert.Equal(t, "text_anchor", result.StrategyUsed)
	assert.GreaterOrEqual(t, result.ConfidenceScore, 0.85)
	assert.Equal(t, "Manchester United", result.ElementInfo.TextContent)
	assert.Len(t, attempts, 1)

	m, ok := e.Metrics.Get("home_team_name", "anchor")
	require.True(t, ok)
	assert.Equal(t, 1, m.Successful)
}

func TestResolveE2CaseSensitiveMissFallsBack(t *testing.T) {
	e := newTestEngine(t)
	registerHomeTeamSelector(t, e, true)

	d, err := driver.NewFakeDriver(sprintfHTML("manchester united"), "https://example.test")
	require.NoError(t, err)

	var attempts []AttemptEvent
	result := e.Resolve(context.Background(), "home_team_name", "", strategy.Context{Driver: d}, &Observer{
		OnAttempt: func(ev AttemptEvent) { attempts = append(attempts, ev) },
	})

	require.True(t, result.Success)
	assert.Equal(t, "attribute_match", result.StrategyUsed)
	require.Len(t, attempts, 2)
	assert.Equal(t, "anchor", attempts[0].StrategyID)
	assert.Equal(t, "case_sensitivity_mismatch", attempts[0].Reason)
	assert.Equal(t, "attr", attempts[1].StrategyID)
}

func TestResolveE3ThresholdViolation(t *testing.T) {
	e := newTestEngine(t)
	// A validation rule that fails outright drags validation_score to 0,
	// which combined with w_validation=0.6 keeps confidence well under 0.85.
	require.NoError(t, e.Selectors.Register(&selector.SemanticSelector{
		Name:    "home_team_name",
		Context: "production",
		Strategies: []selector.StrategyPattern{
			{
				ID:       "anchor",
				Type:     selector.TextAnchor,
				Priority: 1,
				IsActive: true,
				Config:   map[string]any{"anchor_text": "Manchester United"},
			},
		},
		ValidationRules: []selector.ValidationRule{
			{Type: selector.Semantic, Pattern: "score", Weight: 1, Required: false},
		},
		ConfidenceThreshold: 0.85,
	}))

	d, err := driver.NewFakeDriver(sprintfHTML("Manchester United"), "https://example.test")
	require.NoError(t, err)

	result := e.Resolve(context.Background(), "home_team_name", "", strategy.Context{Driver: d}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "no_strategy_met_threshold", result.FailureReason)
}

func TestResolveSelectorNotFound(t *testing.T) {
	e := newTestEngine(t)
	result := e.Resolve(context.Background(), "missing", "", strategy.Context{}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "selector_not_found", result.FailureReason)
}

func TestResolveInactiveStrategySkippedWithoutMetricUpdate(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Selectors.Register(&selector.SemanticSelector{
		Name:    "home_team_name",
		Context: "production",
		Strategies: []selector.StrategyPattern{
			{ID: "anchor", Type: selector.TextAnchor, Priority: 1, IsActive: false, Config: map[string]any{"anchor_text": "x"}},
			{
				ID: "attr", Type: selector.AttributeMatch, Priority: 2, IsActive: true, SuccessRate: 1.0,
				Config: map[string]any{"attribute": "class", "value_pattern": "^team-name$"},
			},
		},
		ValidationRules:     []selector.ValidationRule{{Type: selector.Regex, Pattern: `.+`, Weight: 1}},
		ConfidenceThreshold: 0.1,
	}))

	d, err := driver.NewFakeDriver(sprintfHTML("Manchester United"), "https://example.test")
	require.NoError(t, err)

	result := e.Resolve(context.Background(), "home_team_name", "", strategy.Context{Driver: d}, nil)
	require.True(t, result.Success)
	assert.Equal(t, "attribute_match", result.StrategyUsed)

	_, ok := e.Metrics.Get("home_team_name", "anchor")
	assert.False(t, ok)
}

func sprintfHTML(teamName string) string {
	return fmt.Sprintf(matchCardHTML, teamName)
}
