package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TisoneK/selectorengine/selector"
)

func TestManagerGetDefaults(t *testing.T) {
	m := NewManager(nil)
	v, err := m.Get("production", "")
	require.NoError(t, err)
	assert.Equal(t, 0.85, v)

	v, err = m.Get("unknown-context", "")
	require.NoError(t, err)
	assert.Equal(t, defaultThresholds[fallbackContext], v)
}

func TestManagerGetRejectsEmptyContext(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Get("", "")
	assert.ErrorIs(t, err, ErrEmptyContext)
}

func TestManagerSetOverrideAndSubOverride(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Set("production", 0.9, "", "tightening", "operator"))
	v, _ := m.Get("production", "")
	assert.Equal(t, 0.9, v)

	require.NoError(t, m.Set("production", 0.95, "checkout-flow", "sub override", "operator"))
	v, _ = m.Get("production", "checkout-flow")
	assert.Equal(t, 0.95, v)

	// Other sub-contexts still see the context-level override.
	v, _ = m.Get("production", "other-flow")
	assert.Equal(t, 0.9, v)
}

func TestManagerSetRejectsOutOfRangeThreshold(t *testing.T) {
	m := NewManager(nil)
	err := m.Set("production", 1.5, "", "bad", "operator")
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestManagerHistoryRecordsEachSet(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Set("production", 0.9, "", "first", "op"))
	require.NoError(t, m.Set("production", 0.9, "", "idempotent repeat", "op"))
	history := m.History()
	require.Len(t, history, 2)
	assert.Equal(t, 0.85, history[0].Old)
	assert.Equal(t, 0.9, history[0].New)
	assert.Equal(t, 0.9, history[1].Old)
	assert.Equal(t, 0.9, history[1].New)
}

func TestManagerFilterPartitionsAndClassifiesSeverity(t *testing.T) {
	m := NewManager(nil)
	results := []selector.SelectorResult{
		{SelectorName: "a", ConfidenceScore: 0.9},
		{SelectorName: "b", ConfidenceScore: 0.62},
	}
	passed, violations := m.Filter(results, "production", "")
	require.Len(t, passed, 1)
	require.Len(t, violations, 1)
	assert.Equal(t, "b", violations[0].SelectorName)
	assert.Equal(t, SeverityError, violations[0].Severity)
}

func TestManagerAdaptiveBelowMinimumAttempts(t *testing.T) {
	m := NewManager(nil)
	adjusted := m.Adaptive("production", PerformanceSample{TotalAttempts: 5, SuccessRate: 0.5, AvgConfidence: 0.5})
	assert.Equal(t, 0.85, adjusted)
}

func TestManagerAdaptiveBoundsAndDirection(t *testing.T) {
	m := NewManager(nil)
	lowPerf := m.Adaptive("production", PerformanceSample{TotalAttempts: 20, SuccessRate: 0.5, AvgConfidence: 0.5})
	assert.GreaterOrEqual(t, lowPerf, 0.4)
	assert.LessOrEqual(t, lowPerf, 0.95)
	assert.Greater(t, lowPerf, 0.85)

	highPerf := m.Adaptive("production", PerformanceSample{TotalAttempts: 20, SuccessRate: 0.99, AvgConfidence: 0.95})
	assert.Less(t, highPerf, 0.85)
}
