package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSelector() *SemanticSelector {
	return &SemanticSelector{
		Name:        "home_team_name",
		Description: "home team name on a match card",
		Context:     "production",
		Strategies: []StrategyPattern{
			{ID: "attr", Type: AttributeMatch, Priority: 2, IsActive: true},
			{ID: "anchor", Type: TextAnchor, Priority: 1, IsActive: true},
		},
		ValidationRules: []ValidationRule{
			{Type: Regex, Pattern: `^[A-Za-z ]+$`, Required: true, Weight: 0.4},
		},
		ConfidenceThreshold: 0.85,
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sampleSelector()))

	sel, ok := reg.Get("home_team_name")
	require.True(t, ok)
	require.NotNil(t, sel)

	sorted := sel.SortStrategies(true)
	require.Len(t, sorted, 2)
	assert.Equal(t, "anchor", sorted[0].ID)
	assert.Equal(t, "attr", sorted[1].ID)
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sampleSelector()))
	require.NoError(t, reg.Register(sampleSelector()))
}

func TestRegistryRegisterDivergentRejected(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sampleSelector()))

	divergent := sampleSelector()
	divergent.ConfidenceThreshold = 0.5
	err := reg.Register(divergent)
	assert.ErrorIs(t, err, ErrDivergentRedefiniton)
}

func TestRegistryDuplicatePriorityRejected(t *testing.T) {
	reg := NewRegistry()
	bad := sampleSelector()
	bad.Strategies[0].Priority = 1
	err := reg.Register(bad)
	assert.ErrorIs(t, err, ErrDuplicatePriority)
}

func TestRegistryRequiredZeroWeightRejected(t *testing.T) {
	reg := NewRegistry()
	bad := sampleSelector()
	bad.ValidationRules[0].Weight = 0
	err := reg.Register(bad)
	assert.ErrorIs(t, err, ErrRequiredZeroWeight)
}

func TestRegistrySetStrategyActive(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sampleSelector()))
	require.NoError(t, reg.SetStrategyActive("home_team_name", "attr", false))

	sel, _ := reg.Get("home_team_name")
	sorted := sel.SortStrategies(true)
	require.Len(t, sorted, 1)
	assert.Equal(t, "anchor", sorted[0].ID)
}

func TestRegistryGetMissing(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("missing")
	assert.False(t, ok)
}
