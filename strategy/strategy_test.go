package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TisoneK/selectorengine/driver"
)

const fixtureHTML = `
<html><head><title>Fixture</title></head>
<body>
  <div class="match-card" id="card1">
    <div class="team-row">
      <span class="team-name">Manchester United</span>
      <span class="score" data-role="home-score">2</span>
    </div>
    <nav class="controls">
      <a href="/details" class="btn primary">Details</a>
      <button disabled>Edit</button>
      <div role="button" class="fake-button">Click</div>
    </nav>
  </div>
</body></html>`

func newFixtureDriver(t *testing.T) driver.Driver {
	t.Helper()
	d, err := driver.NewFakeDriver(fixtureHTML, "https://example.test/fixture")
	require.NoError(t, err)
	return d
}

func TestTextAnchorStrategyExactMatch(t *testing.T) {
	d := newFixtureDriver(t)
	s := TextAnchorStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"anchor_text": "Manchester United",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "Manchester United", out.Element.Text())
}

func TestTextAnchorStrategyProximityNearest(t *testing.T) {
	d := newFixtureDriver(t)
	s := TextAnchorStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"anchor_text":        "Manchester United",
		"proximity_selector": ".score",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "2", out.Element.Text())
}

func TestTextAnchorStrategyCaseSensitiveMismatch(t *testing.T) {
	d := newFixtureDriver(t)
	s := TextAnchorStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"anchor_text":    "manchester united",
		"case_sensitive": true,
	})
	assert.False(t, out.Matched)
	assert.Equal(t, "case_sensitivity_mismatch", out.Reason)
}

func TestTextAnchorStrategyNotFound(t *testing.T) {
	d := newFixtureDriver(t)
	s := TextAnchorStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"anchor_text": "Liverpool",
	})
	assert.False(t, out.Matched)
	assert.Equal(t, "anchor_not_found", out.Reason)
}

func TestAttributeMatchStrategyClassToken(t *testing.T) {
	d := newFixtureDriver(t)
	s := AttributeMatchStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"attribute":     "class",
		"value_pattern": "^primary$",
		"element_tag":   "a",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "a", out.Element.TagName())
}

func TestAttributeMatchStrategyPlainAttribute(t *testing.T) {
	d := newFixtureDriver(t)
	s := AttributeMatchStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"attribute":     "data-role",
		"value_pattern": "home-score",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "2", out.Element.Text())
}

func TestAttributeMatchStrategyNotFound(t *testing.T) {
	d := newFixtureDriver(t)
	s := AttributeMatchStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"attribute":     "data-role",
		"value_pattern": "away-score",
	})
	assert.False(t, out.Matched)
	assert.Equal(t, "attribute_not_found", out.Reason)
}

func TestAttributeMatchStrategyRequiresFullValueMatch(t *testing.T) {
	d := newFixtureDriver(t)
	s := AttributeMatchStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"attribute":     "data-role",
		"value_pattern": "score",
	})
	assert.False(t, out.Matched, "value_pattern must fully match the attribute value, not a substring of it")
	assert.Equal(t, "attribute_not_found", out.Reason)
}

func TestAttributeMatchStrategyRequiresFullClassTokenMatch(t *testing.T) {
	d := newFixtureDriver(t)
	s := AttributeMatchStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"attribute":     "class",
		"value_pattern": "prim",
		"element_tag":   "a",
	})
	assert.False(t, out.Matched, "value_pattern must fully match a class token, not a substring of it")
}

func TestDOMRelationshipStrategyChild(t *testing.T) {
	d := newFixtureDriver(t)
	s := DOMRelationshipStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"parent_selector":   ".team-row",
		"relationship_type": relationChild,
		"child_index":       0,
	})
	require.True(t, out.Matched)
	assert.Equal(t, "Manchester United", out.Element.Text())
}

func TestDOMRelationshipStrategyChildOutOfRange(t *testing.T) {
	d := newFixtureDriver(t)
	s := DOMRelationshipStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"parent_selector":   ".team-row",
		"relationship_type": relationChild,
		"child_index":       5,
	})
	assert.False(t, out.Matched)
	assert.Equal(t, "index_out_of_range", out.Reason)
}

func TestDOMRelationshipStrategyDescendant(t *testing.T) {
	d := newFixtureDriver(t)
	s := DOMRelationshipStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"parent_selector":   ".team-row",
		"relationship_type": relationDescendant,
		"element_tag":       "span",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "Manchester United", out.Element.Text())
}

func TestDOMRelationshipStrategySiblingSkipsAnchor(t *testing.T) {
	d := newFixtureDriver(t)
	s := DOMRelationshipStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"parent_selector":   ".team-row",
		"relationship_type": relationSibling,
		"anchor_selector":   ".team-name",
		"element_tag":       "span",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "2", out.Element.Text())
}

func TestDOMRelationshipStrategyUnknownRelationRejectedAtValidate(t *testing.T) {
	s := DOMRelationshipStrategy{}
	errs := s.ValidateConfig(map[string]any{
		"parent_selector":   ".team-row",
		"relationship_type": "cousin",
	})
	require.Len(t, errs, 1)
}

func TestRoleBasedStrategyExplicitRole(t *testing.T) {
	d := newFixtureDriver(t)
	s := RoleBasedStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"role":               "button",
		"semantic_attribute": "role",
		"expected_value":     "button",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "Click", out.Element.Text())
}

func TestRoleBasedStrategyImpliedRole(t *testing.T) {
	d := newFixtureDriver(t)
	s := RoleBasedStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"role": "navigation",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "nav", out.Element.TagName())
}

func TestRoleBasedStrategyImpliedLinkWithSemanticAttribute(t *testing.T) {
	d := newFixtureDriver(t)
	s := RoleBasedStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"role":               "link",
		"semantic_attribute": "href",
		"expected_value":     "/details",
	})
	require.True(t, out.Matched)
	assert.Equal(t, "a", out.Element.TagName())
}

func TestRoleBasedStrategyNotFound(t *testing.T) {
	d := newFixtureDriver(t)
	s := RoleBasedStrategy{}
	out := s.Attempt(context.Background(), Context{Driver: d}, map[string]any{
		"role": "dialog",
	})
	assert.False(t, out.Matched)
	assert.Equal(t, "role_not_found", out.Reason)
}
