package strategy

import (
	"context"
	"strings"

	"github.com/TisoneK/selectorengine/driver"
	"github.com/TisoneK/selectorengine/selector"
)

// TextAnchorStrategy finds the first element whose trimmed text equals
// anchor_text, optionally narrowed by proximity to a second selector (spec
// §4.1).
type TextAnchorStrategy struct{}

func (TextAnchorStrategy) Type() selector.StrategyType { return selector.TextAnchor }

func (TextAnchorStrategy) ValidateConfig(config map[string]any) []error {
	var errs []error
	if _, err := requireString(config, "anchor_text"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (TextAnchorStrategy) Attempt(ctx context.Context, rctx Context, config map[string]any) Outcome {
	anchorText, _ := strField(config, "anchor_text")
	if anchorText == "" {
		return NoMatch("invalid_config: anchor_text required")
	}
	caseSensitive, _ := boolField(config, "case_sensitive")
	proximity, _ := strField(config, "proximity_selector")

	all, err := rctx.Driver.QueryAll(ctx, scopedExpr(rctx, "*"))
	if err != nil {
		return Failed(err)
	}

	var anchorEl driver.Element
	differentCase := false
	for _, el := range all {
		txt := strings.TrimSpace(el.Text())
		if txt == "" {
			continue
		}
		if txt == anchorText {
			anchorEl = el
			break
		}
		if !caseSensitive && strings.EqualFold(txt, anchorText) {
			anchorEl = el
			break
		}
		if strings.EqualFold(txt, anchorText) {
			differentCase = true
		}
	}

	if anchorEl == nil {
		if caseSensitive && differentCase {
			return NoMatch("case_sensitivity_mismatch")
		}
		return NoMatch("anchor_not_found")
	}
	if proximity == "" {
		return Match(anchorEl)
	}

	candidates, err := rctx.Driver.QueryAll(ctx, scopedExpr(rctx, proximity))
	if err != nil {
		return Failed(err)
	}
	if len(candidates) == 0 {
		return NoMatch("anchor_found_no_proximity_match")
	}
	nearest := nearestElement(anchorEl, candidates)
	if nearest == nil {
		return NoMatch("anchor_found_no_proximity_match")
	}
	return Match(nearest)
}

// nearestElement picks the candidate with the shortest path to the common
// ancestor of anchor, ties broken by document order (candidates is already in
// document order per driver.Driver.QueryAll).
func nearestElement(anchor driver.Element, candidates []driver.Element) driver.Element {
	aPath := pathSegments(anchor.Path())
	bestDist := -1
	var best driver.Element
	for _, c := range candidates {
		cPath := pathSegments(c.Path())
		common := commonPrefixLen(aPath, cPath)
		dist := (len(aPath) - common) + (len(cPath) - common)
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}
