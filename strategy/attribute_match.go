package strategy

import (
	"context"
	"regexp"
	"strings"

	"github.com/TisoneK/selectorengine/selector"
)

// AttributeMatchStrategy finds the first element whose attribute value
// matches value_pattern, optionally narrowed to element_tag (spec §4.1).
// The class attribute is matched token-wise: value_pattern matches if it
// matches any one class token, not the whole attribute string.
type AttributeMatchStrategy struct{}

func (AttributeMatchStrategy) Type() selector.StrategyType { return selector.AttributeMatch }

func (AttributeMatchStrategy) ValidateConfig(config map[string]any) []error {
	var errs []error
	if _, err := requireString(config, "attribute"); err != nil {
		errs = append(errs, err)
	}
	pattern, err := requireString(config, "value_pattern")
	if err != nil {
		errs = append(errs, err)
	} else if _, err := regexp.Compile(pattern); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (AttributeMatchStrategy) Attempt(ctx context.Context, rctx Context, config map[string]any) Outcome {
	attr, _ := strField(config, "attribute")
	pattern, _ := strField(config, "value_pattern")
	if attr == "" || pattern == "" {
		return NoMatch("invalid_config: attribute and value_pattern required")
	}
	// Anchored so value_pattern must fully match a value or class token,
	// per spec §4.1 ("whose attribute value fully matches value_pattern"),
	// not merely contain it.
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return NoMatch("invalid_config: value_pattern does not compile")
	}
	tag, _ := strField(config, "element_tag")
	if tag == "" {
		tag = "*"
	}

	candidates, err := rctx.Driver.QueryAll(ctx, scopedExpr(rctx, tag))
	if err != nil {
		return Failed(err)
	}
	if len(candidates) == 0 {
		return NoMatch("no_elements_of_tag")
	}

	for _, el := range candidates {
		val, ok := el.Attrs()[attr]
		if !ok {
			continue
		}
		if attr == "class" {
			for _, tok := range strings.Fields(val) {
				if re.MatchString(tok) {
					return Match(el)
				}
			}
			continue
		}
		if re.MatchString(val) {
			return Match(el)
		}
	}
	return NoMatch("attribute_not_found")
}
