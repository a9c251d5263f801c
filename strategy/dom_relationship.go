package strategy

import (
	"context"
	"fmt"

	"github.com/TisoneK/selectorengine/driver"
	"github.com/TisoneK/selectorengine/selector"
)

// relationship kinds accepted by DOMRelationshipStrategy's relationship_type.
const (
	relationChild      = "child"
	relationDescendant = "descendant"
	relationSibling    = "sibling"
)

// DOMRelationshipStrategy locates an element via its structural relationship
// to a parent_selector match: an indexed child, a tag-filtered descendant, or
// a sibling of an anchor element (spec §4.1).
type DOMRelationshipStrategy struct{}

func (DOMRelationshipStrategy) Type() selector.StrategyType { return selector.DOMRelation }

func (DOMRelationshipStrategy) ValidateConfig(config map[string]any) []error {
	var errs []error
	if _, err := requireString(config, "parent_selector"); err != nil {
		errs = append(errs, err)
	}
	rel, err := requireString(config, "relationship_type")
	if err != nil {
		errs = append(errs, err)
	} else {
		switch rel {
		case relationChild, relationDescendant, relationSibling:
		default:
			errs = append(errs, fmt.Errorf("relationship_type: unknown value %q", rel))
		}
	}
	return errs
}

func (DOMRelationshipStrategy) Attempt(ctx context.Context, rctx Context, config map[string]any) Outcome {
	parentSelector, _ := strField(config, "parent_selector")
	relType, _ := strField(config, "relationship_type")
	if parentSelector == "" || relType == "" {
		return NoMatch("invalid_config: parent_selector and relationship_type required")
	}
	tag, _ := strField(config, "element_tag")
	if tag == "" {
		tag = "*"
	}

	parent, found, err := rctx.Driver.QueryOne(ctx, scopedExpr(rctx, parentSelector))
	if err != nil {
		return Failed(err)
	}
	if !found {
		return NoMatch("parent_not_found")
	}

	switch relType {
	case relationChild:
		idxF, ok := numberField(config, "child_index")
		if !ok {
			return NoMatch("invalid_config: child_index required")
		}
		idx := int(idxF)
		children := parent.Children()
		if idx < 0 || idx >= len(children) {
			return NoMatch("index_out_of_range")
		}
		return Match(children[idx])

	case relationDescendant:
		descendants, err := rctx.Driver.QueryAll(ctx, parentSelector+" "+tag)
		if err != nil {
			return Failed(err)
		}
		if len(descendants) == 0 {
			return NoMatch("descendant_not_found")
		}
		return Match(descendants[0])

	case relationSibling:
		return attemptSibling(ctx, rctx, parent, tag, config)

	default:
		return NoMatch("invalid_config: unknown relationship_type")
	}
}

// attemptSibling returns the first sibling of element_tag under parent,
// skipping the element identified by anchor_selector (if given).
func attemptSibling(ctx context.Context, rctx Context, parent driver.Element, tag string, config map[string]any) Outcome {
	children := parent.Children()
	if len(children) == 0 {
		return NoMatch("sibling_not_found")
	}

	anchorSelector, _ := strField(config, "anchor_selector")
	var anchorPath string
	if anchorSelector != "" {
		anchorEl, found, err := rctx.Driver.QueryOne(ctx, scopedExpr(rctx, anchorSelector))
		if err != nil {
			return Failed(err)
		}
		if !found {
			return NoMatch("anchor_not_found")
		}
		anchorPath = anchorEl.Path()
	}

	for _, c := range children {
		if anchorPath != "" && c.Path() == anchorPath {
			continue
		}
		if tag != "*" && c.TagName() != tag {
			continue
		}
		return Match(c)
	}
	return NoMatch("sibling_not_found")
}
