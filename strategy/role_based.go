package strategy

import (
	"context"

	"github.com/TisoneK/selectorengine/driver"
	"github.com/TisoneK/selectorengine/selector"
)

// RoleBasedStrategy finds the first element whose explicit or implied ARIA
// role equals role, optionally narrowed by an additional attribute/value
// check (spec §4.1).
type RoleBasedStrategy struct{}

func (RoleBasedStrategy) Type() selector.StrategyType { return selector.RoleBased }

func (RoleBasedStrategy) ValidateConfig(config map[string]any) []error {
	var errs []error
	if _, err := requireString(config, "role"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (RoleBasedStrategy) Attempt(ctx context.Context, rctx Context, config map[string]any) Outcome {
	role, _ := strField(config, "role")
	if role == "" {
		return NoMatch("invalid_config: role required")
	}
	semanticAttr, _ := strField(config, "semantic_attribute")
	expectedValue, _ := strField(config, "expected_value")

	candidates, err := rctx.Driver.QueryAll(ctx, scopedExpr(rctx, "*"))
	if err != nil {
		return Failed(err)
	}

	for _, el := range candidates {
		if elementRole(el) != role {
			continue
		}
		if semanticAttr != "" {
			val, ok := el.Attrs()[semanticAttr]
			if !ok || (expectedValue != "" && val != expectedValue) {
				continue
			}
		}
		return Match(el)
	}
	return NoMatch("role_not_found")
}

// elementRole returns el's explicit role attribute, falling back to the
// implied ARIA role for its tag (and, for <input>, its type).
func elementRole(el driver.Element) string {
	if r, ok := el.Attr("role"); ok && r != "" {
		return r
	}
	return impliedRole(el)
}

func impliedRole(el driver.Element) string {
	tag := el.TagName()
	switch tag {
	case "a":
		if _, ok := el.Attr("href"); ok {
			return "link"
		}
		return ""
	case "button":
		return "button"
	case "input":
		typ, _ := el.Attr("type")
		switch typ {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "", "text", "search", "email", "url", "tel", "password":
			return "textbox"
		default:
			return ""
		}
	case "textarea":
		return "textbox"
	case "select":
		if _, ok := el.Attr("multiple"); ok {
			return "listbox"
		}
		return "combobox"
	case "img":
		return "img"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "nav":
		return "navigation"
	case "table":
		return "table"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	case "header":
		return "banner"
	case "footer":
		return "contentinfo"
	case "main":
		return "main"
	case "form":
		return "form"
	default:
		return ""
	}
}
