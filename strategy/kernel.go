// Package strategy implements the Strategy Kernel: four strategy variants,
// each a pure function of (SemanticSelector, Context, config) -> AttemptOutcome.
// Strategies never interact with telemetry, metrics, or validation (spec §4.1).
package strategy

import (
	"context"
	"fmt"

	"github.com/TisoneK/selectorengine/driver"
	"github.com/TisoneK/selectorengine/selector"
)

// Context binds a resolution attempt to a live driver and an optional
// sub-context / DOM scope (e.g. a tab's root selector, from the Tab Context
// Manager).
type Context struct {
	Driver     driver.Driver
	SubContext string
	// Scope, if non-empty, is a structural expression prefixed onto queries so
	// that strategies only search within an active tab's subtree.
	Scope string
}

// Outcome is the sum type returned by a strategy attempt.
type Outcome struct {
	Matched bool
	Element driver.Element
	// Reason is populated on a NoMatch outcome.
	Reason string
	// DriverErr is populated when the driver itself failed (document gone,
	// evaluate script error). The Resolution Engine records this as a
	// failure_reason prefixed "driver:".
	DriverErr error
}

// Match builds a successful Outcome.
func Match(el driver.Element) Outcome { return Outcome{Matched: true, Element: el} }

// NoMatch builds a failed Outcome with a structured reason.
func NoMatch(reason string) Outcome { return Outcome{Matched: false, Reason: reason} }

// Failed builds a driver-error Outcome.
func Failed(err error) Outcome { return Outcome{Matched: false, DriverErr: err} }

// Strategy is the shared operation surface every strategy variant exposes.
type Strategy interface {
	Type() selector.StrategyType
	// ValidateConfig returns the full set of configuration issues. An empty
	// slice means config is well-formed.
	ValidateConfig(config map[string]any) []error
	// Attempt executes the strategy against ctx using config.
	Attempt(ctx context.Context, rctx Context, config map[string]any) Outcome
}

// Registry maps a StrategyType to its Strategy implementation.
type Registry struct {
	strategies map[selector.StrategyType]Strategy
}

// NewRegistry builds a Registry pre-populated with the four built-in
// strategy kinds.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[selector.StrategyType]Strategy, 4)}
	r.Register(TextAnchorStrategy{})
	r.Register(AttributeMatchStrategy{})
	r.Register(DOMRelationshipStrategy{})
	r.Register(RoleBasedStrategy{})
	return r
}

// Register installs or replaces a Strategy implementation for its type.
func (r *Registry) Register(s Strategy) { r.strategies[s.Type()] = s }

// Get returns the Strategy for typ, or an error if unknown.
func (r *Registry) Get(typ selector.StrategyType) (Strategy, error) {
	s, ok := r.strategies[typ]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown type %q", typ)
	}
	return s, nil
}

// BuildElementInfo converts a driver.Element snapshot into selector.ElementInfo.
// Source-observed ambiguity: several reference implementations return a
// placeholder ElementInfo regardless of the actual match (spec §9); this
// always derives the info from the concrete matched element.
func BuildElementInfo(el driver.Element) *selector.ElementInfo {
	if el == nil {
		return nil
	}
	return &selector.ElementInfo{
		TagName:      el.TagName(),
		TextContent:  el.Text(),
		Attributes:   el.Attrs(),
		CSSClasses:   el.ClassTokens(),
		DOMPath:      el.Path(),
		Visibility:   el.Visible(),
		Interactable: el.Interactable(),
	}
}

// scopedExpr prefixes expr with rctx.Scope when set, so strategies respect a
// tab's active subtree.
func scopedExpr(rctx Context, expr string) string {
	if rctx.Scope == "" {
		return expr
	}
	return rctx.Scope + " " + expr
}
