package selector

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry owns the set of registered SemanticSelectors, keyed by name. It
// mirrors the teacher's business/policies.PolicyManager: a mutex-guarded map
// with narrow accessor methods rather than exposing the map itself.
type Registry struct {
	mu        sync.RWMutex
	selectors map[string]*SemanticSelector
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{selectors: make(map[string]*SemanticSelector)}
}

// Register adds sel to the registry. Registering the same name twice with a
// structurally equal definition is idempotent (spec §8); registering the same
// name with a divergent definition is rejected.
func (r *Registry) Register(sel *SemanticSelector) error {
	if sel == nil {
		return fmt.Errorf("selector: cannot register nil selector")
	}
	if err := sel.Validate(); err != nil {
		return fmt.Errorf("selector: invalid definition for %q: %w", sel.Name, err)
	}
	normalized := *sel
	if normalized.ConfidenceThreshold == 0 {
		normalized.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	normalized.Strategies = normalized.SortStrategies(false)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.selectors[normalized.Name]; ok {
		if !reflect.DeepEqual(existing, &normalized) {
			return fmt.Errorf("%w: %q", ErrDivergentRedefiniton, normalized.Name)
		}
		return nil
	}
	r.selectors[normalized.Name] = &normalized
	return nil
}

// Get returns the selector by name, or (nil, false) if not registered.
func (r *Registry) Get(name string) (*SemanticSelector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sel, ok := r.selectors[name]
	return sel, ok
}

// Deregister removes a selector by name. Deregistration is rare and global
// per spec §3 lifecycle notes.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selectors, name)
}

// List returns a snapshot slice of every registered selector.
func (r *Registry) List() []*SemanticSelector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SemanticSelector, 0, len(r.selectors))
	for _, sel := range r.selectors {
		out = append(out, sel)
	}
	return out
}

// UpdateStrategyMetrics replaces the StrategyPattern's metrics-bearing fields
// (SuccessRate/AvgResolutionTime/LastUpdated/IsActive) in place. This is the
// one mutation allowed on a registered selector after registration (spec §3:
// "Immutable after registration except metrics-bearing fields inside its
// strategies").
func (r *Registry) UpdateStrategyMetrics(selectorName, strategyID string, mutate func(*StrategyPattern)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sel, ok := r.selectors[selectorName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSelectorNotFound, selectorName)
	}
	for i := range sel.Strategies {
		if sel.Strategies[i].ID == strategyID {
			mutate(&sel.Strategies[i])
			return nil
		}
	}
	return fmt.Errorf("selector: strategy %q not found on %q", strategyID, selectorName)
}

// SetStrategyActive flips StrategyPattern.IsActive via operator action (spec
// §3 lifecycle: "StrategyPattern.is_active flips via operator action").
func (r *Registry) SetStrategyActive(selectorName, strategyID string, active bool) error {
	return r.UpdateStrategyMetrics(selectorName, strategyID, func(sp *StrategyPattern) {
		sp.IsActive = active
	})
}
