package tabcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/TisoneK/selectorengine/driver"
)

// DiscoveryScript is the driver-level script name evaluated to discover
// tabs (spec §4.5).
const DiscoveryScript = "tab_discovery"

// Store persists per-tab artifacts. Corruption on retrieval must yield
// (nil, false) and be logged by the caller, not panic (spec §4.5).
type Store interface {
	Save(ctx *TabContext) error
	Load(tabID string) (*TabContext, bool, error)
}

// Manager discovers, scopes, and caches a document's active tab contexts.
// The discovery cache uses the teacher's TTL-with-double-checked-locking
// shape (telemetry/health.Evaluator) since re-evaluating the driver script
// on every call would defeat the bounded-overhead goal shared across the
// ambient stack.
type Manager struct {
	mu       sync.RWMutex
	cached   map[string]*TabContext
	cachedAt time.Time
	ttl      time.Duration
	store    Store
}

// NewManager builds a Manager with the given discovery cache TTL (0 means
// always re-discover) and an optional persistence Store.
func NewManager(ttl time.Duration, store Store) *Manager {
	return &Manager{cached: make(map[string]*TabContext), ttl: ttl, store: store}
}

// List returns every currently discovered TabContext, refreshing the cache
// if its TTL has expired.
func (m *Manager) List(ctx context.Context, d driver.Driver) ([]*TabContext, error) {
	contexts, err := m.discover(ctx, d)
	if err != nil {
		return nil, err
	}
	out := make([]*TabContext, 0, len(contexts))
	for _, tc := range contexts {
		out = append(out, tc)
	}
	return out, nil
}

// Get returns the TabContext for tabID, or (nil, nil) if absent.
func (m *Manager) Get(ctx context.Context, d driver.Driver, tabID string) (*TabContext, error) {
	contexts, err := m.discover(ctx, d)
	if err != nil {
		return nil, err
	}
	return contexts[tabID], nil
}

// DetectActive returns the currently active TabContext, or (nil, nil) if
// the document hosts no tabs.
func (m *Manager) DetectActive(ctx context.Context, d driver.Driver) (*TabContext, error) {
	contexts, err := m.discover(ctx, d)
	if err != nil {
		return nil, err
	}
	for _, tc := range contexts {
		if tc.IsActive {
			return tc, nil
		}
	}
	return nil, nil
}

// Scope resolves the structural expression rooting tabID's subtree by
// trying the fixed template list in order; the first the driver resolves
// wins (spec SPEC_FULL.md §3).
func (m *Manager) Scope(ctx context.Context, d driver.Driver, tabID string) (string, error) {
	for _, tmpl := range scopeTemplates {
		expr := strings.ReplaceAll(tmpl, "{id}", tabID)
		_, found, err := d.QueryOne(ctx, expr)
		if err != nil {
			return "", err
		}
		if found {
			return expr, nil
		}
	}
	return "", nil
}

// Persist saves ctx via the bound Store, returning false if persistence is
// unavailable or fails.
func (m *Manager) Persist(tc *TabContext) bool {
	if m.store == nil || tc == nil {
		return false
	}
	return m.store.Save(tc) == nil
}

// Retrieve loads a previously persisted TabContext by tab_id. Corruption or
// absence both yield (nil, false) rather than an error, per spec §4.5.
func (m *Manager) Retrieve(tabID string) (*TabContext, bool) {
	if m.store == nil {
		return nil, false
	}
	tc, ok, err := m.store.Load(tabID)
	if err != nil || !ok {
		return nil, false
	}
	return tc, true
}

// SwitchDetected compares a freshly discovered active tab against previous,
// reporting true if the active tab id or its state diverged.
func (m *Manager) SwitchDetected(ctx context.Context, d driver.Driver, previous *TabContext) (bool, error) {
	current, err := m.DetectActive(ctx, d)
	if err != nil {
		return false, err
	}
	if previous == nil && current == nil {
		return false, nil
	}
	if (previous == nil) != (current == nil) {
		return true, nil
	}
	return previous.TabID != current.TabID ||
		previous.State != current.State ||
		previous.Visibility != current.Visibility, nil
}

// discover evaluates the driver's discovery script, using a cached result
// within TTL (double-checked locking, matching telemetry/health.Evaluator).
func (m *Manager) discover(ctx context.Context, d driver.Driver) (map[string]*TabContext, error) {
	m.mu.RLock()
	if m.withinTTL() {
		cached := m.snapshotLocked()
		m.mu.RUnlock()
		return cached, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.withinTTL() {
		return m.snapshotLocked(), nil
	}

	raw, err := d.Evaluate(ctx, DiscoveryScript)
	if err != nil {
		return nil, fmt.Errorf("tabcontext: discovery script failed: %w", err)
	}

	result, err := decodeDiscovery(raw)
	if err != nil {
		return nil, fmt.Errorf("tabcontext: decode discovery result: %w", err)
	}

	now := time.Now()
	next := make(map[string]*TabContext, len(result.TabStates))
	for id, st := range result.TabStates {
		scope, scopeErr := m.Scope(ctx, d, id)
		if scopeErr != nil {
			scope = ""
		}
		next[id] = &TabContext{
			TabID:      id,
			State:      stateFor(st),
			Visibility: visibilityFor(st),
			IsActive:   id == result.ActiveTab,
			DOMScope:   scope,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	m.cached = next
	m.cachedAt = now
	return m.snapshotLocked(), nil
}

func (m *Manager) withinTTL() bool {
	if m.ttl <= 0 {
		return false
	}
	return m.cachedAt.Add(m.ttl).After(time.Now())
}

func (m *Manager) snapshotLocked() map[string]*TabContext {
	out := make(map[string]*TabContext, len(m.cached))
	for k, v := range m.cached {
		cpy := *v
		out[k] = &cpy
	}
	return out
}

func decodeDiscovery(raw any) (discoveryResult, error) {
	var result discoveryResult
	data, err := json.Marshal(raw)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, err
	}
	return result, nil
}

func stateFor(st tabState) State {
	switch {
	case !st.Loaded:
		return StateLoading
	case st.Loaded:
		return StateLoaded
	default:
		return StateUnloaded
	}
}

func visibilityFor(st tabState) Visibility {
	if st.Visible {
		return VisibilityVisible
	}
	return VisibilityHidden
}
