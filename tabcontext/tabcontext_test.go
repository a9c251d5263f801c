package tabcontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TisoneK/selectorengine/driver"
)

const tabbedHTML = `
<html><body>
  <nav>
    <button id="tab-btn-overview">Overview</button>
    <button id="tab-btn-stats">Stats</button>
  </nav>
  <div id="tab-overview-panel" data-tab-id="overview">Overview content</div>
  <div class="tab-panel" data-tab="stats">Stats content</div>
</body></html>`

func newFakeDriver(t *testing.T) *driver.FakeDriver {
	t.Helper()
	d, err := driver.NewFakeDriver(tabbedHTML, "https://example.test")
	require.NoError(t, err)
	return d
}

func registerDiscovery(d *driver.FakeDriver, active string, states map[string]tabState) {
	available := make([]string, 0, len(states))
	for id := range states {
		available = append(available, id)
	}
	flat := make(map[string]any, len(states))
	for id, st := range states {
		flat[id] = map[string]any{
			"visible": st.Visible,
			"loaded":  st.Loaded,
			"active":  st.Active,
		}
	}
	d.RegisterScript(DiscoveryScript, func(ctx context.Context) (any, error) {
		return map[string]any{
			"active_tab":     active,
			"available_tabs": available,
			"tab_states":     flat,
		}, nil
	})
}

type memStore struct {
	data map[string]*TabContext
	fail bool
}

func newMemStore() *memStore { return &memStore{data: make(map[string]*TabContext)} }

func (s *memStore) Save(tc *TabContext) error {
	if s.fail {
		return errors.New("store unavailable")
	}
	cpy := *tc
	s.data[tc.TabID] = &cpy
	return nil
}

func (s *memStore) Load(tabID string) (*TabContext, bool, error) {
	tc, ok := s.data[tabID]
	if !ok {
		return nil, false, nil
	}
	return tc, true, nil
}

func TestManagerDetectActiveAndList(t *testing.T) {
	d := newFakeDriver(t)
	registerDiscovery(d, "overview", map[string]tabState{
		"overview": {Visible: true, Loaded: true, Active: true},
		"stats":    {Visible: false, Loaded: false, Active: false},
	})

	m := NewManager(time.Minute, nil)
	active, err := m.DetectActive(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "overview", active.TabID)
	assert.Equal(t, StateLoaded, active.State)
	assert.Equal(t, VisibilityVisible, active.Visibility)
	assert.Equal(t, `[data-tab-id="overview"]`, active.DOMScope)

	all, err := m.List(context.Background(), d)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestManagerGetUnknownTabReturnsNil(t *testing.T) {
	d := newFakeDriver(t)
	registerDiscovery(d, "overview", map[string]tabState{
		"overview": {Visible: true, Loaded: true, Active: true},
	})

	m := NewManager(time.Minute, nil)
	tc, err := m.Get(context.Background(), d, "missing")
	require.NoError(t, err)
	assert.Nil(t, tc)
}

func TestManagerScopeTriesTemplatesInOrder(t *testing.T) {
	d := newFakeDriver(t)
	m := NewManager(time.Minute, nil)

	scope, err := m.Scope(context.Background(), d, "stats")
	require.NoError(t, err)
	assert.Equal(t, `.tab-panel[data-tab="stats"]`, scope)

	scope, err = m.Scope(context.Background(), d, "overview")
	require.NoError(t, err)
	assert.Equal(t, `[data-tab-id="overview"]`, scope)

	scope, err = m.Scope(context.Background(), d, "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "", scope)
}

func TestManagerDiscoveryIsCachedWithinTTL(t *testing.T) {
	d := newFakeDriver(t)
	calls := 0
	d.RegisterScript(DiscoveryScript, func(ctx context.Context) (any, error) {
		calls++
		return map[string]any{
			"active_tab":     "overview",
			"available_tabs": []string{"overview"},
			"tab_states": map[string]any{
				"overview": map[string]any{"visible": true, "loaded": true, "active": true},
			},
		}, nil
	})

	m := NewManager(time.Hour, nil)
	_, err := m.List(context.Background(), d)
	require.NoError(t, err)
	_, err = m.List(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestManagerSwitchDetected(t *testing.T) {
	d := newFakeDriver(t)
	registerDiscovery(d, "overview", map[string]tabState{
		"overview": {Visible: true, Loaded: true, Active: true},
		"stats":    {Visible: false, Loaded: false, Active: false},
	})

	m := NewManager(0, nil)
	previous, err := m.DetectActive(context.Background(), d)
	require.NoError(t, err)

	registerDiscovery(d, "stats", map[string]tabState{
		"overview": {Visible: false, Loaded: true, Active: false},
		"stats":    {Visible: true, Loaded: true, Active: true},
	})

	switched, err := m.SwitchDetected(context.Background(), d, previous)
	require.NoError(t, err)
	assert.True(t, switched)
}

func TestManagerPersistAndRetrieve(t *testing.T) {
	store := newMemStore()
	m := NewManager(time.Minute, store)

	tc := &TabContext{TabID: "overview", State: StateLoaded, Visibility: VisibilityVisible, IsActive: true}
	assert.True(t, m.Persist(tc))

	got, ok := m.Retrieve("overview")
	require.True(t, ok)
	assert.Equal(t, "overview", got.TabID)

	_, ok = m.Retrieve("missing")
	assert.False(t, ok)
}

func TestManagerRetrieveWithoutStoreReturnsFalse(t *testing.T) {
	m := NewManager(time.Minute, nil)
	_, ok := m.Retrieve("overview")
	assert.False(t, ok)
}

func TestManagerPersistFailureReturnsFalse(t *testing.T) {
	store := newMemStore()
	store.fail = true
	m := NewManager(time.Minute, store)
	assert.False(t, m.Persist(&TabContext{TabID: "overview"}))
}
