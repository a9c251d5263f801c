// Package tabcontext implements the Tab Context Manager: discovery and
// scoping of a document's active logical pane when it hosts multiple ones
// sharing a single underlying tree (spec §4.5).
package tabcontext

import "time"

// State is a TabContext's lifecycle state.
type State string

const (
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateError    State = "error"
	StateUnloaded State = "unloaded"
)

// Visibility is how much of a tab's panel is on-screen.
type Visibility string

const (
	VisibilityVisible          Visibility = "visible"
	VisibilityHidden           Visibility = "hidden"
	VisibilityPartiallyVisible Visibility = "partially_visible"
)

// TabContext describes one logical pane discovered on the document (spec
// §3).
type TabContext struct {
	TabID      string         `json:"tab_id"`
	TabType    string         `json:"tab_type"`
	State      State          `json:"state"`
	Visibility Visibility     `json:"visibility"`
	IsActive   bool           `json:"is_active"`
	DOMScope   string         `json:"dom_scope"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// tabState is the per-tab shape decoded from the driver's discovery script.
type tabState struct {
	Visible bool `json:"visible"`
	Loaded  bool `json:"loaded"`
	Active  bool `json:"active"`
}

// discoveryResult is the decoded shape of the driver script contract from
// spec §4.5: "{active_tab, available_tabs, tab_states: {id -> {visible,
// loaded, active}}}".
type discoveryResult struct {
	ActiveTab     string              `json:"active_tab"`
	AvailableTabs []string            `json:"available_tabs"`
	TabStates     map[string]tabState `json:"tab_states"`
}

// scopeTemplates is the fixed ordered list of structural-expression
// templates tried per tab_id; the first the driver resolves wins (spec
// SPEC_FULL.md §3).
var scopeTemplates = []string{
	`#tab-{id}`,
	`[data-tab-id="{id}"]`,
	`.tab-panel[data-tab="{id}"]`,
	`[role="tabpanel"][aria-labelledby="{id}"]`,
}
