package confidence

import (
	"fmt"
	"sync"
	"time"

	"github.com/TisoneK/selectorengine/selector"
)

type subKey struct {
	context    string
	subContext string
}

// Manager holds context-scoped thresholds, an append-only change history,
// and a violations log. Concurrent access is serialized behind one mutex so
// a Get never observes a half-applied Set (spec §5: "Threshold sets are
// serialized against gets").
type Manager struct {
	mu         sync.RWMutex
	overrides  map[string]float64
	subOver    map[subKey]float64
	history    []ThresholdChange
	violations []ThresholdViolation
	changes    chan ThresholdChange
	store      *Store
}

// NewManager builds a Manager with no overrides set, falling back entirely
// to spec defaults. store may be nil to disable persistence.
func NewManager(store *Store) *Manager {
	m := &Manager{
		overrides: make(map[string]float64),
		subOver:   make(map[subKey]float64),
		changes:   make(chan ThresholdChange, 32),
		store:     store,
	}
	if store != nil {
		if state, err := store.Load(); err == nil && state != nil {
			m.overrides = state.Overrides
			m.subOver = state.SubOverrides
			m.history = state.History
		}
	}
	return m
}

// Changes returns a channel that receives every threshold_changed event.
// Sends are non-blocking; a slow subscriber misses events rather than
// stalling Set.
func (m *Manager) Changes() <-chan ThresholdChange { return m.changes }

// Get resolves the applicable threshold: sub_context override → context
// override → default[context] → default[development] (spec §4.4).
func (m *Manager) Get(context, subContext string) (float64, error) {
	if context == "" {
		return 0, ErrEmptyContext
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveLocked(context, subContext), nil
}

func (m *Manager) resolveLocked(context, subContext string) float64 {
	if subContext != "" {
		if v, ok := m.subOver[subKey{context, subContext}]; ok {
			return v
		}
	}
	if v, ok := m.overrides[context]; ok {
		return v
	}
	if v, ok := defaultThresholds[context]; ok {
		return v
	}
	return defaultThresholds[fallbackContext]
}

// Set installs a new threshold for (context, subContext), recording the
// change in history and persisting a snapshot. subContext empty sets the
// context-level override.
func (m *Manager) Set(context string, threshold float64, subContext, reason, by string) error {
	if context == "" {
		return ErrEmptyContext
	}
	if threshold < 0 || threshold > 1 {
		return ErrInvalidThreshold
	}

	m.mu.Lock()
	old := m.resolveLocked(context, subContext)
	if subContext != "" {
		m.subOver[subKey{context, subContext}] = threshold
	} else {
		m.overrides[context] = threshold
	}
	change := ThresholdChange{
		Context:    context,
		SubContext: subContext,
		Old:        old,
		New:        threshold,
		At:         time.Now(),
		By:         by,
		Reason:     reason,
	}
	m.history = append(m.history, change)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	select {
	case m.changes <- change:
	default:
	}

	if m.store != nil {
		if err := m.store.Save(snapshot); err != nil {
			return fmt.Errorf("confidence: persist snapshot: %w", err)
		}
	}
	return nil
}

// History returns a snapshot copy of the append-only change log.
func (m *Manager) History() []ThresholdChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ThresholdChange, len(m.history))
	copy(out, m.history)
	return out
}

// Filter partitions results against their applicable threshold, returning
// the passing subset and a ThresholdViolation for every result that fell
// short (spec §4.4).
func (m *Manager) Filter(results []selector.SelectorResult, context, subContext string) ([]selector.SelectorResult, []ThresholdViolation) {
	threshold, _ := m.Get(context, subContext)
	passed := make([]selector.SelectorResult, 0, len(results))
	var violations []ThresholdViolation
	now := time.Now()
	for _, r := range results {
		if r.ConfidenceScore >= threshold {
			passed = append(passed, r)
			continue
		}
		gap := threshold - r.ConfidenceScore
		v := ThresholdViolation{
			SelectorName: r.SelectorName,
			Context:      context,
			SubContext:   subContext,
			Threshold:    threshold,
			Confidence:   r.ConfidenceScore,
			Severity:     severityFor(gap),
			At:           now,
		}
		violations = append(violations, v)
	}

	m.mu.Lock()
	m.violations = append(m.violations, violations...)
	m.mu.Unlock()

	return passed, violations
}

// Violations returns a snapshot copy of the accumulated violations log.
func (m *Manager) Violations() []ThresholdViolation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ThresholdViolation, len(m.violations))
	copy(out, m.violations)
	return out
}

// Adaptive computes a context's adjusted threshold from recent performance
// (spec §4.4). perf.TotalAttempts < 10 returns the unadjusted base.
func (m *Manager) Adaptive(context string, perf PerformanceSample) float64 {
	base, _ := m.Get(context, "")
	if perf.TotalAttempts < 10 {
		return base
	}
	sr, ac := perf.SuccessRate, perf.AvgConfidence
	delta := -0.1*maxF(0, sr-0.9) - 0.05*maxF(0, ac-0.85) + 0.1*maxF(0, 0.7-sr)
	adjusted := base + delta
	if adjusted < 0.4 {
		return 0.4
	}
	if adjusted > 0.95 {
		return 0.95
	}
	return adjusted
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (m *Manager) snapshotLocked() PersistedState {
	overridesCopy := make(map[string]float64, len(m.overrides))
	for k, v := range m.overrides {
		overridesCopy[k] = v
	}
	subCopy := make(map[subKey]float64, len(m.subOver))
	for k, v := range m.subOver {
		subCopy[k] = v
	}
	historyCopy := make([]ThresholdChange, len(m.history))
	copy(historyCopy, m.history)
	return PersistedState{
		Overrides:    overridesCopy,
		SubOverrides: subCopy,
		History:      historyCopy,
		SavedAt:      time.Now(),
	}
}
