package selectorengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TisoneK/selectorengine/config"
	"github.com/TisoneK/selectorengine/driver"
	"github.com/TisoneK/selectorengine/internal/tracing"
	"github.com/TisoneK/selectorengine/selector"
	"github.com/TisoneK/selectorengine/strategy"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Directory = t.TempDir()
	cfg.Reporting.Enabled = false

	e, err := New(Options{Config: cfg})
	require.NoError(t, err)
	return e
}

func registerGreeting(t *testing.T, e *Engine) {
	t.Helper()
	e.Strategies.Register(strategy.TextAnchorStrategy{})
	sel := &selector.SemanticSelector{
		Name:                "greeting",
		ConfidenceThreshold: 0.1,
		Strategies: []selector.StrategyPattern{
			{ID: "s1", Type: selector.TextAnchor, Priority: 1, IsActive: true, Config: map[string]any{"anchor_text": "Hello world"}},
		},
	}
	require.NoError(t, e.Selectors.Register(sel))
}

func TestNewEngineStartsReady(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, StateReady, e.state)
}

func TestLifecycleStartStopRestart(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	assert.Equal(t, StateRunning, e.state)

	require.NoError(t, e.Restart(ctx))
	assert.Equal(t, StateRunning, e.state)
	assert.Equal(t, 1, e.restartCount)

	require.NoError(t, e.Stop(true))
	assert.Equal(t, StateStopped, e.state)
}

func TestStartInvalidFromRunning(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	assert.Error(t, e.Start(ctx))
}

func TestShutdownIsTerminal(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	e.Shutdown()
	assert.Equal(t, StateShutdown, e.state)
}

func TestSnapshotReportsHealth(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(true)

	snap := e.Snapshot(ctx)
	assert.Equal(t, StateRunning, snap.State)
	assert.NotEmpty(t, snap.Health.Overall)
}

func TestResolveBridgesIntoTelemetryAndAnalytics(t *testing.T) {
	e := newTestEngine(t)
	registerGreeting(t, e)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(true)

	fd, err := driver.NewFakeDriver(`<html><body><div>Hello world</div></body></html>`, "https://example.test")
	require.NoError(t, err)

	result, err := e.Resolve(ctx, "greeting", "corr-1", "", strategy.Context{Driver: fd})
	require.NoError(t, err)
	assert.True(t, result.Success)

	metrics, ok := e.Analytics.Get("greeting", "s1")
	require.True(t, ok)
	assert.Equal(t, 1, metrics.TotalAttempts)
	assert.Equal(t, 1, metrics.Successful)
	assert.Equal(t, 0, metrics.Failed)

	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, e.Collector.QueueDepth(), 0)
}

func TestResolveStartsASpanForCorrelation(t *testing.T) {
	e := newTestEngine(t)
	registerGreeting(t, e)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(true)

	var seenTraceID string
	e.tracer = tracerProbe{wrapped: e.tracer, onStart: func(ctx context.Context) {
		traceID, _ := tracing.ExtractIDs(ctx)
		seenTraceID = traceID
	}}

	fd, err := driver.NewFakeDriver(`<html><body><div>Hello world</div></body></html>`, "https://example.test")
	require.NoError(t, err)

	_, err = e.Resolve(ctx, "greeting", "corr-1", "", strategy.Context{Driver: fd})
	require.NoError(t, err)
	assert.NotEmpty(t, seenTraceID)
}

// tracerProbe wraps a real tracing.Tracer to observe the span ctx Resolve
// starts, without re-implementing span bookkeeping itself.
type tracerProbe struct {
	wrapped tracing.Tracer
	onStart func(ctx context.Context)
}

func (p tracerProbe) StartSpan(ctx context.Context, name string) (context.Context, tracing.Span) {
	ctx, span := p.wrapped.StartSpan(ctx, name)
	p.onStart(ctx)
	return ctx, span
}

func (p tracerProbe) Noop() bool { return p.wrapped.Noop() }

func TestResolveUnknownSelectorReturnsError(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(true)

	fd, err := driver.NewFakeDriver(`<html></html>`, "https://example.test")
	require.NoError(t, err)

	_, err = e.Resolve(ctx, "does-not-exist", "corr-2", "", strategy.Context{Driver: fd})
	assert.Error(t, err)
}
