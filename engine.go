package selectorengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TisoneK/selectorengine/alerting"
	"github.com/TisoneK/selectorengine/analytics"
	"github.com/TisoneK/selectorengine/checkpoint"
	"github.com/TisoneK/selectorengine/config"
	"github.com/TisoneK/selectorengine/confidence"
	"github.com/TisoneK/selectorengine/internal/tracing"
	"github.com/TisoneK/selectorengine/resolution"
	"github.com/TisoneK/selectorengine/selector"
	"github.com/TisoneK/selectorengine/strategy"
	"github.com/TisoneK/selectorengine/tabcontext"
	"github.com/TisoneK/selectorengine/telemetry"
	"github.com/TisoneK/selectorengine/telemetry/health"
	"github.com/TisoneK/selectorengine/telemetry/logging"
	"github.com/TisoneK/selectorengine/telemetry/metrics"
	"github.com/TisoneK/selectorengine/validation"
)

// State is the Engine's own lifecycle state, distinct from the per-checkpoint
// Status machine in package checkpoint.
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateShutdown     State = "shutdown"
)

// Snapshot is the facade's own point-in-time rollup, distinct from
// health.Snapshot (which it embeds) and checkpoint/telemetry snapshots.
type Snapshot struct {
	State           State           `json:"state"`
	RestartCount    int             `json:"restart_count"`
	Health          health.Snapshot `json:"health"`
	QueueDepth      int             `json:"queue_depth"`
	BufferOverflows uint64          `json:"buffer_overflows"`
}

// Options configures a new Engine. Every field is optional; zero values fall
// back to the teacher-style defaults (config.Default(), a file-backed
// checkpoint store under "./data", a no-op metrics provider, slog.Default()).
type Options struct {
	Config          config.Config
	Storage         telemetry.Storage
	MetricsProvider metrics.Provider
	Logger          logging.Logger
	Notifiers       map[config.NotificationChannel]alerting.Notifier
	Tracer          tracing.Tracer
}

// Engine is the top-level facade wiring the Resolution Engine, Confidence &
// Validation, Strategy Metrics & Drift, and Telemetry & Checkpoint Pipeline
// subsystems into one lifecycle-managed unit, generalizing the teacher's
// engine/engine.go Snapshot/TelemetryOptions/lifecycle shape (now folded in
// here; see DESIGN.md).
type Engine struct {
	mu           sync.Mutex
	state        State
	restartCount int
	cancel       context.CancelFunc

	cfg    config.Config
	logger logging.Logger
	tracer tracing.Tracer

	Selectors   *selector.Registry
	Strategies  *strategy.Registry
	Validators  *validation.Registry
	Confidence  *confidence.Manager
	Analytics   *analytics.Store
	Drift       *analytics.DriftAnalyzer
	Resolution  *resolution.Engine
	TabContexts *tabcontext.Manager
	Collector   *telemetry.Collector
	HealthCheck *health.Evaluator
	Alerts      *alerting.Engine
	Reports     *alerting.ReportScheduler

	storage telemetry.Storage
}

// New builds an Engine and returns it in StateReady. It does not start any
// background goroutine; call Start to enter StateRunning.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg.Global.LogLevel == "" {
		cfg = config.Default()
	}
	if result := config.Validate(&cfg); !result.IsValid {
		return nil, fmt.Errorf("selectorengine: invalid configuration: %v", result.Errors)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(nil)
	}

	storage := opts.Storage
	if storage == nil {
		fs, err := checkpoint.NewFileStore(cfg.Storage.Directory, checkpoint.FileStoreOptions{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("selectorengine: default checkpoint store: %w", err)
		}
		storage = fs
	}

	provider := opts.MetricsProvider
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.NewTracer(true)
	}

	selectors := selector.NewRegistry()
	strategies := strategy.NewRegistry()
	validators := validation.NewRegistry()

	confStore := confidence.NewStore(cfg.Storage.Directory + "/thresholds.yaml")
	conf := confidence.NewManager(confStore)

	analyticsStore := analytics.NewStore()
	drift := analytics.NewDriftAnalyzer(analyticsStore)

	resolutionEngine := resolution.NewEngine(selectors, strategies, validators, conf, analyticsStore)

	tabctx := tabcontext.NewManager(5*time.Minute, newMemTabStore())

	collectorCfg := telemetry.DefaultConfig()
	collectorCfg.Enabled = cfg.Collection.Enabled
	collectorCfg.BufferSize = cfg.Collection.BufferSize
	collectorCfg.BatchSize = cfg.Collection.BatchSize
	collectorCfg.FlushInterval = cfg.Collection.FlushInterval.Duration()
	collector := telemetry.NewCollector(collectorCfg, storage, provider, logger)

	var notifiers map[config.NotificationChannel]alerting.Notifier
	if opts.Notifiers != nil {
		notifiers = opts.Notifiers
	} else {
		notifiers = map[config.NotificationChannel]alerting.Notifier{
			config.ChannelLog:     alerting.NewLogNotifier(logger),
			config.ChannelEmail:   alerting.NewEmailNotifier(),
			config.ChannelWebhook: alerting.NewWebhookNotifier(),
			config.ChannelSlack:   alerting.NewSlackNotifier(),
		}
	}
	alertEngine := alerting.NewEngine(cfg.Alerting.Thresholds, cfg.Alerting.Notifications, notifiers, logger)

	e := &Engine{
		state:       StateInitializing,
		cfg:         cfg,
		logger:      logger,
		tracer:      tracer,
		Selectors:   selectors,
		Strategies:  strategies,
		Validators:  validators,
		Confidence:  conf,
		Analytics:   analyticsStore,
		Drift:       drift,
		Resolution:  resolutionEngine,
		TabContexts: tabctx,
		Collector:   collector,
		Alerts:      alertEngine,
		storage:     storage,
	}

	e.HealthCheck = health.NewEvaluator(30*time.Second,
		health.ProbeFunc(e.probeCollector),
		health.ProbeFunc(e.probeStorage),
	)

	source := &collectorEventSource{collector: collector, storage: storage, analytics: analyticsStore}
	e.Reports = alerting.NewReportScheduler(alertEngine, source, cfg.Reporting.Types)

	e.state = StateReady
	return e, nil
}

// Start transitions Ready/Stopped -> Starting -> Running: it launches the
// Collector's drain loop and, if Reporting is enabled, the report
// scheduler's cron schedule (spec §5 lifecycle).
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady && e.state != StateStopped {
		return fmt.Errorf("selectorengine: Start invalid from state %q", e.state)
	}
	e.state = StateStarting

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.Collector.Run(runCtx)

	if e.cfg.Reporting.Enabled {
		if err := e.Reports.Start(e.cfg.Reporting.Schedule); err != nil {
			e.logger.WarnCtx(ctx, "selectorengine: report scheduler not started", "error", err)
		}
	}

	e.state = StateRunning
	return nil
}

// Stop transitions Running -> Stopping -> Stopped. Whatever graceful is, Stop
// cancels the run context and waits for the Collector to drain its queue,
// bounded by the Collector's shutdown grace period; the flag does not change
// this behavior.
func (e *Engine) Stop(graceful bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("selectorengine: Stop invalid from state %q", e.state)
	}
	e.state = StateStopping

	e.Reports.Stop()
	if e.cancel != nil {
		e.cancel()
	}
	e.Collector.Stop()

	e.state = StateStopped
	return nil
}

// Restart stops (gracefully) then starts the Engine again, incrementing
// RestartCount (spec §5 "operators may restart a running engine").
func (e *Engine) Restart(ctx context.Context) error {
	if err := e.Stop(true); err != nil {
		return err
	}
	e.mu.Lock()
	e.restartCount++
	e.mu.Unlock()
	return e.Start(ctx)
}

// Shutdown is a terminal, irreversible transition: it stops the Engine (if
// running) and marks it Shutdown. No further Start calls are valid.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()
	if state == StateRunning {
		_ = e.Stop(true)
	}
	e.mu.Lock()
	e.state = StateShutdown
	e.mu.Unlock()
}

// Snapshot reports the Engine's current lifecycle state, restart count, and
// a freshly-evaluated (or cached, within HealthCheck's TTL) health rollup.
func (e *Engine) Snapshot(ctx context.Context) Snapshot {
	e.mu.Lock()
	s := Snapshot{State: e.state, RestartCount: e.restartCount}
	e.mu.Unlock()
	s.Health = e.HealthCheck.Evaluate(ctx)
	s.QueueDepth = e.Collector.QueueDepth()
	s.BufferOverflows = e.Collector.BufferOverflows()
	return s
}

// Resolve runs the Resolution Engine for selectorName and bridges its
// Observer callbacks into the Telemetry Collector. Strategy metrics
// (RecordAttempt) are owned solely by resolution.Engine's own recordMetrics
// call — the observer must not record them a second time into the same
// analytics.Store, or TotalAttempts/the drift samples double-count every
// attempt. Strategies and the Resolution Engine never import telemetry
// themselves (spec: "Strategies never interact with telemetry") — this
// bridge is the one place attempt/result events cross into the pipeline.
// ctx carries a span (internal/tracing) for the whole call, so trace_id/
// span_id are available to every logger.*Ctx call made underneath it.
func (e *Engine) Resolve(ctx context.Context, selectorName, correlationID, subContext string, rctx strategy.Context) (selector.SelectorResult, error) {
	ctx, span := e.tracer.StartSpan(ctx, "resolve:"+selectorName)
	defer span.End()

	start := time.Now()
	var lastOutcome resolution.AttemptEvent
	obs := &resolution.Observer{
		OnAttempt: func(ev resolution.AttemptEvent) {
			lastOutcome = ev
			if e.cfg.Collection.Enabled {
				_, _ = e.Collector.CollectEvent(ctx, selectorName, telemetry.OperationResolution, correlationID, telemetry.EventPayload{
					Performance: &telemetry.PerformanceMetrics{
						StrategyExecutionTimeMS: float64(ev.DurationMS),
					},
					Strategy: &telemetry.StrategyMetrics{PrimaryStrategy: ev.StrategyID},
				})
			}
		},
	}

	result := e.Resolution.Resolve(ctx, selectorName, subContext, rctx, obs)

	if e.cfg.Collection.Enabled {
		errData := (*telemetry.ErrorData)(nil)
		if !result.Success {
			errData = &telemetry.ErrorData{ErrorType: lastOutcome.Reason, ErrorMessage: result.FailureReason}
		}
		_, _ = e.Collector.CollectEvent(ctx, selectorName, telemetry.OperationResolution, correlationID, telemetry.EventPayload{
			Performance: &telemetry.PerformanceMetrics{ResolutionTimeMS: float64(time.Since(start).Milliseconds())},
			Quality: &telemetry.QualityMetrics{
				ConfidenceScore: result.ConfidenceScore,
				Success:         result.Success,
			},
			Error: errData,
		})
	}

	if !result.Success {
		kind := KindStrategyExecutionFailure
		switch result.FailureReason {
		case "selector_not_found":
			kind = KindSelectorNotFound
		case "no_strategy_met_threshold":
			kind = KindConfidenceThresholdNotMet
		case "timeout":
			kind = KindResolutionTimeout
		}
		return result, NewError(kind, fmt.Errorf("%s", result.FailureReason))
	}
	return result, nil
}

func (e *Engine) probeCollector(ctx context.Context) health.ProbeResult {
	depth := e.Collector.QueueDepth()
	if depth == 0 {
		return health.Healthy("telemetry_collector")
	}
	return health.Degraded("telemetry_collector", fmt.Sprintf("queue_depth=%d", depth))
}

func (e *Engine) probeStorage(ctx context.Context) health.ProbeResult {
	if _, err := e.storage.LoadEvents(ctx, telemetry.EventQuery{Limit: 1}); err != nil {
		return health.Unhealthy("storage", err.Error())
	}
	return health.Healthy("storage")
}

// collectorEventSource bridges telemetry Storage (where the Collector drains
// its events) and the Analytics Store into alerting.EventSource so the Report
// Engine doesn't need to know either concrete type.
type collectorEventSource struct {
	collector *telemetry.Collector
	storage   telemetry.Storage
	analytics *analytics.Store
}

func (s *collectorEventSource) RecentEvents() []telemetry.Event {
	events, err := s.storage.LoadEvents(context.Background(), telemetry.EventQuery{Limit: 1000})
	if err != nil {
		return nil
	}
	return events
}

func (s *collectorEventSource) Metrics() map[string]analytics.ConfidenceMetrics {
	out := map[string]analytics.ConfidenceMetrics{}
	for _, ev := range s.RecentEvents() {
		for _, strategyID := range s.analytics.StrategiesFor(ev.SelectorName) {
			if m, ok := s.analytics.Get(ev.SelectorName, strategyID); ok {
				out[ev.SelectorName] = m
			}
		}
	}
	return out
}

// memTabStore is the default in-process tabcontext.Store: tab contexts are
// discovery caches, not durable records, so an unexported in-memory map is
// sufficient unless a caller supplies its own Store.
type memTabStore struct {
	mu   sync.Mutex
	data map[string]*tabcontext.TabContext
}

func newMemTabStore() *memTabStore {
	return &memTabStore{data: make(map[string]*tabcontext.TabContext)}
}

func (s *memTabStore) Save(tc *tabcontext.TabContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tc.TabID] = tc
	return nil
}

func (s *memTabStore) Load(tabID string) (*tabcontext.TabContext, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.data[tabID]
	return tc, ok, nil
}
