package telemetry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/TisoneK/selectorengine/telemetry/logging"
	"github.com/TisoneK/selectorengine/telemetry/metrics"
)

// ErrDisabled is returned by CollectEvent when the collector is disabled.
var ErrDisabled = errors.New("telemetry: collector disabled")

// Config controls the Collector's queue, batching, and retry behavior (spec
// §4.7, §6 "Collection").
type Config struct {
	Enabled       bool
	BufferSize    int           // Q, default 1000
	BatchSize     int           // B, default 100
	FlushInterval time.Duration // F, default 1s
	BatchMin      int           // B_min, default 10
	BatchMax      int           // B_max, default 500
	TargetLatency time.Duration // L, default 100ms

	RetryBaseDelay  time.Duration // default 1s
	RetryFactor     float64       // default 2
	RetryCap        time.Duration // default 300s
	RetryMaxAttempts int          // default 5

	ShutdownGrace time.Duration // default 30s
}

// DefaultConfig returns the spec's default Collection configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		BufferSize:       1000,
		BatchSize:        100,
		FlushInterval:    time.Second,
		BatchMin:         10,
		BatchMax:         500,
		TargetLatency:    100 * time.Millisecond,
		RetryBaseDelay:   time.Second,
		RetryFactor:      2,
		RetryCap:         300 * time.Second,
		RetryMaxAttempts: 5,
		ShutdownGrace:    30 * time.Second,
	}
}

// EventPayload carries the optional groups for CollectEvent; any may be nil.
type EventPayload struct {
	Performance *PerformanceMetrics
	Quality     *QualityMetrics
	Strategy    *StrategyMetrics
	Error       *ErrorData
	Context     *ContextData
}

// OverflowEvent describes one oldest-evicted drop (spec §4.7 "Backpressure").
type OverflowEvent struct {
	DroppedEventID       string
	DroppedCorrelationID string
	At                   time.Time
}

// Collector is the process-wide bounded-queue event capture component.
// CollectEvent never blocks the caller beyond the enqueue mutex; draining
// runs on a dedicated goroutine started by Run.
type Collector struct {
	cfg     Config
	storage Storage
	logger  logging.Logger

	mu              sync.Mutex
	queue           []Event
	bufferOverflows uint64
	batchSize       int

	sessions *sessionTracker

	overflowCounter metrics.Counter
	droppedCounter  metrics.Counter
	queueGauge      metrics.Gauge

	onOverflow func(OverflowEvent)

	wake     chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	runOnce  sync.Once
}

// NewCollector builds a Collector. provider/logger may be nil (no-op metrics,
// slog.Default()).
func NewCollector(cfg Config, storage Storage, provider metrics.Provider, logger logging.Logger) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.BatchMin <= 0 {
		cfg.BatchMin = 10
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 500
	}
	if cfg.TargetLatency <= 0 {
		cfg.TargetLatency = 100 * time.Millisecond
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.RetryFactor <= 0 {
		cfg.RetryFactor = 2
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 300 * time.Second
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 5
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}
	if logger == nil {
		logger = logging.New(nil)
	}

	c := &Collector{
		cfg:       cfg,
		storage:   storage,
		logger:    logger,
		batchSize: cfg.BatchSize,
		sessions:  newSessionTracker(),
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	c.overflowCounter = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Namespace: "selectorengine", Subsystem: "telemetry", Name: "buffer_overflows_total", Help: "Total telemetry events dropped by oldest-evicted backpressure"}})
	c.droppedCounter = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Namespace: "selectorengine", Subsystem: "telemetry", Name: "storage_drops_total", Help: "Total event batches dropped after exhausting storage retries"}})
	c.queueGauge = provider.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{Namespace: "selectorengine", Subsystem: "telemetry", Name: "queue_depth", Help: "Current telemetry queue depth"}})
	return c
}

// OnOverflow registers a callback invoked synchronously on every eviction.
func (c *Collector) OnOverflow(fn func(OverflowEvent)) { c.onOverflow = fn }

// CollectEvent builds, validates, and enqueues a TelemetryEvent (spec §4.7
// "Collection"). Failed validation does not enqueue.
func (c *Collector) CollectEvent(ctx context.Context, selectorName string, opType OperationType, correlationID string, payload EventPayload) (Event, error) {
	if !c.cfg.Enabled {
		return Event{}, ErrDisabled
	}
	if correlationID == "" {
		if cur := CorrelationIDFromContext(ctx); cur != "" {
			correlationID = cur
		} else {
			correlationID = RandomCorrelationID(defaultCorrelationIDLength)
		}
	}

	ev := Event{
		EventID:       NewEventID(),
		CorrelationID: correlationID,
		SelectorName:  selectorName,
		Timestamp:     time.Now(),
		OperationType: opType,
		Performance:   payload.Performance,
		Quality:       payload.Quality,
		Strategy:      payload.Strategy,
		Error:         payload.Error,
		Context:       payload.Context,
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}

	c.enqueue(ev)
	c.sessions.observe(ev)
	return ev, nil
}

func (c *Collector) enqueue(ev Event) {
	c.mu.Lock()
	if len(c.queue) >= c.cfg.BufferSize {
		evicted := c.queue[0]
		c.queue = c.queue[1:]
		c.bufferOverflows++
		c.mu.Unlock()

		if c.overflowCounter != nil {
			c.overflowCounter.Inc(1)
		}
		if c.onOverflow != nil {
			c.onOverflow(OverflowEvent{DroppedEventID: evicted.EventID, DroppedCorrelationID: evicted.CorrelationID, At: time.Now()})
		}
		c.mu.Lock()
	}
	c.queue = append(c.queue, ev)
	depth := len(c.queue)
	batchSize := c.batchSize
	c.mu.Unlock()

	if c.queueGauge != nil {
		c.queueGauge.Set(float64(depth))
	}
	if depth >= batchSize {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

// BufferOverflows returns the total number of oldest-evicted drops so far.
func (c *Collector) BufferOverflows() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferOverflows
}

// QueueDepth returns the current number of undrained events.
func (c *Collector) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// StartSession opens a session; events sharing correlationID are attributed
// to it until EndSession.
func (c *Collector) StartSession(id, correlationID string, ctxData map[string]string) *Session {
	return c.sessions.start(id, correlationID, ctxData, time.Now())
}

// EndSession closes a session and returns its summary.
func (c *Collector) EndSession(id string) (SessionSummary, bool) {
	return c.sessions.end(id, time.Now())
}

// Run starts the background drain loop on its own goroutine and returns
// immediately; the loop exits once ctx is cancelled or Stop is called,
// draining best-effort within the configured grace period.
func (c *Collector) Run(ctx context.Context) {
	c.runOnce.Do(func() {
		go c.loop(ctx)
	})
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.drainWithGrace()
			return
		case <-c.stopCh:
			c.drainWithGrace()
			return
		case <-ticker.C:
			c.drainBatch(ctx)
		case <-c.wake:
			c.drainBatch(ctx)
		}
	}
}

// Stop signals the drain loop to stop and blocks until it exits.
func (c *Collector) Stop() {
	select {
	case <-c.doneCh:
		return
	default:
	}
	close(c.stopCh)
	<-c.doneCh
}

func (c *Collector) drainWithGrace() {
	deadline := time.Now().Add(c.cfg.ShutdownGrace)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	for c.QueueDepth() > 0 && time.Now().Before(deadline) {
		c.drainBatch(ctx)
	}
}

// drainBatch pulls up to the current adaptive batch size off the queue and
// hands them to storage, adjusting batchSize toward the target latency.
func (c *Collector) drainBatch(ctx context.Context) {
	c.mu.Lock()
	n := c.batchSize
	if n > len(c.queue) {
		n = len(c.queue)
	}
	if n == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]Event, n)
	copy(batch, c.queue[:n])
	c.queue = c.queue[n:]
	c.mu.Unlock()

	if c.queueGauge != nil {
		c.queueGauge.Set(float64(c.QueueDepth()))
	}

	start := time.Now()
	if c.storage != nil {
		c.storeWithRetry(ctx, batch)
	}
	elapsed := time.Since(start)
	c.adjustBatchSize(elapsed)
}

func (c *Collector) adjustBatchSize(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case elapsed < c.cfg.TargetLatency/2 && c.batchSize < c.cfg.BatchMax:
		c.batchSize += c.batchSize / 4
		if c.batchSize > c.cfg.BatchMax {
			c.batchSize = c.cfg.BatchMax
		}
	case elapsed > c.cfg.TargetLatency && c.batchSize > c.cfg.BatchMin:
		c.batchSize -= c.batchSize / 4
		if c.batchSize < c.cfg.BatchMin {
			c.batchSize = c.cfg.BatchMin
		}
	}
	if c.batchSize <= 0 {
		c.batchSize = c.cfg.BatchMin
	}
}

// storeWithRetry persists batch with bounded exponential backoff (base,
// factor, cap, ±10% jitter per spec §4.7 "Drain"). Exhausting retries drops
// the batch and logs a storage_error.
func (c *Collector) storeWithRetry(ctx context.Context, batch []Event) {
	delay := c.cfg.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryMaxAttempts; attempt++ {
		if err := c.storage.StoreEventsBatch(ctx, batch); err == nil {
			return
		} else {
			lastErr = err
		}
		if attempt == c.cfg.RetryMaxAttempts-1 {
			break
		}
		jitter := 1 + (rand.Float64()*0.2 - 0.1)
		sleep := time.Duration(float64(delay) * jitter)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
		delay = time.Duration(float64(delay) * c.cfg.RetryFactor)
		if delay > c.cfg.RetryCap {
			delay = c.cfg.RetryCap
		}
	}

	if c.droppedCounter != nil {
		c.droppedCounter.Inc(1)
	}
	c.logger.ErrorCtx(ctx, "telemetry: dropping batch after exhausting storage retries", "batch_size", len(batch), "error", lastErr)
}
