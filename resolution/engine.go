// Package resolution implements the Resolution Engine: priority-ordered
// multi-strategy element lookup, per-attempt timeouts, confidence scoring,
// and synchronous metrics updates (spec §4.3).
package resolution

import (
	"context"
	"errors"
	"time"

	"github.com/TisoneK/selectorengine/analytics"
	"github.com/TisoneK/selectorengine/confidence"
	"github.com/TisoneK/selectorengine/selector"
	"github.com/TisoneK/selectorengine/strategy"
	"github.com/TisoneK/selectorengine/validation"
)

// ErrSelectorNotFound mirrors the "selector_not_found" failure reason as a
// Go error for callers that want to branch on it directly.
var ErrSelectorNotFound = errors.New("resolution: selector not found")

// Weights controls confidence scoring (spec §4.3: w_strategy + w_validation
// == 1, defaults 0.4/0.6).
type Weights struct {
	Strategy   float64
	Validation float64
}

// DefaultWeights is the spec default.
var DefaultWeights = Weights{Strategy: 0.4, Validation: 0.6}

// AttemptEvent is emitted once per strategy attempt within a resolve call,
// for the caller to feed into telemetry (kept decoupled from the telemetry
// package so resolution has no dependency on it, per spec §4.1: "Strategies
// never interact with telemetry").
type AttemptEvent struct {
	SelectorName    string
	StrategyID      string
	StrategyType    selector.StrategyType
	Outcome         string // "match", "no_match", "driver_error", "timeout"
	Reason          string
	ConfidenceScore float64
	DurationMS      int64
	Committed       bool
}

// Observer receives AttemptEvents and the final SelectorResult; both hooks
// are optional.
type Observer struct {
	OnAttempt func(AttemptEvent)
	OnResult  func(selector.SelectorResult)
}

// Engine ties the selector registry, strategy kernel, validation kernel,
// confidence manager, and metrics store into the resolve() operation.
type Engine struct {
	Selectors   *selector.Registry
	Strategies  *strategy.Registry
	Validators  *validation.Registry
	Confidence  *confidence.Manager
	Metrics     *analytics.Store
	Weights     Weights
	Timeout     time.Duration // per-strategy timeout, default 2s
}

// NewEngine builds an Engine with spec defaults (2s per-strategy timeout,
// 0.4/0.6 confidence weights).
func NewEngine(selectors *selector.Registry, strategies *strategy.Registry, validators *validation.Registry, conf *confidence.Manager, metrics *analytics.Store) *Engine {
	return &Engine{
		Selectors:  selectors,
		Strategies: strategies,
		Validators: validators,
		Confidence: conf,
		Metrics:    metrics,
		Weights:    DefaultWeights,
		Timeout:    2 * time.Second,
	}
}

// Resolve runs the spec §4.3 algorithm for selectorName against rctx, using
// subContext to look up the applicable threshold. obs may be nil.
func (e *Engine) Resolve(ctx context.Context, selectorName, subContext string, rctx strategy.Context, obs *Observer) selector.SelectorResult {
	start := time.Now()
	sel, ok := e.Selectors.Get(selectorName)
	if !ok {
		return e.emit(obs, selector.SelectorResult{
			SelectorName:  selectorName,
			StrategyUsed:  "none",
			Success:       false,
			FailureReason: "selector_not_found",
			Timestamp:     start,
		})
	}

	threshold, err := e.Confidence.Get(sel.Context, subContext)
	if err != nil {
		threshold = sel.ConfidenceThreshold
		if threshold == 0 {
			threshold = selector.DefaultConfidenceThreshold
		}
	}

	active := sel.SortStrategies(true)
	lastAttempted := "none"
	anyMatched := false

	for _, pattern := range active {
		lastAttempted = pattern.ID
		impl, err := e.Strategies.Get(pattern.Type)
		if err != nil {
			continue
		}

		attemptStart := time.Now()
		outcome, timedOut := e.attemptWithTimeout(ctx, impl, rctx, pattern.Config)
		elapsed := time.Since(attemptStart)

		switch {
		case timedOut:
			e.recordMetrics(sel.Name, pattern.ID, false, 0, elapsed, pattern.IsActive)
			e.emitAttempt(obs, sel.Name, pattern, "timeout", "strategy_timeout", 0, elapsed, false)
			continue

		case outcome.DriverErr != nil:
			e.recordMetrics(sel.Name, pattern.ID, false, 0, elapsed, pattern.IsActive)
			e.emitAttempt(obs, sel.Name, pattern, "driver_error", "driver:"+outcome.DriverErr.Error(), 0, elapsed, false)
			continue

		case !outcome.Matched:
			e.recordMetrics(sel.Name, pattern.ID, false, 0, elapsed, pattern.IsActive)
			e.emitAttempt(obs, sel.Name, pattern, "no_match", outcome.Reason, 0, elapsed, false)
			continue
		}

		// Matched: build ElementInfo, run validation, compute confidence.
		anyMatched = true
		info := strategy.BuildElementInfo(outcome.Element)
		validationResults, validationScore := e.Validators.RunAll(info.TextContent, sel.ValidationRules)
		strategyBase := clampColdStart(pattern.SuccessRate, e.isColdStart(sel.Name, pattern.ID))
		confidenceScore := e.Weights.Strategy*strategyBase + e.Weights.Validation*validationScore
		if !validation.AllRequiredPassed(sel.ValidationRules, validationResults) {
			confidenceScore = 0
		}

		if confidenceScore >= threshold {
			e.recordMetrics(sel.Name, pattern.ID, true, confidenceScore, elapsed, pattern.IsActive)
			e.emitAttempt(obs, sel.Name, pattern, "match", "", confidenceScore, elapsed, true)
			return e.emit(obs, selector.SelectorResult{
				SelectorName:      sel.Name,
				StrategyUsed:      string(pattern.Type),
				ElementInfo:       info,
				ConfidenceScore:   confidenceScore,
				ResolutionTimeMS:  time.Since(start).Milliseconds(),
				ValidationResults: validationResults,
				Success:           true,
				Timestamp:         time.Now(),
			})
		}

		e.recordMetrics(sel.Name, pattern.ID, false, confidenceScore, elapsed, pattern.IsActive)
		e.emitAttempt(obs, sel.Name, pattern, "match", "below_threshold", confidenceScore, elapsed, false)
	}

	failureReason := "no_strategy_met_threshold"
	if !anyMatched {
		failureReason = "all_strategies_exhausted"
	}

	return e.emit(obs, selector.SelectorResult{
		SelectorName:  sel.Name,
		StrategyUsed:  lastAttempted,
		Success:       false,
		FailureReason: failureReason,
		Timestamp:     time.Now(),
	})
}

// attemptWithTimeout runs impl.Attempt under a per-strategy deadline,
// reporting timedOut=true if the strategy did not return in time (spec
// §4.3 step 4b/c).
func (e *Engine) attemptWithTimeout(ctx context.Context, impl strategy.Strategy, rctx strategy.Context, config map[string]any) (outcome strategy.Outcome, timedOut bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.effectiveTimeout())
	defer cancel()

	done := make(chan strategy.Outcome, 1)
	go func() {
		done <- impl.Attempt(attemptCtx, rctx, config)
	}()

	select {
	case outcome = <-done:
		return outcome, false
	case <-attemptCtx.Done():
		return strategy.Outcome{}, true
	}
}

// isColdStart reports whether (selectorName, strategyID) has no recorded
// attempts yet.
func (e *Engine) isColdStart(selectorName, strategyID string) bool {
	if e.Metrics == nil {
		return true
	}
	m, found := e.Metrics.Get(selectorName, strategyID)
	return !found || m.TotalAttempts == 0
}

func (e *Engine) effectiveTimeout() time.Duration {
	if e.Timeout <= 0 {
		return 2 * time.Second
	}
	return e.Timeout
}

func (e *Engine) recordMetrics(selectorName, strategyID string, success bool, confidenceScore float64, elapsed time.Duration, isActive bool) {
	if e.Metrics == nil {
		return
	}
	e.Metrics.RecordAttempt(selectorName, strategyID, success, confidenceScore, elapsed, isActive, time.Now())
	_ = e.Selectors.UpdateStrategyMetrics(selectorName, strategyID, func(sp *selector.StrategyPattern) {
		sp.LastUpdated = time.Now()
		if m, ok := e.Metrics.Get(selectorName, strategyID); ok {
			sp.SuccessRate = m.SuccessRate()
			sp.AvgResolutionTime = m.AvgResolutionTime
		}
	})
}

func (e *Engine) emitAttempt(obs *Observer, selectorName string, pattern selector.StrategyPattern, outcome, reason string, confidenceScore float64, elapsed time.Duration, committed bool) {
	if obs == nil || obs.OnAttempt == nil {
		return
	}
	obs.OnAttempt(AttemptEvent{
		SelectorName:    selectorName,
		StrategyID:      pattern.ID,
		StrategyType:    pattern.Type,
		Outcome:         outcome,
		Reason:          reason,
		ConfidenceScore: confidenceScore,
		DurationMS:      elapsed.Milliseconds(),
		Committed:       committed,
	})
}

func (e *Engine) emit(obs *Observer, result selector.SelectorResult) selector.SelectorResult {
	if obs != nil && obs.OnResult != nil {
		obs.OnResult(result)
	}
	return result
}

// clampColdStart clamps a strategy's success_rate into [0.5,1] for a fresh
// strategy with no prior attempts, so it can still contribute to confidence
// scoring (spec §8 "Boundary behaviors").
func clampColdStart(successRate float64, coldStart bool) float64 {
	if !coldStart {
		return successRate
	}
	if successRate < 0.5 {
		return 0.5
	}
	return successRate
}
