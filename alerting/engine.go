package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TisoneK/selectorengine/analytics"
	"github.com/TisoneK/selectorengine/config"
	"github.com/TisoneK/selectorengine/telemetry"
	"github.com/TisoneK/selectorengine/telemetry/logging"
)

// Engine evaluates config.Thresholds against a recent window of telemetry
// events and analytics.ConfidenceMetrics, emitting Alerts through the
// configured Notifiers (spec §6 "Alerting").
type Engine struct {
	thresholds    config.Thresholds
	notifications config.Notifications
	notifiers     map[config.NotificationChannel]Notifier
	logger        logging.Logger

	mu              sync.Mutex
	hourWindowStart time.Time
	sentThisHour    int
}

// NewEngine builds an Engine. notifiers need not cover every channel named
// in notifications.Channels; a channel with no registered Notifier is
// skipped with a logged warning rather than failing Evaluate.
func NewEngine(thresholds config.Thresholds, notifications config.Notifications, notifiers map[config.NotificationChannel]Notifier, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.New(nil)
	}
	return &Engine{thresholds: thresholds, notifications: notifications, notifiers: notifiers, logger: logger}
}

// Evaluate checks the current window against every threshold group and
// returns the alerts triggered, dispatching each through the configured
// notification channels (best-effort, rate-limited).
func (e *Engine) Evaluate(ctx context.Context, events []telemetry.Event, metrics map[string]analytics.ConfidenceMetrics) []Alert {
	var alerts []Alert
	alerts = append(alerts, e.evaluatePerformance(events)...)
	alerts = append(alerts, e.evaluateQuality(events, metrics)...)
	alerts = append(alerts, e.evaluateHealth(events)...)

	for _, a := range alerts {
		e.dispatch(ctx, a)
	}
	return alerts
}

func (e *Engine) evaluatePerformance(events []telemetry.Event) []Alert {
	var alerts []Alert
	var totalResolutionMS, totalMemoryMB float64
	var resolutionCount, memoryCount, failures int
	for _, ev := range events {
		if ev.Performance != nil {
			totalResolutionMS += ev.Performance.ResolutionTimeMS
			resolutionCount++
			if ev.Performance.MemoryUsageMB != nil {
				totalMemoryMB += *ev.Performance.MemoryUsageMB
				memoryCount++
			}
		}
		if ev.Quality != nil && !ev.Quality.Success {
			failures++
		}
	}

	if resolutionCount > 0 {
		avg := totalResolutionMS / float64(resolutionCount)
		if avg > e.thresholds.Performance.ResolutionTimeMS {
			alerts = append(alerts, newAlert(SeverityMedium, "resolution_time_ms", avg, e.thresholds.Performance.ResolutionTimeMS,
				fmt.Sprintf("average resolution time %.1fms exceeds threshold %.1fms", avg, e.thresholds.Performance.ResolutionTimeMS)))
		}
	}
	if memoryCount > 0 {
		avg := totalMemoryMB / float64(memoryCount)
		if avg > e.thresholds.Performance.MemoryUsageMB {
			alerts = append(alerts, newAlert(SeverityMedium, "memory_usage_mb", avg, e.thresholds.Performance.MemoryUsageMB,
				fmt.Sprintf("average memory usage %.1fMB exceeds threshold %.1fMB", avg, e.thresholds.Performance.MemoryUsageMB)))
		}
	}
	if len(events) > 0 {
		errorRate := 100 * float64(failures) / float64(len(events))
		if errorRate > e.thresholds.Performance.ErrorRatePercent {
			alerts = append(alerts, newAlert(SeverityHigh, "error_rate_percent", errorRate, e.thresholds.Performance.ErrorRatePercent,
				fmt.Sprintf("error rate %.1f%% exceeds threshold %.1f%%", errorRate, e.thresholds.Performance.ErrorRatePercent)))
		}
	}
	return alerts
}

func (e *Engine) evaluateQuality(events []telemetry.Event, metrics map[string]analytics.ConfidenceMetrics) []Alert {
	var alerts []Alert
	var totalConfidence float64
	var count int
	for _, ev := range events {
		if ev.Quality != nil {
			totalConfidence += ev.Quality.ConfidenceScore
			count++
		}
	}
	if count > 0 {
		avg := totalConfidence / float64(count)
		if avg < e.thresholds.Quality.ConfidenceScore {
			alerts = append(alerts, newAlert(SeverityMedium, "confidence_score", avg, e.thresholds.Quality.ConfidenceScore,
				fmt.Sprintf("average confidence %.2f below threshold %.2f", avg, e.thresholds.Quality.ConfidenceScore)))
		}
	}

	for selectorName, m := range metrics {
		rate := m.SuccessRate()
		decline := 100 * (1 - rate)
		if decline > e.thresholds.Quality.DeclinePercent {
			alerts = append(alerts, newAlert(SeverityMedium, "strategy_success_decline_percent", decline, e.thresholds.Quality.DeclinePercent,
				fmt.Sprintf("selector %s success rate declined %.1f%% past threshold %.1f%%", selectorName, decline, e.thresholds.Quality.DeclinePercent)))
		}
	}
	return alerts
}

func (e *Engine) evaluateHealth(events []telemetry.Event) []Alert {
	var alerts []Alert
	var timeouts int
	for _, ev := range events {
		if ev.Error != nil && ev.Error.ErrorType == "timeout" {
			timeouts++
		}
	}
	if len(events) > 0 {
		timeoutRate := 100 * float64(timeouts) / float64(len(events))
		if timeoutRate > e.thresholds.Health.TimeoutFrequencyPercent {
			alerts = append(alerts, newAlert(SeverityHigh, "timeout_frequency_percent", timeoutRate, e.thresholds.Health.TimeoutFrequencyPercent,
				fmt.Sprintf("timeout frequency %.1f%% exceeds threshold %.1f%%", timeoutRate, e.thresholds.Health.TimeoutFrequencyPercent)))
		}
	}
	return alerts
}

func newAlert(sev Severity, metric string, value, threshold float64, message string) Alert {
	return Alert{Severity: sev, Message: message, Triggered: time.Now(), Metric: metric, Value: value, Threshold: threshold}
}

// dispatch sends a through every configured channel, subject to the
// notifications.rate_limit.max_per_hour cap (spec §6 "Alerting.notifications").
func (e *Engine) dispatch(ctx context.Context, a Alert) {
	if !e.allow() {
		e.logger.WarnCtx(ctx, "alerting: dropping alert, rate limit exceeded", "metric", a.Metric)
		return
	}
	for _, channel := range e.notifications.Channels {
		notifier, ok := e.notifiers[channel]
		if !ok {
			e.logger.WarnCtx(ctx, "alerting: no notifier registered for channel", "channel", channel)
			continue
		}
		if err := notifier.Notify(ctx, a); err != nil {
			e.logger.ErrorCtx(ctx, "alerting: notifier failed", "channel", channel, "error", err)
		}
	}
}

func (e *Engine) allow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	if now.Sub(e.hourWindowStart) > time.Hour {
		e.hourWindowStart = now
		e.sentThisHour = 0
	}
	if e.notifications.RateLimit.MaxPerHour > 0 && e.sentThisHour >= e.notifications.RateLimit.MaxPerHour {
		return false
	}
	e.sentThisHour++
	return true
}

// Report generates a periodic summary for one of the configured report
// types (spec §6 "Reporting.types"), drawn from the same event window and
// metrics Evaluate works from.
func (e *Engine) Report(reportType string, events []telemetry.Event, metrics map[string]analytics.ConfidenceMetrics) Report {
	summary := map[string]any{}
	switch reportType {
	case "performance":
		var total float64
		for _, ev := range events {
			if ev.Performance != nil {
				total += ev.Performance.ResolutionTimeMS
			}
		}
		summary["event_count"] = len(events)
		summary["total_resolution_time_ms"] = total
	case "usage":
		bySelector := map[string]int{}
		for _, ev := range events {
			bySelector[ev.SelectorName]++
		}
		summary["events_by_selector"] = bySelector
	case "health":
		var failures int
		for _, ev := range events {
			if ev.Quality != nil && !ev.Quality.Success {
				failures++
			}
		}
		summary["failures"] = failures
		summary["total"] = len(events)
	case "trends", "recommendations":
		summary["selectors_tracked"] = len(metrics)
	default:
		summary["error"] = fmt.Sprintf("unrecognized report type %q", reportType)
	}
	return Report{GeneratedAt: time.Now(), Type: reportType, Summary: summary}
}
