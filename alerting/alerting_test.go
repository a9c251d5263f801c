package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TisoneK/selectorengine/analytics"
	"github.com/TisoneK/selectorengine/config"
	"github.com/TisoneK/selectorengine/telemetry"
)

func thresholds() config.Thresholds {
	return config.Thresholds{
		Performance: config.PerformanceThresholds{ResolutionTimeMS: 100, MemoryUsageMB: 256, ErrorRatePercent: 10},
		Quality:     config.QualityThresholds{ConfidenceScore: 0.7, DeclinePercent: 20},
		Health:      config.HealthThresholds{AnomalyThreshold: 2, TimeoutFrequencyPercent: 10},
	}
}

func TestEvaluatePerformanceAlertOnSlowResolution(t *testing.T) {
	slow := 500.0
	events := []telemetry.Event{
		{Performance: &telemetry.PerformanceMetrics{ResolutionTimeMS: slow}, Quality: &telemetry.QualityMetrics{Success: true}},
	}
	engine := NewEngine(thresholds(), config.Notifications{Channels: []config.NotificationChannel{config.ChannelLog}}, map[config.NotificationChannel]Notifier{config.ChannelLog: NewLogNotifier(nil)}, nil)

	alerts := engine.Evaluate(context.Background(), events, nil)
	require.NotEmpty(t, alerts)
	assert.Equal(t, "resolution_time_ms", alerts[0].Metric)
}

func TestEvaluateErrorRateAlert(t *testing.T) {
	events := make([]telemetry.Event, 0, 10)
	for i := 0; i < 10; i++ {
		events = append(events, telemetry.Event{Quality: &telemetry.QualityMetrics{Success: i >= 3}})
	}
	engine := NewEngine(thresholds(), config.Notifications{}, nil, nil)
	alerts := engine.Evaluate(context.Background(), events, nil)

	found := false
	for _, a := range alerts {
		if a.Metric == "error_rate_percent" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluateQualityDeclineFromAnalytics(t *testing.T) {
	metrics := map[string]analytics.ConfidenceMetrics{
		"home_team_name": {},
	}
	engine := NewEngine(thresholds(), config.Notifications{}, nil, nil)
	alerts := engine.Evaluate(context.Background(), nil, metrics)

	found := false
	for _, a := range alerts {
		if a.Metric == "strategy_success_decline_percent" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDispatchRespectsRateLimit(t *testing.T) {
	webhook := NewWebhookNotifier()
	engine := NewEngine(thresholds(), config.Notifications{
		Channels:  []config.NotificationChannel{config.ChannelWebhook},
		RateLimit: config.RateLimit{MaxPerHour: 1},
	}, map[config.NotificationChannel]Notifier{config.ChannelWebhook: webhook}, nil)

	events := []telemetry.Event{
		{Performance: &telemetry.PerformanceMetrics{ResolutionTimeMS: 1000}, Quality: &telemetry.QualityMetrics{Success: true}},
	}
	engine.Evaluate(context.Background(), events, nil)
	engine.Evaluate(context.Background(), events, nil)

	assert.Len(t, webhook.Delivered(), 1)
}

func TestReportTypes(t *testing.T) {
	engine := NewEngine(thresholds(), config.Notifications{}, nil, nil)
	events := []telemetry.Event{
		{SelectorName: "home_team_name", Quality: &telemetry.QualityMetrics{Success: true}},
		{SelectorName: "away_team_name", Quality: &telemetry.QualityMetrics{Success: false}},
	}

	perf := engine.Report("performance", events, nil)
	assert.Equal(t, 2, perf.Summary["event_count"])

	usage := engine.Report("usage", events, nil)
	assert.NotEmpty(t, usage.Summary["events_by_selector"])

	health := engine.Report("health", events, nil)
	assert.Equal(t, 1, health.Summary["failures"])

	unknown := engine.Report("bogus", events, nil)
	assert.NotEmpty(t, unknown.Summary["error"])
}

func TestFrequencyToCronSpec(t *testing.T) {
	spec, err := frequencyToCronSpec(config.FrequencyDaily, "03:30")
	require.NoError(t, err)
	assert.Equal(t, "30 3 * * *", spec)

	_, err = frequencyToCronSpec("bogus", "00:00")
	assert.Error(t, err)
}

type fakeSource struct {
	events  []telemetry.Event
	metrics map[string]analytics.ConfidenceMetrics
}

func (f fakeSource) RecentEvents() []telemetry.Event                    { return f.events }
func (f fakeSource) Metrics() map[string]analytics.ConfidenceMetrics    { return f.metrics }

func TestReportSchedulerRunAllInvokesCallbackPerType(t *testing.T) {
	engine := NewEngine(thresholds(), config.Notifications{}, nil, nil)
	source := fakeSource{events: []telemetry.Event{{SelectorName: "s"}}}
	sched := NewReportScheduler(engine, source, []config.ReportType{config.ReportPerformance, config.ReportHealth})

	var reports []Report
	sched.OnReport(func(r Report) { reports = append(reports, r) })
	sched.runAll()

	require.Len(t, reports, 2)
	_ = time.Now()
}
