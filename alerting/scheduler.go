package alerting

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/TisoneK/selectorengine/analytics"
	"github.com/TisoneK/selectorengine/config"
	"github.com/TisoneK/selectorengine/telemetry"
)

// EventSource supplies the window Engine.Report draws from; the facade
// wires this to telemetry.Storage.LoadEvents and an analytics.Store.
type EventSource interface {
	RecentEvents() []telemetry.Event
	Metrics() map[string]analytics.ConfidenceMetrics
}

// ReportScheduler runs Engine.Report on the cadence configured in
// config.ReportSchedule (spec §6 "Reporting.schedule"), mirroring
// checkpoint.FileStore's cron-based retention sweep.
type ReportScheduler struct {
	engine *Engine
	source EventSource
	types  []config.ReportType
	cron   *cron.Cron
	onReport func(Report)
}

func NewReportScheduler(engine *Engine, source EventSource, types []config.ReportType) *ReportScheduler {
	return &ReportScheduler{engine: engine, source: source, types: types}
}

// OnReport registers a callback invoked with every report generated; useful
// for tests and for wiring reports into storage/notification.
func (s *ReportScheduler) OnReport(fn func(Report)) { s.onReport = fn }

// frequencyToCronSpec translates config.ReportFrequency + time_of_day into
// a standard 5-field cron expression robfig/cron understands.
func frequencyToCronSpec(freq config.ReportFrequency, timeOfDay string) (string, error) {
	hour, minute := "0", "0"
	if timeOfDay != "" {
		var h, m int
		if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &h, &m); err != nil {
			return "", fmt.Errorf("alerting: invalid time_of_day %q: %w", timeOfDay, err)
		}
		hour, minute = fmt.Sprintf("%d", h), fmt.Sprintf("%d", m)
	}
	switch freq {
	case config.FrequencyHourly:
		return fmt.Sprintf("%s * * * *", minute), nil
	case config.FrequencyDaily:
		return fmt.Sprintf("%s %s * * *", minute, hour), nil
	case config.FrequencyWeekly:
		return fmt.Sprintf("%s %s * * 0", minute, hour), nil
	case config.FrequencyMonthly:
		return fmt.Sprintf("%s %s 1 * *", minute, hour), nil
	default:
		return "", fmt.Errorf("alerting: unrecognized report frequency %q", freq)
	}
}

// Start schedules report generation per schedule, for every report type
// configured in Reporting.types.
func (s *ReportScheduler) Start(schedule config.ReportSchedule) error {
	spec, err := frequencyToCronSpec(schedule.Frequency, schedule.TimeOfDay)
	if err != nil {
		return err
	}
	s.cron = cron.New()
	_, err = s.cron.AddFunc(spec, s.runAll)
	if err != nil {
		return fmt.Errorf("alerting: schedule reports: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduled report generation.
func (s *ReportScheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *ReportScheduler) runAll() {
	events := s.source.RecentEvents()
	metrics := s.source.Metrics()
	for _, t := range s.types {
		report := s.engine.Report(string(t), events, metrics)
		if s.onReport != nil {
			s.onReport(report)
		}
	}
}
