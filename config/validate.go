package config

import (
	"fmt"
	"time"
)

// Validate checks cfg against the recognized configuration surface (spec
// §6), correcting out-of-range numeric values in place toward their nearest
// valid bound and recording each correction, collecting unrecognized options
// as warnings, and collecting invalid enum values as errors (no sensible
// "nearest bound" exists for an enum, unlike a numeric range).
func Validate(cfg *Config) Result {
	var result Result
	result.IsValid = true

	for _, key := range cfg.Unknown {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized configuration option: %s", key))
	}

	clampInt(&cfg.Collection.BufferSize, "collection.buffer_size", 100, 10000, &result)
	clampInt(&cfg.Collection.BatchSize, "collection.batch_size", 1, 10000, &result)
	clampSeconds(&cfg.Collection.FlushInterval, "collection.flush_interval", 100*time.Millisecond, 60*time.Second, &result)

	if cfg.Storage.Type != "" && cfg.Storage.Type != StorageTypeFile && cfg.Storage.Type != StorageTypeTSDB {
		addError(&result, fmt.Sprintf("storage.type: unrecognized value %q", cfg.Storage.Type))
	}
	clampInt(&cfg.Storage.RetentionDays, "storage.retention_days", 1, 365, &result)

	if cfg.Alerting.Enabled {
		for _, ch := range cfg.Alerting.Notifications.Channels {
			if !validChannel(ch) {
				addError(&result, fmt.Sprintf("alerting.notifications.channels: unrecognized channel %q", ch))
			}
		}
	}

	for _, rt := range cfg.Reporting.Types {
		if !validReportType(rt) {
			addError(&result, fmt.Sprintf("reporting.types: unrecognized type %q", rt))
		}
	}
	if cfg.Reporting.Schedule.Frequency != "" && !validFrequency(cfg.Reporting.Schedule.Frequency) {
		addError(&result, fmt.Sprintf("reporting.schedule.frequency: unrecognized value %q", cfg.Reporting.Schedule.Frequency))
	}

	clampFloatExclusiveMin(&cfg.Performance.OverheadTargetPercent, "performance.overhead_target_percent", 0, 10, &result)
	clampFloat(&cfg.Performance.MemoryThresholdMB, "performance.memory_threshold_mb", 10, -1, &result)
	clampInt(&cfg.Performance.Cache.Size, "performance.cache.size", 1, -1, &result)
	clampIntExclusiveMin(&cfg.Performance.Cache.TTLSeconds, "performance.cache.ttl_seconds", 0, -1, &result)

	if cfg.Global.LogLevel != "" && !validLogLevel(cfg.Global.LogLevel) {
		addError(&result, fmt.Sprintf("global.log_level: unrecognized value %q", cfg.Global.LogLevel))
	}
	clampInt(&cfg.Global.CorrelationIDLength, "global.correlation_id_length", 4, 32, &result)
	for component, seconds := range cfg.Global.Timeouts {
		if seconds <= 0 {
			addError(&result, fmt.Sprintf("global.timeouts.%s: must be > 0, got %v", component, seconds))
		}
	}

	return result
}

func addError(r *Result, msg string) {
	r.Errors = append(r.Errors, msg)
	r.IsValid = false
}

// clampInt corrects *v toward [min,max]; max<0 means unbounded above.
func clampInt(v *int, field string, min, max int, r *Result) {
	orig := *v
	if orig < min {
		*v = min
	} else if max >= 0 && orig > max {
		*v = max
	} else {
		return
	}
	r.CorrectedValues = append(r.CorrectedValues, Correction{Field: field, Original: orig, Corrected: *v, Reason: "out of range"})
}

// clampIntExclusiveMin corrects *v so it is strictly greater than min.
func clampIntExclusiveMin(v *int, field string, min, max int, r *Result) {
	orig := *v
	if orig <= min {
		*v = min + 1
	} else if max >= 0 && orig > max {
		*v = max
	} else {
		return
	}
	r.CorrectedValues = append(r.CorrectedValues, Correction{Field: field, Original: orig, Corrected: *v, Reason: "out of range"})
}

// clampFloat corrects *v toward [min,max]; max<0 means unbounded above.
func clampFloat(v *float64, field string, min, max float64, r *Result) {
	orig := *v
	if orig < min {
		*v = min
	} else if max >= 0 && orig > max {
		*v = max
	} else {
		return
	}
	r.CorrectedValues = append(r.CorrectedValues, Correction{Field: field, Original: orig, Corrected: *v, Reason: "out of range"})
}

// clampFloatExclusiveMin corrects *v into (min,max].
func clampFloatExclusiveMin(v *float64, field string, min, max float64, r *Result) {
	orig := *v
	switch {
	case orig <= min:
		*v = min + 0.1
	case orig > max:
		*v = max
	default:
		return
	}
	r.CorrectedValues = append(r.CorrectedValues, Correction{Field: field, Original: orig, Corrected: *v, Reason: "out of range"})
}

func clampSeconds(v *Seconds, field string, min, max time.Duration, r *Result) {
	orig := v.Duration()
	if orig < min {
		*v = Seconds(min)
	} else if orig > max {
		*v = Seconds(max)
	} else {
		return
	}
	r.CorrectedValues = append(r.CorrectedValues, Correction{Field: field, Original: orig, Corrected: v.Duration(), Reason: "out of range"})
}

func validChannel(c NotificationChannel) bool {
	switch c {
	case ChannelLog, ChannelEmail, ChannelWebhook, ChannelSlack:
		return true
	}
	return false
}

func validReportType(t ReportType) bool {
	switch t {
	case ReportPerformance, ReportUsage, ReportHealth, ReportTrends, ReportRecommendations:
		return true
	}
	return false
}

func validFrequency(f ReportFrequency) bool {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

func validLogLevel(l LogLevel) bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelCritical:
		return true
	}
	return false
}
