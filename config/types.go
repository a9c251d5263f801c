// Package config validates and corrects the recognized configuration
// surface (spec §6 "Configuration surface"): Collection, Storage, Alerting,
// Reporting, Performance, and Global option groups, following the teacher's
// engine/config aggregate-validate-correct style.
package config

import (
	"fmt"
	"time"
)

// Seconds is a time.Duration that reads/writes as a fractional-seconds
// number in YAML (spec §6 expresses flush_interval as "0.1s" to "60s", not
// as a duration string), since yaml.v3 has no built-in time.Duration support.
type Seconds time.Duration

func (s Seconds) MarshalYAML() (any, error) {
	return time.Duration(s).Seconds(), nil
}

func (s *Seconds) UnmarshalYAML(unmarshal func(any) error) error {
	var f float64
	if err := unmarshal(&f); err != nil {
		return fmt.Errorf("config: flush_interval must be a number of seconds: %w", err)
	}
	*s = Seconds(f * float64(time.Second))
	return nil
}

func (s Seconds) Duration() time.Duration { return time.Duration(s) }

// Collection controls the Telemetry Collector (spec §4.7/§6).
type Collection struct {
	Enabled       bool    `yaml:"enabled"`
	BufferSize    int     `yaml:"buffer_size"`
	BatchSize     int     `yaml:"batch_size"`
	FlushInterval Seconds `yaml:"flush_interval"`
}

// StorageType selects the backing store kind.
type StorageType string

const (
	StorageTypeFile StorageType = "file"
	StorageTypeTSDB StorageType = "tsdb"
)

// FileRotation bounds a file-tree backend's per-file size and file count.
type FileRotation struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
	MaxFiles      int `yaml:"max_files"`
}

// Storage configures the persistence backend (spec §6 "Storage backends").
type Storage struct {
	Type          StorageType  `yaml:"type"`
	Directory     string       `yaml:"directory,omitempty"`
	URL           string       `yaml:"url,omitempty"`
	Token         string       `yaml:"token,omitempty"`
	Org           string       `yaml:"org,omitempty"`
	Bucket        string       `yaml:"bucket,omitempty"`
	RetentionDays int          `yaml:"retention_days"`
	FileRotation  FileRotation `yaml:"file_rotation"`
}

// PerformanceThresholds gates resolution-time/memory/error-rate alerts.
type PerformanceThresholds struct {
	ResolutionTimeMS   float64 `yaml:"resolution_time_ms"`
	MemoryUsageMB      float64 `yaml:"memory_usage_mb"`
	ErrorRatePercent   float64 `yaml:"error_rate_percent"`
}

// QualityThresholds gates confidence-decline alerts.
type QualityThresholds struct {
	ConfidenceScore float64 `yaml:"confidence_score"`
	DeclinePercent  float64 `yaml:"decline_percent"`
}

// HealthThresholds gates timeout-frequency alerts. AnomalyThreshold is
// parsed and carried, but alerting.Engine does not evaluate it.
type HealthThresholds struct {
	AnomalyThreshold        float64 `yaml:"anomaly_threshold"`
	TimeoutFrequencyPercent float64 `yaml:"timeout_frequency_percent"`
}

// Thresholds is the full Alerting.thresholds group.
type Thresholds struct {
	Performance PerformanceThresholds `yaml:"performance"`
	Quality     QualityThresholds     `yaml:"quality"`
	Health      HealthThresholds      `yaml:"health"`
}

// NotificationChannel names a supported alert delivery channel.
type NotificationChannel string

const (
	ChannelLog     NotificationChannel = "log"
	ChannelEmail   NotificationChannel = "email"
	ChannelWebhook NotificationChannel = "webhook"
	ChannelSlack   NotificationChannel = "slack"
)

// RateLimit caps outbound alert notifications.
type RateLimit struct {
	MaxPerHour int `yaml:"max_per_hour"`
}

// Notifications configures where alerts are delivered.
type Notifications struct {
	Channels  []NotificationChannel `yaml:"channels"`
	RateLimit RateLimit             `yaml:"rate_limit"`
}

// Alerting configures the Alert & Report Engine's threshold evaluation
// (spec §6 "Alerting").
type Alerting struct {
	Enabled       bool          `yaml:"enabled"`
	Thresholds    Thresholds    `yaml:"thresholds"`
	Notifications Notifications `yaml:"notifications"`
}

// ReportType names a kind of scheduled report.
type ReportType string

const (
	ReportPerformance     ReportType = "performance"
	ReportUsage           ReportType = "usage"
	ReportHealth          ReportType = "health"
	ReportTrends          ReportType = "trends"
	ReportRecommendations ReportType = "recommendations"
)

// ReportFrequency names a schedule cadence.
type ReportFrequency string

const (
	FrequencyHourly  ReportFrequency = "hourly"
	FrequencyDaily   ReportFrequency = "daily"
	FrequencyWeekly  ReportFrequency = "weekly"
	FrequencyMonthly ReportFrequency = "monthly"
)

// ReportSchedule configures when the Report Engine runs.
type ReportSchedule struct {
	Frequency ReportFrequency `yaml:"frequency"`
	TimeOfDay string          `yaml:"time_of_day"`
}

// Reporting configures the periodic report generator (spec §6 "Reporting").
type Reporting struct {
	Enabled  bool           `yaml:"enabled"`
	Types    []ReportType   `yaml:"types"`
	Schedule ReportSchedule `yaml:"schedule"`
}

// Cache bounds an in-process cache used by performance-sensitive components.
type Cache struct {
	Size       int `yaml:"size"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

// Performance caps overhead/memory budgets and cache sizing (spec §6
// "Performance").
type Performance struct {
	OverheadTargetPercent float64 `yaml:"overhead_target_percent"`
	MemoryThresholdMB     float64 `yaml:"memory_threshold_mb"`
	Cache                 Cache   `yaml:"cache"`
}

// LogLevel names a recognized Global.log_level value.
type LogLevel string

const (
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
)

// Global holds cross-cutting options (spec §6 "Global").
type Global struct {
	LogLevel            LogLevel           `yaml:"log_level"`
	CorrelationIDLength int                `yaml:"correlation_id_length"`
	Timeouts            map[string]float64 `yaml:"timeouts"`
}

// Config is the full recognized configuration surface (spec §6).
type Config struct {
	Collection  Collection  `yaml:"collection"`
	Storage     Storage     `yaml:"storage"`
	Alerting    Alerting    `yaml:"alerting"`
	Reporting   Reporting   `yaml:"reporting"`
	Performance Performance `yaml:"performance"`
	Global      Global      `yaml:"global"`

	// Unknown carries any top-level keys the parser saw but this struct
	// doesn't recognize, surfaced as warnings by Validate rather than
	// silently dropped. Unrecognized nested keys are not detected.
	Unknown []string `yaml:"-"`
}

// Correction records a single out-of-range value clamped to its nearest
// valid bound (spec §6: "out-of-range values are corrected toward the
// nearest valid bound with a logged correction").
type Correction struct {
	Field    string
	Original any
	Corrected any
	Reason   string
}

// Result is Validate's aggregate report (spec §6).
type Result struct {
	IsValid         bool
	Errors          []string
	Warnings        []string
	CorrectedValues []Correction
}
