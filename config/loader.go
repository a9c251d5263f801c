package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// recognizedTopLevelKeys are the only keys Load accepts without a warning
// (spec §6 "Unknown options are warnings").
var recognizedTopLevelKeys = map[string]bool{
	"collection": true, "storage": true, "alerting": true,
	"reporting": true, "performance": true, "global": true,
}

// Load parses a YAML document into Config, following the teacher's
// parse-into-generic-map-then-typed-struct pattern (confidence/store.go) so
// unrecognized top-level keys can be reported as warnings rather than
// silently ignored by yaml.v3's default unmarshal behavior.
func Load(raw []byte) (*Config, Result, error) {
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, Result{}, fmt.Errorf("config: parse: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, Result{}, fmt.Errorf("config: parse: %w", err)
	}
	for key := range generic {
		if !recognizedTopLevelKeys[key] {
			cfg.Unknown = append(cfg.Unknown, key)
		}
	}

	result := Validate(&cfg)
	return &cfg, result, nil
}

// LoadFile reads and parses the configuration surface from path.
func LoadFile(path string) (*Config, Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Result{}, fmt.Errorf("config: read file: %w", err)
	}
	return Load(data)
}

// Default returns the configuration surface's documented defaults, already
// guaranteed to pass Validate unmodified.
func Default() Config {
	return Config{
		Collection: Collection{Enabled: true, BufferSize: 1000, BatchSize: 100, FlushInterval: Seconds(time.Second)},
		Storage:    Storage{Type: StorageTypeFile, Directory: "./data", RetentionDays: 30, FileRotation: FileRotation{MaxFileSizeMB: 100, MaxFiles: 10}},
		Alerting: Alerting{
			Enabled: true,
			Thresholds: Thresholds{
				Performance: PerformanceThresholds{ResolutionTimeMS: 5000, MemoryUsageMB: 512, ErrorRatePercent: 5},
				Quality:     QualityThresholds{ConfidenceScore: 0.8, DeclinePercent: 20},
				Health:      HealthThresholds{AnomalyThreshold: 2, TimeoutFrequencyPercent: 10},
			},
			Notifications: Notifications{Channels: []NotificationChannel{ChannelLog}, RateLimit: RateLimit{MaxPerHour: 60}},
		},
		Reporting: Reporting{
			Enabled:  false,
			Types:    []ReportType{ReportPerformance, ReportHealth},
			Schedule: ReportSchedule{Frequency: FrequencyDaily, TimeOfDay: "00:00"},
		},
		Performance: Performance{OverheadTargetPercent: 2, MemoryThresholdMB: 256, Cache: Cache{Size: 1000, TTLSeconds: 300}},
		Global:      Global{LogLevel: LogLevelInfo, CorrelationIDLength: 16, Timeouts: map[string]float64{"resolution": 5, "driver": 10}},
	}
}
