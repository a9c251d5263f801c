// Package checkpoint implements the Checkpoint & State Codec (spec §4.8):
// deterministic envelope encoding, checksum/compression/encryption framing,
// schema migration, corruption detection, and a retention sweep, plus the
// in-repo FileStore reference storage backend.
package checkpoint

import "time"

// Status is the Checkpoint.status state machine (spec §4.8 "State machine").
type Status string

const (
	StatusCreating  Status = "creating"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCorrupted Status = "corrupted"
	StatusExpired   Status = "expired"
	StatusDeleted   Status = "deleted"
)

// Compression identifies the envelope's compression algorithm, if any.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
)

// CurrentSchemaVersion is the schema version new checkpoints are stamped
// with. SupportedSchemaVersions lists every version the migration chain can
// read (spec §6 "Supported schema versions at v1").
const CurrentSchemaVersion = "1.2.0"

var SupportedSchemaVersions = []string{"1.0.0", "1.1.0", "1.2.0"}

// Data is the payload a Checkpoint carries, per spec §6 envelope fields.
type Data struct {
	Progress      map[string]any `json:"progress,omitempty"`
	State         map[string]any `json:"state,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	Artifacts     []string       `json:"artifacts,omitempty"`
}

// Checkpoint is the full envelope described in spec §4.8/§6.
type Checkpoint struct {
	ID                  string            `json:"id"`
	JobID               string            `json:"job_id"`
	SequenceNumber      int64             `json:"sequence_number"`
	Timestamp           time.Time         `json:"timestamp"`
	Status              Status            `json:"status"`
	CheckpointType      string            `json:"checkpoint_type"`
	Compression         Compression       `json:"compression"`
	EncryptionEnabled   bool              `json:"encryption_enabled"`
	SchemaVersion       string            `json:"schema_version"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Data                Data              `json:"data"`
	Checksum            string            `json:"checksum"`
	SizeBytes           int64             `json:"size_bytes"`
	CompressedSizeBytes int64             `json:"compressed_size_bytes,omitempty"`
	ParentCheckpointID  string            `json:"parent_checkpoint_id,omitempty"`
	ChildCheckpointIDs  []string          `json:"child_checkpoint_ids,omitempty"`
	ExpiresAt           *time.Time        `json:"expires_at,omitempty"`
	Description         string            `json:"description,omitempty"`
	Tags                []string          `json:"tags,omitempty"`

	// payload carries the encoded (compressed and/or encrypted, as configured)
	// bytes alongside the envelope metadata above; Encode/Decode operate on it.
	payload []byte
}

// CorruptionType enumerates the detector's failure kinds (spec §4.8).
type CorruptionType string

const (
	CorruptionChecksumMismatch      CorruptionType = "ChecksumMismatch"
	CorruptionSchemaVersionMismatch CorruptionType = "SchemaVersionMismatch"
	CorruptionInvalidJson           CorruptionType = "InvalidJson"
	CorruptionInvalidCompression    CorruptionType = "InvalidCompression"
	CorruptionInvalidEncryption     CorruptionType = "InvalidEncryption"
	CorruptionMissingFields         CorruptionType = "MissingFields"
	CorruptionInvalidDataTypes      CorruptionType = "InvalidDataTypes"
	CorruptionSizeMismatch          CorruptionType = "SizeMismatch"
	CorruptionUnknown               CorruptionType = "Unknown"
)

// Severity mirrors the root package's severity scale for corruption reports.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CorruptionReport is produced by the first failing detector check
// (spec §4.8 "Corruption detector").
type CorruptionReport struct {
	CheckpointID     string
	CorruptionType   CorruptionType
	Severity         Severity
	Details          string
	RecoveryPossible bool
	RecoveryActions  []string
}

func recoveryActionsFor(t CorruptionType) []string {
	switch t {
	case CorruptionChecksumMismatch:
		return []string{"restore_from_backup", "regenerate", "verify_storage"}
	case CorruptionSchemaVersionMismatch:
		return []string{"run_migration", "restore_from_backup"}
	case CorruptionSizeMismatch:
		return []string{"verify_storage", "restore_from_backup"}
	case CorruptionMissingFields, CorruptionInvalidDataTypes:
		return []string{"restore_from_backup"}
	default:
		return []string{"restore_from_backup"}
	}
}
