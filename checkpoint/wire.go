package checkpoint

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// rawEnvelope is the on-disk/on-wire shape (spec §6 "Checkpoint envelope"):
// everything Checkpoint exposes, plus the opaque encoded payload as base64
// rather than Checkpoint's typed, already-decoded Data.
type rawEnvelope struct {
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
	Checksum            string            `json:"checksum"`
	SizeBytes           int64             `json:"size_bytes"`
	CompressedSizeBytes int64             `json:"compressed_size_bytes,omitempty"`
	ParentCheckpointID  string            `json:"parent_checkpoint_id,omitempty"`
	ChildCheckpointIDs  []string          `json:"child_checkpoint_ids,omitempty"`
	ExpiresAt           *time.Time        `json:"expires_at,omitempty"`
	Description         string            `json:"description,omitempty"`
	Tags                []string          `json:"tags,omitempty"`
	PayloadB64          string            `json:"payload"`

	payloadBytes []byte
}

// EnvelopeJSON serializes a Checkpoint (as produced by NewCheckpoint) into
// its wire/storage form, base64-encoding the encoded payload.
func EnvelopeJSON(c *Checkpoint) ([]byte, error) {
	raw := rawEnvelope{
		ID: c.ID, JobID: c.JobID, SequenceNumber: c.SequenceNumber, Timestamp: c.Timestamp,
		Status: c.Status, CheckpointType: c.CheckpointType, Compression: c.Compression,
		EncryptionEnabled: c.EncryptionEnabled, SchemaVersion: c.SchemaVersion, Metadata: c.Metadata,
		Checksum: c.Checksum, SizeBytes: c.SizeBytes, CompressedSizeBytes: c.CompressedSizeBytes,
		ParentCheckpointID: c.ParentCheckpointID, ChildCheckpointIDs: c.ChildCheckpointIDs,
		ExpiresAt: c.ExpiresAt, Description: c.Description, Tags: c.Tags,
		PayloadB64: base64.StdEncoding.EncodeToString(c.payload),
	}
	return json.Marshal(raw)
}

func parseRawEnvelope(envelopeJSON []byte) (rawEnvelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(envelopeJSON, &raw); err != nil {
		return raw, err
	}
	decoded, err := base64.StdEncoding.DecodeString(raw.PayloadB64)
	if err != nil {
		return raw, err
	}
	raw.payloadBytes = decoded
	return raw, nil
}
