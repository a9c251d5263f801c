package checkpoint

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// EncodeOptions controls the compression/encryption steps of Encode
// (spec §4.8 "Encode"). EncryptionKey nil/empty disables encryption; a
// non-empty key must be exactly 32 bytes (AES-256-GCM).
type EncodeOptions struct {
	Compression   Compression
	EncryptionKey []byte
	SchemaVersion string
}

// NewCheckpoint builds and encodes a Checkpoint envelope from data, following
// spec §4.8's Encode steps: canonicalize, checksum, compress, encrypt, wrap.
func NewCheckpoint(jobID string, seq int64, checkpointType string, data Data, opts EncodeOptions) (*Checkpoint, error) {
	schemaVersion := opts.SchemaVersion
	if schemaVersion == "" {
		schemaVersion = CurrentSchemaVersion
	}

	canonical, err := canonicalJSON(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)

	payload := canonical
	compression := CompressionNone
	if opts.Compression != "" && opts.Compression != CompressionNone {
		payload, err = compressPayload(opts.Compression, payload)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: compress: %w", err)
		}
		compression = opts.Compression
	}

	encryptionEnabled := false
	if len(opts.EncryptionKey) > 0 {
		payload, err = encryptPayload(opts.EncryptionKey, payload)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: encrypt: %w", err)
		}
		encryptionEnabled = true
	}

	cp := &Checkpoint{
		ID:                  uuid.NewString(),
		JobID:               jobID,
		SequenceNumber:      seq,
		Timestamp:           time.Now().UTC(),
		Status:              StatusActive,
		CheckpointType:      checkpointType,
		Compression:         compression,
		EncryptionEnabled:   encryptionEnabled,
		SchemaVersion:       schemaVersion,
		Data:                data,
		Checksum:            hex.EncodeToString(sum[:]),
		SizeBytes:           int64(len(canonical)),
		CompressedSizeBytes: int64(len(payload)),
		payload:             payload,
	}
	return cp, nil
}

// Payload returns the encoded, possibly compressed/encrypted bytes backing
// this envelope (what a Store persists alongside the envelope metadata).
func (c *Checkpoint) Payload() []byte { return c.payload }

// canonicalJSON marshals data with stable key order. encoding/json already
// sorts map[string]any keys; Data's own fields are fixed and ordered by the
// struct definition, so a plain Marshal is already canonical here.
func canonicalJSON(data Data) ([]byte, error) {
	return json.Marshal(data)
}

func compressPayload(c Compression, in []byte) ([]byte, error) {
	switch c {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(in); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("checkpoint: unsupported compression %q", c)
	}
}

func decompressPayload(c Compression, in []byte) ([]byte, error) {
	switch c {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(in))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("checkpoint: unsupported compression %q", c)
	}
}

// encryptPayload seals in under AES-256-GCM, prefixing the nonce.
func encryptPayload(key, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, in, nil), nil
}

func decryptPayload(key, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(in) < gcm.NonceSize() {
		return nil, fmt.Errorf("checkpoint: ciphertext shorter than nonce")
	}
	nonce, ciphertext := in[:gcm.NonceSize()], in[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Decode reverses Encode against raw envelope JSON (as persisted by a
// Store), running the corruption detector at each step (spec §4.8 "Decode").
// On success it returns the fully materialized Checkpoint with any schema
// migration already applied. On any detector failure it returns the
// CorruptionReport and a non-nil error.
func Decode(envelopeJSON []byte, encryptionKey []byte) (*Checkpoint, *CorruptionReport, error) {
	report := detectStructural(envelopeJSON)
	if report != nil {
		return nil, report, fmt.Errorf("checkpoint: %s", report.CorruptionType)
	}

	raw, err := parseRawEnvelope(envelopeJSON)
	if err != nil {
		r := &CorruptionReport{CorruptionType: CorruptionInvalidJson, Severity: SeverityHigh, Details: err.Error(), RecoveryPossible: true, RecoveryActions: recoveryActionsFor(CorruptionInvalidJson)}
		return nil, r, err
	}

	if !schemaSupported(raw.SchemaVersion) {
		r := &CorruptionReport{
			CheckpointID:     raw.ID,
			CorruptionType:   CorruptionSchemaVersionMismatch,
			Severity:         severityForSchemaMismatch(raw.SchemaVersion),
			Details:          fmt.Sprintf("unsupported schema_version %q", raw.SchemaVersion),
			RecoveryPossible: migrationPathExists(raw.SchemaVersion),
			RecoveryActions:  recoveryActionsFor(CorruptionSchemaVersionMismatch),
		}
		return nil, r, fmt.Errorf("checkpoint: %s", r.CorruptionType)
	}

	payload := raw.payloadBytes
	if raw.EncryptionEnabled {
		if len(encryptionKey) == 0 {
			r := &CorruptionReport{CheckpointID: raw.ID, CorruptionType: CorruptionInvalidEncryption, Severity: SeverityHigh, Details: "checkpoint is encrypted but no key supplied", RecoveryPossible: true, RecoveryActions: recoveryActionsFor(CorruptionInvalidEncryption)}
			return nil, r, fmt.Errorf("checkpoint: %s", r.CorruptionType)
		}
		decrypted, err := decryptPayload(encryptionKey, payload)
		if err != nil {
			r := &CorruptionReport{CheckpointID: raw.ID, CorruptionType: CorruptionInvalidEncryption, Severity: SeverityHigh, Details: err.Error(), RecoveryPossible: true, RecoveryActions: recoveryActionsFor(CorruptionInvalidEncryption)}
			return nil, r, err
		}
		payload = decrypted
	}

	if raw.Compression != "" && raw.Compression != CompressionNone {
		decompressed, err := decompressPayload(raw.Compression, payload)
		if err != nil {
			r := &CorruptionReport{CheckpointID: raw.ID, CorruptionType: CorruptionInvalidCompression, Severity: SeverityHigh, Details: err.Error(), RecoveryPossible: true, RecoveryActions: recoveryActionsFor(CorruptionInvalidCompression)}
			return nil, r, err
		}
		payload = decompressed
	}

	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != raw.Checksum {
		r := &CorruptionReport{CheckpointID: raw.ID, CorruptionType: CorruptionChecksumMismatch, Severity: SeverityHigh, Details: "computed checksum does not match envelope checksum", RecoveryPossible: true, RecoveryActions: recoveryActionsFor(CorruptionChecksumMismatch)}
		return nil, r, fmt.Errorf("checkpoint: %s", r.CorruptionType)
	}

	if raw.SizeBytes != 0 && int64(len(payload)) != raw.SizeBytes {
		r := &CorruptionReport{CheckpointID: raw.ID, CorruptionType: CorruptionSizeMismatch, Severity: SeverityLow, Details: fmt.Sprintf("decoded %d bytes, envelope declares size_bytes=%d", len(payload), raw.SizeBytes), RecoveryPossible: true, RecoveryActions: recoveryActionsFor(CorruptionSizeMismatch)}
		return nil, r, fmt.Errorf("checkpoint: %s", r.CorruptionType)
	}

	var dataRaw map[string]any
	if err := json.Unmarshal(payload, &dataRaw); err != nil {
		r := &CorruptionReport{CheckpointID: raw.ID, CorruptionType: CorruptionInvalidJson, Severity: SeverityHigh, Details: err.Error(), RecoveryPossible: true, RecoveryActions: recoveryActionsFor(CorruptionInvalidJson)}
		return nil, r, err
	}

	migrated, finalVersion, err := Migrate(raw.SchemaVersion, dataRaw)
	if err != nil {
		r := &CorruptionReport{CheckpointID: raw.ID, CorruptionType: CorruptionSchemaVersionMismatch, Severity: SeverityMedium, Details: err.Error(), RecoveryPossible: false, RecoveryActions: recoveryActionsFor(CorruptionSchemaVersionMismatch)}
		return nil, r, err
	}

	migratedJSON, err := json.Marshal(migrated)
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint: re-marshal migrated data: %w", err)
	}
	var data Data
	if err := json.Unmarshal(migratedJSON, &data); err != nil {
		r := &CorruptionReport{CheckpointID: raw.ID, CorruptionType: CorruptionInvalidDataTypes, Severity: SeverityHigh, Details: err.Error(), RecoveryPossible: true, RecoveryActions: recoveryActionsFor(CorruptionInvalidDataTypes)}
		return nil, r, err
	}

	cp := &Checkpoint{
		ID: raw.ID, JobID: raw.JobID, SequenceNumber: raw.SequenceNumber, Timestamp: raw.Timestamp,
		Status: raw.Status, CheckpointType: raw.CheckpointType, Compression: raw.Compression,
		EncryptionEnabled: raw.EncryptionEnabled, SchemaVersion: finalVersion, Metadata: raw.Metadata,
		Data: data, Checksum: raw.Checksum, SizeBytes: raw.SizeBytes, CompressedSizeBytes: raw.CompressedSizeBytes,
		ParentCheckpointID: raw.ParentCheckpointID, ChildCheckpointIDs: raw.ChildCheckpointIDs,
		ExpiresAt: raw.ExpiresAt, Description: raw.Description, Tags: raw.Tags, payload: payload,
	}
	return cp, nil, nil
}

func schemaSupported(v string) bool {
	for _, s := range SupportedSchemaVersions {
		if s == v {
			return true
		}
	}
	return false
}

func severityForSchemaMismatch(v string) Severity {
	if migrationPathExists(v) {
		return SeverityMedium
	}
	return SeverityHigh
}
