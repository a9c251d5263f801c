package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() Data {
	return Data{
		Progress:      map[string]any{"completed": float64(3), "total": float64(10)},
		State:         map[string]any{"phase": "resolving"},
		Configuration: map[string]any{"threshold": 0.8},
		Metrics:       map[string]any{"attempts": float64(5)},
		Artifacts:     []string{"a.json", "b.json"},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		compression Compression
		key        []byte
	}{
		{"none/none", CompressionNone, nil},
		{"gzip/none", CompressionGzip, nil},
		{"none/enc", CompressionNone, make([]byte, 32)},
		{"gzip/enc", CompressionGzip, make([]byte, 32)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cp, err := NewCheckpoint("job-1", 1, "Full", sampleData(), EncodeOptions{Compression: tc.compression, EncryptionKey: tc.key})
			require.NoError(t, err)

			envelope, err := EnvelopeJSON(cp)
			require.NoError(t, err)

			decoded, report, err := Decode(envelope, tc.key)
			require.NoError(t, err)
			require.Nil(t, report)

			assert.Equal(t, cp.ID, decoded.ID)
			assert.Equal(t, cp.Checksum, decoded.Checksum)
			assert.Equal(t, sampleData().Artifacts, decoded.Data.Artifacts)
			assert.Equal(t, CurrentSchemaVersion, decoded.SchemaVersion)
		})
	}
}

func TestDecodeChecksumMismatchIsHighSeverity(t *testing.T) {
	cp, err := NewCheckpoint("job-1", 1, "Full", sampleData(), EncodeOptions{})
	require.NoError(t, err)
	cp.Checksum = "deadbeef"

	envelope, err := EnvelopeJSON(cp)
	require.NoError(t, err)

	_, report, err := Decode(envelope, nil)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, CorruptionChecksumMismatch, report.CorruptionType)
	assert.Equal(t, SeverityHigh, report.Severity)
	assert.True(t, report.RecoveryPossible)
}

func TestDecodeMissingRequiredFieldsDetectedBeforeUnmarshal(t *testing.T) {
	_, report, err := Decode([]byte(`{"job_id":"job-1"}`), nil)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, CorruptionMissingFields, report.CorruptionType)
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, report, err := Decode([]byte(`not json`), nil)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, CorruptionInvalidJson, report.CorruptionType)
}

func TestDecodeUnsupportedSchemaVersionWithoutMigrationPathIsHighSeverity(t *testing.T) {
	cp, err := NewCheckpoint("job-1", 1, "Full", sampleData(), EncodeOptions{SchemaVersion: "0.9.0"})
	require.NoError(t, err)

	envelope, err := EnvelopeJSON(cp)
	require.NoError(t, err)

	_, report, err := Decode(envelope, nil)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, CorruptionSchemaVersionMismatch, report.CorruptionType)
	assert.Equal(t, SeverityHigh, report.Severity)
	assert.False(t, report.RecoveryPossible)
}

func TestDecodeEncryptedWithoutKeyFails(t *testing.T) {
	key := make([]byte, 32)
	cp, err := NewCheckpoint("job-1", 1, "Full", sampleData(), EncodeOptions{EncryptionKey: key})
	require.NoError(t, err)

	envelope, err := EnvelopeJSON(cp)
	require.NoError(t, err)

	_, report, err := Decode(envelope, nil)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, CorruptionInvalidEncryption, report.CorruptionType)
}
