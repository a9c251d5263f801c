package checkpoint

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TisoneK/selectorengine/telemetry"
)

func TestFileStoreSaveLoadDeleteCheckpoint(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), FileStoreOptions{})
	require.NoError(t, err)

	cp, err := NewCheckpoint("job-1", 1, "Full", sampleData(), EncodeOptions{Compression: CompressionGzip})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.SaveCheckpoint(ctx, cp))

	loaded, report, err := fs.LoadCheckpoint(ctx, cp.ID)
	require.NoError(t, err)
	require.Nil(t, report)
	assert.Equal(t, cp.JobID, loaded.JobID)
	assert.Equal(t, sampleData().Artifacts, loaded.Data.Artifacts)

	require.NoError(t, fs.DeleteCheckpoint(ctx, cp.ID))
	_, _, err = fs.LoadCheckpoint(ctx, cp.ID)
	assert.Error(t, err)
}

func TestFileStoreBacksUpBeforeOverwriteAndDelete(t *testing.T) {
	dir := t.TempDir()
	backupDir := t.TempDir()
	fs, err := NewFileStore(dir, FileStoreOptions{BackupDir: backupDir})
	require.NoError(t, err)

	ctx := context.Background()
	cp, err := NewCheckpoint("job-1", 1, "Full", sampleData(), EncodeOptions{})
	require.NoError(t, err)
	require.NoError(t, fs.SaveCheckpoint(ctx, cp))

	cp.SequenceNumber = 2
	require.NoError(t, fs.SaveCheckpoint(ctx, cp))

	entries, err := readDirNames(backupDir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 1)

	require.NoError(t, fs.DeleteCheckpoint(ctx, cp.ID))
	entriesAfterDelete, err := readDirNames(backupDir)
	require.NoError(t, err)
	assert.Greater(t, len(entriesAfterDelete), len(entries))
}

func TestFileStoreListCheckpointsFiltersByJobAndSkipsCorrupted(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), FileStoreOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	cpA, err := NewCheckpoint("job-a", 1, "Full", sampleData(), EncodeOptions{})
	require.NoError(t, err)
	cpB, err := NewCheckpoint("job-b", 1, "Full", sampleData(), EncodeOptions{})
	require.NoError(t, err)
	require.NoError(t, fs.SaveCheckpoint(ctx, cpA))
	require.NoError(t, fs.SaveCheckpoint(ctx, cpB))

	list, err := fs.ListCheckpoints(ctx, "job-a", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cpA.ID, list[0].ID)
}

func TestFileStoreStoreAndLoadEvents(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), FileStoreOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	ev := telemetry.Event{
		EventID:       telemetry.NewEventID(),
		CorrelationID: "corr-1",
		SelectorName:  "home_team_name",
		Timestamp:     time.Now().UTC(),
		OperationType: telemetry.OperationResolution,
	}
	require.NoError(t, fs.StoreEvent(ctx, ev))

	loaded, err := fs.LoadEvents(ctx, telemetry.EventQuery{SelectorName: "home_team_name"})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, ev.EventID, loaded[0].EventID)

	none, err := fs.LoadEvents(ctx, telemetry.EventQuery{SelectorName: "away_team_name"})
	require.NoError(t, err)
	assert.Len(t, none, 0)
}

func TestFileStoreRetentionSweepRemovesExpired(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), FileStoreOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	cp, err := NewCheckpoint("job-1", 1, "Full", sampleData(), EncodeOptions{})
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	cp.ExpiresAt = &past
	require.NoError(t, fs.SaveCheckpoint(ctx, cp))

	fs.sweepOnce(365)

	_, _, err = fs.LoadCheckpoint(ctx, cp.ID)
	assert.Error(t, err)
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
