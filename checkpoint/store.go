package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TisoneK/selectorengine/telemetry"
	"github.com/TisoneK/selectorengine/telemetry/logging"
)

// FileStore is the in-repo reference storage backend (spec §6 "File tree":
// a directory per kind, atomic write = temp file + rename). Retention is
// decided by each envelope's timestamp and expires_at, not by file mtime.
// It satisfies telemetry.Storage for events and additionally offers
// checkpoint-specific Save/Load/Delete/List, mirroring the teacher's
// resources.Manager spill-file write path adapted to this envelope.
type FileStore struct {
	baseDir       string
	backupDir     string
	encryptionKey []byte
	logger        logging.Logger

	idLocksMu sync.Mutex
	idLocks   map[string]*sync.Mutex

	sweeper *cron.Cron
}

// FileStoreOptions configures an optional backup location (copied-to before
// delete/overwrite, spec §4.8 "Retention") and the encryption key used to
// decode encrypted checkpoints.
type FileStoreOptions struct {
	BackupDir     string
	EncryptionKey []byte
	Logger        logging.Logger
}

func NewFileStore(baseDir string, opts FileStoreOptions) (*FileStore, error) {
	for _, sub := range []string{"events", "checkpoints", "thresholds"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint: create %s dir: %w", sub, err)
		}
	}
	if opts.BackupDir != "" {
		if err := os.MkdirAll(opts.BackupDir, 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint: create backup dir: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(nil)
	}
	return &FileStore{
		baseDir:       baseDir,
		backupDir:     opts.BackupDir,
		encryptionKey: opts.EncryptionKey,
		logger:        logger,
		idLocks:       make(map[string]*sync.Mutex),
	}, nil
}

func (fs *FileStore) lockFor(id string) *sync.Mutex {
	fs.idLocksMu.Lock()
	defer fs.idLocksMu.Unlock()
	m, ok := fs.idLocks[id]
	if !ok {
		m = &sync.Mutex{}
		fs.idLocks[id] = m
	}
	return m
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (fs *FileStore) checkpointPath(id string) string {
	return filepath.Join(fs.baseDir, "checkpoints", id+".json")
}

func (fs *FileStore) eventPath(ev telemetry.Event) string {
	name := fmt.Sprintf("%s_%s.json", ev.Timestamp.UTC().Format("20060102T150405.000000000Z"), ev.EventID)
	return filepath.Join(fs.baseDir, "events", name)
}

// --- telemetry.Storage ---

func (fs *FileStore) StoreEvent(ctx context.Context, event telemetry.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal event: %w", err)
	}
	if err := atomicWrite(fs.eventPath(event), data); err != nil {
		return fmt.Errorf("checkpoint: write event: %w", err)
	}
	return nil
}

func (fs *FileStore) StoreEventsBatch(ctx context.Context, events []telemetry.Event) error {
	for _, ev := range events {
		if err := fs.StoreEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FileStore) LoadEvents(ctx context.Context, query telemetry.EventQuery) ([]telemetry.Event, error) {
	dir := filepath.Join(fs.baseDir, "events")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read events dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []telemetry.Event
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var ev telemetry.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if query.SelectorName != "" && ev.SelectorName != query.SelectorName {
			continue
		}
		if query.OperationType != "" && ev.OperationType != query.OperationType {
			continue
		}
		out = append(out, ev)
		if query.Limit > 0 && len(out) >= query.Limit {
			break
		}
	}
	return out, nil
}

// --- checkpoint-specific store ---

// SaveCheckpoint persists cp, backing up any prior checkpoint with the same
// ID before overwrite (spec §4.8 "also before overwrite"). Exactly one
// writer may act on a given checkpoint ID at a time (spec §5).
func (fs *FileStore) SaveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	lock := fs.lockFor(cp.ID)
	lock.Lock()
	defer lock.Unlock()

	path := fs.checkpointPath(cp.ID)
	if _, err := os.Stat(path); err == nil {
		fs.backupBeforeMutation(ctx, cp.ID, path)
	}

	data, err := EnvelopeJSON(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal envelope: %w", err)
	}
	if err := atomicWrite(path, data); err != nil {
		return fmt.Errorf("checkpoint: write envelope: %w", err)
	}
	return nil
}

// LoadCheckpoint reads and decodes the checkpoint with the given id,
// applying migration and corruption detection (spec §4.8 "Decode").
func (fs *FileStore) LoadCheckpoint(ctx context.Context, id string) (*Checkpoint, *CorruptionReport, error) {
	raw, err := os.ReadFile(fs.checkpointPath(id))
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint: read envelope: %w", err)
	}
	return Decode(raw, fs.encryptionKey)
}

// DeleteCheckpoint removes a checkpoint's file, backing it up first if a
// backup directory is configured. Backup failures are logged but never
// block the deletion (spec §4.8 "Retention").
func (fs *FileStore) DeleteCheckpoint(ctx context.Context, id string) error {
	lock := fs.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	path := fs.checkpointPath(id)
	fs.backupBeforeMutation(ctx, id, path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete envelope: %w", err)
	}
	return nil
}

func (fs *FileStore) backupBeforeMutation(ctx context.Context, id, path string) {
	if fs.backupDir == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.WarnCtx(ctx, "checkpoint: backup read failed, continuing without backup", "checkpoint_id", id, "error", err)
		}
		return
	}
	backupPath := filepath.Join(fs.backupDir, fmt.Sprintf("%s_%d.json", id, time.Now().UnixNano()))
	if err := atomicWrite(backupPath, data); err != nil {
		fs.logger.WarnCtx(ctx, "checkpoint: backup write failed, continuing", "checkpoint_id", id, "error", err)
	}
}

// ListCheckpoints returns checkpoint envelopes, most recent first, optionally
// filtered to jobID and capped at limit (0 = unlimited). Corrupted envelopes
// are skipped rather than aborting the whole listing.
func (fs *FileStore) ListCheckpoints(ctx context.Context, jobID string, limit int) ([]*Checkpoint, error) {
	dir := filepath.Join(fs.baseDir, "checkpoints")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read checkpoints dir: %w", err)
	}

	var out []*Checkpoint
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		cp, report, err := Decode(raw, fs.encryptionKey)
		if err != nil {
			fs.logger.WarnCtx(ctx, "checkpoint: skipping corrupted checkpoint during list", "file", e.Name(), "corruption_type", reportType(report))
			continue
		}
		if jobID != "" && cp.JobID != jobID {
			continue
		}
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func reportType(r *CorruptionReport) CorruptionType {
	if r == nil {
		return CorruptionUnknown
	}
	return r.CorruptionType
}

// StartRetentionSweep schedules a cron job (schedule per §6 Storage config)
// that deletes checkpoints older than retentionDays, or whose ExpiresAt has
// passed (spec §4.8 "Retention"). The sweep deletes such checkpoints
// directly; it does not first set their status to StatusExpired.
func (fs *FileStore) StartRetentionSweep(schedule string, retentionDays int) error {
	fs.sweeper = cron.New()
	_, err := fs.sweeper.AddFunc(schedule, func() { fs.sweepOnce(retentionDays) })
	if err != nil {
		return fmt.Errorf("checkpoint: schedule retention sweep: %w", err)
	}
	fs.sweeper.Start()
	return nil
}

// StopRetentionSweep halts the scheduled sweep, if running.
func (fs *FileStore) StopRetentionSweep() {
	if fs.sweeper != nil {
		fs.sweeper.Stop()
	}
}

func (fs *FileStore) sweepOnce(retentionDays int) {
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	checkpoints, err := fs.ListCheckpoints(ctx, "", 0)
	if err != nil {
		fs.logger.ErrorCtx(ctx, "checkpoint: retention sweep failed to list checkpoints", "error", err)
		return
	}
	for _, cp := range checkpoints {
		expired := cp.Timestamp.Before(cutoff)
		if cp.ExpiresAt != nil && cp.ExpiresAt.Before(time.Now()) {
			expired = true
		}
		if !expired {
			continue
		}
		if err := fs.DeleteCheckpoint(ctx, cp.ID); err != nil {
			fs.logger.ErrorCtx(ctx, "checkpoint: retention sweep failed to delete checkpoint", "checkpoint_id", cp.ID, "error", err)
		}
	}
}
