package confidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// subOverrideEntry is the on-disk representation of one (context,
// sub_context) override; yaml.v3 cannot marshal a map keyed by a struct, so
// the Store flattens subOver into a slice of these on save and rebuilds the
// map on load.
type subOverrideEntry struct {
	Context    string  `yaml:"context"`
	SubContext string  `yaml:"sub_context"`
	Threshold  float64 `yaml:"threshold"`
}

// PersistedState is the single-file snapshot of a Manager's mutable state
// (spec §4.4: "Persistence is one file... holding both override maps and a
// timestamp").
type PersistedState struct {
	Overrides    map[string]float64   `yaml:"-"`
	SubOverrides map[subKey]float64   `yaml:"-"`
	History      []ThresholdChange    `yaml:"history"`
	SavedAt      time.Time            `yaml:"saved_at"`
}

type onDiskState struct {
	Overrides    map[string]float64 `yaml:"overrides"`
	SubOverrides []subOverrideEntry `yaml:"sub_overrides"`
	History      []ThresholdChange  `yaml:"history"`
	SavedAt      time.Time          `yaml:"saved_at"`
}

// Store persists a PersistedState to one YAML file, in the teacher's
// load/parse-then-hot-reload style (grounded in
// engine/internal/runtime/runtime.go's RuntimeConfigManager/HotReloadSystem).
// Storage failures are returned to the caller rather than panicking;
// Manager.Set keeps the in-memory change and returns the wrapped storage
// error to its caller.
type Store struct {
	path    string
	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewStore binds a Store to path. The containing directory is created
// lazily on first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads and parses the persisted state. A missing file is not an
// error: it returns (nil, nil) so the Manager falls back to defaults.
func (s *Store) Load() (*PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*PersistedState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("confidence: read state file: %w", err)
	}
	var disk onDiskState
	if err := yaml.Unmarshal(data, &disk); err != nil {
		return nil, fmt.Errorf("confidence: parse state file: %w", err)
	}
	state := &PersistedState{
		Overrides:    disk.Overrides,
		SubOverrides: make(map[subKey]float64, len(disk.SubOverrides)),
		History:      disk.History,
		SavedAt:      disk.SavedAt,
	}
	if state.Overrides == nil {
		state.Overrides = make(map[string]float64)
	}
	for _, e := range disk.SubOverrides {
		state.SubOverrides[subKey{e.Context, e.SubContext}] = e.Threshold
	}
	return state, nil
}

// Save atomically writes state to the backing file (temp file + rename, the
// teacher's write pattern in engine/internal/runtime/runtime.go).
func (s *Store) Save(state PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	disk := onDiskState{
		Overrides: state.Overrides,
		History:   state.History,
		SavedAt:   state.SavedAt,
	}
	for key, threshold := range state.SubOverrides {
		disk.SubOverrides = append(disk.SubOverrides, subOverrideEntry{
			Context: key.context, SubContext: key.subContext, Threshold: threshold,
		})
	}

	data, err := yaml.Marshal(disk)
	if err != nil {
		return fmt.Errorf("confidence: marshal state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("confidence: create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".confidence-state-*.tmp")
	if err != nil {
		return fmt.Errorf("confidence: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("confidence: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("confidence: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("confidence: rename temp file: %w", err)
	}
	return nil
}

// Watch starts an fsnotify watch on the state file's directory and reloads
// on every write, pushing the new state to reload. The returned error
// channel surfaces watcher-level failures; both channels close when ctx is
// cancelled.
func (s *Store) Watch(ctx context.Context) (<-chan *PersistedState, <-chan error) {
	reload := make(chan *PersistedState, 4)
	errs := make(chan error, 4)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errs <- fmt.Errorf("confidence: create watcher: %w", err)
		close(reload)
		close(errs)
		return reload, errs
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		errs <- fmt.Errorf("confidence: create watch dir: %w", err)
		close(reload)
		close(errs)
		watcher.Close()
		return reload, errs
	}
	if err := watcher.Add(dir); err != nil {
		errs <- fmt.Errorf("confidence: watch dir %s: %w", dir, err)
		close(reload)
		close(errs)
		watcher.Close()
		return reload, errs
	}

	s.watcher = watcher
	go func() {
		defer watcher.Close()
		defer close(reload)
		defer close(errs)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				state, err := s.Load()
				if err != nil {
					errs <- err
					continue
				}
				if state != nil {
					reload <- state
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()
	return reload, errs
}

// StopWatching closes the active watcher, if any.
func (s *Store) StopWatching() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

