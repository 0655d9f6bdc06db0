package statefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"vigia/internal/adapters/lockdir"
	"vigia/internal/domain"
	"vigia/internal/ports"
	"vigia/logging"
)

const (
	stateFileName = "state.json"
	lockDirName   = "state.lock"
	contextsDir   = "contexts"
	recoveryDir   = "recovery"

	// DefaultBackupCount bounds the rotating backup chain
	DefaultBackupCount = 3

	// DefaultLockTimeout bounds how long a transaction waits for the lock
	DefaultLockTimeout = 5 * time.Second
)

// FileStore owns the on-disk representation of all sessions under a
// single directory:
//
//	state.json            canonical working set
//	state.json.bak.1..N   rotating backups, newest first
//	state.lock/           mutual-exclusion marker
//	contexts/<id>.ctx     out-of-line context payloads
//	recovery/<id>.json    orphaned-work artifacts
//
// All mutation goes through Transaction; the raw file handles are never
// exposed.
type FileStore struct {
	backupCount int
	dir         string
	locker      ports.Locker
	lockTimeout time.Duration
	recovered   bool
}

// Verify interface compliance at compile time
var (
	_ ports.SessionStore  = (*FileStore)(nil)
	_ ports.ContextStore  = (*FileStore)(nil)
	_ ports.RecoveryStore = (*FileStore)(nil)
)

// Option configures a FileStore
type Option func(*FileStore)

// WithBackupCount sets the number of rotating backup slots
func WithBackupCount(n int) Option {
	return func(s *FileStore) { s.backupCount = n }
}

// WithLockTimeout sets the transaction lock acquisition timeout
func WithLockTimeout(d time.Duration) Option {
	return func(s *FileStore) { s.lockTimeout = d }
}

// WithLocker overrides the default directory lock
func WithLocker(l ports.Locker) Option {
	return func(s *FileStore) { s.locker = l }
}

// NewFileStore creates a FileStore rooted at dir, creating the
// directory layout if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	for _, sub := range []string{"", contextsDir, recoveryDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	s := &FileStore{
		backupCount: DefaultBackupCount,
		dir:         dir,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = lockdir.New(filepath.Join(dir, lockDirName))
	}
	return s, nil
}

// statePath returns the canonical file path
func (s *FileStore) statePath() string {
	return filepath.Join(s.dir, stateFileName)
}

func (s *FileStore) backupPath(slot int) string {
	return fmt.Sprintf("%s.bak.%d", s.statePath(), slot)
}

// RecoveredFromBackup reports whether the last Load fell back to a
// backup, meaning the primary was corrupt and has been (or will be on
// the next write) regenerated.
func (s *FileStore) RecoveredFromBackup() bool {
	return s.recovered
}

// Load deserializes the persisted working set. A missing file yields an
// empty set. On structural-validation failure it walks the backup chain
// newest to oldest; only when every backup is also invalid does it
// surface domain.ErrCorruptState.
func (s *FileStore) Load(ctx context.Context) (*domain.SessionSet, error) {
	s.recovered = false

	set, err := readSet(s.statePath())
	if err == nil {
		return set, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewSessionSet(), nil
	}

	logging.Logger.Error("state file failed validation, trying backups",
		"path", s.statePath(),
		"error", err)

	for slot := 1; slot <= s.backupCount; slot++ {
		set, berr := readSet(s.backupPath(slot))
		if berr == nil {
			logging.Logger.Warn("recovered state from backup",
				"backup", s.backupPath(slot))
			s.recovered = true
			return set, nil
		}
		if !errors.Is(berr, os.ErrNotExist) {
			logging.Logger.Error("backup also invalid",
				"backup", s.backupPath(slot),
				"error", berr)
		}
	}

	return nil, fmt.Errorf("%s: %w", s.statePath(), domain.ErrCorruptState)
}

// readSet reads and structurally validates one candidate file
func readSet(path string) (*domain.SessionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var set domain.SessionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("structural validation of %s failed: %w", path, err)
	}
	return &set, nil
}

// Transaction acquires the lock, loads current state, applies fn,
// validates the result, writes it atomically, and releases the lock.
// When fn returns an error nothing is written.
func (s *FileStore) Transaction(ctx context.Context, fn func(*domain.SessionSet) error) error {
	if err := s.locker.Acquire(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer func() {
		if rerr := s.locker.Release(); rerr != nil {
			logging.Logger.Error("failed to release state lock", "error", rerr)
		}
	}()

	set, err := s.Load(ctx)
	if err != nil {
		return err
	}

	if err := fn(set); err != nil {
		return err
	}

	if err := set.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid state: %w", err)
	}

	return s.writeAtomic(set)
}

// writeAtomic serializes the set to a temp file in the same directory,
// flushes it to durable storage, rotates the previous canonical file
// into the backup chain, then renames the temp file over the canonical
// path. A reader never observes a half-written file.
func (s *FileStore) writeAtomic(set *domain.SessionSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	s.sweepTempFiles()

	tmp, err := os.CreateTemp(s.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if s.recovered {
		// The canonical file is the corrupt one we just recovered from;
		// regenerate it without poisoning the backup chain.
		logging.Logger.Info("regenerating primary state file", "path", s.statePath())
	} else if err := s.rotateBackups(); err != nil {
		// Keep going: losing a backup slot is preferable to losing the write
		logging.Logger.Warn("backup rotation failed", "error", err)
	}

	if err := os.Rename(tmpPath, s.statePath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	s.recovered = false
	return nil
}

// sweepTempFiles removes temp files stranded by writes that crashed or
// failed before their rename. Runs under the transaction lock, so it can
// never hit a live writer's temp file.
func (s *FileStore) sweepTempFiles() {
	patterns := []string{
		filepath.Join(s.dir, ".state-*.tmp"),
		filepath.Join(s.dir, contextsDir, ".ctx-*.tmp"),
		filepath.Join(s.dir, recoveryDir, "*.json.tmp"),
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil {
				logging.Logger.Warn("failed to remove stranded temp file",
					"path", path, "error", err)
			}
		}
	}
}

// rotateBackups shifts existing backups one slot down (oldest evicted)
// and copies the current canonical file into slot 1. The canonical file
// is copied, not moved, so readers always find it in place.
func (s *FileStore) rotateBackups() error {
	if s.backupCount <= 0 {
		return nil
	}
	if _, err := os.Stat(s.statePath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for slot := s.backupCount - 1; slot >= 1; slot-- {
		src := s.backupPath(slot)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, s.backupPath(slot+1)); err != nil {
			return fmt.Errorf("failed to rotate backup %d: %w", slot, err)
		}
	}

	return copyFile(s.statePath(), s.backupPath(1))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
