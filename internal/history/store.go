package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"glance/internal/lockfile"
)

// Store is the shared-state accessor. Mutate is the only sanctioned way to
// change the history: it observes the latest committed value and no two
// mutations run at the same time.
type Store interface {
	Read(ctx context.Context) (State, error)
	Mutate(ctx context.Context, fn func(*State)) error
}

// ErrLock wraps failures to take the store lock.
var ErrLock = errors.New("history: lock failed")

// PermStateFile is the permission for the persisted history.
const PermStateFile os.FileMode = 0600

// storeOptions are shared by every Store implementation.
type storeOptions struct {
	clampOnLoad bool
	atomicWrite bool
	logger      *slog.Logger
}

// Option configures a store.
type Option func(*storeOptions)

// WithClampOnLoad controls whether a stale cursor is clamped when the
// document is loaded.
func WithClampOnLoad(on bool) Option {
	return func(o *storeOptions) { o.clampOnLoad = on }
}

// WithAtomicWrite makes FileStore write through a temp file and rename
// instead of rewriting in place. Ignored by SQLiteStore.
func WithAtomicWrite(on bool) Option {
	return func(o *storeOptions) { o.atomicWrite = on }
}

// WithLogger sets the logger used for degraded-path diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{
		clampOnLoad: true,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o storeOptions) load(data []byte) State {
	s, schema, err := DecodeWith(data, Attempts)
	if err != nil && len(data) > 0 {
		o.logger.Debug("discarding unreadable history", "error", err)
	} else if schema == "legacy" {
		o.logger.Debug("read legacy history document")
	}
	if o.clampOnLoad {
		s.Clamp()
	}
	return s
}

// FileStore keeps the history as a JSON document guarded by an flock'd
// sidecar file.
type FileStore struct {
	path     string
	lockPath string
	opts     storeOptions
}

// NewFileStore creates a store for the document at path. The lock file is
// the path with its extension replaced by ".lock".
func NewFileStore(path string, opts ...Option) *FileStore {
	return &FileStore{
		path:     path,
		lockPath: lockfile.SidecarPath(path),
		opts:     buildOptions(opts),
	}
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

// Read returns a copy of the current history under a shared lock.
// A missing or corrupt document reads as an empty history; failing to take
// the lock is an error.
func (s *FileStore) Read(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	lock, err := s.lock(lockfile.Shared)
	if err != nil {
		return State{}, err
	}
	defer lock.Release()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Empty(), nil
	}
	return s.opts.load(data).Clone(), nil
}

// Mutate applies fn to the latest history under an exclusive lock and writes
// the result back before releasing it.
func (s *FileStore) Mutate(ctx context.Context, fn func(*State)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock, err := s.lock(lockfile.Exclusive)
	if err != nil {
		return err
	}
	defer lock.Release()

	data, _ := os.ReadFile(s.path)
	state := s.opts.load(data)
	fn(&state)

	out, err := Encode(state)
	if err != nil {
		return err
	}

	if s.opts.atomicWrite {
		return writeFileAtomic(s.path, out, PermStateFile)
	}
	if err := os.WriteFile(s.path, out, PermStateFile); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// lock takes the sidecar lock, blocking only when another holder conflicts.
// Waits are logged at debug level.
func (s *FileStore) lock(mode lockfile.Mode) (*lockfile.Lock, error) {
	lock, ok, err := lockfile.TryAcquire(s.lockPath, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLock, err)
	}
	if ok {
		return lock, nil
	}

	start := time.Now()
	lock, err = lockfile.Acquire(s.lockPath, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLock, err)
	}
	s.opts.logger.Debug("history lock contended", "path", lock.Path(), "mode", lock.Mode(), "waited", time.Since(start))
	return lock, nil
}

// writeFileAtomic writes data to a temp file beside path, syncs it and
// renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename history: %w", err)
	}
	return nil
}
