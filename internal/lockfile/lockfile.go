// Package lockfile provides advisory locks over a sidecar file.
//
// The lock only coordinates processes that use it too. Shared mode admits any
// number of readers; exclusive mode serializes against every other holder.
// A lock lives for one operation and is released with Release, never at
// process exit.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Mode selects shared or exclusive locking.
type Mode int

const (
	// Shared admits concurrent shared holders.
	Shared Mode = iota
	// Exclusive excludes every other holder.
	Exclusive
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// PermLockFile is the permission for newly created lock files.
const PermLockFile os.FileMode = 0600

// Lock errors
var (
	ErrAcquire     = errors.New("lockfile: failed to acquire lock")
	ErrUnsupported = errors.New("lockfile: advisory locks unsupported on this platform")
)

// Lock is a held advisory lock.
type Lock struct {
	file *os.File
	path string
	mode Mode
}

// Acquire opens (creating if needed) the lock file at path and blocks until
// the lock is granted in the requested mode. The file content is never read
// or written.
func Acquire(path string, mode Mode) (*Lock, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}

	if err := lockFile(f, mode); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s lock on %s: %v", ErrAcquire, mode, path, err)
	}

	return &Lock{file: f, path: path, mode: mode}, nil
}

// TryAcquire is like Acquire but returns (nil, false, nil) instead of
// blocking when another holder conflicts.
func TryAcquire(path string, mode Mode) (*Lock, bool, error) {
	f, err := open(path)
	if err != nil {
		return nil, false, err
	}

	ok, err := tryLockFile(f, mode)
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("%w: %s lock on %s: %v", ErrAcquire, mode, path, err)
	}
	if !ok {
		f.Close()
		return nil, false, nil
	}

	return &Lock{file: f, path: path, mode: mode}, true, nil
}

func open(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: create lock dir: %v", ErrAcquire, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, PermLockFile)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrAcquire, path, err)
	}
	return f, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Mode returns the mode the lock was acquired in.
func (l *Lock) Mode() Mode {
	return l.mode
}

// Release unlocks and closes the lock file. The file itself is left in place
// so concurrent waiters keep locking the same inode.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err1 := unlockFile(l.file)
	err2 := l.file.Close()
	l.file = nil
	return errors.Join(err1, err2)
}

// SidecarPath returns the lock path used for a state file: the state file
// with its extension replaced by ".lock".
func SidecarPath(stateFile string) string {
	ext := filepath.Ext(stateFile)
	return stateFile[:len(stateFile)-len(ext)] + ".lock"
}
