// Package coord manages the coordination directory shared by the watcher
// daemon, the short-lived commands and the overlay components.
//
// Every cross-process marker lives here: the history document and its lock,
// the daemon's PID file, the overlay-active marker and the cached menu
// position. Tests point a Dir at a temporary directory to isolate them.
package coord

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File names inside the coordination directory.
const (
	StateFileName    = "glance-latest.json"
	LockFileName     = "glance-latest.lock"
	DatabaseFileName = "glance-latest.db"
	PIDFileName      = "glance.pid"
	OverlayFileName  = "glance-menu.lock"
	MenuPosFileName  = "glance-menu-pos"
)

// ErrNotRunning is returned when no live daemon owns the PID file.
var ErrNotRunning = errors.New("coord: daemon not running")

// Dir is a coordination directory.
type Dir struct {
	root string
}

// New returns a Dir rooted at root.
func New(root string) *Dir {
	return &Dir{root: root}
}

// Default returns the Dir under $XDG_RUNTIME_DIR, falling back to /tmp.
func Default() *Dir {
	return New(RuntimeDir())
}

// RuntimeDir returns $XDG_RUNTIME_DIR or /tmp.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// StatePath is the persisted history document.
func (d *Dir) StatePath() string { return filepath.Join(d.root, StateFileName) }

// LockPath is the sidecar lock for StatePath.
func (d *Dir) LockPath() string { return filepath.Join(d.root, LockFileName) }

// DatabasePath is the SQLite history database.
func (d *Dir) DatabasePath() string { return filepath.Join(d.root, DatabaseFileName) }

// PIDPath is the daemon liveness marker.
func (d *Dir) PIDPath() string { return filepath.Join(d.root, PIDFileName) }

// OverlayPath is the marker an interactive overlay holds while open.
func (d *Dir) OverlayPath() string { return filepath.Join(d.root, OverlayFileName) }

// MenuPosPath caches where the menu was last opened.
func (d *Dir) MenuPosPath() string { return filepath.Join(d.root, MenuPosFileName) }

// Ensure creates the directory if needed.
func (d *Dir) Ensure() error {
	if err := os.MkdirAll(d.root, 0700); err != nil {
		return fmt.Errorf("create coordination dir: %w", err)
	}
	return nil
}

// WritePID records the current process as the daemon.
func (d *Dir) WritePID() error {
	if err := d.Ensure(); err != nil {
		return err
	}
	if err := os.WriteFile(d.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ReadPID reads the daemon PID.
func (d *Dir) ReadPID() (int, error) {
	data, err := os.ReadFile(d.PIDPath())
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// RemovePID removes the liveness marker. A missing file is not an error.
func (d *Dir) RemovePID() error {
	if err := os.Remove(d.PIDPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RunningPID returns the daemon PID if that process is alive.
func (d *Dir) RunningPID() (int, error) {
	pid, err := d.ReadPID()
	if err != nil {
		return 0, ErrNotRunning
	}
	if !isProcessRunning(pid) {
		return 0, ErrNotRunning
	}
	return pid, nil
}

// OverlayActive reports whether an interactive overlay currently holds the
// user's attention.
func (d *Dir) OverlayActive() bool {
	_, err := os.Stat(d.OverlayPath())
	return err == nil
}

// ClearMenuPosition drops the cached menu position so the next menu opens
// centered again.
func (d *Dir) ClearMenuPosition() error {
	if err := os.Remove(d.MenuPosPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds. Send signal 0 to check if process exists.
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
