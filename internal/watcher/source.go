package watcher

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a directory notification.
type Kind int

const (
	// KindOther is any notification the daemon does not act on.
	KindOther Kind = iota
	// KindCloseWrite means a file opened for writing was closed.
	KindCloseWrite
	// KindMovedIn means a file was renamed or moved into the directory.
	KindMovedIn
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCloseWrite:
		return "close_write"
	case KindMovedIn:
		return "moved_in"
	default:
		return "other"
	}
}

// Event is one notification about an entry in a watched directory.
type Event struct {
	// Dir is the watched directory that produced the event.
	Dir string
	// Name is the entry name relative to Dir. Empty for events on Dir itself.
	Name string
	Kind Kind
}

// ErrSourceClosed is returned by Wait after Close.
var ErrSourceClosed = errors.New("watcher: event source closed")

// Source delivers directory notifications.
type Source interface {
	// Add registers interest in close-after-write and moved-in events for dir.
	Add(dir string) error
	// Wait blocks for at most timeout and returns the events that are ready.
	// A timeout returns no events and no error.
	Wait(timeout time.Duration) ([]Event, error)
	// Close releases the underlying handle.
	Close() error
}

// Backend names accepted by NewSource.
const (
	BackendInotify  = "inotify"
	BackendFsnotify = "fsnotify"
)

type sourceOptions struct {
	settle time.Duration
}

// SourceOption configures NewSource.
type SourceOption func(*sourceOptions)

// WithSettleInterval sets how long the fsnotify backend waits for a file to
// stop changing before reporting it. inotify reports close-after-write
// directly and ignores it.
func WithSettleInterval(d time.Duration) SourceOption {
	return func(o *sourceOptions) { o.settle = d }
}

// NewSource creates the named backend. An empty name selects inotify where
// available and fsnotify elsewhere.
func NewSource(backend string, opts ...SourceOption) (Source, error) {
	o := sourceOptions{settle: DefaultSettleInterval}
	for _, opt := range opts {
		opt(&o)
	}

	switch backend {
	case "":
		if src, err := newInotifySource(); err == nil {
			return src, nil
		}
		return newFsnotifySource(o.settle)
	case BackendInotify:
		return newInotifySource()
	case BackendFsnotify:
		return newFsnotifySource(o.settle)
	default:
		return nil, fmt.Errorf("watcher: unknown backend %q", backend)
	}
}
