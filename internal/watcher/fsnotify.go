package watcher

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleInterval is how long a file must stay unchanged before the
// fsnotify backend reports it.
const DefaultSettleInterval = time.Second

// pendingFile is a path seen by fsnotify that has not settled yet.
type pendingFile struct {
	dir     string
	name    string
	written bool
	size    int64
	modTime time.Time
	changed time.Time
}

// fsnotifySource is the portable backend. fsnotify has no close-after-write
// event, so a path is held until its size and mtime have been stable for the
// settle interval. Written paths are then reported as KindCloseWrite, paths
// that were only created (renamed in) as KindMovedIn.
//
// Wait must not be called concurrently.
type fsnotifySource struct {
	w      *fsnotify.Watcher
	settle time.Duration
	now    func() time.Time

	mu   sync.Mutex
	dirs map[string]string

	pending map[string]*pendingFile
}

func newFsnotifySource(settle time.Duration) (Source, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if settle <= 0 {
		settle = DefaultSettleInterval
	}
	return &fsnotifySource{
		w:       w,
		settle:  settle,
		now:     time.Now,
		dirs:    make(map[string]string),
		pending: make(map[string]*pendingFile),
	}, nil
}

func (s *fsnotifySource) Add(dir string) error {
	if err := s.w.Add(dir); err != nil {
		return fmt.Errorf("fsnotify add %s: %w", dir, err)
	}
	s.mu.Lock()
	s.dirs[filepath.Clean(dir)] = dir
	s.mu.Unlock()
	return nil
}

// recheck is how often pending paths are stat'ed while Wait blocks.
func (s *fsnotifySource) recheck() time.Duration {
	return max(s.settle/4, 10*time.Millisecond)
}

func (s *fsnotifySource) Wait(timeout time.Duration) ([]Event, error) {
	deadline := s.now().Add(timeout)

	for {
		if ready := s.settled(s.now()); len(ready) > 0 {
			return ready, nil
		}

		wait := deadline.Sub(s.now())
		if wait <= 0 {
			return nil, nil
		}
		if len(s.pending) > 0 {
			wait = min(wait, s.recheck())
		}

		timer := time.NewTimer(wait)
		select {
		case ev, ok := <-s.w.Events:
			timer.Stop()
			if !ok {
				return nil, ErrSourceClosed
			}
			s.observe(ev)
			s.drain()

		case err, ok := <-s.w.Errors:
			timer.Stop()
			if !ok {
				return nil, ErrSourceClosed
			}
			return nil, fmt.Errorf("fsnotify: %w", err)

		case <-timer.C:
		}
	}
}

// drain records whatever else is already queued.
func (s *fsnotifySource) drain() {
	for {
		select {
		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			s.observe(ev)
		default:
			return
		}
	}
}

func (s *fsnotifySource) observe(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		p, ok := s.pending[ev.Name]
		if !ok {
			dir, name := s.split(ev.Name)
			p = &pendingFile{dir: dir, name: name, size: -1}
			s.pending[ev.Name] = p
		}
		if ev.Has(fsnotify.Write) {
			p.written = true
		}
		p.changed = s.now()

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(s.pending, ev.Name)
	}
}

// settled returns the pending paths whose size and mtime have not changed
// for the settle interval, oldest first. Vanished paths are dropped.
func (s *fsnotifySource) settled(now time.Time) []Event {
	type ready struct {
		ev      Event
		changed time.Time
	}
	var out []ready

	for path, p := range s.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(s.pending, path)
			continue
		}
		if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
			p.size, p.modTime, p.changed = info.Size(), info.ModTime(), now
			continue
		}
		if now.Sub(p.changed) < s.settle {
			continue
		}

		kind := KindMovedIn
		if p.written {
			kind = KindCloseWrite
		}
		out = append(out, ready{Event{Dir: p.dir, Name: p.name, Kind: kind}, p.changed})
		delete(s.pending, path)
	}

	slices.SortFunc(out, func(a, b ready) int {
		if c := a.changed.Compare(b.changed); c != 0 {
			return c
		}
		return cmp.Compare(a.ev.Name, b.ev.Name)
	})
	events := make([]Event, len(out))
	for i, r := range out {
		events[i] = r.ev
	}
	return events
}

func (s *fsnotifySource) split(path string) (string, string) {
	parent := filepath.Dir(path)
	s.mu.Lock()
	dir, ok := s.dirs[parent]
	s.mu.Unlock()
	if !ok {
		dir = parent
	}
	return dir, filepath.Base(path)
}

func (s *fsnotifySource) Close() error {
	return s.w.Close()
}
