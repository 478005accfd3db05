// Package dedup suppresses repeated "new file" signals for the same path.
//
// Multi-step writes (temp-then-rename, partial download then final close)
// produce several notifications for one logical file. The Filter remembers
// recently accepted paths for a bounded time so only the first one counts.
package dedup

import (
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an accepted path keeps suppressing repeats.
	DefaultTTL = time.Hour

	// DefaultCapacity is the maximum number of remembered paths.
	DefaultCapacity = 1000
)

// entry is a remembered path with its insertion time.
type entry struct {
	path string
	at   time.Time
}

// Filter is a TTL-bounded membership cache in insertion order.
// Entries are never reordered, so the oldest is always at the front.
type Filter struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries []entry
}

// Option configures a Filter.
type Option func(*Filter)

// WithTTL overrides the retention window.
func WithTTL(ttl time.Duration) Option {
	return func(f *Filter) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithCapacity overrides the maximum number of entries.
func WithCapacity(n int) Option {
	return func(f *Filter) {
		if n > 0 {
			f.capacity = n
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		if now != nil {
			f.now = now
		}
	}
}

// New creates an empty Filter.
func New(opts ...Option) *Filter {
	f := &Filter{
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.entries = make([]entry, 0, f.capacity)
	return f
}

// Insert evicts expired entries from the front, makes room if the filter is
// still full, and appends path.
func (f *Filter) Insert(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertLocked(path)
}

func (f *Filter) insertLocked(path string) {
	now := f.now()
	drop := 0
	for drop < len(f.entries) && now.Sub(f.entries[drop].at) > f.ttl {
		drop++
	}
	if drop < len(f.entries) && len(f.entries)-drop >= f.capacity {
		drop++
	}
	if drop > 0 {
		n := copy(f.entries, f.entries[drop:])
		clear(f.entries[n:])
		f.entries = f.entries[:n]
	}

	f.entries = append(f.entries, entry{path: path, at: now})
}

// Contains reports whether path is among the current entries.
func (f *Filter) Contains(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containsLocked(path)
}

func (f *Filter) containsLocked(path string) bool {
	for _, e := range f.entries {
		if e.path == path {
			return true
		}
	}
	return false
}

// CheckAndInsert inserts path unless it is already present.
// It returns true when the path was newly inserted.
func (f *Filter) CheckAndInsert(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.containsLocked(path) {
		return false
	}
	f.insertLocked(path)
	return true
}

// Len returns the number of remembered paths.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
