// Package history holds the bounded list of recently finished files and the
// stores that share it between processes.
//
// The watcher daemon pushes new entries; short-lived commands read the list
// or move the selection cursor. Every change goes through Store.Mutate so
// concurrent processes never lose each other's updates.
package history

import (
	"math"
	"os"
	"path/filepath"
	"time"
)

// ExpiryGrace is added to the dismiss timeout before an entry counts as expired.
const ExpiryGrace = 2 * time.Second

// DefaultMaxEntries is the default history bound.
const DefaultMaxEntries = 5

// FileState describes one discovered file. It is created once by the watcher
// and never modified afterwards.
type FileState struct {
	Path string  `json:"path"`
	Name string  `json:"name"`
	Size uint64  `json:"size"`
	Time float64 `json:"time"`
}

// NewFileState snapshots path at discovery time. The size is best effort and
// falls back to 0 when the file cannot be stat'ed.
func NewFileState(path string, discovered time.Time) FileState {
	var size uint64
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		size = uint64(info.Size())
	}
	return FileState{
		Path: path,
		Name: filepath.Base(path),
		Size: size,
		Time: epochSeconds(discovered),
	}
}

// DiscoveredAt converts the stored timestamp back to a time.Time.
func (f FileState) DiscoveredAt() time.Time {
	sec, frac := math.Modf(f.Time)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// IsExpired reports whether the entry is older than dismiss plus ExpiryGrace.
func (f FileState) IsExpired(dismiss time.Duration, now time.Time) bool {
	age := epochSeconds(now) - f.Time
	return age > (dismiss + ExpiryGrace).Seconds()
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// State is the shared history: newest entry first, plus the selection cursor.
// While Entries is non-empty, 0 <= Selected < len(Entries) holds after any
// Push, SelectPrev, SelectNext or Clamp.
type State struct {
	Entries  []FileState `json:"entries"`
	Selected int         `json:"selected"`
}

// Empty returns a history with no entries.
func Empty() State {
	return State{Entries: []FileState{}}
}

// Len returns the number of entries.
func (s *State) Len() int {
	return len(s.Entries)
}

// Current returns the selected entry.
func (s *State) Current() (FileState, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Entries) {
		return FileState{}, false
	}
	return s.Entries[s.Selected], true
}

// Push inserts entry at the front, truncates to maxEntries and resets the
// selection to the newest entry.
func (s *State) Push(entry FileState, maxEntries int) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries := make([]FileState, 0, min(len(s.Entries)+1, maxEntries))
	entries = append(entries, entry)
	for _, e := range s.Entries {
		if len(entries) == maxEntries {
			break
		}
		entries = append(entries, e)
	}
	s.Entries = entries
	s.Selected = 0
}

// SelectPrev moves the cursor one entry towards older files.
func (s *State) SelectPrev() {
	if s.Selected+1 < len(s.Entries) {
		s.Selected++
	}
}

// SelectNext moves the cursor one entry towards newer files.
func (s *State) SelectNext() {
	if s.Selected > 0 {
		s.Selected--
	}
}

// Clamp pulls a stale cursor back into range. A history persisted under a
// larger bound can carry a selection past the end.
func (s *State) Clamp() {
	switch {
	case len(s.Entries) == 0 || s.Selected < 0:
		s.Selected = 0
	case s.Selected >= len(s.Entries):
		s.Selected = len(s.Entries) - 1
	}
}

// Active returns the entries that have not expired, with their indexes.
func (s *State) Active(dismiss time.Duration, now time.Time) []IndexedEntry {
	var out []IndexedEntry
	for i, e := range s.Entries {
		if !e.IsExpired(dismiss, now) {
			out = append(out, IndexedEntry{Index: i, Discovered: e.DiscoveredAt(), FileState: e})
		}
	}
	return out
}

// IndexedEntry is an entry together with its position in the history and
// its discovery time.
type IndexedEntry struct {
	Index      int       `json:"index"`
	Discovered time.Time `json:"discovered"`
	FileState
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := State{Selected: s.Selected, Entries: make([]FileState, len(s.Entries))}
	copy(c.Entries, s.Entries)
	return c
}
