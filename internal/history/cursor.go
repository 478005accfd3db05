package history

import (
	"context"
	"fmt"
)

// Direction is a scroll direction understood by Scroll.
type Direction string

const (
	// Up moves towards older entries.
	Up Direction = "up"
	// Down moves towards newer entries.
	Down Direction = "down"
)

// Push records entry as the newest file and resets the selection.
func Push(ctx context.Context, store Store, entry FileState, maxEntries int) error {
	return store.Mutate(ctx, func(s *State) {
		s.Push(entry, maxEntries)
	})
}

// SelectPrev moves the shared cursor towards older entries.
func SelectPrev(ctx context.Context, store Store) error {
	return store.Mutate(ctx, func(s *State) { s.SelectPrev() })
}

// SelectNext moves the shared cursor towards newer entries.
func SelectNext(ctx context.Context, store Store) error {
	return store.Mutate(ctx, func(s *State) { s.SelectNext() })
}

// Scroll moves the cursor in dir. Unknown directions still take the lock
// and rewrite the document unchanged.
func Scroll(ctx context.Context, store Store, dir Direction) error {
	err := store.Mutate(ctx, func(s *State) {
		switch dir {
		case Up:
			s.SelectPrev()
		case Down:
			s.SelectNext()
		}
	})
	if err != nil {
		return fmt.Errorf("scroll %s: %w", dir, err)
	}
	return nil
}
