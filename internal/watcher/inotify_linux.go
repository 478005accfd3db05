//go:build linux

package watcher

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const inotifyMask = unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO

// inotifySource watches directories with inotify(7) and waits with poll(2).
type inotifySource struct {
	mu     sync.Mutex
	fd     int
	closed bool
	dirs   map[int32]string
	buf    [64 * (unix.SizeofInotifyEvent + unix.NAME_MAX + 1)]byte
}

func newInotifySource() (Source, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}
	return &inotifySource{fd: fd, dirs: make(map[int32]string)}, nil
}

func (s *inotifySource) Add(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}

	wd, err := unix.InotifyAddWatch(s.fd, dir, inotifyMask)
	if err != nil {
		return fmt.Errorf("inotify add watch %s: %w", dir, err)
	}
	s.dirs[int32(wd)] = dir
	return nil
}

func (s *inotifySource) Wait(timeout time.Duration) ([]Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSourceClosed
	}
	fd := s.fd
	s.mu.Unlock()

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("poll inotify: %w", err)
	}
	if n <= 0 || fds[0].Revents&unix.POLLIN == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}

	read, err := unix.Read(s.fd, s.buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inotify: %w", err)
	}
	return s.parse(s.buf[:read]), nil
}

// parse decodes a buffer of packed inotify_event records.
func (s *inotifySource) parse(buf []byte) []Event {
	var events []Event
	for offset := 0; offset+unix.SizeofInotifyEvent <= len(buf); {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + int(raw.Len)
		if nameEnd > len(buf) {
			break
		}
		name := string(bytes.TrimRight(buf[nameStart:nameEnd], "\x00"))
		offset = nameEnd

		dir, ok := s.dirs[raw.Wd]
		if !ok {
			continue
		}
		if raw.Mask&unix.IN_IGNORED != 0 {
			delete(s.dirs, raw.Wd)
			continue
		}

		kind := KindOther
		switch {
		case raw.Mask&unix.IN_CLOSE_WRITE != 0:
			kind = KindCloseWrite
		case raw.Mask&unix.IN_MOVED_TO != 0:
			kind = KindMovedIn
		}
		events = append(events, Event{Dir: dir, Name: name, Kind: kind})
	}
	return events
}

func (s *inotifySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
