//go:build !linux

package watcher

import "errors"

func newInotifySource() (Source, error) {
	return nil, errors.New("watcher: inotify is only available on linux")
}
