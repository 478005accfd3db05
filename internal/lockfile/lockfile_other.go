//go:build !unix

package lockfile

import "os"

func lockFile(f *os.File, mode Mode) error {
	return ErrUnsupported
}

func tryLockFile(f *os.File, mode Mode) (bool, error) {
	return false, ErrUnsupported
}

func unlockFile(f *os.File) error {
	return nil
}
