//go:build windows

package recovery

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// fileLock holds an exclusive LockFileEx region over the lock file for the
// duration of the record store's read-modify-write cycle.
type fileLock struct {
	f *os.File
}

func acquireLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	ol := new(windows.Overlapped)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, ol); err != nil {
		f.Close()
		return nil, fmt.Errorf("LockFileEx: %w", err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	defer l.f.Close()
	ol := new(windows.Overlapped)
	if err := windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, 1, 0, ol); err != nil {
		return fmt.Errorf("UnlockFileEx: %w", err)
	}
	return nil
}
