package lib

import (
	"fmt"

	"github.com/gofrs/flock"
)

// RunLock keeps a second supervisor from running against the same lock file.
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock takes the lock without blocking. It fails with ErrLocked
// if another holder has it.
func AcquireRunLock(path string) (*RunLock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire run lock %s: %w", path, ErrLocked)
	}
	return &RunLock{fl: fl}, nil
}

// Release unlocks and closes the lock file. The file stays on disk so a
// concurrent acquirer never locks an unlinked inode.
func (l *RunLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Close(); err != nil {
		return fmt.Errorf("release run lock %s: %w", l.fl.Path(), err)
	}
	l.fl = nil
	return nil
}
