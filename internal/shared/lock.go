package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// InstanceLock guards a data directory against a second daemon.
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireLock takes a non-blocking exclusive lock on path.
//
// Returns [ErrAlreadyLocked] when another process holds it.
func AcquireLock(path string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: lock held at %s", ErrAlreadyLocked, path)
	}

	return &InstanceLock{lock: fl}, nil
}

// Path returns the lock file location.
func (l *InstanceLock) Path() string {
	return l.lock.Path()
}

// Release unlocks the file. The lock file itself stays in place for the next run.
func (l *InstanceLock) Release() error {
	return l.lock.Unlock()
}
