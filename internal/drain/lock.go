package drain

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another drain run holds the lock file.
var ErrLocked = errors.New("another drain run holds the lock")

// Lock is an exclusive advisory lock guarding one drain run per host.
type Lock struct {
	path string
	lock *flock.Flock
}

func NewLock(path string) *Lock {
	return &Lock{path: path, lock: flock.New(path)}
}

// TryLock acquires the lock without waiting.
func (l *Lock) TryLock() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (l *Lock) Unlock() error {
	return l.lock.Unlock()
}

func (l *Lock) Path() string {
	return l.path
}
