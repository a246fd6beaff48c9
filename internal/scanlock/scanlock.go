// Package scanlock serializes scans across processes sharing one catalog.
package scanlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 50 * time.Millisecond

var ErrTimeout = errors.New("timed out waiting for scan lock")

// Lock is an exclusive advisory file lock.
type Lock struct {
	fl *flock.Flock
}

func New(path string) *Lock {
	return &Lock{fl: flock.New(path)}
}

func (l *Lock) Path() string {
	return l.fl.Path()
}

// Acquire blocks until the lock is held or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrTimeout, ctxErr)
		}
		return fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	if !ok {
		return ErrTimeout
	}
	return nil
}

func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release scan lock: %w", err)
	}
	return nil
}
