// Package lock provides the single process-wide mutual exclusion primitive
// that serializes every session and typed-access operation.
package lock

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

var (
	ErrNotInitialized     = errors.New("lock: not initialized")
	ErrAlreadyInitialized = errors.New("lock: already initialized")
)

// Lock wraps a one-slot semaphore. Init must run once before Acquire.
type Lock struct {
	sem *semaphore.Weighted
}

func (l *Lock) Init() error {
	if l.sem != nil {
		return ErrAlreadyInitialized
	}
	l.sem = semaphore.NewWeighted(1)
	return nil
}

// Acquire blocks until the lock is held or ctx is done. The returned release
// func is idempotent and should be deferred by the caller.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	if l.sem == nil {
		return nil, ErrNotInitialized
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.sem.Release(1)
	}, nil
}
