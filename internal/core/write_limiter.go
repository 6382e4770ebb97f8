package core

// write_limiter.go bounds the number of document writes in flight across all
// sessions.
//
// Requests that cannot get a slot within maxWait fail with ErrTooManyWrites.
// WaitForDrain blocks until every in-flight write has finished and is used
// during shutdown.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyWrites is returned when no write slot frees up in time.
var ErrTooManyWrites = errors.New("too many concurrent writes, please try again later")

// DefaultMaxConcurrentWrites is the default limit for parallel writes.
const DefaultMaxConcurrentWrites = 32

// DefaultWriteWait is how long to wait for a slot before rejecting.
const DefaultWriteWait = 5 * time.Second

// WriteLimiter is a weighted semaphore over store writes.
type WriteLimiter struct {
	sem     *semaphore.Weighted
	max     int64
	maxWait time.Duration
	active  atomic.Int64
}

// NewWriteLimiter allows at most maxConcurrent writes at once.
func NewWriteLimiter(maxConcurrent int, maxWait time.Duration) *WriteLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentWrites
	}
	if maxWait <= 0 {
		maxWait = DefaultWriteWait
	}
	return &WriteLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a slot. The caller must call Release once the write
// completes.
func (l *WriteLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyWrites
	}
	l.active.Add(1)
	return nil
}

// TryAcquire takes a slot without blocking.
func (l *WriteLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.active.Add(1)
	return true
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *WriteLimiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// ActiveCount returns the number of writes in flight.
func (l *WriteLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until no writes are in flight or ctx is done. New
// writes are held off while it waits.
func (l *WriteLimiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.max); err != nil {
		return err
	}
	l.sem.Release(l.max)
	return nil
}

// WriteLimiterStatus is a snapshot of the limiter.
type WriteLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *WriteLimiter) Status() WriteLimiterStatus {
	active := l.ActiveCount()
	return WriteLimiterStatus{
		Active:        active,
		Available:     int(l.max) - active,
		MaxConcurrent: int(l.max),
	}
}
