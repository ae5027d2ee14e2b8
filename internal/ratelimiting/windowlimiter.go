package ratelimiting

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var ErrWouldExceedDeadline = errors.New("operation could not finish before the deadline")

// WindowLimiter allows at most limit operations to start within any window.
//
// An operation counts against the window from the time it finished.
type WindowLimiter struct {
	limit     int
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	// One slot per operation in the window, so at most limit operations run at once
	slots chan struct{}

	lock sync.Mutex
	// Sorted oldest first. Always holds limit entries minus the ones grabbed by waiting operations.
	finishedAt []time.Time
}

func NewWindowLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) (*WindowLimiter, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be at least 1, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}

	slots := make(chan struct{}, limit)
	for range limit {
		slots <- struct{}{}
	}

	// Pretend the history finished a full window ago so the first operations don't wait
	finishedAt := make([]time.Time, limit)
	longAgo := nowFunc().Add(-window)
	for i := range finishedAt {
		finishedAt[i] = longAgo
	}

	return &WindowLimiter{
		limit:     limit,
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		slots:      slots,
		finishedAt: finishedAt,
	}, nil
}

// Do waits for room in the window and runs the operation.
//
// If ctx has a deadline and the operation could not both start and run for maxOperationTime before
// it, Do returns ErrWouldExceedDeadline right away instead of waiting.
func (l *WindowLimiter) Do(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context) error) error {
	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return ctx.Err()
	}

	oldest, wait, err := l.grabOldest(ctx, maxOperationTime)
	if err != nil {
		return err
	}

	// Put the grabbed entry back untouched unless the operation actually runs
	finished := oldest
	defer func() {
		l.insertFinished(finished)
	}()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.afterFunc(wait):
		}
	}

	err = operation(ctx)
	finished = l.nowFunc()
	return err
}

func (l *WindowLimiter) grabOldest(ctx context.Context, maxOperationTime time.Duration) (time.Time, time.Duration, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	oldest := l.finishedAt[0]
	now := l.nowFunc()
	wait := l.window - now.Sub(oldest)

	if deadline, ok := ctx.Deadline(); ok {
		if max(wait, 0)+maxOperationTime > deadline.Sub(now) {
			return time.Time{}, 0, fmt.Errorf("%w: would wait %s", ErrWouldExceedDeadline, max(wait, 0))
		}
	}

	l.finishedAt = l.finishedAt[1:]
	return oldest, wait, nil
}

func (l *WindowLimiter) insertFinished(finished time.Time) {
	l.lock.Lock()
	defer l.lock.Unlock()

	i, _ := slices.BinarySearchFunc(l.finishedAt, finished, func(a, b time.Time) int {
		return a.Compare(b)
	})
	l.finishedAt = slices.Insert(l.finishedAt, i, finished)
}
