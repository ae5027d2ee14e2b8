package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Amund211/blockfinder/internal/adapters/cache"
	"github.com/Amund211/blockfinder/internal/jobqueue"
	"github.com/Amund211/blockfinder/internal/logging"
)

// RefreshFunc fetches the current payload for a key from the outside world
type RefreshFunc[T any] func(ctx context.Context, key string) (T, error)

type JobQueue interface {
	Submit(job jobqueue.Job) <-chan error
	Depth() int
	Active() int
}

// refreshHandle is shared by everyone waiting on the same refresh.
// payload and err are written once, before done is closed.
type refreshHandle[T any] struct {
	key  string
	done chan struct{}

	payload T
	err     error
}

func (h *refreshHandle[T]) result() (T, error) {
	<-h.done
	return h.payload, h.err
}

type refreshCoalescer[T any] struct {
	store   cache.EntryStore[T]
	queue   JobQueue
	refresh RefreshFunc[T]

	jobTimeout      time.Duration
	failureCooldown time.Duration
	nowFunc         func() time.Time

	// Guards every classify/store/ensureRefresh sequence so a refresh can't land between them
	lock        sync.Mutex
	inFlight    map[string]*refreshHandle[T]
	lastFailure map[string]time.Time
}

func newRefreshCoalescer[T any](
	store cache.EntryStore[T],
	queue JobQueue,
	refresh RefreshFunc[T],
	jobTimeout time.Duration,
	failureCooldown time.Duration,
	nowFunc func() time.Time,
) *refreshCoalescer[T] {
	return &refreshCoalescer[T]{
		store:   store,
		queue:   queue,
		refresh: refresh,

		jobTimeout:      jobTimeout,
		failureCooldown: failureCooldown,
		nowFunc:         nowFunc,

		inFlight:    make(map[string]*refreshHandle[T]),
		lastFailure: make(map[string]time.Time),
	}
}

// classifyAndRefresh classifies the key and makes sure a refresh is running when one is needed.
//
// Fresh entries get no handle. Stale entries get a background refresh unless the key is cooling
// down after a failed refresh, in which case the handle is nil. Missing entries always get a handle.
func (c *refreshCoalescer[T]) classifyAndRefresh(ctx context.Context, key string) (cache.Freshness, cache.Entry[T], *refreshHandle[T]) {
	c.lock.Lock()
	defer c.lock.Unlock()

	freshness, entry := c.store.Classify(key)
	switch freshness {
	case cache.Fresh:
		return freshness, entry, nil
	case cache.Stale:
		if c.coolingDownLocked(key) {
			logging.FromContext(ctx).InfoContext(ctx, "Skipping background refresh after recent failure", slog.String("key", key))
			return freshness, entry, nil
		}
		return freshness, entry, c.ensureRefreshLocked(ctx, key)
	default:
		return cache.None, cache.Entry[T]{}, c.ensureRefreshLocked(ctx, key)
	}
}

// peek classifies the key without ever starting a refresh
func (c *refreshCoalescer[T]) peek(key string) (cache.Freshness, cache.Entry[T], bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	freshness, entry := c.store.Classify(key)
	_, pending := c.inFlight[key]
	return freshness, entry, pending
}

func (c *refreshCoalescer[T]) ensureRefreshLocked(ctx context.Context, key string) *refreshHandle[T] {
	if handle, ok := c.inFlight[key]; ok {
		return handle
	}

	handle := &refreshHandle[T]{
		key:  key,
		done: make(chan struct{}),
	}
	c.inFlight[key] = handle

	// The refresh outlives the request that triggered it
	jobCtx := context.WithoutCancel(ctx)
	c.queue.Submit(func() error {
		return c.runRefresh(jobCtx, handle)
	})

	return handle
}

func (c *refreshCoalescer[T]) runRefresh(ctx context.Context, handle *refreshHandle[T]) error {
	logger := logging.FromContext(ctx)

	start := c.nowFunc()
	payload, err := c.refreshWithTimeout(ctx, handle.key)

	c.lock.Lock()
	if err == nil {
		c.store.Store(handle.key, payload)
		delete(c.lastFailure, handle.key)
	} else {
		c.recordFailureLocked(handle.key)
	}
	delete(c.inFlight, handle.key)
	c.lock.Unlock()

	handle.payload = payload
	handle.err = err
	close(handle.done)

	if err != nil {
		// NOTE: RefreshFunc implementations handle their own error reporting
		logger.WarnContext(ctx, "Refresh failed", slog.String("key", handle.key), slog.String("error", err.Error()))
		return err
	}

	logger.InfoContext(ctx, "Refresh completed", slog.String("key", handle.key), slog.String("duration", c.nowFunc().Sub(start).String()))
	return nil
}

// refreshWithTimeout runs the refresh on the job's goroutine, so the key stays in flight and the job
// keeps its queue slot until the refresh returns. A result that arrives after the job timeout is
// discarded and reported as a timeout.
func (c *refreshCoalescer[T]) refreshWithTimeout(ctx context.Context, key string) (payload T, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			payload, err = zero, fmt.Errorf("refresh of %s panicked: %v", key, r)
		}
	}()

	payload, err = c.refresh(ctx, key)
	if deadlineErr := ctx.Err(); deadlineErr != nil && !errors.Is(err, deadlineErr) {
		var zero T
		return zero, fmt.Errorf("refresh of %s did not finish within %s: %w", key, c.jobTimeout, deadlineErr)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return payload, nil
}

func (c *refreshCoalescer[T]) coolingDownLocked(key string) bool {
	if c.failureCooldown <= 0 {
		return false
	}

	failedAt, ok := c.lastFailure[key]
	if !ok {
		return false
	}

	if c.nowFunc().Sub(failedAt) >= c.failureCooldown {
		delete(c.lastFailure, key)
		return false
	}

	return true
}

func (c *refreshCoalescer[T]) recordFailureLocked(key string) {
	if c.failureCooldown <= 0 {
		return
	}

	now := c.nowFunc()
	for otherKey, failedAt := range c.lastFailure {
		if now.Sub(failedAt) >= c.failureCooldown {
			delete(c.lastFailure, otherKey)
		}
	}
	c.lastFailure[key] = now
}

// counts reads the in-flight keys and the stored entries under one lock. A finished refresh moves its
// key from one to the other atomically.
func (c *refreshCoalescer[T]) counts() (inFlight int, entries int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.inFlight), c.store.Len()
}
