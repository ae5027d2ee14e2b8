package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/blockfinder/internal/adapters/cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Status string

const (
	StatusReady   Status = "ready"
	StatusPending Status = "pending"
)

// LookupResult is either ready with a payload, or pending with a retry advisory
type LookupResult[T any] struct {
	Status Status

	Payload T
	// Cached is false when the payload was fetched during this lookup
	Cached bool
	Stale  bool
	Age    time.Duration

	RetryAfter time.Duration
}

type PollResult[T any] struct {
	Ready   bool
	Payload T
	Stale   bool
	Age     time.Duration

	// Pending is only set when there is no entry and a refresh is in flight
	Pending bool
}

// Health is a point-in-time view of the cache.
//
// InFlight and Entries are read together and always agree with each other. QueueDepth and
// ActiveJobs come from the queue, which settles a job slightly after the coalescer does, so a job
// that is just finishing can still count as active after its key has left InFlight.
type Health struct {
	QueueDepth int
	ActiveJobs int
	InFlight   int
	Entries    int
}

type FastResultCacheConfig struct {
	// How long a lookup without a cached entry waits for the refresh before reporting pending
	MaxSyncWait time.Duration
	// Advisory returned to pending callers
	RetryAfter time.Duration
	JobTimeout time.Duration
	// How long to skip stale-path background refreshes for a key after a failed refresh. 0 disables.
	FailureCooldown time.Duration

	NowFunc   func() time.Time
	AfterFunc func(time.Duration) <-chan time.Time
}

type fastResultMetricsCollection struct {
	lookupCount metric.Int64Counter
}

func setupFastResultMetrics[T any](meter metric.Meter, c *FastResultCache[T]) (fastResultMetricsCollection, error) {
	lookupCount, err := meter.Int64Counter(
		"app/fast_result/lookup_count",
		metric.WithDescription("Lookups by outcome"),
	)
	if err != nil {
		return fastResultMetricsCollection{}, fmt.Errorf("failed to create lookup count metric: %w", err)
	}

	queueDepth, err := meter.Int64ObservableGauge(
		"app/fast_result/queue_depth",
		metric.WithDescription("Refresh jobs waiting to start"),
	)
	if err != nil {
		return fastResultMetricsCollection{}, fmt.Errorf("failed to create queue depth metric: %w", err)
	}

	activeJobs, err := meter.Int64ObservableGauge(
		"app/fast_result/active_jobs",
		metric.WithDescription("Refresh jobs currently running"),
	)
	if err != nil {
		return fastResultMetricsCollection{}, fmt.Errorf("failed to create active jobs metric: %w", err)
	}

	inFlight, err := meter.Int64ObservableGauge(
		"app/fast_result/in_flight",
		metric.WithDescription("Keys with a refresh queued or running"),
	)
	if err != nil {
		return fastResultMetricsCollection{}, fmt.Errorf("failed to create in flight metric: %w", err)
	}

	entries, err := meter.Int64ObservableGauge(
		"app/fast_result/entries",
		metric.WithDescription("Entries held in the cache"),
	)
	if err != nil {
		return fastResultMetricsCollection{}, fmt.Errorf("failed to create entries metric: %w", err)
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		health := c.Health()
		observer.ObserveInt64(queueDepth, int64(health.QueueDepth))
		observer.ObserveInt64(activeJobs, int64(health.ActiveJobs))
		observer.ObserveInt64(inFlight, int64(health.InFlight))
		observer.ObserveInt64(entries, int64(health.Entries))
		return nil
	}, queueDepth, activeJobs, inFlight, entries)
	if err != nil {
		return fastResultMetricsCollection{}, fmt.Errorf("failed to register health callback: %w", err)
	}

	return fastResultMetricsCollection{
		lookupCount: lookupCount,
	}, nil
}

// FastResultCache answers lookups from the cache, and otherwise waits a bounded time for a refresh
type FastResultCache[T any] struct {
	queue     JobQueue
	coalescer *refreshCoalescer[T]

	maxSyncWait time.Duration
	retryAfter  time.Duration
	nowFunc     func() time.Time
	afterFunc   func(time.Duration) <-chan time.Time

	metrics fastResultMetricsCollection
}

func NewFastResultCache[T any](
	store cache.EntryStore[T],
	queue JobQueue,
	refresh RefreshFunc[T],
	config FastResultCacheConfig,
) (*FastResultCache[T], error) {
	if config.MaxSyncWait <= 0 {
		return nil, fmt.Errorf("max sync wait must be positive, got %s", config.MaxSyncWait)
	}
	if config.JobTimeout <= 0 {
		return nil, fmt.Errorf("job timeout must be positive, got %s", config.JobTimeout)
	}
	if config.RetryAfter < 0 {
		return nil, fmt.Errorf("retry after must not be negative, got %s", config.RetryAfter)
	}
	if config.FailureCooldown < 0 {
		return nil, fmt.Errorf("failure cooldown must not be negative, got %s", config.FailureCooldown)
	}

	nowFunc := config.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}
	afterFunc := config.AfterFunc
	if afterFunc == nil {
		afterFunc = time.After
	}

	c := &FastResultCache[T]{
		queue:     queue,
		coalescer: newRefreshCoalescer(store, queue, refresh, config.JobTimeout, config.FailureCooldown, nowFunc),

		maxSyncWait: config.MaxSyncWait,
		retryAfter:  config.RetryAfter,
		nowFunc:     nowFunc,
		afterFunc:   afterFunc,
	}

	const name = "blockfinder/app/fastresult"
	metrics, err := setupFastResultMetrics(otel.Meter(name), c)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}
	c.metrics = metrics

	return c, nil
}

func (c *FastResultCache[T]) recordLookup(ctx context.Context, outcome string) {
	c.metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (c *FastResultCache[T]) readyFromEntry(entry cache.Entry[T], stale bool) LookupResult[T] {
	return LookupResult[T]{
		Status:  StatusReady,
		Payload: entry.Payload,
		Cached:  true,
		Stale:   stale,
		Age:     c.nowFunc().Sub(entry.UpdatedAt),
	}
}

// Lookup returns the payload for the key within roughly MaxSyncWait.
//
// A fresh entry is returned as is. A stale entry is returned immediately while a refresh runs in
// the background. Without an entry the lookup waits for the refresh, and reports pending if it
// does not finish in time. The refresh is never cancelled by the caller leaving.
func (c *FastResultCache[T]) Lookup(ctx context.Context, key string) (LookupResult[T], error) {
	freshness, entry, handle := c.coalescer.classifyAndRefresh(ctx, key)

	switch freshness {
	case cache.Fresh:
		c.recordLookup(ctx, "fresh")
		return c.readyFromEntry(entry, false), nil
	case cache.Stale:
		// NOTE: Background refresh failures are logged by the coalescer and never reach this caller
		c.recordLookup(ctx, "stale")
		return c.readyFromEntry(entry, true), nil
	}

	select {
	case <-handle.done:
		payload, err := handle.result()
		if err != nil {
			c.recordLookup(ctx, "error")
			return LookupResult[T]{}, fmt.Errorf("failed to refresh %s: %w", key, err)
		}
		c.recordLookup(ctx, "refreshed")
		return LookupResult[T]{
			Status:  StatusReady,
			Payload: payload,
			Cached:  false,
			Stale:   false,
			Age:     0,
		}, nil
	case <-c.afterFunc(c.maxSyncWait):
		c.recordLookup(ctx, "pending")
		return LookupResult[T]{
			Status:     StatusPending,
			RetryAfter: c.retryAfter,
		}, nil
	case <-ctx.Done():
		c.recordLookup(ctx, "canceled")
		return LookupResult[T]{}, ctx.Err()
	}
}

// PollStatus reports what is currently cached for the key. It never starts a refresh.
func (c *FastResultCache[T]) PollStatus(key string) PollResult[T] {
	freshness, entry, pending := c.coalescer.peek(key)
	if freshness == cache.None {
		return PollResult[T]{Pending: pending}
	}

	return PollResult[T]{
		Ready:   true,
		Payload: entry.Payload,
		Stale:   freshness == cache.Stale,
		Age:     c.nowFunc().Sub(entry.UpdatedAt),
	}
}

func (c *FastResultCache[T]) Health() Health {
	inFlight, entries := c.coalescer.counts()
	return Health{
		QueueDepth: c.queue.Depth(),
		ActiveJobs: c.queue.Active(),
		InFlight:   inFlight,
		Entries:    entries,
	}
}
