package cache

import (
	"fmt"
	"time"
)

type Freshness int

const (
	None Freshness = iota
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case None:
		return "none"
	}
	return fmt.Sprintf("Freshness(%d)", int(f))
}

type Entry[T any] struct {
	Key        string
	Payload    T
	UpdatedAt  time.Time
	FreshUntil time.Time
	StaleUntil time.Time
}

// EntryStore holds the last successfully fetched payload for each key
//
// Entries are only removed lazily: a Classify call that finds an entry past its stale window
// deletes it and reports None.
type EntryStore[T any] interface {
	Classify(key string) (Freshness, Entry[T])
	Store(key string, payload T) Entry[T]
	Len() int
}

func classifyAt[T any](entry Entry[T], now time.Time) Freshness {
	if now.Before(entry.FreshUntil) {
		return Fresh
	}
	if now.Before(entry.StaleUntil) {
		return Stale
	}
	return None
}

func newEntry[T any](key string, payload T, now time.Time, windows windows) Entry[T] {
	return Entry[T]{
		Key:        key,
		Payload:    payload,
		UpdatedAt:  now,
		FreshUntil: now.Add(windows.fresh),
		StaleUntil: now.Add(windows.stale),
	}
}

type windows struct {
	fresh time.Duration
	stale time.Duration
}

func newWindows(freshTTL, staleTTL time.Duration) (windows, error) {
	if freshTTL <= 0 {
		return windows{}, fmt.Errorf("fresh ttl must be positive, got %s", freshTTL)
	}
	if staleTTL < freshTTL {
		return windows{}, fmt.Errorf("stale ttl (%s) must not be shorter than fresh ttl (%s)", staleTTL, freshTTL)
	}
	return windows{fresh: freshTTL, stale: staleTTL}, nil
}
