package cache

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TTLEntryStore is an EntryStore backed by ttlcache
//
// Items are given a ttl equal to the stale window, so the optional janitor (see StartJanitor)
// only ever removes entries that Classify would already report as None.
type TTLEntryStore[T any] struct {
	cache *ttlcache.Cache[string, Entry[T]]
	// Serializes classify-then-delete against concurrent stores of the same key
	lock sync.Mutex

	windows windows
	nowFunc func() time.Time
}

func (s *TTLEntryStore[T]) Classify(key string) (Freshness, Entry[T]) {
	s.lock.Lock()
	defer s.lock.Unlock()

	item := s.cache.Get(key)
	if item == nil {
		// ttlcache hides items that have expired by wall clock time, but keeps them until the
		// next cleanup. Drop them here so Len stays accurate without the janitor.
		s.cache.Delete(key)
		return None, Entry[T]{}
	}

	entry := item.Value()
	freshness := classifyAt(entry, s.nowFunc())
	if freshness == None {
		s.cache.Delete(key)
		return None, Entry[T]{}
	}

	return freshness, entry
}

func (s *TTLEntryStore[T]) Store(key string, payload T) Entry[T] {
	s.lock.Lock()
	defer s.lock.Unlock()

	entry := newEntry(key, payload, s.nowFunc(), s.windows)
	s.cache.Set(key, entry, ttlcache.DefaultTTL)
	return entry
}

func (s *TTLEntryStore[T]) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cache.Len()
}

// StartJanitor periodically removes entries past their stale window. Call the returned function to stop it.
func (s *TTLEntryStore[T]) StartJanitor() func() {
	go s.cache.Start()
	return s.cache.Stop
}

func NewTTLEntryStore[T any](freshTTL, staleTTL time.Duration, nowFunc func() time.Time) (*TTLEntryStore[T], error) {
	windows, err := newWindows(freshTTL, staleTTL)
	if err != nil {
		return nil, err
	}

	entryCache := ttlcache.New[string, Entry[T]](
		ttlcache.WithTTL[string, Entry[T]](windows.stale),
		ttlcache.WithDisableTouchOnHit[string, Entry[T]](),
	)

	return &TTLEntryStore[T]{
		cache:   entryCache,
		windows: windows,
		nowFunc: nowFunc,
	}, nil
}
