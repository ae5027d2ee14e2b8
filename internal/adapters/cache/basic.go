package cache

import (
	"sync"
	"time"
)

type basicEntryStore[T any] struct {
	entries map[string]Entry[T]
	lock    sync.Mutex

	windows windows
	nowFunc func() time.Time
}

func (s *basicEntryStore[T]) Classify(key string) (Freshness, Entry[T]) {
	s.lock.Lock()
	defer s.lock.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return None, Entry[T]{}
	}

	freshness := classifyAt(entry, s.nowFunc())
	if freshness == None {
		delete(s.entries, key)
		return None, Entry[T]{}
	}

	return freshness, entry
}

func (s *basicEntryStore[T]) Store(key string, payload T) Entry[T] {
	s.lock.Lock()
	defer s.lock.Unlock()

	entry := newEntry(key, payload, s.nowFunc(), s.windows)
	s.entries[key] = entry
	return entry
}

func (s *basicEntryStore[T]) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.entries)
}

func NewBasicEntryStore[T any](freshTTL, staleTTL time.Duration, nowFunc func() time.Time) (EntryStore[T], error) {
	windows, err := newWindows(freshTTL, staleTTL)
	if err != nil {
		return nil, err
	}

	return &basicEntryStore[T]{
		entries: make(map[string]Entry[T]),
		windows: windows,
		nowFunc: nowFunc,
	}, nil
}
