package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process LRU store with per-entry TTL. Both the
// capacity and the TTL limits are enforced on every Put.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type memoryEntry struct {
	entry     *Entry
	expiresAt time.Time
}

func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*Entry, bool) {
	// MoveToFront mutates the list, so every lookup takes the write lock
	// and elem.Value is only read while Put cannot reassign it.
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[fingerprint]
	if !ok {
		return nil, false
	}

	me := elem.Value.(*memoryEntry)
	if s.now().After(me.expiresAt) {
		s.order.Remove(elem)
		delete(s.entries, fingerprint)
		return nil, false
	}

	s.order.MoveToFront(elem)
	return me.entry, true
}

func (s *MemoryStore) Put(_ context.Context, entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[entry.Fingerprint]; ok {
		elem.Value = &memoryEntry{entry: entry, expiresAt: s.now().Add(s.ttl)}
		s.order.MoveToFront(elem)
		return
	}

	elem := s.order.PushFront(&memoryEntry{entry: entry, expiresAt: s.now().Add(s.ttl)})
	s.entries[entry.Fingerprint] = elem

	for s.order.Len() > s.maxEntries {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*memoryEntry).entry.Fingerprint)
	}
}

// Len returns the number of live entries, expired ones included until
// their next lookup.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}
