package cache

import (
	"sync"
	"time"
)

// MemoryStore is a bounded in-process TTL cache. When full, the entry
// closest to expiry is evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	max     int
	now     func() time.Time
	evicted int64
}

type memoryItem struct {
	value      []byte
	expiration int64
}

// NewMemoryStore creates a store holding at most max entries
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem, max),
		max:   max,
		now:   time.Now,
	}
}

// Get returns a copy of the value, or false when absent or expired
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[key]
	if !ok || m.now().UnixNano() > item.expiration {
		return nil, false
	}
	return append([]byte(nil), item.value...), true
}

// Set stores a copy of value for ttl
func (m *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	if m.max <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UnixNano()
	if _, exists := m.items[key]; !exists && len(m.items) >= m.max {
		m.flush(now)
		if len(m.items) >= m.max {
			m.evictSoonest()
		}
	}
	m.items[key] = memoryItem{
		value:      append([]byte(nil), value...),
		expiration: now + int64(ttl),
	}
}

// Delete removes key
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// Len returns the number of stored entries, expired ones included
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Evicted returns how many live entries were dropped for space
func (m *MemoryStore) Evicted() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.evicted
}

// flush removes expired entries; caller holds the lock
func (m *MemoryStore) flush(now int64) {
	for key, item := range m.items {
		if now > item.expiration {
			delete(m.items, key)
		}
	}
}

func (m *MemoryStore) evictSoonest() {
	var victim string
	var soonest int64
	first := true
	for key, item := range m.items {
		if first || item.expiration < soonest || (item.expiration == soonest && key < victim) {
			victim, soonest, first = key, item.expiration, false
		}
	}
	if !first {
		delete(m.items, victim)
		m.evicted++
	}
}
