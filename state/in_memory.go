package state

import (
	"slices"
	"sort"
	"sync"
)

// InMemoryBackend is an in-memory implementation of the Backend interface.
type InMemoryBackend struct {
	mu     sync.RWMutex
	keys   []uint64 // ascending
	values map[uint64][]byte
}

// NewInMemoryBackend creates a new InMemoryBackend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		values: make(map[uint64][]byte),
	}
}

// Insert stores value under key.
func (b *InMemoryBackend) Insert(key uint64, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.values[key]; ok {
		return ErrKeyExists
	}
	i := sort.Search(len(b.keys), func(i int) bool { return b.keys[i] >= key })
	b.keys = slices.Insert(b.keys, i, key)
	b.values[key] = slices.Clone(value)
	return nil
}

// Get returns the value stored under key.
func (b *InMemoryBackend) Get(key uint64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// Floor returns the entry with the largest key not greater than key.
func (b *InMemoryBackend) Floor(key uint64) (uint64, []byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// first index with a key strictly greater than the target
	i := sort.Search(len(b.keys), func(i int) bool { return b.keys[i] > key })
	if i == 0 {
		return 0, nil, false, nil
	}
	found := b.keys[i-1]
	return found, slices.Clone(b.values[found]), true, nil
}

// DeleteAbove removes every entry whose key is greater than key.
func (b *InMemoryBackend) DeleteAbove(key uint64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := sort.Search(len(b.keys), func(i int) bool { return b.keys[i] > key })
	removed := b.keys[i:]
	for _, k := range removed {
		delete(b.values, k)
	}
	n := len(removed)
	b.keys = b.keys[:i]
	return n, nil
}

// DeleteAll removes every entry.
func (b *InMemoryBackend) DeleteAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.keys = nil
	b.values = make(map[uint64][]byte)
	return nil
}

// Keys returns all keys in ascending order.
func (b *InMemoryBackend) Keys() ([]uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.keys), nil
}

// Close is a no-op for the in-memory backend.
func (b *InMemoryBackend) Close() error {
	return nil
}
