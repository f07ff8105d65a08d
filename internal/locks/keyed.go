// Package locks serialises work on named entities, either inside one process
// or across replicas through Redis.
package locks

import (
	"context"
	"sort"
	"sync"
)

// KeyedMutex is an in-process lock table keyed by string.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex returns an empty lock table.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyEntry)}
}

// Lock acquires every key in sorted order, waiting until ctx is done. On
// failure no key remains held.
func (m *KeyedMutex) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalise(keys)
	held := make([]string, 0, len(ordered))

	for _, key := range ordered {
		if err := m.acquire(ctx, key); err != nil {
			m.release(held)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { m.release(held) }) }, nil
}

func (m *KeyedMutex) acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &keyEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.drop(key, entry)
		return ctx.Err()
	}
}

func (m *KeyedMutex) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		m.mu.Lock()
		entry := m.entries[keys[i]]
		m.mu.Unlock()
		<-entry.ch
		m.drop(keys[i], entry)
	}
}

func (m *KeyedMutex) drop(key string, entry *keyEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, key)
	}
}

// normalise sorts keys and removes duplicates and empty keys.
func normalise(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			out = append(out, key)
		}
	}
	sort.Strings(out)

	uniq := out[:0]
	for _, key := range out {
		if len(uniq) == 0 || uniq[len(uniq)-1] != key {
			uniq = append(uniq, key)
		}
	}
	return uniq
}
