// Package cache provides a small string cache used to memoize report
// rollups between reads.
package cache

import "sync"

// Cache is the interface report readers cache through.
type Cache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}

// Memory is an in-process Cache used by default and in tests.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	return value, ok
}

func (m *Memory) Set(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}
