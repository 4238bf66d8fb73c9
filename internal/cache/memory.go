package cache

import (
	"context"
	"sync"
	"time"
)

// MaxMemoryEntries caps an in-process cache. Once full, expired entries
// are swept and new keys are dropped until room frees up.
const MaxMemoryEntries = 4096

// Memory is an in-process Store for single-instance runs and tests.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	body    []byte
	expires time.Time
}

// NewMemory creates an in-process cache whose entries live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, max: MaxMemoryEntries, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.body, true
}

func (m *Memory) Set(_ context.Context, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.max {
		for k, e := range m.entries {
			if !now.Before(e.expires) {
				delete(m.entries, k)
			}
		}
		if len(m.entries) >= m.max {
			return
		}
	}
	m.entries[key] = memoryEntry{body: append([]byte(nil), body...), expires: now.Add(m.ttl)}
}

func (m *Memory) InvalidateAll(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
