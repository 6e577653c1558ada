package cache

import (
	"sort"
	"strings"
	"sync"
)

// MemoryBackend implements Backend with a map. A positive quota caps the
// total bytes (keys plus values) it will hold.
type MemoryBackend struct {
	mu    sync.RWMutex
	data  map[string][]byte
	used  int64
	quota int64
}

// NewMemoryBackend creates an empty in-memory backend. quota <= 0 means unlimited.
func NewMemoryBackend(quota int64) *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte), quota: quota}
}

// Get implements Backend
func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements Backend
func (m *MemoryBackend) Set(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + int64(len(key)+len(data))
	if old, ok := m.data[key]; ok {
		used -= int64(len(key) + len(old))
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}

	v := make([]byte, len(data))
	copy(v, data)
	m.data[key] = v
	m.used = used
	return nil
}

// Remove implements Backend
func (m *MemoryBackend) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= int64(len(key) + len(old))
		delete(m.data, key)
	}
	return nil
}

// Keys implements Backend
func (m *MemoryBackend) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
