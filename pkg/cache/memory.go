package cache

import (
	"context"
	"slices"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store. When MaxEntries is positive the oldest
// written keys are evicted first.
type Memory struct {
	mu    sync.Mutex
	max   int
	data  map[string][]byte
	order []string
}

// NewMemory creates a Memory store holding at most maxEntries values;
// zero means unbounded.
func NewMemory(maxEntries int) *Memory {
	return &Memory{
		max:  maxEntries,
		data: make(map[string][]byte),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	v, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	cp := slices.Clone(value)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == key })
	}
	m.data[key] = cp
	m.order = append(m.order, key)
	for m.max > 0 && len(m.order) > m.max {
		delete(m.data, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return nil
	}
	delete(m.data, key)
	m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == key })
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *Memory) Close() error {
	return nil
}
