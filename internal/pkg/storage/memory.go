package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryCollection keeps records in process memory. Used by tests and STORE_BACKEND=memory.
type MemoryCollection[T any] struct {
	name    string
	gate    gate
	mu      sync.RWMutex
	records []T
}

// NewMemoryCollection creates a collection pre-populated with seed.
func NewMemoryCollection[T any](name string, seed ...T) *MemoryCollection[T] {
	return &MemoryCollection[T]{
		name:    name,
		gate:    newGate(),
		records: slices.Clone(seed),
	}
}

func (m *MemoryCollection[T]) Name() string {
	return m.name
}

func (m *MemoryCollection[T]) Load(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records), nil
}

func (m *MemoryCollection[T]) Update(ctx context.Context, fn func(records []T) ([]T, error)) error {
	if err := m.gate.enter(ctx); err != nil {
		return err
	}
	defer m.gate.leave()

	m.mu.RLock()
	current := slices.Clone(m.records)
	m.mu.RUnlock()

	next, err := fn(current)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.records = slices.Clone(next)
	m.mu.Unlock()
	return nil
}
