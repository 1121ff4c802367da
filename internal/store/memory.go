package store

import (
	"context"
	"sync"
)

// Memory is an in-process Gateway used by tests and embedded deployments.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

// Get implements Gateway.
func (m *Memory) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.data[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := ns[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements Gateway.
func (m *Memory) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	ns[key] = stored
	return nil
}

// Keys implements Gateway.
func (m *Memory) Keys(ctx context.Context, namespace string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.data[namespace]
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close implements Gateway.
func (m *Memory) Close() error {
	return nil
}
