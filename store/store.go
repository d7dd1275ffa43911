package store

import (
	"context"
	"sync"

	"github.com/wippyai/scanx-wasm/errors"
)

// ErrNotFound matches the error Get returns for an absent key
var ErrNotFound = &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindNotFound}

// Store is a binary cache
type Store interface {
	// Get returns a copy of the value for key, or an error matching
	// ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key returns the cache key for a variant binary. sum is the expected
// sha256 when known, otherwise the location it was fetched from.
func Key(variant, sum string) string {
	return "engine/" + variant + "/" + sum
}

// Memory is a Store backed by a map
type Memory struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemory creates an empty memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "cached binary", key)
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of cached binaries
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
