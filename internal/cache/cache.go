// Package cache holds the device-local mirror of a cart: a synchronous
// key-value slot per device.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Mirror is a device-scoped key-value store. Every call completes before it
// returns; values are opaque serialized snapshots.
type Mirror interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")

func DeviceKey(deviceID string) string {
	return fmt.Sprintf("cart:device:%s", deviceID)
}

type MemoryMirror struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{values: make(map[string][]byte)}
}

func (m *MemoryMirror) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryMirror) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryMirror) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
