package cart

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"go.uber.org/zap"
)

var ErrMissingDevice = errors.New("device id is empty")

// Sessions holds one Engine per device, created on first use and restored
// from the device's local mirror.
type Sessions struct {
	remote repository.CartStore
	mirror cache.Mirror
	opts   Options

	mu      sync.Mutex
	engines map[string]*Engine
	closed  bool
}

func NewSessions(remote repository.CartStore, mirror cache.Mirror, opts Options) *Sessions {
	return &Sessions{
		remote:  remote,
		mirror:  mirror,
		opts:    opts.withDefaults(),
		engines: make(map[string]*Engine),
	}
}

func (s *Sessions) Get(ctx context.Context, deviceID string) (*Engine, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, ErrMissingDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if e, ok := s.engines[deviceID]; ok {
		return e, nil
	}

	opts := s.opts
	opts.Logger = s.opts.Logger.With(zap.String("device_id", deviceID))
	e := NewEngine(s.remote, s.mirror, cache.DeviceKey(deviceID), opts)
	if err := e.Restore(ctx); err != nil {
		// an unreadable mirror starts the device with an empty cart
		opts.Logger.Warn("local mirror restore failed", zap.Error(err))
	}
	s.engines[deviceID] = e
	return e, nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}

// Close closes every engine, sending their pending remote saves.
func (s *Sessions) Close() {
	s.mu.Lock()
	s.closed = true
	engines := make([]*Engine, 0, len(s.engines))
	for _, e := range s.engines {
		engines = append(engines, e)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range engines {
		wg.Add(1)
		go func(e *Engine) {
			defer wg.Done()
			e.Close()
		}(e)
	}
	wg.Wait()
}
