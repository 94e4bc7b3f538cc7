package cart

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_OneEnginePerDevice(t *testing.T) {
	s := NewSessions(newMockCartStore(), cache.NewMemoryMirror(), Options{Debounce: time.Hour})
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	engines := make([]*Engine, 10)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := s.Get(ctx, "device-1")
			assert.NoError(t, err)
			engines[i] = e
		}(i)
	}
	wg.Wait()

	for _, e := range engines {
		assert.Same(t, engines[0], e)
	}
	other, err := s.Get(ctx, "device-2")
	require.NoError(t, err)
	assert.NotSame(t, engines[0], other)
	assert.Equal(t, 2, s.Len())
}

func TestSessions_RestoresFromMirror(t *testing.T) {
	mirror := cache.NewMemoryMirror()
	ctx := context.Background()
	raw, err := json.Marshal(domain.Cart{Lines: []domain.CartLine{line("A", 2)}})
	require.NoError(t, err)
	require.NoError(t, mirror.Set(ctx, cache.DeviceKey("device-1"), raw))

	s := NewSessions(newMockCartStore(), mirror, Options{Debounce: time.Hour})
	defer s.Close()

	e, err := s.Get(ctx, "device-1")
	require.NoError(t, err)
	require.Len(t, e.Lines(), 1)
	assert.Equal(t, 2, e.Lines()[0].Quantity)
}

func TestSessions_RejectsEmptyDeviceAndClosed(t *testing.T) {
	s := NewSessions(newMockCartStore(), cache.NewMemoryMirror(), Options{})
	ctx := context.Background()

	_, err := s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrMissingDevice)

	s.Close()
	_, err = s.Get(ctx, "device-1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSessions_CloseFlushesEveryDevice(t *testing.T) {
	remote := newMockCartStore()
	s := NewSessions(remote, cache.NewMemoryMirror(), Options{Debounce: time.Hour})
	ctx := context.Background()

	for _, dev := range []string{"d1", "d2"} {
		e, err := s.Get(ctx, dev)
		require.NoError(t, err)
		require.NoError(t, e.ReconcileOnSignIn(ctx, "user-"+dev))
		require.NoError(t, e.AddLine(ctx, line("A", 1)))
	}

	s.Close()

	assert.Len(t, remote.stored("user-d1"), 1)
	assert.Len(t, remote.stored("user-d2"), 1)
}
