package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSQLite(t *testing.T) *SQLiteMirror {
	mirror, err := NewSQLiteMirror(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { mirror.Close() })

	require.NoError(t, mirror.RunMigrations("./migrations"))
	return mirror
}

func TestSQLiteMirror_RoundTrip(t *testing.T) {
	mirror := setupTestSQLite(t)
	ctx := context.Background()

	_, err := mirror.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, mirror.Set(ctx, "k", []byte("v1")))
	require.NoError(t, mirror.Set(ctx, "k", []byte("v2")))

	v, err := mirror.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))

	require.NoError(t, mirror.Delete(ctx, "k"))
	_, err = mirror.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSQLiteMirror_MigrationsAreIdempotent(t *testing.T) {
	mirror := setupTestSQLite(t)
	assert.NoError(t, mirror.RunMigrations("./migrations"))
}

func TestSQLiteMirror_CancelledContext(t *testing.T) {
	mirror := setupTestSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mirror.Set(ctx, "k", []byte("v"))
	assert.Error(t, err)
}

func TestMemoryMirror_CopiesValues(t *testing.T) {
	mirror := NewMemoryMirror()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, mirror.Set(ctx, "k", buf))
	buf[0] = 'x'

	v, err := mirror.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))

	require.NoError(t, mirror.Delete(ctx, "k"))
	_, err = mirror.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
