package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKV_SetGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.json")
	store := NewFileKV(path)

	_, ok, err := store.Get(ctx, "sync_customers")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "sync_customers", "2024-01-01T00:00:00Z"))

	v, ok, err := store.Get(ctx, "sync_customers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01T00:00:00Z", v)

	// новый экземпляр читает то же самое с диска
	reopened := NewFileKV(path)
	v, ok, err = reopened.Get(ctx, "sync_customers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01T00:00:00Z", v)
}

func TestFileKV_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, _, err := NewFileKV(path).Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestRedisKV(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	store, err := NewRedisKV(ctx, addr, "possync_test:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "sync_orders", "2024-05-01T00:00:00Z"))
	v, ok, err := store.Get(ctx, "sync_orders")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-05-01T00:00:00Z", v)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
