package cache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/storage"
)

func readObject(t *testing.T, obj *storage.Object) string {
	t.Helper()
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	return string(data)
}

func TestCachedStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	disk, err := storage.NewDiskStorage(zap.NewNop(), dir)
	require.NoError(t, err)

	c := newMemoryCache(t, 1<<20)
	s := NewCachedStorage(disk, c, zap.NewNop())

	require.NoError(t, s.Put(ctx, "avatar.png", bytes.NewReader([]byte("first")), "image/png"))

	obj, err := s.Get(ctx, "avatar.png")
	require.NoError(t, err)
	assert.Equal(t, "first", readObject(t, obj))
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, int64(1), c.Stats().Misses)

	// served from memory even when the file disappears underneath
	require.NoError(t, os.Remove(filepath.Join(dir, "avatar.png")))
	obj, err = s.Get(ctx, "avatar.png")
	require.NoError(t, err)
	assert.Equal(t, "first", readObject(t, obj))
	assert.Equal(t, int64(1), c.Stats().L1Hits)

	// Put drops the stale entry
	require.NoError(t, s.Put(ctx, "avatar.png", bytes.NewReader([]byte("second")), "image/png"))
	obj, err = s.Get(ctx, "avatar.png")
	require.NoError(t, err)
	assert.Equal(t, "second", readObject(t, obj))

	require.NoError(t, s.Delete(ctx, "avatar.png"))
	_, err = s.Get(ctx, "avatar.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCachedStorage_InvalidKey(t *testing.T) {
	disk, err := storage.NewDiskStorage(zap.NewNop(), t.TempDir())
	require.NoError(t, err)
	s := NewCachedStorage(disk, newMemoryCache(t, 1024), nil)

	_, err = s.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}
