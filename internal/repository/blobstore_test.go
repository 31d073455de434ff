package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flybeeper/balises-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBlobStore общий контракт для всех реализаций BlobStore
func testBlobStore(t *testing.T, store BlobStore) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "romma.stations", []byte{0x1f, 0x8b, 0x00, 0x01}))

		data, err := store.Get(ctx, "romma.stations")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x1f, 0x8b, 0x00, 0x01}, data)
	})

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "romma.readings", []byte("first value")))
		require.NoError(t, store.Put(ctx, "romma.readings", []byte("2nd")))

		data, err := store.Get(ctx, "romma.readings")
		require.NoError(t, err)
		assert.Equal(t, []byte("2nd"), data)
	})

	t.Run("empty value", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "empty", []byte{}))

		data, err := store.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "gone", []byte("x")))
		require.NoError(t, store.Delete(ctx, "gone"))

		_, err := store.Get(ctx, "gone")
		assert.ErrorIs(t, err, ErrNotFound)

		// Повторное удаление не ошибка
		assert.NoError(t, store.Delete(ctx, "gone"))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestMemoryBlobStore(t *testing.T) {
	testBlobStore(t, NewMemoryBlobStore())
}

func TestMemoryBlobStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestFileBlobStore(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir(), utils.NopLogger())
	require.NoError(t, err)
	testBlobStore(t, store)
}

func TestFileBlobStore_KeyCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileBlobStore(dir, utils.NopLogger())
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "../outside/key", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Dir(store.path("../outside/key")), dir)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "outside", "key.cache"))
}

func TestFileBlobStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileBlobStore(dir, utils.NopLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(context.Background(), "romma.readings", []byte{byte(i)}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "romma.readings.cache", entries[0].Name())
}

func TestFileBlobStore_CanceledContext(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir(), utils.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Put(ctx, "k", []byte("x")), context.Canceled)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFileBlobStore_Validation(t *testing.T) {
	_, err := NewFileBlobStore("", utils.NopLogger())
	assert.Error(t, err)

	_, err = NewFileBlobStore(t.TempDir(), nil)
	assert.Error(t, err)
}
