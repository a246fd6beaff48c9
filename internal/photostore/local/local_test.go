package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/placemate/internal/photostore"
)

func TestStoreSaveAndGet(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("fake png data")

	key, err := store.Save(ctx, photostore.PrefixScan, "image/png", bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "scan_"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	reader, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, "image/png", mimeType)

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStoreKeysAreUnique(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		key, err := store.Save(context.Background(), photostore.PrefixItem, "image/jpeg", strings.NewReader("x"))
		require.NoError(t, err)
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestStoreDelete(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key, err := store.Save(ctx, photostore.PrefixLocation, "image/jpeg", strings.NewReader("test data"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))

	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, photostore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), photostore.ErrNotFound)
}

func TestStoreNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "nonexistent.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)
}

func TestStorePathTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	_, _, err = store.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, photostore.ErrNotFound)

	assert.Error(t, store.Delete(ctx, "../outside.jpg"))
}

func TestStoreSaveCanceled(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Save(ctx, photostore.PrefixScan, "image/jpeg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestStoreFailedSaveLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), photostore.PrefixScan, "image/png", failingReader{})
	require.ErrorContains(t, err, "disk gone")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreRejectsHiddenAndNestedKeys(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", ".upload-123", "sub/item.jpg", "/etc/passwd"} {
		_, _, err := store.Get(context.Background(), key)
		assert.Error(t, err, key)
		assert.NotErrorIs(t, err, photostore.ErrNotFound, key)
	}
}

func TestStoreUnknownMimeTypeIsJPEG(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	key, err := store.Save(context.Background(), photostore.PrefixItem, "application/octet-stream", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	r, mimeType, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "image/jpeg", mimeType)
}
