package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	store, err := New(Config{Type: "local", Local: LocalConfig{Path: dir}})
	require.NoError(t, err)
	ctx := context.Background()

	content := "GDP growth reached 3.1% in 2023."
	info, err := store.Save(ctx, strings.NewReader(content), "report.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "report.txt", info.Name)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "text/plain", info.MimeType)
	assert.Equal(t, Checksum([]byte(content)), info.Checksum)
	assert.FileExists(t, filepath.Join(dir, info.Path))

	t.Run("Get", func(t *testing.T) {
		data, err := ReadAll(ctx, store, info.ID)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := store.Exists(ctx, info.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("List", func(t *testing.T) {
		_, err := store.Save(ctx, strings.NewReader("second"), "scan.png")
		require.NoError(t, err)

		files, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, info.ID))
		_, err := os.Stat(filepath.Join(dir, info.Path))
		assert.True(t, os.IsNotExist(err))

		_, err = store.Get(ctx, info.ID)
		assert.ErrorIs(t, err, ErrFileNotFound)
		assert.ErrorIs(t, store.Delete(ctx, info.ID), ErrFileNotFound)
	})
}

func TestLocalStorageCanceled(t *testing.T) {
	store, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Save(ctx, strings.NewReader("x"), "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(Config{Type: "s3"})
	assert.Error(t, err)

	_, err = New(Config{Type: "minio"})
	assert.Error(t, err)
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", getMimeType("A.PDF"))
	assert.Equal(t, "image/jpeg", getMimeType("photo.jpeg"))
	assert.Equal(t, "text/markdown", getMimeType("notes.md"))
	assert.Equal(t, "application/octet-stream", getMimeType("archive.zip"))
}
