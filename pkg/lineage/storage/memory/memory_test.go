package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-lineage/pkg/lineage"
	memorystorage "github.com/tendant/content-lineage/pkg/lineage/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "project/object.txt"
	testData := "Hello, World! This is test data."

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData), lineage.UploadParams{MimeType: "text/plain"})
		assert.NoError(t, err)
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "text/plain", meta.ContentType)
		assert.False(t, meta.UpdatedAt.IsZero())
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		downloaded, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, testData, string(downloaded))
	})

	t.Run("DefaultMimeType", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "project/raw.bin", strings.NewReader("x"), lineage.UploadParams{}))
		meta, err := backend.GetObjectMeta(ctx, "project/raw.bin")
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", meta.ContentType)
	})

	t.Run("Keys", func(t *testing.T) {
		assert.Equal(t, []string{"project/object.txt", "project/raw.bin"}, backend.Keys())
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))

		_, err := backend.Download(ctx, testKey)
		assert.ErrorIs(t, err, memorystorage.ErrObjectNotFound)

		// Deleting again is a no-op
		assert.NoError(t, backend.Delete(ctx, testKey))
	})

	t.Run("NonExistentObject", func(t *testing.T) {
		_, err := backend.GetObjectMeta(ctx, "missing")
		assert.ErrorIs(t, err, memorystorage.ErrObjectNotFound)
	})
}
