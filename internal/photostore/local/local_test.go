package local

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/shelfshot/internal/photostore"
)

func TestLocalPhotoStoreSaveAndGet(t *testing.T) {
	tmpdir := t.TempDir()
	store, err := NewLocalPhotoStore(tmpdir)
	require.NoError(t, err)

	ctx := context.Background()
	imageData := []byte("fake jpeg data")

	path, err := store.Save(ctx, "frames/capture_1.jpg", bytes.NewReader(imageData))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpdir, "frames", "capture_1.jpg"), path)

	reader, mimeType, err := store.Get(ctx, "frames/capture_1.jpg")
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "image/jpeg", mimeType)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestLocalPhotoStoreSaveImageEncodesJPEG(t *testing.T) {
	store, err := NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 12, 7))
	path, err := store.SaveImage(context.Background(), "capture.jpg", img)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Width)
	assert.Equal(t, 7, cfg.Height)
}

func TestLocalPhotoStoreCopyKeepsSource(t *testing.T) {
	store, err := NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Save(ctx, "sessions/s1/frames/a.jpg", bytes.NewReader([]byte("abc")))
	require.NoError(t, err)

	require.NoError(t, store.Copy(ctx, "sessions/s1/frames/a.jpg", "products/p1/images/img_001.jpg"))

	for _, key := range []string{"sessions/s1/frames/a.jpg", "products/p1/images/img_001.jpg"} {
		p, err := store.Path(key)
		require.NoError(t, err)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(data))
	}
}

func TestLocalPhotoStoreCopyMissingSource(t *testing.T) {
	store, err := NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)

	err = store.Copy(context.Background(), "nope.jpg", "dst.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)
}

func TestLocalPhotoStoreDelete(t *testing.T) {
	store, err := NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Save(ctx, "a.jpg", bytes.NewReader([]byte("test data")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "a.jpg"))

	_, _, err = store.Get(ctx, "a.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "a.jpg"), photostore.ErrNotFound)
}

func TestLocalPhotoStorePathTraversal(t *testing.T) {
	store, err := NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	_, _, err = store.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
	_, err = store.Save(ctx, "../escape.jpg", bytes.NewReader(nil))
	assert.Error(t, err)
	_, err = store.Path("../x")
	assert.Error(t, err)
}
