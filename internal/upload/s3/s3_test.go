package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/shelfshot/internal/config"
)

// fakeS3 accepts path-style bucket and object requests.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.Copy(io.Discard, r.Body)

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		f.objects[bucket+"/"+key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag-123"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newUploader(t *testing.T, publicURL string) (*Uploader, *fakeS3) {
	t.Helper()
	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := New(&config.Config{
		S3Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		S3AccessKey: "access",
		S3SecretKey: "secret",
		S3Bucket:    "shelfshot",
		S3Region:    "us-east-1",
		S3PublicURL: publicURL,
	})
	require.NoError(t, err)
	return u, fake
}

func writeFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0644))
	return path
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "products/p1/img_001.jpg", ObjectKey("p1", "/captures/products/p1/images/img_001.jpg"))
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	u, fake := newUploader(t, "")

	require.NoError(t, u.EnsureBucket(context.Background()))
	assert.True(t, fake.buckets["shelfshot"])

	require.NoError(t, u.EnsureBucket(context.Background()), "existing bucket is fine")
}

func TestUploadWithPublicBaseURL(t *testing.T) {
	u, fake := newUploader(t, "https://cdn.example/")
	path := writeFile(t, "img_001.jpg")

	url, mediaID, err := u.Upload(context.Background(), "p1", path)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/shelfshot/products/p1/img_001.jpg", url)
	assert.Equal(t, "etag-123", mediaID)
	assert.Equal(t, "image/jpeg", fake.objects["shelfshot/products/p1/img_001.jpg"])
}

func TestUploadPresignsWithoutPublicBaseURL(t *testing.T) {
	u, _ := newUploader(t, "")
	path := writeFile(t, "hero.jpg")

	url, _, err := u.Upload(context.Background(), "p2", path)
	require.NoError(t, err)

	assert.Contains(t, url, "/shelfshot/products/p2/hero.jpg")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=604800")
}

func TestUploadMissingFile(t *testing.T) {
	u, _ := newUploader(t, "")
	_, _, err := u.Upload(context.Background(), "p1", filepath.Join(t.TempDir(), "gone.jpg"))
	assert.Error(t, err)
}
