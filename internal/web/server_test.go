package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/shelfshot/internal/camera"
	"github.com/vbonduro/shelfshot/internal/db"
	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/manifest"
	"github.com/vbonduro/shelfshot/internal/photostore/local"
	"github.com/vbonduro/shelfshot/internal/preview"
	"github.com/vbonduro/shelfshot/internal/store"
)

type fixture struct {
	server *Server
	layout manifest.Layout
	index  *store.ProductIndex
}

func newFixture(t *testing.T, addr string) *fixture {
	t.Helper()
	base := t.TempDir()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	files, err := local.NewLocalPhotoStore(base)
	require.NoError(t, err)
	layout := manifest.NewLayout(base)
	require.NoError(t, layout.EnsureRoot())
	index := store.NewProductIndex(d)
	return &fixture{
		server: NewServer(addr, layout, index, files, slog.Default()),
		layout: layout,
		index:  index,
	}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func frame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 90
	}
	return img
}

func TestHealthcheckSetsSecurityHeaders(t *testing.T) {
	f := newFixture(t, "")

	rec := f.get(t, "/healthcheck")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestLiveFrame(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, http.StatusNotFound, f.get(t, "/preview/live.jpg").Code)

	require.NoError(t, f.server.RenderFrame(frame(64, 48), "seq 1 | 64x48 | drops 0"))

	rec := f.get(t, "/preview/live.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
}

func TestRenderFrameAcceptsNonRGBA(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.server.RenderFrame(image.NewGray(image.Rect(0, 0, 10, 10)), ""))
	assert.Equal(t, http.StatusOK, f.get(t, "/preview/live.jpg").Code)
}

func TestStillImageShowAndClear(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, http.StatusNotFound, f.get(t, "/preview/image.jpg").Code)

	require.NoError(t, f.server.RenderImage(frame(32, 16)))
	assert.Equal(t, http.StatusOK, f.get(t, "/preview/image.jpg").Code)

	f.server.CloseImage()
	assert.Equal(t, http.StatusNotFound, f.get(t, "/preview/image.jpg").Code)
}

func TestStreamDeliversFramesToMJPEGClient(t *testing.T) {
	f := newFixture(t, "")
	srv := httptest.NewServer(f.server)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = f.server.Shutdown(context.Background()) })

	backend := camera.NewMJPEGBackend([]string{srv.URL + "/preview/stream"})
	dev, err := backend.Open(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	require.NoError(t, f.server.RenderFrame(frame(40, 30), "seq 1"))
	img, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

	require.NoError(t, f.server.RenderFrame(frame(20, 10), "seq 2"))
	img, err = dev.Read()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
}

func TestListProducts(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.index.Upsert(ctx, domain.ProductSummary{ProductID: "p1", SKUAlias: "H-AAAA", DisplayName: "Teapot", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, f.index.Upsert(ctx, domain.ProductSummary{ProductID: "p2", SKUAlias: "H-BBBB", DisplayName: "Lamp", CreatedAt: now, UpdatedAt: now.Add(time.Minute)}))

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{name: "all", target: "/api/products", want: []string{"p2", "p1"}},
		{name: "search", target: "/api/products?q=teapot", want: []string{"p1"}},
		{name: "no match", target: "/api/products?q=chair", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			var got []domain.ProductSummary
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			ids := []string{}
			for _, p := range got {
				ids = append(ids, p.ProductID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t, "")
	p := &domain.ProductManifest{ProductID: "p1", SKUAlias: "H-AAAA", Listings: map[string]domain.Listing{}}
	require.NoError(t, os.MkdirAll(f.layout.ProductDir("p1"), 0755))
	require.NoError(t, f.layout.WriteProduct(p))

	rec := f.get(t, "/api/products/p1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.ProductManifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "H-AAAA", got.SKUAlias)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/products/missing").Code)
}

func TestGetProductFile(t *testing.T) {
	f := newFixture(t, "")
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, frame(8, 8), nil))
	path := f.layout.ProductRel("p1", "images/img_001.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, jpg.Bytes(), 0644))

	rec := f.get(t, "/api/products/p1/files/images/img_001.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, jpg.Bytes(), rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/products/p1/files/images/nope.jpg").Code)
}

func TestOpenAndShutdown(t *testing.T) {
	f := newFixture(t, "127.0.0.1:0")
	require.NoError(t, f.server.Open())
	t.Cleanup(func() { _ = f.server.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + f.server.Addr() + "/healthcheck")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, f.server.Shutdown(context.Background()))
	assert.Error(t, f.server.RenderFrame(frame(4, 4), ""), "closed server rejects frames")
}

func TestOpenWithoutAddressIsUnavailable(t *testing.T) {
	f := newFixture(t, "")
	assert.ErrorIs(t, f.server.Open(), preview.ErrUnavailable)
}
