package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/shelfshot/internal/domain"
)

func TestFetchProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/products/p-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"Brass lamp","structure_json":{"name":"Brass lamp"},"listings":{"EBAY_US":{"title":"Vintage brass lamp"}}}`))
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL+"/", "secret")
	p, err := c.FetchProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ProductID)
	require.NotNil(t, p.DisplayName)
	assert.Equal(t, "Brass lamp", *p.DisplayName)
	assert.Nil(t, p.ContextText)
	assert.JSONEq(t, `{"name":"Brass lamp"}`, string(p.StructureJSON))
	assert.Equal(t, "Vintage brass lamp", p.Listings["EBAY_US"].Title)
}

func TestFetchProductNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewHTTPCatalog(server.URL, "").FetchProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPushProduct(t *testing.T) {
	var got domain.ProductManifest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/products/p-2", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewHTTPCatalog(server.URL, "k").PushProduct(context.Background(), &domain.ProductManifest{
		ProductID: "p-2",
		SKUAlias:  "H-P2",
	})
	require.NoError(t, err)
	assert.Equal(t, "H-P2", got.SKUAlias)
}

func TestPushProductServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewHTTPCatalog(server.URL, "").PushProduct(context.Background(), &domain.ProductManifest{ProductID: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "boom")
}
