// Package remote talks to the catalog service that owns listing
// generation, pricing and categorisation.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vbonduro/shelfshot/internal/domain"
)

// ErrNotFound is returned when the remote catalog has no such product.
var ErrNotFound = errors.New("product not found in remote catalog")

const defaultTimeout = 30 * time.Second

type Catalog interface {
	FetchProduct(ctx context.Context, productID string) (*domain.RemoteProduct, error)
	PushProduct(ctx context.Context, product *domain.ProductManifest) error
}

type HTTPCatalog struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPCatalog(baseURL, apiKey string) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (c *HTTPCatalog) productURL(productID string) string {
	return c.baseURL + "/v1/products/" + url.PathEscape(productID)
}

func (c *HTTPCatalog) FetchProduct(ctx context.Context, productID string) (*domain.RemoteProduct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productURL(productID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var product domain.RemoteProduct
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	if product.ProductID == "" {
		product.ProductID = productID
	}
	return &product, nil
}

func (c *HTTPCatalog) PushProduct(ctx context.Context, product *domain.ProductManifest) error {
	payload, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.productURL(product.ProductID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do sends req with auth headers and turns non-2xx responses into errors.
func (c *HTTPCatalog) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call remote catalog: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return nil, fmt.Errorf("remote catalog returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
