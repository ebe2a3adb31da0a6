package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/resilience"
	"github.com/noah-isme/backend-pos/internal/stock"
)

// ErrNotFound indicates the catalog does not know the product.
var ErrNotFound = errors.New("catalog: product not found")

// ErrNetwork wraps transport-level failures talking to the catalog.
var ErrNetwork = errors.New("catalog: network failure")

// Client fetches product records from the catalog collaborator. Records come
// back in whatever shape the catalog happens to use; the stock resolver deals
// with that, this client only moves bytes.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
	Cache   *Cache
	Logger  zerolog.Logger
}

// ProductRecord returns the raw catalog record for a product, from cache
// when fresh.
func (c *Client) ProductRecord(ctx context.Context, productID string) (stock.Record, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, ErrNotFound
	}
	key := cacheKey(productID)
	var cached stock.Record
	if hit, err := c.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	u := strings.TrimRight(c.BaseURL, "/") + "/v1/products/" + url.PathEscape(productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		c.Logger.Error().Err(err).Str("product_id", productID).Msg("catalog fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s", ErrNetwork, resp.Status)
	}
	var rec stock.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", ErrNetwork, err)
	}
	if err := c.Cache.SetJSON(ctx, key, rec); err != nil {
		c.Logger.Warn().Err(err).Str("product_id", productID).Msg("catalog cache write failed")
	}
	return rec, nil
}

// Available resolves the sellable quantity of a product at a store. ok is
// false when the record carries no recognisable stock shape, and also when
// the record explicitly allows overselling: either way the quantity is not a
// hard limit.
func (c *Client) Available(ctx context.Context, productID, storeID string) (stock.Quantity, bool, error) {
	rec, err := c.ProductRecord(ctx, productID)
	if err != nil {
		return 0, false, err
	}
	qty, ok := stock.Resolve(rec, storeID)
	if ok && stock.AllowOversell(rec) {
		return qty, false, nil
	}
	return qty, ok, nil
}

// InvalidateProduct drops the cached record so the next lookup re-fetches.
func (c *Client) InvalidateProduct(ctx context.Context, productID string) {
	if err := c.Cache.Invalidate(ctx, cacheKey(productID)); err != nil {
		c.Logger.Warn().Err(err).Str("product_id", productID).Msg("catalog cache invalidation failed")
	}
}

func cacheKey(productID string) string {
	return "catalog:product:" + productID
}
