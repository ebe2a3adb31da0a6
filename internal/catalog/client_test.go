package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

func newClient(t *testing.T, handler http.HandlerFunc) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Client{
		BaseURL: srv.URL,
		HTTP:    resilience.HTTPClient{Client: srv.Client(), Timeout: time.Second},
		Cache:   NewCache(rdb, 30*time.Second),
	}, mr
}

func TestProductRecordFetchAndCache(t *testing.T) {
	var hits atomic.Int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/v1/products/p-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Latte","stocks":[{"storeId":"store-a","quantity":12}]}`))
	})

	rec, err := c.ProductRecord(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, "Latte", rec["name"])

	// Second lookup is served from cache.
	_, err = c.ProductRecord(context.Background(), "p-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())
}

func TestAvailableResolvesPerStore(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stocks":[{"storeId":"store-a","quantity":30},{"storeId":"store-b","quantity":4}]}`))
	})
	qty, ok, err := c.Available(context.Background(), "p-1", "store-b")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 4, qty)
}

func TestAvailableOversellNeverLimits(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quantity":3,"allowOversell":true}`))
	})
	qty, ok, err := c.Available(context.Background(), "p-1", "store-a")
	require.NoError(t, err)
	require.False(t, ok)
	require.EqualValues(t, 3, qty)
}

func TestAvailableIndeterminateShape(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"loose"}`))
	})
	_, ok, err := c.Available(context.Background(), "p-1", "store-a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProductRecordNotFound(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.ProductRecord(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidateProductForcesRefetch(t *testing.T) {
	var hits atomic.Int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quantity":5}`))
	})
	_, err := c.ProductRecord(context.Background(), "p-1")
	require.NoError(t, err)
	c.InvalidateProduct(context.Background(), "p-1")
	_, err = c.ProductRecord(context.Background(), "p-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestProductRecordCancelledContext(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ProductRecord(ctx, "p-1")
	require.ErrorIs(t, err, ErrNetwork)
}
