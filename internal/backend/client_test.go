package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

func newSubmitter(t *testing.T, handler http.HandlerFunc) *HTTPSubmitter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &HTTPSubmitter{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		HTTP: resilience.HTTPClient{
			Client:  srv.Client(),
			Timeout: time.Second,
		},
	}
}

func TestSubmitSaleSuccess(t *testing.T) {
	s := newSubmitter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/sales", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"saleId":"sale-42"}`))
	})
	ack, err := s.SubmitSale(context.Background(), Sale{SessionID: "sess-1", StoreID: "store-a"})
	require.NoError(t, err)
	require.Equal(t, "sale-42", ack.SaleID)
}

func TestSubmitSaleStructuredRejection(t *testing.T) {
	s := newSubmitter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"STOCK_CONFLICT","message":"insufficient stock","productId":"p-1","rule":"source-availability"}}`))
	})
	_, err := s.SubmitSale(context.Background(), Sale{})
	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	require.Equal(t, "STOCK_CONFLICT", submitErr.Code)
	require.Equal(t, "p-1", submitErr.ProductID)
}

func TestSubmitSaleTimeoutIsNetworkError(t *testing.T) {
	s := newSubmitter(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	s.HTTP.Timeout = 20 * time.Millisecond
	_, err := s.SubmitSale(context.Background(), Sale{})
	require.ErrorIs(t, err, ErrNetwork)
}

func TestSubmitMovement(t *testing.T) {
	s := newSubmitter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/inventory/movements", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"movementId":"mv-7"}`))
	})
	ack, err := s.SubmitMovement(context.Background(), MovementRequest{
		SourceStoreID:      "store-a",
		DestinationStoreID: "store-b",
		Type:               "transfer",
		Items:              []MovementItem{{ProductID: "p-1", Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, "mv-7", ack.MovementID)
}

func TestSubmitMovementMalformedFailureBody(t *testing.T) {
	s := newSubmitter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`not-json`))
	})
	_, err := s.SubmitMovement(context.Background(), MovementRequest{})
	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	require.Equal(t, "REJECTED", submitErr.Code)
	require.False(t, errors.Is(err, ErrNetwork))
}
