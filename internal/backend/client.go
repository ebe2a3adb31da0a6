package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

// ErrNetwork wraps transport-level failures talking to the backend of record.
// The session is left untouched so the user can retry.
var ErrNetwork = errors.New("backend: network failure")

// SubmitError is a structured rejection from the backend of record, echoing
// which item or rule failed.
type SubmitError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"productId,omitempty"`
	Rule      string `json:"rule,omitempty"`
}

func (e *SubmitError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("backend: %s (%s, product %s)", e.Message, e.Code, e.ProductID)
	}
	return fmt.Sprintf("backend: %s (%s)", e.Message, e.Code)
}

// SaleItem is one finalized line as the backend expects it.
type SaleItem struct {
	ProductID         string `json:"productId"`
	VariantID         string `json:"variantId,omitempty"`
	Name              string `json:"name"`
	UnitPrice         int64  `json:"unitPrice"`
	Qty               int64  `json:"qty"`
	Discount          int64  `json:"discount"`
	DiscountIsPercent bool   `json:"discountIsPercent"`
	QuickSale         bool   `json:"quickSale"`
}

// SalePayment is one tender as the backend expects it.
type SalePayment struct {
	ID        string `json:"id"`
	Method    string `json:"method"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// Sale is the finalized transaction payload.
type Sale struct {
	SessionID     string            `json:"sessionId"`
	StoreID       string            `json:"storeId"`
	CustomerID    string            `json:"customerId,omitempty"`
	CustomerName  string            `json:"customerName,omitempty"`
	Items         []SaleItem        `json:"items"`
	Payments      []SalePayment     `json:"payments"`
	Subtotal      int64             `json:"subtotal"`
	LineDiscount  int64             `json:"lineDiscount"`
	OrderDiscount int64             `json:"orderDiscount"`
	GrandTotal    int64             `json:"grandTotal"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SaleAck is the backend's success acknowledgment.
type SaleAck struct {
	SaleID string `json:"saleId"`
}

// MovementItem is one product line of an inventory movement submission.
type MovementItem struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason,omitempty"`
}

// MovementRequest submits a validated transfer or adjustment.
type MovementRequest struct {
	SourceStoreID      string         `json:"sourceStoreId,omitempty"`
	DestinationStoreID string         `json:"destinationStoreId,omitempty"`
	Type               string         `json:"type"`
	Items              []MovementItem `json:"items"`
}

// MovementAck is the backend's success acknowledgment for a movement.
type MovementAck struct {
	MovementID string `json:"movementId"`
}

// Submitter abstracts the backend of record. The engine only ever submits
// fully validated payloads and treats the backend as the final arbiter.
type Submitter interface {
	SubmitSale(ctx context.Context, sale Sale) (SaleAck, error)
	SubmitMovement(ctx context.Context, req MovementRequest) (MovementAck, error)
}

// HTTPSubmitter talks to the backend of record over JSON/HTTP. Sales are
// submitted with a single attempt: a failed finalize is surfaced to the user,
// never retried behind their back.
type HTTPSubmitter struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// SubmitSale posts a finalized sale and returns the acknowledged identifier.
func (s *HTTPSubmitter) SubmitSale(ctx context.Context, sale Sale) (SaleAck, error) {
	var ack SaleAck
	client := s.HTTP
	client.MaxAttempts = 1
	if err := s.post(ctx, client, "/v1/sales", sale, &ack); err != nil {
		return SaleAck{}, err
	}
	return ack, nil
}

// SubmitMovement posts a validated transfer or adjustment.
func (s *HTTPSubmitter) SubmitMovement(ctx context.Context, req MovementRequest) (MovementAck, error) {
	var ack MovementAck
	if err := s.post(ctx, s.HTTP, "/v1/inventory/movements", req, &ack); err != nil {
		return MovementAck{}, err
	}
	return ack, nil
}

func (s *HTTPSubmitter) post(ctx context.Context, client resilience.HTTPClient, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("backend: encode payload: %w", err)
	}
	url := strings.TrimRight(s.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		s.Logger.Error().Err(err).Str("path", path).Msg("backend submission failed")
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeFailure(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
	}
	return nil
}

// decodeFailure turns a structured backend rejection into a SubmitError,
// falling back to the raw status when the body is not in the expected shape.
func decodeFailure(resp *http.Response) error {
	var envelope struct {
		Error SubmitError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		return &envelope.Error
	}
	return &SubmitError{Code: "REJECTED", Message: resp.Status}
}
