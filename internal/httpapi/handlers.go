package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/backend"
	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/draft"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/ledger"
	"github.com/noah-isme/backend-pos/internal/money"
	"github.com/noah-isme/backend-pos/internal/movement"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/session"
)

// Handler wires the transaction engine to HTTP.
type Handler struct {
	Sessions  *session.Registry
	Catalog   *catalog.Client
	Backend   backend.Submitter
	Drafts    *draft.Store
	Movements *movement.Validator
	Bus       *events.Bus
	Events    *events.MemoryStore
	Validate  *validator.Validate
	Logger    zerolog.Logger

	AutoRemoveAtZero bool
	RevalidateStock  bool
}

var errBadJSON = errors.New("malformed request body")

func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadJSON
	}
	if h.Validate != nil {
		return h.Validate.Struct(v)
	}
	return nil
}

func (h *Handler) stockLookup() session.StockLookup {
	if h.Catalog == nil {
		return nil
	}
	return h.Catalog
}

func (h *Handler) sessionFromPath(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return s, true
}

// CreateSession opens a session for one transaction at one store.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		StoreID  string `json:"storeId" validate:"required"`
		Customer struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"customer"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	s := session.New(session.Config{
		StoreID:          payload.StoreID,
		Customer:         session.Customer{ID: payload.Customer.ID, Name: payload.Customer.Name},
		AutoRemoveAtZero: h.AutoRemoveAtZero,
		RevalidateStock:  h.RevalidateStock,
	}, h.stockLookup())
	s.Metadata = payload.Metadata
	h.Sessions.Put(s)
	common.JSONData(w, http.StatusCreated, s.Snapshot())
}

// GetSession returns the derived snapshot of a session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// DeleteSession discards a session, finalized or not.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Sessions.Get(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.Sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds a product to the cart, merging into an existing line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID string `json:"productId" validate:"required"`
		VariantID string `json:"variantId"`
		Name      string `json:"name"`
		UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
		Qty       int64  `json:"qty" validate:"gt=0"`
		QuickSale bool   `json:"quickSale"`
	}
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	p := cart.Product{
		ProductID: payload.ProductID,
		VariantID: payload.VariantID,
		Name:      payload.Name,
		UnitPrice: money.Money(payload.UnitPrice),
	}
	if err := s.AddItem(r.Context(), p, payload.Qty, payload.QuickSale); err != nil {
		h.countRejection("cart", err)
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// IncrementItem raises a line quantity by one.
func (h *Handler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	variantID := r.URL.Query().Get("variantId")
	if err := s.Increment(r.Context(), productID, variantID); err != nil {
		h.countRejection("cart", err)
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// DecrementItem lowers a line quantity by one, flooring at zero.
func (h *Handler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	variantID := r.URL.Query().Get("variantId")
	if err := s.Decrement(productID, variantID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// RemoveItem deletes a line unconditionally.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	variantID := r.URL.Query().Get("variantId")
	if err := s.RemoveLine(productID, variantID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// SetLineDiscount applies a per-line discount. Bound violations are rejected
// with the offending amounts so the terminal can show them.
func (h *Handler) SetLineDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	var payload struct {
		Amount     int64 `json:"amount"`
		PercentBps int32 `json:"percentBps"`
		IsPercent  bool  `json:"isPercent"`
	}
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	in := discount.LineInput{
		Amount:     money.Money(payload.Amount),
		PercentBps: money.Bps(payload.PercentBps),
		IsPercent:  payload.IsPercent,
	}
	productID := chi.URLParam(r, "productID")
	variantID := r.URL.Query().Get("variantId")
	if err := s.SetLineDiscount(productID, variantID, in); err != nil {
		h.countRejection("discount", err)
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// ClearLineDiscount removes a per-line discount.
func (h *Handler) ClearLineDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	variantID := r.URL.Query().Get("variantId")
	if err := s.ClearLineDiscount(productID, variantID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// SetOrderDiscount replaces the order-level discount.
func (h *Handler) SetOrderDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	var payload struct {
		Kind       string `json:"kind" validate:"required,oneof=none amount percent"`
		Amount     int64  `json:"amount"`
		PercentBps int32  `json:"percentBps"`
	}
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	o := discount.Order{
		Kind:       discount.Kind(payload.Kind),
		Amount:     money.Money(payload.Amount),
		PercentBps: money.Bps(payload.PercentBps),
	}
	if err := s.SetOrderDiscount(o); err != nil {
		h.countRejection("discount", err)
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// AddPayment records a tender against the transaction.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	var payload struct {
		Method    string `json:"method" validate:"required"`
		Amount    int64  `json:"amount" validate:"gt=0"`
		Reference string `json:"reference"`
	}
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := s.AddPayment(ledger.Method(payload.Method), money.Money(payload.Amount), payload.Reference); err != nil {
		h.countRejection("ledger", err)
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// RemovePayment deletes a tender before finalization.
func (h *Handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	if err := s.RemovePayment(chi.URLParam(r, "paymentID")); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// PayExact records one cash tender covering the remaining balance.
func (h *Handler) PayExact(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	if _, err := s.PayExact(); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// ClearSale empties cart, discounts and payments in one stroke.
func (h *Handler) ClearSale(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	if err := s.ClearSale(); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// Finalize submits the settled transaction to the backend of record. There is
// no automatic retry: a failure is surfaced and the cashier decides.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	started := time.Now()
	ack, err := s.Finalize(r.Context(), h.Backend)
	h.observeSubmit("sale", started)
	if err != nil {
		if obs.SaleFinalizeTotal != nil {
			obs.SaleFinalizeTotal.WithLabelValues(finalizeResult(err)).Inc()
		}
		h.writeError(w, err)
		return
	}
	if obs.SaleFinalizeTotal != nil {
		obs.SaleFinalizeTotal.WithLabelValues("ok").Inc()
	}
	snap := s.Snapshot()
	if h.Bus != nil {
		if _, err := h.Bus.Emit(r.Context(), events.TopicSaleFinalized, snap.SessionID, map[string]any{
			"saleId":     ack.SaleID,
			"storeId":    snap.StoreID,
			"grandTotal": snap.GrandTotal,
		}); err != nil {
			h.Logger.Error().Err(err).Msg("emit sale.finalized")
		}
	}
	if h.Catalog != nil {
		for _, line := range snap.Items {
			h.Catalog.InvalidateProduct(r.Context(), line.ProductID)
		}
	}
	if h.Drafts != nil {
		_ = h.Drafts.Delete(r.Context(), snap.SessionID)
	}
	common.JSONData(w, http.StatusOK, snap)
}

func finalizeResult(err error) string {
	var rejected *backend.SubmitError
	switch {
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, backend.ErrNetwork):
		return "network"
	case errors.Is(err, session.ErrNotFinalizable),
		errors.Is(err, session.ErrCompleted),
		errors.Is(err, session.ErrFinalizeInFlight):
		return "gated"
	default:
		return "error"
	}
}

func (h *Handler) countRejection(component string, err error) {
	if obs.ValidationRejectedTotal == nil {
		return
	}
	rule := "invalid"
	var guard *session.StockGuardError
	var bound *discount.LineBoundError
	switch {
	case errors.As(err, &guard):
		rule = "stock_guard"
	case errors.As(err, &bound):
		rule = "line_bound"
	}
	obs.ValidationRejectedTotal.WithLabelValues(component, rule).Inc()
}
