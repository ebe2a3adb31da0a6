package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/backend"
	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/ledger"
	"github.com/noah-isme/backend-pos/internal/money"
	"github.com/noah-isme/backend-pos/internal/stock"
)

var (
	// ErrCompleted is returned for any mutation after finalization.
	ErrCompleted = errors.New("session: transaction already completed")
	// ErrFinalizeInFlight gates a duplicate "Charge" while one is running.
	ErrFinalizeInFlight = errors.New("session: finalization already in progress")
	// ErrNotFinalizable is returned when the settlement gate is not met.
	ErrNotFinalizable = errors.New("session: balance not covered or cart empty")
)

// StockGuardError reports an add/increment that would exceed known stock.
type StockGuardError struct {
	ProductID string
	Requested stock.Quantity
	Available stock.Quantity
}

func (e *StockGuardError) Error() string {
	return fmt.Sprintf("session: product %s: requested %d exceeds available %d",
		e.ProductID, e.Requested, e.Available)
}

// StockLookup resolves availability for the active store. Implemented by the
// catalog client; nil disables the guard entirely.
type StockLookup interface {
	Available(ctx context.Context, productID, storeID string) (stock.Quantity, bool, error)
}

// Customer identifies the buyer attached to the transaction, if any.
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Config controls per-screen session behaviour.
type Config struct {
	StoreID          string
	Customer         Customer
	AutoRemoveAtZero bool
	// RevalidateStock re-resolves stock right before finalization instead of
	// trusting the snapshot consulted when items were added.
	RevalidateStock bool
}

// Session owns one in-progress transaction: the cart, the order-level
// discount and the payment ledger. All mutations are serialized by an
// internal mutex; the snapshot is derived state, never cached.
type Session struct {
	mu sync.Mutex

	ID       string
	StoreID  string
	Customer Customer
	Metadata map[string]string

	cart   *cart.Cart
	order  discount.Order
	led    *ledger.Ledger
	policy stock.Policy
	stockL StockLookup

	revalidateStock bool
	completed       bool
	finalizing      bool
	saleID          string

	Now func() time.Time
}

// New opens a session for one transaction at one store.
func New(cfg Config, stockLookup StockLookup) *Session {
	return &Session{
		ID:              uuid.NewString(),
		StoreID:         cfg.StoreID,
		Customer:        cfg.Customer,
		cart:            cart.New(cfg.AutoRemoveAtZero),
		order:           discount.Order{Kind: discount.KindNone},
		led:             ledger.New(),
		policy:          stock.Permissive,
		stockL:          stockLookup,
		revalidateStock: cfg.RevalidateStock,
		Now:             time.Now,
	}
}

// AddItem adds a product to the cart, merging into an existing line. The
// stock guard runs with the permissive policy: indeterminate stock never
// blocks a sale, it only loses the guarantee.
func (s *Session) AddItem(ctx context.Context, p cart.Product, delta int64, quickSale bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if err := s.guardQuantityLocked(ctx, p.ProductID, p.VariantID, delta); err != nil {
		return err
	}
	return s.cart.AddOrMerge(p, delta, quickSale)
}

// Increment raises a line quantity by one, subject to the stock guard.
func (s *Session) Increment(ctx context.Context, productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if err := s.guardQuantityLocked(ctx, productID, variantID, 1); err != nil {
		return err
	}
	return s.cart.Increment(productID, variantID)
}

// Decrement lowers a line quantity by one.
func (s *Session) Decrement(productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	return s.cart.Decrement(productID, variantID)
}

// RemoveLine deletes a line unconditionally.
func (s *Session) RemoveLine(productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	return s.cart.Remove(productID, variantID)
}

// ClearSale empties cart, order discount and payments in one stroke.
func (s *Session) ClearSale() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.cart.Clear()
	s.order = discount.Order{Kind: discount.KindNone}
	s.led.Restore(nil)
	return nil
}

// SetLineDiscount applies a per-line discount, rejecting bound violations.
func (s *Session) SetLineDiscount(productID, variantID string, in discount.LineInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	return s.cart.SetLineDiscount(productID, variantID, in)
}

// ClearLineDiscount removes a per-line discount.
func (s *Session) ClearLineDiscount(productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	return s.cart.ClearLineDiscount(productID, variantID)
}

// SetOrderDiscount replaces the order-level discount after validating its
// bounds. A fixed amount larger than the subtotal is legal here; the totals
// pipeline clamps it at computation time.
func (s *Session) SetOrderDiscount(o discount.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if err := o.Validate(); err != nil {
		return err
	}
	s.order = o
	return nil
}

// AddPayment records a tender against the transaction.
func (s *Session) AddPayment(method ledger.Method, amount money.Money, reference string) (ledger.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return ledger.Payment{}, err
	}
	return s.led.Add(method, amount, reference)
}

// RemovePayment deletes a tender before finalization.
func (s *Session) RemovePayment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	return s.led.Remove(id)
}

// PayExact records one cash tender covering the remaining balance.
func (s *Session) PayExact() (ledger.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return ledger.Payment{}, err
	}
	return s.led.PayExact(s.totalsLocked().GrandTotal)
}

// Snapshot is the only state the presentation layer reads. It is derived on
// demand under the session lock, so it can never expose a torn view.
type Snapshot struct {
	SessionID         string           `json:"sessionId"`
	StoreID           string           `json:"storeId"`
	Customer          Customer         `json:"customer"`
	Items             []cart.Line      `json:"items"`
	Payments          []ledger.Payment `json:"payments"`
	OrderDiscount     discount.Order   `json:"orderDiscount"`
	Subtotal          money.Money      `json:"subtotal"`
	LineDiscountTotal money.Money      `json:"lineDiscountTotal"`
	OrderDiscountAmt  money.Money      `json:"orderDiscountAmount"`
	GrandTotal        money.Money      `json:"grandTotal"`
	SumPayments       money.Money      `json:"sumPayments"`
	Remaining         money.Money      `json:"remaining"`
	CanFinalize       bool             `json:"canFinalize"`
	Completed         bool             `json:"completed"`
	SaleID            string           `json:"saleId,omitempty"`
}

// Snapshot returns the derived, internally consistent view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	t := s.totalsLocked()
	return Snapshot{
		SessionID:         s.ID,
		StoreID:           s.StoreID,
		Customer:          s.Customer,
		Items:             s.cart.Lines(),
		Payments:          s.led.Payments(),
		OrderDiscount:     s.order,
		Subtotal:          t.LineSubtotal,
		LineDiscountTotal: t.LineDiscountTotal,
		OrderDiscountAmt:  t.OrderDiscount,
		GrandTotal:        t.GrandTotal,
		SumPayments:       s.led.Sum(),
		Remaining:         s.led.Remaining(t.GrandTotal),
		CanFinalize:       s.led.CanFinalize(t.GrandTotal, s.cart.IsEmpty()),
		Completed:         s.completed,
		SaleID:            s.saleID,
	}
}

func (s *Session) totalsLocked() discount.Totals {
	return discount.Compute(s.cart.Items(), s.order)
}

func (s *Session) mutableLocked() error {
	if s.completed {
		return ErrCompleted
	}
	if s.finalizing {
		return ErrFinalizeInFlight
	}
	return nil
}

// guardQuantityLocked enforces the stock-aware guard for quantity increases.
// The limit compares against the quantity already in the cart plus the delta.
func (s *Session) guardQuantityLocked(ctx context.Context, productID, variantID string, delta int64) error {
	if s.stockL == nil || delta <= 0 {
		return nil
	}
	qty, ok, err := s.stockL.Available(ctx, productID, s.StoreID)
	if err != nil {
		// A catalog hiccup must not freeze the terminal; the permissive
		// policy already treats missing data as "cannot guarantee".
		return nil
	}
	limit, limited := s.policy.Limit(qty, ok)
	if !limited {
		return nil
	}
	var inCart int64
	for _, l := range s.cart.Lines() {
		if l.ProductID == productID && l.VariantID == variantID {
			inCart = l.Qty
			break
		}
	}
	if inCart+delta > limit {
		return &StockGuardError{ProductID: productID, Requested: inCart + delta, Available: limit}
	}
	return nil
}

// Finalize submits the assembled transaction to the backend of record. The
// in-flight flag gates concurrent submissions; the network call itself runs
// outside the session lock so the UI can still render snapshots. A failed
// submission leaves the session exactly as it was.
func (s *Session) Finalize(ctx context.Context, submitter backend.Submitter) (backend.SaleAck, error) {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return backend.SaleAck{}, ErrCompleted
	}
	if s.finalizing {
		s.mu.Unlock()
		return backend.SaleAck{}, ErrFinalizeInFlight
	}
	snap := s.snapshotLocked()
	if !snap.CanFinalize {
		s.mu.Unlock()
		return backend.SaleAck{}, ErrNotFinalizable
	}
	if s.revalidateStock {
		if err := s.revalidateLocked(ctx, snap); err != nil {
			s.mu.Unlock()
			return backend.SaleAck{}, err
		}
	}
	s.finalizing = true
	s.mu.Unlock()

	ack, err := submitter.SubmitSale(ctx, s.salePayload(snap))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizing = false
	if err != nil {
		return backend.SaleAck{}, err
	}
	s.completed = true
	s.saleID = ack.SaleID
	return ack, nil
}

// revalidateLocked re-resolves stock for every line right before submission
// so a snapshot taken minutes earlier cannot oversell.
func (s *Session) revalidateLocked(ctx context.Context, snap Snapshot) error {
	if s.stockL == nil {
		return nil
	}
	for _, line := range snap.Items {
		if line.Qty <= 0 {
			continue
		}
		qty, ok, err := s.stockL.Available(ctx, line.ProductID, s.StoreID)
		if err != nil {
			return err
		}
		limit, limited := s.policy.Limit(qty, ok)
		if limited && line.Qty > limit {
			return &StockGuardError{ProductID: line.ProductID, Requested: line.Qty, Available: limit}
		}
	}
	return nil
}

func (s *Session) salePayload(snap Snapshot) backend.Sale {
	items := make([]backend.SaleItem, 0, len(snap.Items))
	for _, l := range snap.Items {
		if l.Qty <= 0 {
			continue
		}
		items = append(items, backend.SaleItem{
			ProductID:         l.ProductID,
			VariantID:         l.VariantID,
			Name:              l.Name,
			UnitPrice:         l.UnitPrice,
			Qty:               l.Qty,
			Discount:          l.Discount,
			DiscountIsPercent: l.DiscountIsPercent,
			QuickSale:         l.QuickSale,
		})
	}
	payments := make([]backend.SalePayment, 0, len(snap.Payments))
	for _, p := range snap.Payments {
		payments = append(payments, backend.SalePayment{
			ID:        p.ID,
			Method:    string(p.Method),
			Amount:    p.Amount,
			Reference: p.Reference,
		})
	}
	return backend.Sale{
		SessionID:     snap.SessionID,
		StoreID:       snap.StoreID,
		CustomerID:    snap.Customer.ID,
		CustomerName:  snap.Customer.Name,
		Items:         items,
		Payments:      payments,
		Subtotal:      snap.Subtotal,
		LineDiscount:  snap.LineDiscountTotal,
		OrderDiscount: snap.OrderDiscountAmt,
		GrandTotal:    snap.GrandTotal,
		Metadata:      s.Metadata,
	}
}
