package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/backend"
	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/ledger"
	"github.com/noah-isme/backend-pos/internal/stock"
)

var espresso = cart.Product{ProductID: "p-1", Name: "Espresso", UnitPrice: 1000}

type stubStock struct {
	qty stock.Quantity
	ok  bool
	err error
}

func (s *stubStock) Available(context.Context, string, string) (stock.Quantity, bool, error) {
	return s.qty, s.ok, s.err
}

type stubSubmitter struct {
	mu     sync.Mutex
	calls  int
	err    error
	block  chan struct{}
	saleID string
	last   backend.Sale
}

func (s *stubSubmitter) SubmitSale(_ context.Context, sale backend.Sale) (backend.SaleAck, error) {
	s.mu.Lock()
	s.calls++
	s.last = sale
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if s.err != nil {
		return backend.SaleAck{}, s.err
	}
	id := s.saleID
	if id == "" {
		id = "sale-1"
	}
	return backend.SaleAck{SaleID: id}, nil
}

func (s *stubSubmitter) SubmitMovement(context.Context, backend.MovementRequest) (backend.MovementAck, error) {
	return backend.MovementAck{}, nil
}

// Scenarios A and B: a 1000x3 cart with a 10% order discount settles at 2700
// and one 2700 cash tender makes it finalizable.
func TestSnapshotScenario(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 3, false))
	require.NoError(t, s.SetOrderDiscount(discount.Order{Kind: discount.KindPercent, PercentBps: 1000}))

	snap := s.Snapshot()
	require.EqualValues(t, 3000, snap.Subtotal)
	require.EqualValues(t, 300, snap.OrderDiscountAmt)
	require.EqualValues(t, 2700, snap.GrandTotal)
	require.False(t, snap.CanFinalize)

	_, err := s.AddPayment(ledger.MethodCash, 2700, "")
	require.NoError(t, err)
	snap = s.Snapshot()
	require.EqualValues(t, 0, snap.Remaining)
	require.True(t, snap.CanFinalize)
}

func TestSnapshotIdentityHoldsAcrossMutations(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 5, false))
	_, _ = s.AddPayment(ledger.MethodCard, 1200, "")
	_ = s.SetLineDiscount("p-1", "", discount.LineInput{Amount: 500})
	_, _ = s.AddPayment(ledger.MethodCash, 4000, "")
	_ = s.Decrement("p-1", "")

	snap := s.Snapshot()
	require.Equal(t, snap.GrandTotal, snap.SumPayments+snap.Remaining)
	require.Equal(t, snap.Remaining <= 0, snap.CanFinalize)
}

func TestStockGuardBlocksBeyondResolvedStock(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, &stubStock{qty: 2, ok: true})
	require.NoError(t, s.AddItem(context.Background(), espresso, 2, false))
	err := s.Increment(context.Background(), "p-1", "")
	var guard *StockGuardError
	require.ErrorAs(t, err, &guard)
	require.EqualValues(t, 2, guard.Available)
	require.EqualValues(t, 2, s.Snapshot().Items[0].Qty)
}

func TestStockGuardPermissiveOnIndeterminate(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, &stubStock{ok: false})
	require.NoError(t, s.AddItem(context.Background(), espresso, 99, false))
}

func TestFinalizeHappyPath(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 3, false))
	_, _ = s.AddPayment(ledger.MethodCash, 3000, "")

	sub := &stubSubmitter{saleID: "sale-99"}
	ack, err := s.Finalize(context.Background(), sub)
	require.NoError(t, err)
	require.Equal(t, "sale-99", ack.SaleID)

	snap := s.Snapshot()
	require.True(t, snap.Completed)
	require.Equal(t, "sale-99", snap.SaleID)
	require.EqualValues(t, 3000, sub.last.GrandTotal)
	require.Len(t, sub.last.Items, 1)
}

func TestFinalizeRejectsUnsettledBalance(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 1, false))
	_, err := s.Finalize(context.Background(), &stubSubmitter{})
	require.ErrorIs(t, err, ErrNotFinalizable)
}

func TestFinalizeFailureLeavesStateUntouched(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 3, false))
	_, _ = s.AddPayment(ledger.MethodCash, 3000, "")
	before := s.Snapshot()

	sub := &stubSubmitter{err: backend.ErrNetwork}
	_, err := s.Finalize(context.Background(), sub)
	require.ErrorIs(t, err, backend.ErrNetwork)

	after := s.Snapshot()
	require.False(t, after.Completed)
	require.Equal(t, before.GrandTotal, after.GrandTotal)
	require.Equal(t, before.SumPayments, after.SumPayments)

	// And the user can retry.
	sub.err = nil
	_, err = s.Finalize(context.Background(), sub)
	require.NoError(t, err)
}

func TestFinalizeInFlightGatesSecondCharge(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 1, false))
	_, _ = s.AddPayment(ledger.MethodCash, 1000, "")

	sub := &stubSubmitter{block: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		_, err := s.Finalize(context.Background(), sub)
		done <- err
	}()
	require.Eventually(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return sub.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := s.Finalize(context.Background(), sub)
	require.ErrorIs(t, err, ErrFinalizeInFlight)

	close(sub.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, sub.calls)
}

func TestCompletedSessionIsReadOnly(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 1, false))
	_, _ = s.AddPayment(ledger.MethodCash, 1000, "")
	_, err := s.Finalize(context.Background(), &stubSubmitter{})
	require.NoError(t, err)

	require.ErrorIs(t, s.AddItem(context.Background(), espresso, 1, false), ErrCompleted)
	require.ErrorIs(t, s.Decrement("p-1", ""), ErrCompleted)
	_, err = s.AddPayment(ledger.MethodCash, 1, "")
	require.ErrorIs(t, err, ErrCompleted)
	require.ErrorIs(t, s.RemovePayment("x"), ErrCompleted)

	// Display remains for receipt rendering.
	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	require.Len(t, snap.Payments, 1)
}

func TestFinalizeRevalidatesStaleStock(t *testing.T) {
	stocks := &stubStock{qty: 5, ok: true}
	s := New(Config{StoreID: "store-a", RevalidateStock: true}, stocks)
	require.NoError(t, s.AddItem(context.Background(), espresso, 5, false))
	_, _ = s.AddPayment(ledger.MethodCash, 5000, "")

	// Another terminal sold 3 units in the meantime.
	stocks.qty = 2
	_, err := s.Finalize(context.Background(), &stubSubmitter{})
	var guard *StockGuardError
	require.ErrorAs(t, err, &guard)
	require.EqualValues(t, 2, guard.Available)
	require.False(t, s.Snapshot().Completed)
}

func TestDraftRoundTrip(t *testing.T) {
	s := New(Config{StoreID: "store-a", Customer: Customer{ID: "c-1", Name: "Dina"}}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 2, true))
	require.NoError(t, s.SetLineDiscount("p-1", "", discount.LineInput{Amount: 150}))
	require.NoError(t, s.SetOrderDiscount(discount.Order{Kind: discount.KindAmount, Amount: 100}))
	_, _ = s.AddPayment(ledger.MethodTransfer, 700, "trx-5")

	data, err := s.MarshalDraft()
	require.NoError(t, err)

	restored, err := RestoreDraft(data, Config{}, nil)
	require.NoError(t, err)

	a, b := s.Snapshot(), restored.Snapshot()
	require.Equal(t, a, b)

	// Idempotent: a second round trip reproduces the same snapshot again.
	data2, err := restored.MarshalDraft()
	require.NoError(t, err)
	restored2, err := RestoreDraft(data2, Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, b, restored2.Snapshot())
}

func TestRestoredDraftKeepsRevalidation(t *testing.T) {
	stocks := &stubStock{qty: 5, ok: true}
	s := New(Config{StoreID: "store-a", RevalidateStock: true}, stocks)
	require.NoError(t, s.AddItem(context.Background(), espresso, 5, false))
	_, _ = s.AddPayment(ledger.MethodCash, 5000, "")

	data, err := s.MarshalDraft()
	require.NoError(t, err)

	// Stock moved while the ticket was parked.
	stocks.qty = 2
	restored, err := RestoreDraft(data, Config{RevalidateStock: true}, stocks)
	require.NoError(t, err)

	_, err = restored.Finalize(context.Background(), &stubSubmitter{})
	var guard *StockGuardError
	require.ErrorAs(t, err, &guard)
	require.EqualValues(t, 2, guard.Available)
	require.False(t, restored.Snapshot().Completed)
}

func TestDraftRefusedAfterCompletion(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 1, false))
	_, _ = s.AddPayment(ledger.MethodCash, 1000, "")
	_, err := s.Finalize(context.Background(), &stubSubmitter{})
	require.NoError(t, err)
	_, err = s.MarshalDraft()
	require.ErrorIs(t, err, ErrDraftCompleted)
}

func TestZeroQuantityCartNotFinalizable(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 1, false))
	require.NoError(t, s.Decrement("p-1", ""))
	_, _ = s.AddPayment(ledger.MethodCash, 100, "")

	// The row survives at quantity zero, but there is nothing to sell.
	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	require.False(t, snap.CanFinalize)
	_, err := s.Finalize(context.Background(), &stubSubmitter{})
	require.ErrorIs(t, err, ErrNotFinalizable)
}

func TestClearSale(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, nil)
	require.NoError(t, s.AddItem(context.Background(), espresso, 2, false))
	_, _ = s.AddPayment(ledger.MethodCash, 500, "")
	require.NoError(t, s.ClearSale())
	snap := s.Snapshot()
	require.Empty(t, snap.Items)
	require.Empty(t, snap.Payments)
	require.EqualValues(t, 0, snap.GrandTotal)
}

func TestStockGuardErrorsDoNotFreezeTerminal(t *testing.T) {
	s := New(Config{StoreID: "store-a"}, &stubStock{err: errors.New("catalog down")})
	require.NoError(t, s.AddItem(context.Background(), espresso, 1, false))
}
