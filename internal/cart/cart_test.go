package cart

import (
	"errors"
	"testing"

	"github.com/noah-isme/backend-pos/internal/discount"
)

var latte = Product{ProductID: "p-1", Name: "Latte", UnitPrice: 1000}

func TestAddOrMergeMergesSameIdentity(t *testing.T) {
	c := New(false)
	for i := 0; i < 4; i++ {
		if err := c.AddOrMerge(latte, 2, false); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Qty != 8 {
		t.Fatalf("expected qty 8, got %d", lines[0].Qty)
	}
}

func TestAddOrMergeDistinguishesVariants(t *testing.T) {
	c := New(false)
	_ = c.AddOrMerge(latte, 1, false)
	large := latte
	large.VariantID = "v-large"
	large.UnitPrice = 1500
	_ = c.AddOrMerge(large, 1, false)
	if c.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", c.Len())
	}
}

func TestAddOrMergeORsQuickSale(t *testing.T) {
	c := New(false)
	_ = c.AddOrMerge(latte, 1, false)
	_ = c.AddOrMerge(latte, 1, true)
	_ = c.AddOrMerge(latte, 1, false)
	if !c.Lines()[0].QuickSale {
		t.Fatal("quick-sale flag should stick once set")
	}
}

func TestAddOrMergeRejectsBadInput(t *testing.T) {
	c := New(false)
	if err := c.AddOrMerge(latte, 0, false); !errors.Is(err, ErrQtyNotPositive) {
		t.Fatalf("expected ErrQtyNotPositive, got %v", err)
	}
	if err := c.AddOrMerge(Product{ProductID: "p", UnitPrice: -1}, 1, false); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}
	if err := c.AddOrMerge(Product{}, 1, false); !errors.Is(err, ErrEmptyProductID) {
		t.Fatalf("expected ErrEmptyProductID, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("rejected adds must not mutate the cart")
	}
}

func TestDecrementFloorsAtZeroAndKeepsRow(t *testing.T) {
	c := New(false)
	_ = c.AddOrMerge(latte, 1, false)
	_ = c.Decrement("p-1", "")
	_ = c.Decrement("p-1", "")
	lines := c.Lines()
	if len(lines) != 1 || lines[0].Qty != 0 {
		t.Fatalf("expected a zero-qty row to remain, got %+v", lines)
	}
	if !c.IsEmpty() {
		t.Fatal("cart with only zero-qty rows should be empty")
	}
}

func TestDecrementAutoRemoveAtZero(t *testing.T) {
	c := New(true)
	_ = c.AddOrMerge(latte, 1, false)
	_ = c.Decrement("p-1", "")
	if c.Len() != 0 {
		t.Fatalf("expected line removal at zero, got %d lines", c.Len())
	}
}

func TestDecrementClampsDiscountToSubtotal(t *testing.T) {
	c := New(false)
	_ = c.AddOrMerge(latte, 2, false)
	if err := c.SetLineDiscount("p-1", "", discount.LineInput{Amount: 1500}); err != nil {
		t.Fatalf("set discount: %v", err)
	}
	_ = c.Decrement("p-1", "")
	line := c.Lines()[0]
	if line.Discount > line.Subtotal() {
		t.Fatalf("discount %d exceeds subtotal %d after decrement", line.Discount, line.Subtotal())
	}
}

func TestSetLineDiscountRejectionLeavesLineUnchanged(t *testing.T) {
	c := New(false)
	_ = c.AddOrMerge(latte, 1, false)
	err := c.SetLineDiscount("p-1", "", discount.LineInput{Amount: 1200})
	var bound *discount.LineBoundError
	if !errors.As(err, &bound) {
		t.Fatalf("expected LineBoundError, got %v", err)
	}
	if got := c.Lines()[0].Discount; got != 0 {
		t.Fatalf("line discount changed on rejection: %d", got)
	}
}

func TestSetLineDiscountPercentRecordsEntryMode(t *testing.T) {
	c := New(false)
	_ = c.AddOrMerge(latte, 3, false)
	if err := c.SetLineDiscount("p-1", "", discount.LineInput{PercentBps: 1000, IsPercent: true}); err != nil {
		t.Fatalf("set discount: %v", err)
	}
	line := c.Lines()[0]
	if line.Discount != 300 || !line.DiscountIsPercent {
		t.Fatalf("expected resolved 300 percent-entered, got %+v", line)
	}
}

func TestRemoveAndClear(t *testing.T) {
	c := New(false)
	_ = c.AddOrMerge(latte, 1, false)
	if err := c.Remove("p-1", ""); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Remove("p-1", ""); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	_ = c.AddOrMerge(latte, 5, false)
	c.Clear()
	if c.Len() != 0 {
		t.Fatal("expected empty cart after Clear")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	c := New(false)
	_ = c.AddOrMerge(latte, 2, true)
	_ = c.SetLineDiscount("p-1", "", discount.LineInput{Amount: 250})
	saved := c.Lines()

	restored := New(false)
	restored.Restore(saved)
	got := restored.Lines()
	if len(got) != 1 || got[0] != saved[0] {
		t.Fatalf("restore mismatch: %+v vs %+v", got, saved)
	}
}
