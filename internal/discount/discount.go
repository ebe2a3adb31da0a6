package discount

import (
	"errors"
	"fmt"

	"github.com/noah-isme/backend-pos/internal/money"
)

// Kind identifies how an order-level discount was entered.
type Kind string

const (
	// KindNone means no order-level discount applies.
	KindNone Kind = "none"
	// KindAmount is a fixed amount off the whole transaction.
	KindAmount Kind = "amount"
	// KindPercent is a percentage off the whole transaction.
	KindPercent Kind = "percent"
)

// ErrPercentOutOfRange is returned for percentages outside (0, 100].
var ErrPercentOutOfRange = errors.New("discount: percent must be greater than 0 and at most 100")

// ErrAmountNotPositive is returned for non-positive fixed discounts.
var ErrAmountNotPositive = errors.New("discount: amount must be positive")

// ErrUnknownKind is returned for an unrecognised order discount kind.
var ErrUnknownKind = errors.New("discount: unknown kind")

// LineBoundError reports a per-line fixed discount exceeding the line subtotal.
// The bound is surfaced so the terminal can show a specific message.
type LineBoundError struct {
	Amount   money.Money
	Subtotal money.Money
}

func (e *LineBoundError) Error() string {
	return fmt.Sprintf("discount %s exceeds line subtotal %s",
		money.Display(e.Amount), money.Display(e.Subtotal))
}

// LineInput is a per-line discount as entered at the terminal. Percentages
// are carried in basis points; fixed discounts in minor units.
type LineInput struct {
	Amount     money.Money
	PercentBps money.Bps
	IsPercent  bool
}

// ResolveLine converts a per-line discount input to a concrete amount against
// the line subtotal unitPrice*qty. Violations are rejected, never clamped, so
// the caller can surface the bound to the user.
func ResolveLine(in LineInput, unitPrice money.Money, qty int64) (money.Money, error) {
	subtotal := money.Mul(unitPrice, qty)
	if in.IsPercent {
		if in.PercentBps <= 0 || in.PercentBps > money.MaxBps {
			return 0, ErrPercentOutOfRange
		}
		return money.Portion(subtotal, in.PercentBps), nil
	}
	if in.Amount <= 0 {
		return 0, ErrAmountNotPositive
	}
	if in.Amount > subtotal {
		return 0, &LineBoundError{Amount: in.Amount, Subtotal: subtotal}
	}
	return in.Amount, nil
}

// Order is the single optional order-level discount.
type Order struct {
	Kind       Kind        `json:"kind"`
	Amount     money.Money `json:"amount,omitempty"`
	PercentBps money.Bps   `json:"percentBps,omitempty"`
}

// Validate checks the order discount bounds independent of cart contents.
func (o Order) Validate() error {
	switch o.Kind {
	case KindNone, "":
		return nil
	case KindAmount:
		if o.Amount <= 0 {
			return ErrAmountNotPositive
		}
		return nil
	case KindPercent:
		if o.PercentBps <= 0 || o.PercentBps > money.MaxBps {
			return ErrPercentOutOfRange
		}
		return nil
	default:
		return ErrUnknownKind
	}
}

// resolveOrder computes the order-level discount amount against the given
// base, clamping a fixed amount to the base instead of rejecting it.
func resolveOrder(o Order, base money.Money) money.Money {
	switch o.Kind {
	case KindAmount:
		return money.ClampMax(money.ClampMin(o.Amount, 0), base)
	case KindPercent:
		return money.Portion(base, o.PercentBps)
	default:
		return 0
	}
}

// Item is one cart line reduced to the figures the totals pipeline needs.
type Item struct {
	Qty       int64
	UnitPrice money.Money
	Discount  money.Money
}

// Totals aggregates the derived monetary state of a transaction.
type Totals struct {
	LineSubtotal       money.Money
	LineDiscountTotal  money.Money
	SubtotalAfterLines money.Money
	OrderDiscount      money.Money
	GrandTotal         money.Money
}

// Compute runs the totals pipeline in its fixed order. The order-level
// discount is resolved against the pre-line-discount subtotal; that matches
// the terminal's long-standing behaviour and changing the base would change
// every mixed-discount receipt.
func Compute(items []Item, order Order) Totals {
	var t Totals
	for _, it := range items {
		t.LineSubtotal += money.Mul(it.UnitPrice, it.Qty)
	}
	for _, it := range items {
		if it.Discount > 0 {
			t.LineDiscountTotal += it.Discount
		}
	}
	t.SubtotalAfterLines = t.LineSubtotal - t.LineDiscountTotal
	t.OrderDiscount = resolveOrder(order, t.LineSubtotal)
	t.GrandTotal = money.ClampMin(t.SubtotalAfterLines-t.OrderDiscount, 0)
	return t
}
