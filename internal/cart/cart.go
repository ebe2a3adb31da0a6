package cart

import (
	"errors"
	"fmt"

	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/money"
)

// ErrLineNotFound indicates no line matches the requested product/variant.
var ErrLineNotFound = errors.New("cart: line not found")

// ErrQtyNotPositive is returned when an add is attempted with a non-positive delta.
var ErrQtyNotPositive = errors.New("cart: quantity delta must be positive")

// ErrNegativePrice is returned for products carrying a negative unit price.
var ErrNegativePrice = errors.New("cart: unit price must not be negative")

// ErrEmptyProductID is returned when a product has no identifier.
var ErrEmptyProductID = errors.New("cart: product id is required")

// Product is the catalog data a line is created from. An empty VariantID
// means the base product.
type Product struct {
	ProductID string
	VariantID string
	Name      string
	UnitPrice money.Money
}

// Line is one product (optionally a variant) placed into the transaction.
// Discount is always the resolved amount; DiscountIsPercent only records how
// it was entered, for display.
type Line struct {
	ProductID         string      `json:"productId"`
	VariantID         string      `json:"variantId,omitempty"`
	Name              string      `json:"name"`
	UnitPrice         money.Money `json:"unitPrice"`
	Qty               int64       `json:"qty"`
	Discount          money.Money `json:"discount"`
	DiscountIsPercent bool        `json:"discountIsPercent"`
	QuickSale         bool        `json:"quickSale"`
}

// Subtotal is the line's pre-discount value.
func (l Line) Subtotal() money.Money {
	return money.Mul(l.UnitPrice, l.Qty)
}

func (l Line) matches(productID, variantID string) bool {
	return l.ProductID == productID && l.VariantID == variantID
}

// Cart owns the ordered line items of one in-progress transaction.
// Insertion order is preserved for display; totals do not depend on it.
// Two lines with the same (productID, variantID) never coexist.
type Cart struct {
	lines []*Line

	// AutoRemoveAtZero drops a line when a decrement reaches zero. The sales
	// terminal keeps a zero row visible for explicit removal; the invoice
	// screen removes it. Both behaviours are in active use.
	AutoRemoveAtZero bool
}

// New returns an empty cart with the given zero-quantity behaviour.
func New(autoRemoveAtZero bool) *Cart {
	return &Cart{AutoRemoveAtZero: autoRemoveAtZero}
}

// AddOrMerge inserts a product or, when a line with the same identity already
// exists, increases its quantity by delta and ORs the quick-sale flag.
func (c *Cart) AddOrMerge(p Product, delta int64, quickSale bool) error {
	if p.ProductID == "" {
		return ErrEmptyProductID
	}
	if delta <= 0 {
		return ErrQtyNotPositive
	}
	if p.UnitPrice < 0 {
		return ErrNegativePrice
	}
	if line := c.find(p.ProductID, p.VariantID); line != nil {
		line.Qty += delta
		line.QuickSale = line.QuickSale || quickSale
		return nil
	}
	c.lines = append(c.lines, &Line{
		ProductID: p.ProductID,
		VariantID: p.VariantID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Qty:       delta,
		QuickSale: quickSale,
	})
	return nil
}

// Increment raises a line's quantity by one.
func (c *Cart) Increment(productID, variantID string) error {
	line := c.find(productID, variantID)
	if line == nil {
		return ErrLineNotFound
	}
	line.Qty++
	return nil
}

// Decrement lowers a line's quantity by one, flooring at zero. Whether the
// zero line is removed depends on AutoRemoveAtZero. Shrinking the subtotal
// drags an oversized fixed discount down with it so the line invariant
// 0 <= discount <= subtotal keeps holding.
func (c *Cart) Decrement(productID, variantID string) error {
	line := c.find(productID, variantID)
	if line == nil {
		return ErrLineNotFound
	}
	if line.Qty > 0 {
		line.Qty--
	}
	line.Discount = money.ClampMax(line.Discount, line.Subtotal())
	if line.Qty == 0 && c.AutoRemoveAtZero {
		c.drop(productID, variantID)
	}
	return nil
}

// SetQty sets a line's quantity outright, used when the terminal edits the
// quantity field directly.
func (c *Cart) SetQty(productID, variantID string, qty int64) error {
	if qty < 0 {
		return ErrQtyNotPositive
	}
	line := c.find(productID, variantID)
	if line == nil {
		return ErrLineNotFound
	}
	line.Qty = qty
	line.Discount = money.ClampMax(line.Discount, line.Subtotal())
	if qty == 0 && c.AutoRemoveAtZero {
		c.drop(productID, variantID)
	}
	return nil
}

// SetLineDiscount resolves and stores a per-line discount. Inputs violating
// the line bounds are rejected and the line is left unchanged.
func (c *Cart) SetLineDiscount(productID, variantID string, in discount.LineInput) error {
	line := c.find(productID, variantID)
	if line == nil {
		return ErrLineNotFound
	}
	amount, err := discount.ResolveLine(in, line.UnitPrice, line.Qty)
	if err != nil {
		return fmt.Errorf("line %s: %w", line.Name, err)
	}
	line.Discount = amount
	line.DiscountIsPercent = in.IsPercent
	return nil
}

// ClearLineDiscount removes a line's discount.
func (c *Cart) ClearLineDiscount(productID, variantID string) error {
	line := c.find(productID, variantID)
	if line == nil {
		return ErrLineNotFound
	}
	line.Discount = 0
	line.DiscountIsPercent = false
	return nil
}

// Remove deletes a line unconditionally.
func (c *Cart) Remove(productID, variantID string) error {
	if c.find(productID, variantID) == nil {
		return ErrLineNotFound
	}
	c.drop(productID, variantID)
	return nil
}

// Clear empties the cart. Used on "Clear Sale".
func (c *Cart) Clear() {
	c.lines = nil
}

// Len reports the number of lines, zero-quantity rows included.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart holds no sellable quantity at all.
func (c *Cart) IsEmpty() bool {
	for _, l := range c.lines {
		if l.Qty > 0 {
			return false
		}
	}
	return true
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, *l)
	}
	return out
}

// Items reduces the cart to the shape the totals pipeline consumes.
func (c *Cart) Items() []discount.Item {
	out := make([]discount.Item, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, discount.Item{Qty: l.Qty, UnitPrice: l.UnitPrice, Discount: l.Discount})
	}
	return out
}

// Restore replaces the cart contents wholesale, used when resuming a draft.
func (c *Cart) Restore(lines []Line) {
	c.lines = make([]*Line, 0, len(lines))
	for i := range lines {
		line := lines[i]
		c.lines = append(c.lines, &line)
	}
}

func (c *Cart) find(productID, variantID string) *Line {
	for _, l := range c.lines {
		if l.matches(productID, variantID) {
			return l
		}
	}
	return nil
}

func (c *Cart) drop(productID, variantID string) {
	for i, l := range c.lines {
		if l.matches(productID, variantID) {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}
