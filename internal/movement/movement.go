package movement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/stock"
)

// Status tracks the lifecycle of a pending movement.
type Status string

const (
	// StatusPending is the initial, editable state.
	StatusPending Status = "pending"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled (a.k.a. "held") is terminal.
	StatusCancelled Status = "cancelled"
)

// Type distinguishes adjustment directions.
type Type string

const (
	// TypeAddition increases recorded stock.
	TypeAddition Type = "addition"
	// TypeSubtraction decreases recorded stock.
	TypeSubtraction Type = "subtraction"
)

var (
	// ErrTerminalState is returned when transitioning an already settled movement.
	ErrTerminalState = errors.New("movement: already in a terminal state")
	// ErrSameStore is returned when a transfer names one store on both ends.
	ErrSameStore = errors.New("movement: source and destination store must differ")
	// ErrStoreRequired is returned when a required store id is missing.
	ErrStoreRequired = errors.New("movement: store id is required")
	// ErrNoItems is returned for movements carrying no items.
	ErrNoItems = errors.New("movement: at least one item is required")
	// ErrQtyNotPositive is returned for non-positive item quantities.
	ErrQtyNotPositive = errors.New("movement: item quantity must be positive")
	// ErrReasonRequired is returned when an adjustment item lacks an audit reason.
	ErrReasonRequired = errors.New("movement: a reason of at least 3 characters is required")
	// ErrUnknownType is returned for unrecognised adjustment types.
	ErrUnknownType = errors.New("movement: unknown adjustment type")
)

// StockConflictError reports a requested quantity exceeding resolvable stock,
// naming the product and the quantity actually available.
type StockConflictError struct {
	ProductID string
	Requested stock.Quantity
	Available stock.Quantity
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("movement: product %s: requested %d exceeds available %d",
		e.ProductID, e.Requested, e.Available)
}

// Item is one product quantity inside a movement. Reason is mandatory for
// adjustments and ignored for transfers.
type Item struct {
	ProductID string
	Qty       stock.Quantity
	Reason    string
}

// Transfer moves stock between two stores. Transfers never oversell: an
// indeterminate source stock blocks the transfer.
type Transfer struct {
	ID            string
	SourceStoreID string
	DestStoreID   string
	Items         []Item
	Status        Status
}

// NewTransfer starts a pending transfer.
func NewTransfer(sourceStoreID, destStoreID string, items []Item) *Transfer {
	return &Transfer{
		ID:            uuid.NewString(),
		SourceStoreID: sourceStoreID,
		DestStoreID:   destStoreID,
		Items:         items,
		Status:        StatusPending,
	}
}

// Complete marks the transfer settled. Terminal states do not transition.
func (t *Transfer) Complete() error {
	if t.Status != StatusPending {
		return ErrTerminalState
	}
	t.Status = StatusCompleted
	return nil
}

// Cancel holds the transfer. Terminal states do not transition.
func (t *Transfer) Cancel() error {
	if t.Status != StatusPending {
		return ErrTerminalState
	}
	t.Status = StatusCancelled
	return nil
}

// Adjustment directly corrects a store's recorded stock. Every item carries
// an audit reason.
type Adjustment struct {
	ID      string
	StoreID string
	Type    Type
	Items   []Item
	Status  Status
}

// NewAdjustment starts a pending adjustment.
func NewAdjustment(storeID string, typ Type, items []Item) *Adjustment {
	return &Adjustment{
		ID:      uuid.NewString(),
		StoreID: storeID,
		Type:    typ,
		Items:   items,
		Status:  StatusPending,
	}
}

// Complete marks the adjustment applied. Terminal states do not transition.
func (a *Adjustment) Complete() error {
	if a.Status != StatusPending {
		return ErrTerminalState
	}
	a.Status = StatusCompleted
	return nil
}

// Cancel discards the adjustment. Terminal states do not transition.
func (a *Adjustment) Cancel() error {
	if a.Status != StatusPending {
		return ErrTerminalState
	}
	a.Status = StatusCancelled
	return nil
}

// StockLookup supplies raw catalog records for availability resolution.
type StockLookup interface {
	ProductRecord(ctx context.Context, productID string) (stock.Record, error)
}

// Validator checks stock conservation for transfers and adjustments before
// they are submitted to the backend of record.
type Validator struct {
	Stock StockLookup
}

// ValidateTransfer checks a pending transfer. All rules run before anything
// is mutated; the first violation is returned.
func (v *Validator) ValidateTransfer(ctx context.Context, t *Transfer) error {
	if t.Status != StatusPending {
		return ErrTerminalState
	}
	if strings.TrimSpace(t.SourceStoreID) == "" || strings.TrimSpace(t.DestStoreID) == "" {
		return ErrStoreRequired
	}
	if strings.EqualFold(t.SourceStoreID, t.DestStoreID) {
		return ErrSameStore
	}
	if len(t.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range t.Items {
		if it.Qty <= 0 {
			return fmt.Errorf("product %s: %w", it.ProductID, ErrQtyNotPositive)
		}
		// Transfers never oversell, whatever the record says.
		available, _, err := v.available(ctx, it.ProductID, t.SourceStoreID)
		if err != nil {
			return err
		}
		if it.Qty > available {
			return &StockConflictError{ProductID: it.ProductID, Requested: it.Qty, Available: available}
		}
	}
	return nil
}

// ValidateAdjustment checks a pending adjustment. Additions accept any
// positive quantity; subtractions are bounded by current store stock. Every
// item needs an audit reason of at least 3 characters.
func (v *Validator) ValidateAdjustment(ctx context.Context, a *Adjustment) error {
	if a.Status != StatusPending {
		return ErrTerminalState
	}
	if strings.TrimSpace(a.StoreID) == "" {
		return ErrStoreRequired
	}
	if a.Type != TypeAddition && a.Type != TypeSubtraction {
		return ErrUnknownType
	}
	if len(a.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range a.Items {
		if it.Qty <= 0 {
			return fmt.Errorf("product %s: %w", it.ProductID, ErrQtyNotPositive)
		}
		if len(strings.TrimSpace(it.Reason)) < 3 {
			return fmt.Errorf("product %s: %w", it.ProductID, ErrReasonRequired)
		}
		if a.Type != TypeSubtraction {
			continue
		}
		available, oversell, err := v.available(ctx, it.ProductID, a.StoreID)
		if err != nil {
			return err
		}
		if oversell {
			continue
		}
		if it.Qty > available {
			return &StockConflictError{ProductID: it.ProductID, Requested: it.Qty, Available: available}
		}
	}
	return nil
}

// available resolves stock with the blocking policy: movements treat an
// indeterminate figure as zero rather than skip conservation. The oversell
// flag is honoured only by adjustments.
func (v *Validator) available(ctx context.Context, productID, storeID string) (stock.Quantity, bool, error) {
	if v == nil || v.Stock == nil {
		return 0, false, errors.New("movement: stock lookup not configured")
	}
	rec, err := v.Stock.ProductRecord(ctx, productID)
	if err != nil {
		return 0, false, err
	}
	qty, ok := stock.Resolve(rec, storeID)
	limit, _ := stock.Blocking.Limit(qty, ok)
	return limit, stock.AllowOversell(rec), nil
}

// NextQuantity projects the store quantity after an adjustment item is
// applied. Used for previews; the backend of record stays authoritative.
func NextQuantity(current stock.Quantity, typ Type, qty stock.Quantity) stock.Quantity {
	switch typ {
	case TypeAddition:
		return current + qty
	case TypeSubtraction:
		next := current - qty
		if next < 0 {
			return 0
		}
		return next
	default:
		return current
	}
}
