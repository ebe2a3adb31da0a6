package ledger

import (
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/money"
)

// Method identifies how a tender was taken.
type Method string

const (
	// MethodCash is physical cash.
	MethodCash Method = "cash"
	// MethodCard is a card terminal capture.
	MethodCard Method = "card"
	// MethodTransfer is a bank transfer.
	MethodTransfer Method = "transfer"
)

// ErrAmountNotPositive rejects zero or negative tenders.
var ErrAmountNotPositive = errors.New("ledger: payment amount must be positive")

// ErrUnknownMethod rejects unrecognised tender methods.
var ErrUnknownMethod = errors.New("ledger: unknown payment method")

// ErrPaymentNotFound indicates no payment matches the given id.
var ErrPaymentNotFound = errors.New("ledger: payment not found")

// ErrNothingRemaining is returned by PayExact when the balance is already settled.
var ErrNothingRemaining = errors.New("ledger: nothing remaining to pay")

// Payment is one recorded tender. Payments are never mutated after creation;
// before finalization they can only be removed outright.
type Payment struct {
	ID        string      `json:"id"`
	Method    Method      `json:"method"`
	Amount    money.Money `json:"amount"`
	Reference string      `json:"reference,omitempty"`
}

// Ledger owns the tendered payments of one transaction.
type Ledger struct {
	payments []Payment
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Add records a tender. Over-payment is allowed; the remaining balance simply
// goes negative and settlement gating stays on remaining <= 0.
func (l *Ledger) Add(method Method, amount money.Money, reference string) (Payment, error) {
	if amount <= 0 {
		return Payment{}, ErrAmountNotPositive
	}
	switch method {
	case MethodCash, MethodCard, MethodTransfer:
	default:
		return Payment{}, ErrUnknownMethod
	}
	p := Payment{
		ID:        uuid.NewString(),
		Method:    method,
		Amount:    amount,
		Reference: reference,
	}
	l.payments = append(l.payments, p)
	return p, nil
}

// Remove deletes a payment by identity.
func (l *Ledger) Remove(id string) error {
	for i, p := range l.payments {
		if p.ID == id {
			l.payments = append(l.payments[:i], l.payments[i+1:]...)
			return nil
		}
	}
	return ErrPaymentNotFound
}

// PayExact records a single cash tender covering the current remaining
// balance. Only valid while something remains to pay.
func (l *Ledger) PayExact(grandTotal money.Money) (Payment, error) {
	remaining := l.Remaining(grandTotal)
	if remaining <= 0 {
		return Payment{}, ErrNothingRemaining
	}
	return l.Add(MethodCash, remaining, "")
}

// Sum is the total tendered so far.
func (l *Ledger) Sum() money.Money {
	var sum money.Money
	for _, p := range l.payments {
		sum += p.Amount
	}
	return sum
}

// Remaining is the balance still owed against the grand total. Negative
// means over-payment (change due).
func (l *Ledger) Remaining(grandTotal money.Money) money.Money {
	return grandTotal - l.Sum()
}

// CanFinalize reports whether the transaction is settleable: the balance is
// covered and the cart is not empty.
func (l *Ledger) CanFinalize(grandTotal money.Money, cartEmpty bool) bool {
	return !cartEmpty && l.Remaining(grandTotal) <= 0
}

// Payments returns a copy of the recorded tenders in entry order.
func (l *Ledger) Payments() []Payment {
	out := make([]Payment, len(l.payments))
	copy(out, l.payments)
	return out
}

// Restore replaces the ledger contents wholesale, used when resuming a draft.
func (l *Ledger) Restore(payments []Payment) {
	l.payments = make([]Payment, len(payments))
	copy(l.payments, payments)
}
