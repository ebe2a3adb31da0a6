package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/ledger"
)

// ErrDraftCompleted refuses to save a ticket for a settled transaction.
var ErrDraftCompleted = errors.New("session: cannot draft a completed transaction")

// Draft is the serialized save-ticket shape. Restoring a draft reproduces an
// identical snapshot.
type Draft struct {
	SessionID     string            `json:"sessionId"`
	StoreID       string            `json:"storeId"`
	Customer      Customer          `json:"customer"`
	Items         []cart.Line       `json:"items"`
	OrderDiscount discount.Order    `json:"orderDiscount"`
	Payments      []ledger.Payment  `json:"payments"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	SavedAt       time.Time         `json:"savedAt"`
}

// MarshalDraft serializes the session for the persisted-draft store.
func (s *Session) MarshalDraft() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return nil, ErrDraftCompleted
	}
	d := Draft{
		SessionID:     s.ID,
		StoreID:       s.StoreID,
		Customer:      s.Customer,
		Items:         s.cart.Lines(),
		OrderDiscount: s.order,
		Payments:      s.led.Payments(),
		Metadata:      s.Metadata,
		SavedAt:       s.Now(),
	}
	return json.Marshal(d)
}

// RestoreDraft rebuilds a session from a serialized draft. The restored
// session picks up where the ticket left off, including recorded tenders.
// Identity and state come from the ticket; behaviour flags come from cfg,
// since drafts outlive deployments and the flags are not serialized.
func RestoreDraft(data []byte, cfg Config, stockLookup StockLookup) (*Session, error) {
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	cfg.StoreID = d.StoreID
	cfg.Customer = d.Customer
	s := New(cfg, stockLookup)
	if d.SessionID != "" {
		s.ID = d.SessionID
	}
	s.Metadata = d.Metadata
	s.cart.Restore(d.Items)
	s.order = d.OrderDiscount
	s.led.Restore(d.Payments)
	return s, nil
}
