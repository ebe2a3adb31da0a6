package httpapi

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-pos/internal/backend"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/movement"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/stock"
)

type movementItemPayload struct {
	ProductID string `json:"productId" validate:"required"`
	Qty       int64  `json:"qty" validate:"gt=0"`
	Reason    string `json:"reason"`
}

func movementItems(payload []movementItemPayload) []movement.Item {
	items := make([]movement.Item, 0, len(payload))
	for _, it := range payload {
		items = append(items, movement.Item{
			ProductID: it.ProductID,
			Qty:       stock.Quantity(it.Qty),
			Reason:    it.Reason,
		})
	}
	return items
}

// ValidateTransfer runs the transfer checks without submitting anything.
func (h *Handler) ValidateTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := h.decodeTransfer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Movements.ValidateTransfer(r.Context(), t); err != nil {
		h.countRejection("movement", err)
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"valid": true})
}

// SubmitTransfer validates, submits and completes a stock transfer.
func (h *Handler) SubmitTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := h.decodeTransfer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Movements.ValidateTransfer(r.Context(), t); err != nil {
		h.countMovement("transfer", "rejected")
		h.countRejection("movement", err)
		h.writeError(w, err)
		return
	}
	req := backend.MovementRequest{
		SourceStoreID:      t.SourceStoreID,
		DestinationStoreID: t.DestStoreID,
		Type:               "transfer",
		Items:              backendItems(t.Items),
	}
	started := time.Now()
	ack, err := h.Backend.SubmitMovement(r.Context(), req)
	h.observeSubmit("movement", started)
	if err != nil {
		h.countMovement("transfer", "failed")
		h.writeError(w, err)
		return
	}
	if err := t.Complete(); err != nil {
		h.writeError(w, err)
		return
	}
	h.countMovement("transfer", "ok")
	if h.Bus != nil {
		if _, err := h.Bus.Emit(r.Context(), events.TopicTransferCompleted, t.ID, map[string]any{
			"movementId":  ack.MovementID,
			"sourceStore": t.SourceStoreID,
			"destStore":   t.DestStoreID,
		}); err != nil {
			h.Logger.Error().Err(err).Msg("emit transfer.completed")
		}
	}
	h.invalidateMovement(r, t.Items)
	common.JSONData(w, http.StatusCreated, map[string]any{
		"id":         t.ID,
		"movementId": ack.MovementID,
		"status":     t.Status,
	})
}

// SubmitAdjustment validates, submits and completes a stock adjustment.
func (h *Handler) SubmitAdjustment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		StoreID string                `json:"storeId" validate:"required"`
		Type    string                `json:"type" validate:"required,oneof=addition subtraction"`
		Items   []movementItemPayload `json:"items" validate:"required,min=1,dive"`
	}
	if err := h.decode(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	a := movement.NewAdjustment(payload.StoreID, movement.Type(payload.Type), movementItems(payload.Items))
	if err := h.Movements.ValidateAdjustment(r.Context(), a); err != nil {
		h.countMovement("adjustment", "rejected")
		h.countRejection("movement", err)
		h.writeError(w, err)
		return
	}
	req := backend.MovementRequest{
		Type:  string(a.Type),
		Items: backendItems(a.Items),
	}
	// Direction decides which end of the movement the store sits on.
	if a.Type == movement.TypeSubtraction {
		req.SourceStoreID = a.StoreID
	} else {
		req.DestinationStoreID = a.StoreID
	}
	started := time.Now()
	ack, err := h.Backend.SubmitMovement(r.Context(), req)
	h.observeSubmit("movement", started)
	if err != nil {
		h.countMovement("adjustment", "failed")
		h.writeError(w, err)
		return
	}
	if err := a.Complete(); err != nil {
		h.writeError(w, err)
		return
	}
	h.countMovement("adjustment", "ok")
	if h.Bus != nil {
		if _, err := h.Bus.Emit(r.Context(), events.TopicAdjustmentApplied, a.ID, map[string]any{
			"movementId": ack.MovementID,
			"storeId":    a.StoreID,
			"type":       a.Type,
		}); err != nil {
			h.Logger.Error().Err(err).Msg("emit adjustment.applied")
		}
	}
	h.invalidateMovement(r, a.Items)
	common.JSONData(w, http.StatusCreated, map[string]any{
		"id":         a.ID,
		"movementId": ack.MovementID,
		"status":     a.Status,
	})
}

func (h *Handler) decodeTransfer(r *http.Request) (*movement.Transfer, error) {
	var payload struct {
		SourceStoreID      string                `json:"sourceStoreId" validate:"required"`
		DestinationStoreID string                `json:"destinationStoreId" validate:"required"`
		Items              []movementItemPayload `json:"items" validate:"required,min=1,dive"`
	}
	if err := h.decode(r, &payload); err != nil {
		return nil, err
	}
	return movement.NewTransfer(payload.SourceStoreID, payload.DestinationStoreID, movementItems(payload.Items)), nil
}

func backendItems(items []movement.Item) []backend.MovementItem {
	out := make([]backend.MovementItem, 0, len(items))
	for _, it := range items {
		out = append(out, backend.MovementItem{
			ProductID: it.ProductID,
			Quantity:  int64(it.Qty),
			Reason:    it.Reason,
		})
	}
	return out
}

func (h *Handler) invalidateMovement(r *http.Request, items []movement.Item) {
	if h.Catalog == nil {
		return
	}
	for _, it := range items {
		h.Catalog.InvalidateProduct(r.Context(), it.ProductID)
	}
}

func (h *Handler) countMovement(typ, result string) {
	if obs.MovementSubmitTotal != nil {
		obs.MovementSubmitTotal.WithLabelValues(typ, result).Inc()
	}
}

func (h *Handler) observeSubmit(kind string, started time.Time) {
	if obs.BackendSubmitLatency != nil {
		obs.BackendSubmitLatency.WithLabelValues(kind).Observe(obs.DurationMillis(time.Since(started)))
	}
}
