package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
)

// Routes mounts every API endpoint under /v1.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(v chi.Router) {
		v.Route("/sessions", func(s chi.Router) {
			s.Post("/", h.CreateSession)
			s.Route("/{id}", func(one chi.Router) {
				one.Get("/", h.GetSession)
				one.Delete("/", h.DeleteSession)
				one.Post("/items", h.AddItem)
				one.Post("/items/{productID}/increment", h.IncrementItem)
				one.Post("/items/{productID}/decrement", h.DecrementItem)
				one.Delete("/items/{productID}", h.RemoveItem)
				one.Put("/items/{productID}/discount", h.SetLineDiscount)
				one.Delete("/items/{productID}/discount", h.ClearLineDiscount)
				one.Put("/discount", h.SetOrderDiscount)
				one.Post("/payments", h.AddPayment)
				one.Post("/payments/exact", h.PayExact)
				one.Delete("/payments/{paymentID}", h.RemovePayment)
				one.Post("/clear", h.ClearSale)
				one.Post("/finalize", h.Finalize)
				one.Post("/draft", h.SaveDraft)
			})
		})
		v.Route("/drafts", func(d chi.Router) {
			d.Get("/", h.ListDrafts)
			d.Post("/{ticketID}/resume", h.ResumeDraft)
			d.Delete("/{ticketID}", h.DeleteDraft)
		})
		v.Post("/transfers/validate", h.ValidateTransfer)
		v.Post("/transfers", h.SubmitTransfer)
		v.Post("/adjustments", h.SubmitAdjustment)
		v.Get("/events", h.RecentEvents)
	})
}

// RecentEvents exposes the in-process event tail for operator tooling.
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		common.JSONData(w, http.StatusOK, map[string]any{"events": []events.Event{}})
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	common.JSONData(w, http.StatusOK, map[string]any{"events": h.Events.Recent(limit)})
}
