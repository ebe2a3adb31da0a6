package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/session"
)

// SaveDraft parks the session as a saved ticket. The session stays open; the
// draft is a point-in-time copy keyed by the session id.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	data, err := s.MarshalDraft()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Drafts.Save(r.Context(), s.ID, data); err != nil {
		h.writeError(w, err)
		return
	}
	if obs.DraftOpsTotal != nil {
		obs.DraftOpsTotal.WithLabelValues("save").Inc()
	}
	if h.Bus != nil {
		if _, err := h.Bus.Emit(r.Context(), events.TopicDraftSaved, s.ID, map[string]any{
			"storeId": s.StoreID,
		}); err != nil {
			h.Logger.Error().Err(err).Msg("emit draft.saved")
		}
	}
	common.JSONData(w, http.StatusCreated, map[string]any{"ticketId": s.ID})
}

// ListDrafts returns the ticket ids currently parked.
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Drafts.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"tickets": ids})
}

// ResumeDraft rebuilds a live session from a saved ticket. The restored
// snapshot is identical to the one at save time; the ticket is consumed.
func (h *Handler) ResumeDraft(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	data, err := h.Drafts.Load(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s, err := session.RestoreDraft(data, session.Config{
		AutoRemoveAtZero: h.AutoRemoveAtZero,
		RevalidateStock:  h.RevalidateStock,
	}, h.stockLookup())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Sessions.Put(s)
	if err := h.Drafts.Delete(r.Context(), ticketID); err != nil {
		h.Logger.Error().Err(err).Str("ticket_id", ticketID).Msg("delete consumed draft")
	}
	if obs.DraftOpsTotal != nil {
		obs.DraftOpsTotal.WithLabelValues("resume").Inc()
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// DeleteDraft discards a saved ticket without resuming it.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.Drafts.Delete(r.Context(), chi.URLParam(r, "ticketID")); err != nil {
		h.writeError(w, err)
		return
	}
	if obs.DraftOpsTotal != nil {
		obs.DraftOpsTotal.WithLabelValues("delete").Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}
