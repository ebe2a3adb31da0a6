package httpapi

import (
	"context"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-pos/internal/backend"
	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/draft"
	"github.com/noah-isme/backend-pos/internal/ledger"
	"github.com/noah-isme/backend-pos/internal/movement"
	"github.com/noah-isme/backend-pos/internal/session"
)

// writeError maps domain errors onto the canonical error envelope. Unknown
// errors are reported as INTERNAL without leaking their text.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		fieldErrs validator.ValidationErrors
		lineBound *discount.LineBoundError
		guard     *session.StockGuardError
		conflict  *movement.StockConflictError
		rejected  *backend.SubmitError
	)
	switch {
	case errors.As(err, &fieldErrs):
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", details)
	case errors.As(err, &guard):
		common.JSONError(w, http.StatusConflict, common.CodeStockConflict, guard.Error(), map[string]any{
			"productId": guard.ProductID,
			"requested": guard.Requested,
			"available": guard.Available,
		})
	case errors.As(err, &conflict):
		common.JSONError(w, http.StatusConflict, common.CodeStockConflict, conflict.Error(), map[string]any{
			"productId": conflict.ProductID,
			"requested": conflict.Requested,
			"available": conflict.Available,
		})
	case errors.As(err, &lineBound):
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), map[string]any{
			"amount":   lineBound.Amount,
			"subtotal": lineBound.Subtotal,
		})
	case errors.As(err, &rejected):
		common.JSONError(w, http.StatusConflict, common.CodeConflict, rejected.Message, map[string]any{
			"code":      rejected.Code,
			"productId": rejected.ProductID,
			"rule":      rejected.Rule,
		})
	case errors.Is(err, backend.ErrNetwork) || errors.Is(err, catalog.ErrNetwork) ||
		errors.Is(err, context.DeadlineExceeded):
		common.JSONError(w, http.StatusBadGateway, common.CodeNetwork, "backend unreachable", nil)
	case errors.Is(err, session.ErrCompleted) || errors.Is(err, session.ErrFinalizeInFlight) ||
		errors.Is(err, session.ErrNotFinalizable) || errors.Is(err, session.ErrDraftCompleted) ||
		errors.Is(err, movement.ErrTerminalState):
		common.JSONError(w, http.StatusConflict, common.CodeConflict, err.Error(), nil)
	case errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, draft.ErrNotFound) ||
		errors.Is(err, catalog.ErrNotFound) || errors.Is(err, cart.ErrLineNotFound) ||
		errors.Is(err, ledger.ErrPaymentNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, err.Error(), nil)
	case errors.Is(err, errBadJSON):
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
	case isValidation(err):
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
	default:
		h.Logger.Error().Err(err).Msg("unhandled request error")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
	}
}

func isValidation(err error) bool {
	for _, sentinel := range []error{
		cart.ErrQtyNotPositive,
		cart.ErrNegativePrice,
		cart.ErrEmptyProductID,
		ledger.ErrAmountNotPositive,
		ledger.ErrUnknownMethod,
		ledger.ErrNothingRemaining,
		discount.ErrPercentOutOfRange,
		discount.ErrAmountNotPositive,
		discount.ErrUnknownKind,
		movement.ErrSameStore,
		movement.ErrStoreRequired,
		movement.ErrNoItems,
		movement.ErrQtyNotPositive,
		movement.ErrReasonRequired,
		movement.ErrUnknownType,
		draft.ErrEmptyTicketID,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
