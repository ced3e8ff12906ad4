package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Shivanand-hulikatti/tigertix/internal/auth"
	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/Shivanand-hulikatti/tigertix/internal/purchase"
	"github.com/Shivanand-hulikatti/tigertix/internal/service"
)

// BookingHandler serves both ways of buying tickets. Each one decodes its
// request and hands it to the same BookingService.
type BookingHandler struct {
	svc *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// Purchase handles POST /api/client/purchase.
func (h *BookingHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	res, ok := h.purchase(w, r, "Failed to purchase tickets")
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, model.PurchaseResponse{
		Message:   "Purchase successful",
		Purchase:  res.Purchase,
		Remaining: res.Remaining,
	})
}

// ConfirmBooking handles POST /api/llm/confirm_booking, the booking a user
// confirmed after the assistant proposed it.
func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	res, ok := h.purchase(w, r, "Failed to confirm booking")
	if !ok {
		return
	}
	q := res.Purchase.Quantity
	writeJSON(w, http.StatusOK, model.BookingResponse{
		Success:   true,
		Message:   fmt.Sprintf("Successfully booked %d ticket(s) for %s", q, res.EventName),
		Purchase:  res.Purchase,
		EventName: res.EventName,
		Quantity:  q,
		Remaining: res.Remaining,
	})
}

// ListPurchases handles GET /api/client/purchases.
func (h *BookingHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: missing user context")
		return
	}

	purchases, err := h.svc.ListPurchases(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list purchases")
		return
	}
	if purchases == nil {
		purchases = []model.Purchase{}
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (h *BookingHandler) purchase(w http.ResponseWriter, r *http.Request, failMsg string) (*purchase.Result, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: missing user context")
		return nil, false
	}

	var req model.PurchaseRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return nil, false
	}

	res, err := h.svc.Purchase(r.Context(), user.ID, req)
	if err != nil {
		writePurchaseError(w, err, failMsg)
		return nil, false
	}
	return res, true
}

func writePurchaseError(w http.ResponseWriter, err error, failMsg string) {
	var pe *purchase.Error
	if !errors.As(err, &pe) {
		writeError(w, http.StatusInternalServerError, failMsg)
		return
	}

	switch pe.Kind {
	case purchase.KindInvalidQuantity, purchase.KindInvalidRequest:
		writeError(w, http.StatusBadRequest, pe.Msg)
	case purchase.KindEventNotFound:
		writeError(w, http.StatusNotFound, pe.Msg)
	case purchase.KindInsufficientInventory:
		remaining := pe.Remaining
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: pe.Msg, Remaining: &remaining})
	default:
		writeError(w, http.StatusInternalServerError, failMsg)
	}
}
