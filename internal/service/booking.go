package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/Shivanand-hulikatti/tigertix/internal/purchase"
)

// Purchaser sells tickets. Implemented by *purchase.Engine.
type Purchaser interface {
	Purchase(ctx context.Context, req purchase.Request) (*purchase.Result, error)
}

// PurchaseStore reads the purchase ledger.
type PurchaseStore interface {
	ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error)
}

// BookingService is the single entry point for selling tickets. Both the
// direct purchase endpoint and the confirmed-booking endpoint go through it,
// so there is exactly one purchase code path.
type BookingService struct {
	engine    Purchaser
	purchases PurchaseStore
}

// NewBookingService constructs a BookingService.
func NewBookingService(engine Purchaser, purchases PurchaseStore) *BookingService {
	return &BookingService{engine: engine, purchases: purchases}
}

// Purchase validates the request shape and sells tickets to userID.
// Errors are *purchase.Error values.
func (s *BookingService) Purchase(ctx context.Context, userID int64, req model.PurchaseRequest) (*purchase.Result, error) {
	quantity, err := parseQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}
	eventID, err := parseEventID(req.EventID)
	if err != nil {
		return nil, err
	}
	return s.engine.Purchase(ctx, purchase.Request{
		EventID:  eventID,
		UserID:   userID,
		Quantity: quantity,
	})
}

// ListPurchases returns the caller's ledger rows, newest first.
func (s *BookingService) ListPurchases(ctx context.Context, userID int64) ([]model.Purchase, error) {
	if userID <= 0 {
		return nil, invalid("user id is required")
	}
	return s.purchases.ListByUser(ctx, userID)
}

func parseEventID(raw json.RawMessage) (int64, error) {
	text, ok := integerText(raw)
	if !ok {
		return 0, purchase.InvalidRequest("event_id must be a positive integer")
	}
	if text == "" {
		return 0, purchase.InvalidRequest("Missing required field: event_id")
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, purchase.InvalidRequest("event_id must be a positive integer")
	}
	return id, nil
}

func parseQuantity(raw json.RawMessage) (int, error) {
	text, ok := integerText(raw)
	if !ok {
		return 0, purchase.InvalidQuantity("Quantity must be a positive integer")
	}
	if text == "" {
		return 0, purchase.InvalidQuantity("Missing required field: quantity")
	}
	q, err := strconv.Atoi(text)
	if err != nil || q <= 0 {
		return 0, purchase.InvalidQuantity("Quantity must be a positive integer")
	}
	return q, nil
}

// integerText extracts the text of a JSON number or string field, trimmed.
// An absent, null or blank field yields "". ok is false for any other JSON
// type (bool, object, array) or malformed input.
func integerText(raw json.RawMessage) (text string, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}

	switch v := v.(type) {
	case json.Number:
		return v.String(), true
	case string:
		return strings.TrimSpace(v), true
	default:
		return "", false
	}
}
