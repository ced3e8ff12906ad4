// Package model defines the core domain types for the ticketing system.
package model

import (
	"encoding/json"
	"time"
)

// Event represents a ticketed occurrence with finite capacity.
type Event struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Date             time.Time `json:"date"`
	Capacity         int       `json:"capacity"`
	AvailableTickets int       `json:"available_tickets"`
	CreatedAt        time.Time `json:"created_at"`
}

// Sold returns the number of tickets already sold.
func (e *Event) Sold() int {
	return e.Capacity - e.AvailableTickets
}

// SoldOut returns true when no tickets remain.
func (e *Event) SoldOut() bool {
	return e.AvailableTickets <= 0
}

// Purchase is a ledger entry recording tickets sold to a user for an event.
// Once written it is never modified.
type Purchase struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	UserID       int64     `json:"user_id"`
	Quantity     int       `json:"quantity"`
	PurchaseDate time.Time `json:"purchase_date"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	Capacity int    `json:"capacity"`
}

// UpdateEventRequest is the payload for updating an event. Nil fields are
// left unchanged. Available tickets are not directly writable.
type UpdateEventRequest struct {
	Name     *string `json:"name,omitempty"`
	Date     *string `json:"date,omitempty"`
	Capacity *int    `json:"capacity,omitempty"`
}

// EventUpdate is the validated form of UpdateEventRequest handed to stores.
type EventUpdate struct {
	Name     *string
	Date     *time.Time
	Capacity *int
}

// PurchaseRequest is the payload for buying tickets. Both fields are kept as
// raw JSON: clients send numbers, numeric strings and worse, and every shape
// has to be classified by the booking service rather than fail decoding.
type PurchaseRequest struct {
	EventID  json.RawMessage `json:"event_id"`
	Quantity json.RawMessage `json:"quantity"`
}

// PurchaseResponse is returned by the direct purchase endpoint.
type PurchaseResponse struct {
	Message   string    `json:"message"`
	Purchase  *Purchase `json:"purchase"`
	Remaining int       `json:"remaining"`
}

// BookingResponse is returned by the confirmed-booking endpoint.
type BookingResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Purchase  *Purchase `json:"purchase"`
	EventName string    `json:"event_name"`
	Quantity  int       `json:"quantity"`
	Remaining int       `json:"remaining"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	Remaining *int   `json:"remaining,omitempty"`
}

// AuthErrorResponse is written when a bearer token is missing or invalid.
type AuthErrorResponse struct {
	Error        string `json:"error"`
	RequiresAuth bool   `json:"requiresAuth"`
	Expired      bool   `json:"expired,omitempty"`
}
