// Package repository implements all database access for the ticketing system.
//
// Two backends are provided. The Postgres backend uses pgx directly (no ORM).
// The MySQL and SQLite backends share a gorm implementation. Both expose the
// same event CRUD, the purchase ledger reads, and the Transactor used by the
// purchase engine.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventHasPurchases is returned when deleting an event that the purchase
// ledger still references.
var ErrEventHasPurchases = errors.New("event has purchases")

// ErrCapacityBelowSold is returned when a capacity change would leave fewer
// seats than have already been sold.
var ErrCapacityBelowSold = errors.New("capacity is below tickets already sold")

// InventoryTx is the view of the store available inside one unit of work.
// It must not be used after the WithinTx callback returns.
type InventoryTx interface {
	// LockEventForUpdate reads the event and holds exclusive access to its
	// row until the unit of work ends. Returns ErrNotFound if missing.
	LockEventForUpdate(ctx context.Context, eventID int64) (*model.Event, error)

	// DecrementAvailable subtracts amount from the event's available tickets.
	DecrementAvailable(ctx context.Context, eventID int64, amount int) error

	// InsertPurchase appends a ledger row.
	InsertPurchase(ctx context.Context, eventID, userID int64, quantity int, at time.Time) (*model.Purchase, error)
}

// Transactor runs fn inside a single atomic unit of work. If fn returns an
// error, or the context ends before commit, every change is rolled back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx InventoryTx) error) error
}

// applyUpdate folds an admin change into e. A capacity change shifts the
// available count by the same delta so that capacity minus available keeps
// matching the ledger.
func applyUpdate(e *model.Event, upd model.EventUpdate) error {
	if upd.Name != nil {
		e.Name = *upd.Name
	}
	if upd.Date != nil {
		e.Date = *upd.Date
	}
	if upd.Capacity != nil {
		available := e.AvailableTickets + (*upd.Capacity - e.Capacity)
		if available < 0 {
			return ErrCapacityBelowSold
		}
		e.Capacity = *upd.Capacity
		e.AvailableTickets = available
	}
	return nil
}
