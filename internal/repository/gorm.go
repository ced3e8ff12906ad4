package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// eventRecord is the gorm mapping of the events table.
type eventRecord struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	Name             string    `gorm:"not null"`
	Date             time.Time `gorm:"not null;index"`
	Capacity         int       `gorm:"not null"`
	AvailableTickets int       `gorm:"column:available_tickets;not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

func (eventRecord) TableName() string {
	return "events"
}

func (r eventRecord) toModel() *model.Event {
	return &model.Event{
		ID:               r.ID,
		Name:             r.Name,
		Date:             r.Date.UTC(),
		Capacity:         r.Capacity,
		AvailableTickets: r.AvailableTickets,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

// purchaseRecord is the gorm mapping of the purchases table.
type purchaseRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	EventID      int64     `gorm:"column:event_id;not null;index"`
	UserID       int64     `gorm:"column:user_id;not null;index"`
	Quantity     int       `gorm:"not null"`
	PurchaseDate time.Time `gorm:"column:purchase_date;not null"`
}

func (purchaseRecord) TableName() string {
	return "purchases"
}

func (r purchaseRecord) toModel() *model.Purchase {
	return &model.Purchase{
		ID:           r.ID,
		EventID:      r.EventID,
		UserID:       r.UserID,
		Quantity:     r.Quantity,
		PurchaseDate: r.PurchaseDate.UTC(),
	}
}

// MigrateGorm creates or updates the events and purchases tables.
func MigrateGorm(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&eventRecord{}, &purchaseRecord{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// forUpdate adds SELECT … FOR UPDATE. The SQLite dialect drops the clause;
// there the transaction itself already holds the database write lock.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// GormEventRepository handles persistence for events on MySQL or SQLite.
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository constructs a GormEventRepository.
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// Create inserts a new event. Available tickets start equal to capacity.
func (r *GormEventRepository) Create(ctx context.Context, e model.Event) (*model.Event, error) {
	rec := eventRecord{
		Name:             e.Name,
		Date:             e.Date.UTC(),
		Capacity:         e.Capacity,
		AvailableTickets: e.Capacity,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return rec.toModel(), nil
}

// ListAvailable returns events that still have tickets, soonest first.
func (r *GormEventRepository) ListAvailable(ctx context.Context) ([]model.Event, error) {
	return r.list(r.db.WithContext(ctx).Where("available_tickets > 0"))
}

// List returns every event, soonest first.
func (r *GormEventRepository) List(ctx context.Context) ([]model.Event, error) {
	return r.list(r.db.WithContext(ctx))
}

func (r *GormEventRepository) list(q *gorm.DB) ([]model.Event, error) {
	var recs []eventRecord
	if err := q.Order("date ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	var events []model.Event
	for _, rec := range recs {
		events = append(events, *rec.toModel())
	}
	return events, nil
}

// GetByID returns a single event or ErrNotFound.
func (r *GormEventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	var rec eventRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return rec.toModel(), nil
}

// Update applies an admin change while holding the event row lock.
func (r *GormEventRepository) Update(ctx context.Context, id int64, upd model.EventUpdate) (*model.Event, error) {
	var updated *model.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec eventRecord
		if err := tx.Clauses(forUpdate).Where("id = ?", id).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lock event row: %w", err)
		}

		e := rec.toModel()
		if err := applyUpdate(e, upd); err != nil {
			return err
		}

		err := tx.Model(&eventRecord{}).Where("id = ?", id).Updates(map[string]any{
			"name":              e.Name,
			"date":              e.Date,
			"capacity":          e.Capacity,
			"available_tickets": e.AvailableTickets,
		}).Error
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an event. Events referenced by the ledger cannot be deleted.
// The row lock keeps a concurrent purchase from slipping in between the
// ledger check and the delete.
func (r *GormEventRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec eventRecord
		if err := tx.Clauses(forUpdate).Where("id = ?", id).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lock event row: %w", err)
		}

		var sold int64
		if err := tx.Model(&purchaseRecord{}).Where("event_id = ?", id).Count(&sold).Error; err != nil {
			return fmt.Errorf("count purchases: %w", err)
		}
		if sold > 0 {
			return ErrEventHasPurchases
		}

		if err := tx.Delete(&eventRecord{}, id).Error; err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

// GormPurchaseRepository handles the purchase ledger on MySQL or SQLite and
// provides the transaction boundary used by the purchase engine.
type GormPurchaseRepository struct {
	db *gorm.DB
}

// NewGormPurchaseRepository constructs a GormPurchaseRepository.
func NewGormPurchaseRepository(db *gorm.DB) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

// WithinTx runs fn in a single gorm transaction. gorm rolls back when fn
// returns an error or panics, and commits otherwise.
func (r *GormPurchaseRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx InventoryTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormInventoryTx{db: tx})
	})
}

// ListByUser returns a user's purchases, newest first.
func (r *GormPurchaseRepository) ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	var recs []purchaseRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchase_date DESC, id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	var purchases []model.Purchase
	for _, rec := range recs {
		purchases = append(purchases, *rec.toModel())
	}
	return purchases, nil
}

type gormInventoryTx struct {
	db *gorm.DB
}

func (t *gormInventoryTx) LockEventForUpdate(ctx context.Context, eventID int64) (*model.Event, error) {
	var rec eventRecord
	err := t.db.WithContext(ctx).Clauses(forUpdate).Where("id = ?", eventID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return rec.toModel(), nil
}

func (t *gormInventoryTx) DecrementAvailable(ctx context.Context, eventID int64, amount int) error {
	err := t.db.WithContext(ctx).
		Model(&eventRecord{}).
		Where("id = ?", eventID).
		Update("available_tickets", gorm.Expr("available_tickets - ?", amount)).Error
	if err != nil {
		return fmt.Errorf("decrement available_tickets: %w", err)
	}
	return nil
}

func (t *gormInventoryTx) InsertPurchase(ctx context.Context, eventID, userID int64, quantity int, at time.Time) (*model.Purchase, error) {
	rec := purchaseRecord{
		EventID:      eventID,
		UserID:       userID,
		Quantity:     quantity,
		PurchaseDate: at.UTC(),
	}
	if err := t.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}
	return rec.toModel(), nil
}
