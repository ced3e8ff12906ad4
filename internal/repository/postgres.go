package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// foreignKeyViolation is the SQLSTATE Postgres raises when a DELETE would
// orphan rows in a referencing table.
const foreignKeyViolation = "23503"

const eventColumns = `id, name, date, capacity, available_tickets, created_at`

// EventRepository handles persistence for events on Postgres.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event. Available tickets start equal to capacity.
func (r *EventRepository) Create(ctx context.Context, e model.Event) (*model.Event, error) {
	e.AvailableTickets = e.Capacity
	err := r.db.QueryRow(ctx,
		`INSERT INTO events (name, date, capacity, available_tickets)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.Name, e.Date, e.Capacity, e.AvailableTickets,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &e, nil
}

// ListAvailable returns events that still have tickets, soonest first.
func (r *EventRepository) ListAvailable(ctx context.Context) ([]model.Event, error) {
	return r.list(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE available_tickets > 0
		 ORDER BY date ASC, id ASC`)
}

// List returns every event, soonest first.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	return r.list(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY date ASC, id ASC`)
}

func (r *EventRepository) list(ctx context.Context, query string) ([]model.Event, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Update applies an admin change under the same row lock purchases take, so
// a capacity change can never race a concurrent sale.
func (r *EventRepository) Update(ctx context.Context, id int64, upd model.EventUpdate) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	e, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(e, upd); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE events
		 SET name = $1, date = $2, capacity = $3, available_tickets = $4
		 WHERE id = $5`,
		e.Name, e.Date, e.Capacity, e.AvailableTickets, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return e, nil
}

// Delete removes an event. Events referenced by the ledger cannot be deleted.
func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrEventHasPurchases
		}
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PurchaseRepository handles the purchase ledger on Postgres and provides the
// transaction boundary used by the purchase engine.
type PurchaseRepository struct {
	db *pgxpool.Pool
}

// NewPurchaseRepository constructs a PurchaseRepository.
func NewPurchaseRepository(db *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// WithinTx runs fn in a single Postgres transaction.
//
// Exclusivity comes from SELECT … FOR UPDATE in LockEventForUpdate: a second
// transaction asking for the same event row blocks until the first one
// commits or rolls back, then reads the post-commit counter. Rows of other
// events are not locked, so purchases for different events never wait on
// each other.
func (r *PurchaseRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx InventoryTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, &pgInventoryTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListByUser returns a user's purchases, newest first.
func (r *PurchaseRepository) ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, user_id, quantity, purchase_date
		 FROM purchases
		 WHERE user_id = $1
		 ORDER BY purchase_date DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(&p.ID, &p.EventID, &p.UserID, &p.Quantity, &p.PurchaseDate); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

type pgInventoryTx struct {
	tx pgx.Tx
}

func (t *pgInventoryTx) LockEventForUpdate(ctx context.Context, eventID int64) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, nil
}

func (t *pgInventoryTx) DecrementAvailable(ctx context.Context, eventID int64, amount int) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE events SET available_tickets = available_tickets - $1 WHERE id = $2`,
		amount, eventID,
	)
	if err != nil {
		return fmt.Errorf("decrement available_tickets: %w", err)
	}
	return nil
}

func (t *pgInventoryTx) InsertPurchase(ctx context.Context, eventID, userID int64, quantity int, at time.Time) (*model.Purchase, error) {
	p := &model.Purchase{
		EventID:      eventID,
		UserID:       userID,
		Quantity:     quantity,
		PurchaseDate: at,
	}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchases (event_id, user_id, quantity, purchase_date)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		eventID, userID, quantity, at,
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}
	return p, nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Date, &e.Capacity, &e.AvailableTickets, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}
