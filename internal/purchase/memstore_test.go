package purchase

import (
	"context"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/Shivanand-hulikatti/tigertix/internal/repository"
)

// memStore is an in-memory Transactor. One mutex is held for the whole unit
// of work and changes are staged on a copy until commit.
type memStore struct {
	mu        sync.Mutex
	events    map[int64]model.Event
	purchases []model.Purchase
	nextID    int64
	txCount   int

	// Injected failures.
	failDecrement error
	failInsert    error
	failCommit    error
	lockDelay     time.Duration
}

func newMemStore(events ...model.Event) *memStore {
	s := &memStore{events: make(map[int64]model.Event)}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.InventoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	staged := make(map[int64]model.Event, len(s.events))
	for id, e := range s.events {
		staged[id] = e
	}
	tx := &memTx{store: s, events: staged}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failCommit != nil {
		return s.failCommit
	}

	s.events = staged
	s.purchases = append(s.purchases, tx.purchases...)
	return nil
}

func (s *memStore) event(id int64) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *memStore) ledger() []model.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Purchase(nil), s.purchases...)
}

func (s *memStore) sold(eventID int64) int {
	total := 0
	for _, p := range s.ledger() {
		if p.EventID == eventID {
			total += p.Quantity
		}
	}
	return total
}

type memTx struct {
	store     *memStore
	events    map[int64]model.Event
	purchases []model.Purchase
}

func (t *memTx) LockEventForUpdate(ctx context.Context, eventID int64) (*model.Event, error) {
	if t.store.lockDelay > 0 {
		time.Sleep(t.store.lockDelay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := t.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (t *memTx) DecrementAvailable(_ context.Context, eventID int64, amount int) error {
	if t.store.failDecrement != nil {
		return t.store.failDecrement
	}
	e := t.events[eventID]
	e.AvailableTickets -= amount
	t.events[eventID] = e
	return nil
}

func (t *memTx) InsertPurchase(_ context.Context, eventID, userID int64, quantity int, at time.Time) (*model.Purchase, error) {
	if t.store.failInsert != nil {
		return nil, t.store.failInsert
	}
	t.store.nextID++
	p := model.Purchase{
		ID:           t.store.nextID,
		EventID:      eventID,
		UserID:       userID,
		Quantity:     quantity,
		PurchaseDate: at,
	}
	t.purchases = append(t.purchases, p)
	return &p, nil
}
