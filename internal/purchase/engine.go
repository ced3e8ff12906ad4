// Package purchase implements the ticket purchase engine: the only code path
// that sells tickets. One call to Engine.Purchase checks remaining inventory,
// decrements it and appends a ledger row as a single unit of work, with the
// event row held exclusively so that concurrent buyers cannot oversell.
//
// Known limitation: when the commit acknowledgement itself is lost, the
// caller sees a StorageFailure although the purchase may have been applied.
// The engine has no idempotency key to tell the two apart, and never retries.
package purchase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/metrics"
	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/Shivanand-hulikatti/tigertix/internal/repository"
	"github.com/rs/zerolog"
)

// hookTimeout bounds each post-commit hook.
const hookTimeout = 5 * time.Second

// Request asks to sell Quantity tickets of EventID to UserID.
type Request struct {
	EventID  int64
	UserID   int64
	Quantity int
}

func (r Request) validate() error {
	if r.Quantity <= 0 {
		return InvalidQuantity("Quantity must be a positive integer")
	}
	if r.EventID <= 0 {
		return InvalidRequest("event_id must be a positive integer")
	}
	if r.UserID <= 0 {
		return InvalidRequest("user_id must be a positive integer")
	}
	return nil
}

// Result is a committed purchase.
type Result struct {
	Purchase *model.Purchase

	// Remaining is the event's available count right after this commit.
	Remaining int

	EventName string
}

// CommitHook observes a committed purchase. It runs after the commit with a
// context that is not cancelled with the request. A hook error is logged and
// never turns the purchase into a failure.
type CommitHook func(ctx context.Context, res *Result) error

type namedHook struct {
	name string
	fn   CommitHook
}

// Engine sells tickets.
type Engine struct {
	tx         repository.Transactor
	now        func() time.Time
	hooks      []namedHook
	asyncHooks []namedHook
	pending    sync.WaitGroup
	log        zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the source of purchase timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCommitHook registers h to run after every committed purchase, before
// Purchase returns. Hooks run in registration order. Use it for fast local
// work the caller must observe, such as cache invalidation.
func WithCommitHook(name string, h CommitHook) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, namedHook{name: name, fn: h})
	}
}

// WithAsyncCommitHook registers h to run in the background after every
// committed purchase. Purchase does not wait for it; Wait does.
func WithAsyncCommitHook(name string, h CommitHook) Option {
	return func(e *Engine) {
		e.asyncHooks = append(e.asyncHooks, namedHook{name: name, fn: h})
	}
}

// WithLogger sets the engine's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine constructs an Engine over tx.
func NewEngine(tx repository.Transactor, opts ...Option) *Engine {
	e := &Engine{
		tx:  tx,
		now: time.Now,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Purchase sells req.Quantity tickets of req.EventID to req.UserID.
//
// On success the returned Result holds the committed ledger row and the
// post-commit remaining count. On failure the error is an *Error and nothing
// was persisted (see the package comment for the one ambiguous case).
func (e *Engine) Purchase(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := e.purchase(ctx, req)
	metrics.PurchaseDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		kind := KindOf(err)
		metrics.PurchaseRequests.WithLabelValues(kind.outcome()).Inc()
		ev := e.log.Debug()
		if kind == KindStorageFailure {
			ev = e.log.Error()
		}
		ev.Err(err).
			Stringer("kind", kind).
			Int64("event_id", req.EventID).
			Int64("user_id", req.UserID).
			Int("quantity", req.Quantity).
			Msg("purchase rejected")
		return nil, err
	}

	metrics.PurchaseRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.TicketsSold.Add(float64(req.Quantity))
	e.log.Info().
		Int64("purchase_id", res.Purchase.ID).
		Int64("event_id", req.EventID).
		Int64("user_id", req.UserID).
		Int("quantity", req.Quantity).
		Int("remaining", res.Remaining).
		Msg("purchase committed")

	e.runHooks(ctx, res)
	return res, nil
}

func (e *Engine) purchase(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var res *Result
	err := e.tx.WithinTx(ctx, func(ctx context.Context, tx repository.InventoryTx) error {
		event, err := tx.LockEventForUpdate(ctx, req.EventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return eventNotFound()
			}
			return err
		}

		if event.AvailableTickets < req.Quantity {
			return insufficientInventory(event.AvailableTickets)
		}

		if err := tx.DecrementAvailable(ctx, event.ID, req.Quantity); err != nil {
			return err
		}

		p, err := tx.InsertPurchase(ctx, event.ID, req.UserID, req.Quantity, e.now().UTC().Truncate(time.Microsecond))
		if err != nil {
			return err
		}

		res = &Result{
			Purchase:  p,
			Remaining: event.AvailableTickets - req.Quantity,
			EventName: event.Name,
		}
		return nil
	})
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, storageFailure(err)
	}
	return res, nil
}

// Wait blocks until background commit hooks started so far have finished.
func (e *Engine) Wait() {
	e.pending.Wait()
}

func (e *Engine) runHooks(ctx context.Context, res *Result) {
	base := context.WithoutCancel(ctx)
	for _, h := range e.hooks {
		e.runHook(base, h, res)
	}

	if len(e.asyncHooks) == 0 {
		return
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		for _, h := range e.asyncHooks {
			e.runHook(base, h, res)
		}
	}()
}

func (e *Engine) runHook(base context.Context, h namedHook, res *Result) {
	ctx, cancel := context.WithTimeout(base, hookTimeout)
	defer cancel()
	if err := h.fn(ctx, res); err != nil {
		e.log.Warn().Err(err).
			Str("hook", h.name).
			Int64("purchase_id", res.Purchase.ID).
			Msg("post-commit hook failed")
	}
}
