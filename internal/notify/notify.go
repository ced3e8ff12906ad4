// Package notify publishes purchase-confirmed messages to a broker after the
// purchase has committed. Publishing is best effort: a lost message never
// undoes or fails a purchase.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/metrics"
	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/Shivanand-hulikatti/tigertix/internal/purchase"
	"github.com/google/uuid"
)

// TypePurchaseConfirmed is the envelope type of a committed purchase.
const TypePurchaseConfirmed = "purchase.confirmed"

// PurchaseConfirmed is the message body published for every committed purchase.
type PurchaseConfirmed struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Purchase   *model.Purchase `json:"purchase"`
	EventName  string          `json:"event_name"`
	Remaining  int             `json:"remaining"`
}

// NewPurchaseConfirmed builds a message with a fresh id.
func NewPurchaseConfirmed(p *model.Purchase, eventName string, remaining int) PurchaseConfirmed {
	return PurchaseConfirmed{
		ID:         uuid.NewString(),
		Type:       TypePurchaseConfirmed,
		OccurredAt: p.PurchaseDate,
		Purchase:   p,
		EventName:  eventName,
		Remaining:  remaining,
	}
}

func (m PurchaseConfirmed) encode() ([]byte, error) {
	return json.Marshal(m)
}

// Publisher sends purchase-confirmed messages.
type Publisher interface {
	Publish(ctx context.Context, msg PurchaseConfirmed) error
	Close() error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, PurchaseConfirmed) error { return nil }
func (Nop) Close() error                                     { return nil }

// Counting wraps a Publisher and counts failures in
// tigertix_notify_failures_total.
type Counting struct {
	Publisher
}

func (c Counting) Publish(ctx context.Context, msg PurchaseConfirmed) error {
	err := c.Publisher.Publish(ctx, msg)
	if err != nil {
		metrics.NotifyFailures.Inc()
	}
	return err
}

// Hook adapts pub to a purchase commit hook.
func Hook(pub Publisher) purchase.CommitHook {
	return func(ctx context.Context, res *purchase.Result) error {
		return pub.Publish(ctx, NewPurchaseConfirmed(res.Purchase, res.EventName, res.Remaining))
	}
}
