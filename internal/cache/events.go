// Package cache provides a Redis read-through cache for event reads.
//
// Inventory is never decided from the cache: the purchase engine always
// reads the locked row. The cache only serves browse traffic, and is
// invalidated after every committed purchase and admin write.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/metrics"
	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix    = "tigertix:"
	availableKey = keyPrefix + "events:available"

	// DefaultTTL bounds staleness if an invalidation is lost.
	DefaultTTL = 30 * time.Second
)

func eventKey(id int64) string {
	return keyPrefix + "event:" + strconv.FormatInt(id, 10)
}

// Source is the store behind the cache.
type Source interface {
	Create(ctx context.Context, e model.Event) (*model.Event, error)
	ListAvailable(ctx context.Context) ([]model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id int64) (*model.Event, error)
	Update(ctx context.Context, id int64, upd model.EventUpdate) (*model.Event, error)
	Delete(ctx context.Context, id int64) error
}

// Events caches GetByID and ListAvailable from next. Writes go straight to
// next and then drop the affected keys. Redis errors are logged and the
// read falls through to next.
type Events struct {
	next  Source
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   zerolog.Logger
}

// NewEvents wraps next with a Redis cache. A non-positive ttl uses DefaultTTL.
func NewEvents(next Source, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Events {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Events{next: next, rdb: rdb, ttl: ttl, log: log}
}

// GetByID returns the event, from cache when possible.
func (c *Events) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	key := eventKey(id)
	var cached model.Event
	if c.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	// singleflight collapses concurrent misses for the same key into one
	// store read, shared by every waiter, so it must not die with the
	// request that happened to start it.
	v, err, _ := c.group.Do(key, func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		e, err := c.next.GetByID(sctx, id)
		if err != nil {
			return nil, err
		}
		c.store(sctx, key, e)
		return *e, nil
	})
	if err != nil {
		return nil, err
	}
	e := v.(model.Event)
	return &e, nil
}

// ListAvailable returns events with tickets left, from cache when possible.
func (c *Events) ListAvailable(ctx context.Context) ([]model.Event, error) {
	var cached []model.Event
	if c.lookup(ctx, availableKey, &cached) {
		return cached, nil
	}

	v, err, _ := c.group.Do(availableKey, func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		events, err := c.next.ListAvailable(sctx)
		if err != nil {
			return nil, err
		}
		c.store(sctx, availableKey, events)
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Event(nil), v.([]model.Event)...), nil
}

// List is not cached; it backs the admin view.
func (c *Events) List(ctx context.Context) ([]model.Event, error) {
	return c.next.List(ctx)
}

// Create inserts through next and drops the available list.
func (c *Events) Create(ctx context.Context, e model.Event) (*model.Event, error) {
	created, err := c.next.Create(ctx, e)
	if err != nil {
		return nil, err
	}
	c.drop(ctx, availableKey)
	return created, nil
}

// Update writes through next and drops the event and the available list.
func (c *Events) Update(ctx context.Context, id int64, upd model.EventUpdate) (*model.Event, error) {
	updated, err := c.next.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	c.drop(ctx, eventKey(id), availableKey)
	return updated, nil
}

// Delete deletes through next and drops the event and the available list.
func (c *Events) Delete(ctx context.Context, id int64) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.drop(ctx, eventKey(id), availableKey)
	return nil
}

// Invalidate drops everything cached about eventID. Called after a purchase
// commits.
func (c *Events) Invalidate(ctx context.Context, eventID int64) error {
	return c.rdb.Del(ctx, eventKey(eventID), availableKey).Err()
}

func (c *Events) lookup(ctx context.Context, key string, dst any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.EventCacheRequests.WithLabelValues("miss").Inc()
		} else {
			metrics.EventCacheRequests.WithLabelValues("error").Inc()
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.EventCacheRequests.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return false
	}
	metrics.EventCacheRequests.WithLabelValues("hit").Inc()
	return true
}

func (c *Events) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *Events) drop(ctx context.Context, keys ...string) {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}
