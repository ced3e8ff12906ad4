// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/Shivanand-hulikatti/tigertix/internal/repository"
)

// maxCapacity caps a single event's capacity.
const maxCapacity = 100_000

// ValidationError reports a request the caller must correct.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// EventStore is the event persistence the services need.
type EventStore interface {
	Create(ctx context.Context, e model.Event) (*model.Event, error)
	ListAvailable(ctx context.Context) ([]model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id int64) (*model.Event, error)
	Update(ctx context.Context, id int64, upd model.EventUpdate) (*model.Event, error)
	Delete(ctx context.Context, id int64) error
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events EventStore
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore) *EventService {
	return &EventService{events: events}
}

// CreateEvent validates the request and delegates to the store.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("event name is required")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := validateCapacity(req.Capacity); err != nil {
		return nil, err
	}
	return s.events.Create(ctx, model.Event{Name: name, Date: date, Capacity: req.Capacity})
}

// ListAvailable returns events that still have tickets.
func (s *EventService) ListAvailable(ctx context.Context) ([]model.Event, error) {
	return s.events.ListAvailable(ctx)
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	if id <= 0 {
		return nil, repository.ErrNotFound
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// UpdateEvent validates an admin change and applies it.
func (s *EventService) UpdateEvent(ctx context.Context, id int64, req model.UpdateEventRequest) (*model.Event, error) {
	if id <= 0 {
		return nil, repository.ErrNotFound
	}

	var upd model.EventUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("event name cannot be empty")
		}
		upd.Name = &name
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		upd.Date = &date
	}
	if req.Capacity != nil {
		if err := validateCapacity(*req.Capacity); err != nil {
			return nil, err
		}
		upd.Capacity = req.Capacity
	}
	if upd.Name == nil && upd.Date == nil && upd.Capacity == nil {
		return nil, invalid("nothing to update")
	}

	return s.events.Update(ctx, id, upd)
}

// DeleteEvent removes an event that has no purchases.
func (s *EventService) DeleteEvent(ctx context.Context, id int64) error {
	if id <= 0 {
		return repository.ErrNotFound
	}
	return s.events.Delete(ctx, id)
}

func validateCapacity(capacity int) error {
	if capacity <= 0 {
		return invalid("capacity must be a positive integer")
	}
	if capacity > maxCapacity {
		return invalid("capacity cannot exceed 100,000")
	}
	return nil
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalid("event date is required")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, invalid("event date %q must be YYYY-MM-DD or RFC 3339", s)
}
