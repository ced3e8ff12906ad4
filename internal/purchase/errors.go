package purchase

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/tigertix/internal/metrics"
)

// Kind classifies why a purchase failed. The set is closed: callers switch
// on it instead of matching message strings.
type Kind int

const (
	// KindStorageFailure is any infrastructure failure inside the unit of
	// work: connection loss, deadlock, lock timeout, failed commit or a
	// cancelled context. It is also the kind of any unclassified error.
	KindStorageFailure Kind = iota
	KindInvalidQuantity
	KindInvalidRequest
	KindEventNotFound
	KindInsufficientInventory
)

func (k Kind) String() string {
	switch k {
	case KindInvalidQuantity:
		return "InvalidQuantity"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindEventNotFound:
		return "EventNotFound"
	case KindInsufficientInventory:
		return "InsufficientInventory"
	default:
		return "StorageFailure"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrStorageFailure        = errors.New("storage failure")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrEventNotFound         = errors.New("event not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidQuantity:
		return ErrInvalidQuantity
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindEventNotFound:
		return ErrEventNotFound
	case KindInsufficientInventory:
		return ErrInsufficientInventory
	default:
		return ErrStorageFailure
	}
}

func (k Kind) outcome() string {
	switch k {
	case KindInvalidQuantity:
		return metrics.OutcomeInvalidQuantity
	case KindInvalidRequest:
		return metrics.OutcomeInvalidRequest
	case KindEventNotFound:
		return metrics.OutcomeEventNotFound
	case KindInsufficientInventory:
		return metrics.OutcomeInsufficientInventory
	default:
		return metrics.OutcomeStorageFailure
	}
}

// Error is a failed purchase. A failed purchase never leaves a ledger row
// or a changed inventory count behind, except for the ambiguous case of a
// StorageFailure raised by the commit itself.
type Error struct {
	Kind Kind

	// Msg is safe to show to the end user.
	Msg string

	// Remaining is the event's available count observed under the row lock.
	// Only meaningful for KindInsufficientInventory.
	Remaining int

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of err. Errors that are not *Error are storage
// failures.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindStorageFailure
}

// InvalidQuantity returns a KindInvalidQuantity error with msg.
func InvalidQuantity(msg string) *Error {
	return &Error{Kind: KindInvalidQuantity, Msg: msg}
}

// InvalidRequest returns a KindInvalidRequest error with msg.
func InvalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Msg: msg}
}

func eventNotFound() *Error {
	return &Error{Kind: KindEventNotFound, Msg: "Event not found"}
}

func insufficientInventory(remaining int) *Error {
	return &Error{
		Kind:      KindInsufficientInventory,
		Msg:       "Not enough tickets available",
		Remaining: remaining,
	}
}

func storageFailure(err error) *Error {
	return &Error{Kind: KindStorageFailure, Msg: "purchase could not be completed", Err: err}
}
