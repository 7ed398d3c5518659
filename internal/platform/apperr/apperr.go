// Package apperr defines the error taxonomy shared by the booking services
// and its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindForbidden           Kind = "forbidden"
	KindOwnership           Kind = "ownership_error"
	KindNotFound            Kind = "not_found"
	KindSlotUnavailable     Kind = "slot_unavailable"
	KindPastSlot            Kind = "past_slot"
	KindInvalidTransition   Kind = "invalid_transition"
	KindInvalidCancellation Kind = "invalid_cancellation"
	KindConflict            Kind = "conflict"
)

// Error is a classified failure. Fields carries per-field messages for
// validation errors; Current and Requested carry state-machine context.
type Error struct {
	Kind      Kind
	Message   string
	Fields    map[string]string
	Current   string
	Requested string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrOwnership           = &Error{Kind: KindOwnership, Message: "resource belongs to another user"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrSlotUnavailable     = &Error{Kind: KindSlotUnavailable, Message: "slot is not available"}
	ErrPastSlot            = &Error{Kind: KindPastSlot, Message: "cannot book an appointment in the past"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrInvalidCancellation = &Error{Kind: KindInvalidCancellation, Message: "cannot cancel appointment with current status"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "conflict"}
)

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: map[string]string{field: msg}}
}

// ValidationFields builds a validation error from a field-keyed message map.
func ValidationFields(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Ownership(msg string) *Error {
	return &Error{Kind: KindOwnership, Message: msg}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func SlotUnavailable(msg string) *Error {
	return &Error{Kind: KindSlotUnavailable, Message: msg}
}

func PastSlot() *Error {
	return &Error{Kind: KindPastSlot, Message: ErrPastSlot.Message}
}

func InvalidTransition(current, requested string) *Error {
	return &Error{
		Kind:      KindInvalidTransition,
		Message:   fmt.Sprintf("cannot transition from %s to %s", current, requested),
		Current:   current,
		Requested: requested,
	}
}

func InvalidCancellation(current string) *Error {
	return &Error{
		Kind:      KindInvalidCancellation,
		Message:   ErrInvalidCancellation.Message,
		Current:   current,
		Requested: "CANCELLED",
	}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusCode maps a Kind to its HTTP status.
func StatusCode(k Kind) int {
	switch k {
	case KindValidation, KindSlotUnavailable, KindPastSlot, KindInvalidTransition, KindInvalidCancellation:
		return http.StatusBadRequest
	case KindForbidden, KindOwnership:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
