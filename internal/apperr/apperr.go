package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a domain error. The kind is stable across the wire, the
// message is meant for end users.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Conflict
	Unauthorized
	BadRequest
	DeliveryFailure
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case BadRequest:
		return "bad_request"
	case DeliveryFailure:
		return "delivery_failure"
	default:
		return "internal"
	}
}

// Error is a domain error with a kind and a user facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind that keeps err as its cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches an *Error with the same kind and message, so two sentinels of
// one kind stay distinct. Use KindOf to match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the user facing message for err. Internal errors never
// leak their cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case BadRequest:
		return http.StatusBadRequest
	case DeliveryFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus maps a response status code back to a kind.
func FromStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict:
		return Conflict
	case http.StatusUnauthorized:
		return Unauthorized
	case http.StatusBadRequest:
		return BadRequest
	case http.StatusBadGateway:
		return DeliveryFailure
	default:
		return Internal
	}
}
