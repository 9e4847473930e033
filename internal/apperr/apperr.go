package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindEmptyCart
	KindPaymentProvider
	KindPaymentDeclined
	KindInconsistentState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindConflict:
		return "CONFLICT"
	case KindEmptyCart:
		return "EMPTY_CART"
	case KindPaymentProvider:
		return "PAYMENT_PROVIDER"
	case KindPaymentDeclined:
		return "PAYMENT_DECLINED"
	case KindInconsistentState:
		return "INCONSISTENT_STATE"
	default:
		return "INTERNAL"
	}
}

// Error is the typed error returned by stores and services.
// Message is safe to show to the caller; Err is kept for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(KindValidation, message) }

func Validationf(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func Conflictf(format string, args ...interface{}) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func EmptyCart() *Error { return New(KindEmptyCart, "Cart is empty") }

func PaymentProvider(message string, err error) *Error {
	return Wrap(KindPaymentProvider, message, err)
}

func PaymentDeclined(message string) *Error { return New(KindPaymentDeclined, message) }

func InconsistentState(message string, err error) *Error {
	return Wrap(KindInconsistentState, message, err)
}

func Internal(message string, err error) *Error { return Wrap(KindInternal, message, err) }

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

// HTTPStatus maps a kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindEmptyCart:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindPaymentDeclined:
		return http.StatusPaymentRequired
	case KindPaymentProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
