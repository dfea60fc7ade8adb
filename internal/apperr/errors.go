// Package apperr defines the closed error taxonomy shared by all request
// paths. Handlers map these to HTTP status codes in one place.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the failure class.
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindForbidden             Kind = "forbidden"
	KindConflict              Kind = "conflict"
	KindInsufficientInventory Kind = "insufficient_inventory"
	KindValidation            Kind = "validation_error"
	KindInvalidTransition     Kind = "invalid_state_transition"
)

// Error carries a failure class plus a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing clinic/vaccine/appointment/child.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an ownership or cross-clinic violation.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports an occupied slot or a duplicate state transition.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// InsufficientInventory reports that no batch can cover the booking.
func InsufficientInventory(format string, args ...any) *Error {
	return &Error{Kind: KindInsufficientInventory, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input or a verification-code mismatch.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransition reports a lifecycle action not allowed from the
// appointment's current status.
func InvalidTransition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause while keeping the kind and message.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

// KindOf extracts the kind from err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to its stable status code. Unknown errors are 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInsufficientInventory:
		return http.StatusUnprocessableEntity
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes the error as a JSON body with its mapped status code.
// Non-taxonomy errors are masked as a generic internal error.
func WriteJSON(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	body := errorBody{Error: "internal server error"}

	var appErr *Error
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
		body.Code = string(appErr.Kind)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
