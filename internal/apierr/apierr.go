package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound signals a missing plan, run, or content item.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals that a plan is already actively processing.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState signals an operation attempted from the wrong plan status.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput signals bad parameters rejected before any state change.
	ErrInvalidInput = errors.New("invalid input")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// StatusFor maps sentinel errors to HTTP statuses for handler responses.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		var ae *Error
		if errors.As(err, &ae) && ae.Status != 0 {
			return ae.Status
		}
		return http.StatusInternalServerError
	}
}
