package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized maps 401: the bearer token was rejected.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrPermissionDenied maps 403.
	ErrPermissionDenied = errors.New("api: permission denied")
	// ErrConflict maps 409, e.g. a customer already claimed by someone else.
	ErrConflict = errors.New("api: conflict")
	// ErrNotFound maps 404.
	ErrNotFound = errors.New("api: not found")
	// ErrUnavailable covers 5xx and transport failures; callers may retry.
	ErrUnavailable = errors.New("api: backend unavailable")
)

// StatusError carries the HTTP status and the server-supplied message so the
// UI can surface it inline. It wraps one of the sentinel errors above.
type StatusError struct {
	Status  int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *StatusError) Unwrap() error { return e.kind }

func statusError(status int, message string) error {
	kind := ErrUnavailable
	switch {
	case status == 401:
		kind = ErrUnauthorized
	case status == 403:
		kind = ErrPermissionDenied
	case status == 404:
		kind = ErrNotFound
	case status == 409:
		kind = ErrConflict
	case status >= 400 && status < 500:
		kind = errors.New("api: request rejected")
	}
	return &StatusError{Status: status, Message: message, kind: kind}
}
