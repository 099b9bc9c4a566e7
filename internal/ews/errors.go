package ews

import "errors"

var (
	// ErrUnauthorized is returned when the server rejects the credentials.
	ErrUnauthorized = errors.New("exchange rejected credentials")

	// ErrAutodiscoverFailed is returned when no autodiscover candidate
	// produced an EWS endpoint.
	ErrAutodiscoverFailed = errors.New("exchange autodiscover failed")

	// ErrUnavailable covers transport errors and 5xx responses.
	ErrUnavailable = errors.New("exchange server unavailable")

	// ErrInvalidResponse is returned for bodies that cannot be understood.
	ErrInvalidResponse = errors.New("invalid response from exchange server")

	// ErrMailboxAccessDenied is returned when the credentials are valid but
	// cannot open the requested mailbox.
	ErrMailboxAccessDenied = errors.New("exchange denied mailbox access")
)
