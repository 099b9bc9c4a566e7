package services

import "errors"

var (
	// ErrAuthenticationDenied is the only rejection Authenticate returns,
	// whatever the internal reason.
	ErrAuthenticationDenied = errors.New("authentication denied")

	ErrUserNotFound = errors.New("user not found")

	// Internal rejection reasons. They reach logs, metrics and the audit
	// trail, never the caller.
	ErrUnknownUserNotProvisioned = errors.New("unknown user and provisioning is disabled")
	ErrRepositoryConflict        = errors.New("user create conflict could not be resolved")
)
