package identity

import "errors"

var (
	// ErrFormatNotAllowed is returned when the username shape is disabled or
	// has an empty local part.
	ErrFormatNotAllowed = errors.New("username format not allowed")

	// ErrDomainNotAllowed is returned when the resolved domain has no entry
	// in domain_servers.
	ErrDomainNotAllowed = errors.New("domain not allowed")
)
