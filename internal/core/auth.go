package core

import (
	"context"
	"fmt"
)

// Credentials is the username/password pair presented to the directory.
// The password is never rendered by fmt verbs.
type Credentials struct {
	Username string
	Password string
}

// String redacts the password so credentials are safe to log.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: ***REDACTED***}", c.Username)
}

// GoString covers the %#v verb.
func (c Credentials) GoString() string {
	return c.String()
}

// DirectoryConfig is a connection configuration bound to a static endpoint.
type DirectoryConfig struct {
	Endpoint string // resolved service URL
}

// SessionRequest describes how to open a directory session. A nil Config
// asks the directory client to autodiscover the endpoint from SMTPAddress.
type SessionRequest struct {
	SMTPAddress string
	Credentials Credentials
	Config      *DirectoryConfig
}

// Session is an authenticated directory session for one mailbox.
type Session struct {
	Endpoint    string
	SMTPAddress string
}

// DirectoryClient is the Exchange-like directory service.
type DirectoryClient interface {
	// Configure binds credentials to a static endpoint. The endpoint may
	// reject the credentials during this handshake.
	Configure(ctx context.Context, endpoint string, cred Credentials) (*DirectoryConfig, error)

	// OpenSession establishes an authenticated session for the mailbox.
	OpenSession(ctx context.Context, req SessionRequest) (*Session, error)
}
