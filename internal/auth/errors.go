package auth

import "errors"

var (
	// ErrDirectoryAuthFailed covers every directory outcome other than a
	// usable session: bad credentials, unreachable server, empty result.
	ErrDirectoryAuthFailed = errors.New("directory authentication failed")

	// ErrDirectoryTimeout is returned when the directory does not answer
	// within the configured bound.
	ErrDirectoryTimeout = errors.New("directory authentication timed out")
)
