package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized represents missing or invalid bearer tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokensDisabled is returned when no token secret is configured.
	ErrTokensDisabled = errors.New("token authentication disabled")
	// ErrUnsupportedHash means the configured credential hash is in no known format.
	ErrUnsupportedHash = errors.New("unsupported password hash format")
)
