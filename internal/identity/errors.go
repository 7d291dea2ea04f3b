package identity

import "errors"

var (
	ErrUpstreamUnavailable = errors.New("identity provider unreachable")
	ErrUnknownKey          = errors.New("no signing key for token kid")
	ErrInvalidToken        = errors.New("invalid token")
	ErrExchangeFailed      = errors.New("authorization code exchange failed")
	ErrRefreshFailed       = errors.New("refresh token rejected")
)
