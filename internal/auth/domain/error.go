package domain

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrProvisioning    = errors.New("provisioning failed")
	ErrRefreshFailed   = errors.New("token refresh failed")
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
)
