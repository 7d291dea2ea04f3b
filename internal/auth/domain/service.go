package domain

import (
	"context"
	"time"
)

// Service is the session lifecycle manager: login-callback session creation,
// per-request validation with proactive refresh, and logout invalidation.
type Service interface {
	LoginCallback(ctx context.Context, req LoginCallbackRequest) (*LoginCallbackResult, error)
	Authenticate(ctx context.Context, credential string) (*AuthResult, error)
	Logout(ctx context.Context, credential string) (*LogoutResult, error)
}

type LoginCallbackRequest struct {
	Code      string
	IPAddress string
	UserAgent string
}

type LoginCallbackResult struct {
	User       *User
	Credential string
	ExpiresAt  time.Time
}

// AuthResult carries the resolved user plus, after a proactive refresh, the new
// credential the transport layer must surface to the client.
type AuthResult struct {
	User          *User
	Session       *AppSession
	NewCredential string
	NewExpiresAt  time.Time
}

type LogoutResult struct {
	WorkOSLogoutURL string
}
