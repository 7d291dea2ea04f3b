package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Profile is the provider-issued user profile used for provisioning.
type Profile struct {
	WorkOSUserID string
	Email        string
	FullName     string
}

type UserRepository interface {
	UpsertByEmail(ctx context.Context, profile Profile) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByWorkOSUserID(ctx context.Context, workosUserID string) (*User, error)
	List(ctx context.Context) ([]User, error)
}

// SessionRepository is the Session Store. The lifecycle service never touches
// session rows except through it.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *AppSession) error
	GetByWorkOSSessionID(ctx context.Context, workosSessionID string) (*AppSession, error)
	// UpdateTokens persists a new token pair conditionally: the row is only
	// written when it still holds oldRefreshToken, so a lost refresh race is a
	// no-op for the loser. Returns the fresh row either way.
	UpdateTokens(ctx context.Context, sessionID snowflake.ID, oldRefreshToken, accessToken, refreshToken string, expiresAt time.Time) (*AppSession, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	Invalidate(ctx context.Context, workosSessionID string) error
}

type LogRepository interface {
	CreateActivityLog(ctx context.Context, userID snowflake.ID, action string) error
	CreateLog(ctx context.Context, log *Log) error
	CreatePredictionLog(ctx context.Context, log *PredictionLog) error
	ListLogs(ctx context.Context, userID *snowflake.ID) ([]Log, error)
	ListPredictionLogs(ctx context.Context, userID *snowflake.ID) ([]PredictionLog, error)
}
