package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/agrovista/agrigate/internal/identity"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// refreshThreshold is how much remaining access-token lifetime triggers a
	// proactive refresh. The 5 minute value follows the dominant provider
	// recommendation; a token with no readable expiry is treated as already
	// inside the threshold.
	refreshThreshold = 5 * time.Minute

	// fallbackTokenTTL bounds a session whose access token carries no usable
	// expiry claim.
	fallbackTokenTTL = 15 * time.Minute
)

type Service struct {
	log       *zap.Logger
	users     domain.UserRepository
	sessions  domain.SessionRepository
	logs      domain.LogRepository
	provider  identity.Client
	validator *identity.Validator

	// refreshGroup collapses concurrent refreshes of the same session into a
	// single provider call; losers reuse the winner's tokens.
	refreshGroup singleflight.Group
}

func New(
	log *zap.Logger,
	users domain.UserRepository,
	sessions domain.SessionRepository,
	logs domain.LogRepository,
	provider identity.Client,
	validator *identity.Validator,
) domain.Service {
	return &Service{
		log:       log.Named("auth.service"),
		users:     users,
		sessions:  sessions,
		logs:      logs,
		provider:  provider,
		validator: validator,
	}
}

func (s *Service) LoginCallback(ctx context.Context, req domain.LoginCallbackRequest) (*domain.LoginCallbackResult, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", domain.ErrProvisioning)
	}

	result, err := s.provider.Authenticate(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvisioning, err)
	}

	user, err := s.users.UpsertByEmail(ctx, domain.Profile{
		WorkOSUserID: result.User.ID,
		Email:        result.User.Email,
		FullName:     result.User.FullName(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvisioning, err)
	}

	claims := decodeClaims(result.AccessToken)
	sessionID := result.SessionID
	if sessionID == "" {
		sessionID = claims.SessionID
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: provider response has no session id", domain.ErrProvisioning)
	}

	expiresAt := claims.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().UTC().Add(fallbackTokenTTL)
	}

	now := time.Now().UTC()
	session := &domain.AppSession{
		UserID:          user.ID,
		WorkOSUserID:    result.User.ID,
		WorkOSSessionID: sessionID,
		AccessToken:     result.AccessToken,
		RefreshToken:    result.RefreshToken,
		ExpiresAt:       expiresAt,
		IPAddress:       strings.TrimSpace(req.IPAddress),
		UserAgent:       strings.TrimSpace(req.UserAgent),
		IsActive:        true,
		CreatedAt:       now,
		LastSeenAt:      now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvisioning, err)
	}

	s.recordActivity(ctx, user.ID, "login")

	return &domain.LoginCallbackResult{
		User:       user,
		Credential: result.AccessToken,
		ExpiresAt:  expiresAt,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, credential string) (*domain.AuthResult, error) {
	token := strings.TrimSpace(credential)
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims, err := s.validator.Validate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: token missing sub or sid", domain.ErrUnauthenticated)
	}

	user, err := s.users.FindByWorkOSUserID(ctx, claims.Subject)
	if err != nil || !user.IsActive {
		return nil, domain.ErrUnauthenticated
	}

	session, err := s.sessions.GetByWorkOSSessionID(ctx, claims.SessionID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	if !session.IsActive {
		return nil, domain.ErrUnauthenticated
	}

	if err := s.sessions.UpdateLastSeen(ctx, session.ID, time.Now().UTC()); err != nil {
		s.log.Warn("last seen update failed", zap.Error(err))
	}

	result := &domain.AuthResult{User: user, Session: session}

	expiresAt := claims.ExpiresAt
	if expiresAt.IsZero() {
		// No expiry claim: assume already inside the threshold.
		expiresAt = time.Now().UTC()
	}
	if time.Until(expiresAt) < refreshThreshold {
		refreshed, err := s.refresh(ctx, session)
		if err != nil {
			if ierr := s.sessions.Invalidate(ctx, session.WorkOSSessionID); ierr != nil {
				s.log.Warn("session invalidation failed", zap.Error(ierr))
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
		}
		result.Session = refreshed
		result.NewCredential = refreshed.AccessToken
		result.NewExpiresAt = refreshed.ExpiresAt
	}

	return result, nil
}

// refresh exchanges the session's refresh token for a new pair and persists it.
// Concurrent callers for the same provider session share one flight; the
// conditional update in the store makes a cross-process race a no-op for the
// loser, which then reads back the winner's tokens.
func (s *Service) refresh(ctx context.Context, session *domain.AppSession) (*domain.AppSession, error) {
	value, err, _ := s.refreshGroup.Do(session.WorkOSSessionID, func() (any, error) {
		pair, err := s.provider.Refresh(ctx, session.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
		}

		claims := decodeClaims(pair.AccessToken)
		expiresAt := claims.ExpiresAt
		if expiresAt.IsZero() {
			expiresAt = time.Now().UTC().Add(fallbackTokenTTL)
		}

		updated, err := s.sessions.UpdateTokens(ctx, session.ID, session.RefreshToken, pair.AccessToken, pair.RefreshToken, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
		}
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*domain.AppSession), nil
}

func (s *Service) Logout(ctx context.Context, credential string) (*domain.LogoutResult, error) {
	token := strings.TrimSpace(credential)
	if token == "" {
		return &domain.LogoutResult{}, nil
	}

	claims, err := s.validator.Validate(ctx, token)
	if err != nil {
		// Expired or malformed credentials still get best-effort cleanup.
		claims, err = identity.ParseInsecure(token)
		if err != nil {
			return &domain.LogoutResult{}, nil
		}
	}

	result := &domain.LogoutResult{}
	if claims.SessionID != "" {
		if err := s.sessions.Invalidate(ctx, claims.SessionID); err != nil {
			s.log.Warn("logout invalidation failed", zap.Error(err))
		}
		result.WorkOSLogoutURL = s.provider.LogoutURL(claims.SessionID)
	}

	if claims.Subject != "" {
		if user, err := s.users.FindByWorkOSUserID(ctx, claims.Subject); err == nil {
			s.recordActivity(ctx, user.ID, "logout")
		}
	}

	return result, nil
}

// recordActivity writes an audit entry; failures never fail the parent call.
func (s *Service) recordActivity(ctx context.Context, userID snowflake.ID, action string) {
	if err := s.logs.CreateActivityLog(ctx, userID, action); err != nil {
		s.log.Warn("activity log write failed",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func decodeClaims(token string) *identity.Claims {
	claims, err := identity.ParseInsecure(token)
	if err != nil {
		return &identity.Claims{}
	}
	return claims
}
