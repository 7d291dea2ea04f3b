package repository

import (
	"context"
	"errors"
	"time"

	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/agrovista/agrigate/pkg/db"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func New(conn *gorm.DB, genID *snowflake.Node) (domain.UserRepository, domain.SessionRepository, domain.LogRepository) {
	r := &repo{db: conn, genID: genID}
	return r, r, r
}

func (r *repo) UpsertByEmail(ctx context.Context, profile domain.Profile) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email = ?", profile.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = domain.User{
			ID:           r.genID.Generate(),
			WorkOSUserID: &profile.WorkOSUserID,
			Email:        profile.Email,
			FullName:     profile.FullName,
			IsAdmin:      false,
			IsActive:     true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
			// A concurrent callback for the same email may have won the insert.
			if db.IsDuplicateKeyErr(err) {
				return r.UpsertByEmail(ctx, profile)
			}
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if user.FullName != profile.FullName && profile.FullName != "" {
		updates["full_name"] = profile.FullName
	}
	if user.WorkOSUserID == nil || *user.WorkOSUserID != profile.WorkOSUserID {
		updates["workos_user_id"] = profile.WorkOSUserID
	}
	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
		if name, ok := updates["full_name"].(string); ok {
			user.FullName = name
		}
		if _, ok := updates["workos_user_id"]; ok {
			user.WorkOSUserID = &profile.WorkOSUserID
		}
	}
	return &user, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) FindByWorkOSUserID(ctx context.Context, workosUserID string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("workos_user_id = ?", workosUserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

func (r *repo) CreateSession(ctx context.Context, session *domain.AppSession) error {
	if session.ID == 0 {
		session.ID = r.genID.Generate()
	}
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repo) GetByWorkOSSessionID(ctx context.Context, workosSessionID string) (*domain.AppSession, error) {
	var session domain.AppSession
	err := r.db.WithContext(ctx).Where("workos_session_id = ?", workosSessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) UpdateTokens(ctx context.Context, sessionID snowflake.ID, oldRefreshToken, accessToken, refreshToken string, expiresAt time.Time) (*domain.AppSession, error) {
	tx := r.db.WithContext(ctx).
		Model(&domain.AppSession{}).
		Where("id = ? AND refresh_token = ?", sessionID, oldRefreshToken).
		Updates(map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_at":    expiresAt,
		})
	if tx.Error != nil {
		return nil, tx.Error
	}
	// RowsAffected == 0 means another writer already rotated the tokens; the
	// re-read below picks up the winner's values.

	var session domain.AppSession
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error {
	tx := r.db.WithContext(ctx).Model(&domain.AppSession{}).Where("id = ?", sessionID).Update("last_seen_at", lastSeen)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *repo) Invalidate(ctx context.Context, workosSessionID string) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.AppSession{}).
		Where("workos_session_id = ?", workosSessionID).
		Update("is_active", false)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *repo) CreateActivityLog(ctx context.Context, userID snowflake.ID, action string) error {
	entry := domain.ActivityLog{
		ID:        r.genID.Generate(),
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *repo) CreateLog(ctx context.Context, log *domain.Log) error {
	if log.ID == 0 {
		log.ID = r.genID.Generate()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repo) CreatePredictionLog(ctx context.Context, log *domain.PredictionLog) error {
	if log.ID == 0 {
		log.ID = r.genID.Generate()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repo) ListLogs(ctx context.Context, userID *snowflake.ID) ([]domain.Log, error) {
	query := r.db.WithContext(ctx).Model(&domain.Log{}).Order("created_at DESC")
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var logs []domain.Log
	err := query.Find(&logs).Error
	return logs, err
}

func (r *repo) ListPredictionLogs(ctx context.Context, userID *snowflake.ID) ([]domain.PredictionLog, error) {
	query := r.db.WithContext(ctx).Model(&domain.PredictionLog{}).Order("created_at DESC")
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var logs []domain.PredictionLog
	err := query.Find(&logs).Error
	return logs, err
}
