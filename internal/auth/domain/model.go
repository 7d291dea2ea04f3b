// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User is the local representation of an identity-provider-managed principal.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	WorkOSUserID *string      `gorm:"column:workos_user_id;type:text;uniqueIndex" json:"workos_user_id,omitempty"`
	Email        string       `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	FullName     string       `gorm:"column:full_name;type:text" json:"full_name"`
	IsAdmin      bool         `gorm:"column:is_admin;not null;default:false" json:"is_admin"`
	IsActive     bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt    time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// AppSession is one authenticated browser session tied to one user.
type AppSession struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	UserID          snowflake.ID `gorm:"column:user_id;not null;index"`
	WorkOSUserID    string       `gorm:"column:workos_user_id;type:text;not null"`
	WorkOSSessionID string       `gorm:"column:workos_session_id;type:text;not null;uniqueIndex"`
	AccessToken     string       `gorm:"column:access_token;type:text;not null"`
	RefreshToken    string       `gorm:"column:refresh_token;type:text;not null"`
	ExpiresAt       time.Time    `gorm:"column:expires_at;not null;index"`
	IPAddress       string       `gorm:"column:ip_address;type:text"`
	UserAgent       string       `gorm:"column:user_agent;type:text"`
	IsActive        bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt      time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AppSession) TableName() string { return "app_sessions" }

// ActivityLog is an append-only audit trail entry.
type ActivityLog struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index" json:"user_id"`
	Action    string       `gorm:"column:action;type:text;not null" json:"action"`
	CreatedAt time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ActivityLog) TableName() string { return "activity_logs" }

// Log stores a generic classification request/response pair.
type Log struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID      `gorm:"column:user_id;not null;index" json:"user_id"`
	Type         string            `gorm:"column:type;type:text;not null" json:"type"`
	InputData    datatypes.JSONMap `gorm:"column:input_data;not null" json:"input_data"`
	OutputResult datatypes.JSONMap `gorm:"column:output_result;not null" json:"output_result"`
	CreatedAt    time.Time         `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Log) TableName() string { return "logs" }

// PredictionLog records one CSV classification run.
type PredictionLog struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index" json:"user_id"`
	Result    string       `gorm:"column:result;type:text;not null" json:"result"`
	FileName  string       `gorm:"column:file_name;type:text" json:"file_name"`
	CreatedAt time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PredictionLog) TableName() string { return "prediction_logs" }

// SessionSummary is returned to clients without exposing token values.
type SessionSummary struct {
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
}
