package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an identity created on first successful OAuth validation.
type User struct {
	ID                    uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email                 string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	DisplayName           string     `gorm:"column:display_name;type:text;not null"`
	AvatarURL             *string    `gorm:"column:avatar_url;type:text"`
	IsAdmin               bool       `gorm:"column:is_admin;not null;default:false"`
	Provider              string     `gorm:"column:provider;type:text;not null;uniqueIndex:ux_users_provider_external"`
	ExternalID            string     `gorm:"column:external_id;type:text;not null;uniqueIndex:ux_users_provider_external"`
	RefreshTokenHash      *string    `gorm:"column:refresh_token_hash;type:text"`
	RefreshTokenExpiresAt *time.Time `gorm:"column:refresh_token_expires_at"`
	LastLoginAt           *time.Time `gorm:"column:last_login_at"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
