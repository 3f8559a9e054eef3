package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localstall/stallmarket-backend/pkg/enums"
)

// Stall is a seller storefront. A set DeletedAt hides it from every read path.
type Stall struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index"`
	Owner       *User             `gorm:"foreignKey:OwnerID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Name        string            `gorm:"column:name;type:text;not null"`
	Description *string           `gorm:"column:description;type:text"`
	Location    string            `gorm:"column:location;type:text;not null"`
	LogoPath    *string           `gorm:"column:logo_path;type:text"`
	CoverPath   *string           `gorm:"column:cover_path;type:text"`
	Status      enums.StallStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'"`
	ReviewedAt  *time.Time        `gorm:"column:reviewed_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}

func (s *Stall) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// IsActive reports whether the stall has not been soft deleted.
func (s *Stall) IsActive() bool {
	return !s.DeletedAt.Valid
}

// AcceptsOrders reports whether buyers may order from the stall.
func (s *Stall) AcceptsOrders() bool {
	return s.IsActive() && s.Status == enums.StallStatusApproved
}
