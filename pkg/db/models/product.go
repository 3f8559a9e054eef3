package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localstall/stallmarket-backend/pkg/enums"
)

// Product is an item a stall sells. Prices are integer cents.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	StallID       uuid.UUID       `gorm:"column:stall_id;type:uuid;not null;index"`
	Stall         *Stall          `gorm:"foreignKey:StallID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Name          string          `gorm:"column:name;type:text;not null"`
	Description   *string         `gorm:"column:description;type:text"`
	PriceCents    int64           `gorm:"column:price_cents;not null"`
	StockType     enums.StockType `gorm:"column:stock_type;type:varchar(16);not null;default:'in_stock'"`
	StockQuantity *int            `gorm:"column:stock_quantity"`
	ImagePath     *string         `gorm:"column:image_path;type:text"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsActive reports whether the product has not been soft deleted.
func (p *Product) IsActive() bool {
	return !p.DeletedAt.Valid
}
