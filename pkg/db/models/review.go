package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a 1..5 rating a buyer leaves on a product of a completed order.
type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:ux_reviews_user_product_order"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index;uniqueIndex:ux_reviews_user_product_order"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index;uniqueIndex:ux_reviews_user_product_order"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   *string   `gorm:"column:comment;type:text"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Product   *Product  `gorm:"foreignKey:ProductID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Order     *Order    `gorm:"foreignKey:OrderID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
