package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is an append-only chat line attached to an order.
type Message struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index:ix_messages_order_created,priority:1"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Order     *Order    `gorm:"foreignKey:OrderID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Content   string    `gorm:"column:content;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:ix_messages_order_created,priority:2"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
