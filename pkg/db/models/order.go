package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localstall/stallmarket-backend/pkg/enums"
)

// Order is a placed buyer order. Only status and timestamps change after creation.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID     uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	StallID     uuid.UUID         `gorm:"column:stall_id;type:uuid;not null;index"`
	Buyer       *User             `gorm:"foreignKey:BuyerID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Stall       *Stall            `gorm:"foreignKey:StallID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Status      enums.OrderStatus `gorm:"column:status;type:varchar(16);not null"`
	TotalCents  int64             `gorm:"column:total_cents;not null"`
	PickupCode  string            `gorm:"column:pickup_code;type:varchar(9);not null"`
	Location    string            `gorm:"column:location;type:text;not null"`
	ConfirmedAt *time.Time        `gorm:"column:confirmed_at"`
	CompletedAt *time.Time        `gorm:"column:completed_at"`
	CancelledAt *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem owns its price snapshot; it never reads the live product price.
type OrderItem struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID              uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID            uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Order                *Order    `gorm:"foreignKey:OrderID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Product              *Product  `gorm:"foreignKey:ProductID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	ProductName          string    `gorm:"column:product_name;type:text;not null"`
	Quantity             int       `gorm:"column:quantity;not null"`
	PriceCentsAtPurchase int64     `gorm:"column:price_cents_at_purchase;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (o *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// LineTotalCents returns the snapshot price times quantity.
func (o OrderItem) LineTotalCents() int64 {
	return o.PriceCentsAtPurchase * int64(o.Quantity)
}
