package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

// MinimumOrderCents is the platform-wide floor for an order total.
const MinimumOrderCents int64 = 500

// ItemInput is one requested line of a new order.
type ItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// CreateOrderInput carries a buyer's order request.
type CreateOrderInput struct {
	BuyerID  uuid.UUID
	StallID  uuid.UUID
	Items    []ItemInput
	Location string
	Origin   string
}

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// UpdateStatusInput requests a state machine transition.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Status  enums.OrderStatus
}

// ListParams configures order listings.
type ListParams struct {
	Limit  int
	Cursor string
	Status *enums.OrderStatus
}

// OrderItemDTO is an order line with its purchase-time price.
type OrderItemDTO struct {
	ProductID   uuid.UUID   `json:"productId"`
	ProductName string      `json:"productName"`
	Quantity    int         `json:"quantity"`
	UnitPrice   types.Money `json:"unitPrice"`
	LineTotal   types.Money `json:"lineTotal"`
}

// OrderDTO is the wire representation of an order.
type OrderDTO struct {
	ID          uuid.UUID           `json:"id"`
	BuyerID     uuid.UUID           `json:"buyerId"`
	StallID     uuid.UUID           `json:"stallId"`
	SellerID    uuid.UUID           `json:"sellerId"`
	Status      enums.OrderStatus   `json:"status"`
	Total       types.Money         `json:"total"`
	PickupCode  string              `json:"pickupCode"`
	Location    string              `json:"location"`
	NextStatus  []enums.OrderStatus `json:"nextStatuses"`
	Items       []OrderItemDTO      `json:"items"`
	CreatedAt   time.Time           `json:"createdAt"`
	ConfirmedAt *time.Time          `json:"confirmedAt,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	CancelledAt *time.Time          `json:"cancelledAt,omitempty"`
}

func toDTO(order models.Order, sellerID uuid.UUID, items []models.OrderItem, parties Party) *OrderDTO {
	dto := &OrderDTO{
		ID:          order.ID,
		BuyerID:     order.BuyerID,
		StallID:     order.StallID,
		SellerID:    sellerID,
		Status:      order.Status,
		Total:       types.NewMoney(order.TotalCents),
		PickupCode:  order.PickupCode,
		Location:    order.Location,
		NextStatus:  NextStatuses(order.Status, parties),
		Items:       make([]OrderItemDTO, 0, len(items)),
		CreatedAt:   order.CreatedAt,
		ConfirmedAt: order.ConfirmedAt,
		CompletedAt: order.CompletedAt,
		CancelledAt: order.CancelledAt,
	}
	if dto.NextStatus == nil {
		dto.NextStatus = []enums.OrderStatus{}
	}
	for _, item := range items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   types.NewMoney(item.PriceCentsAtPurchase),
			LineTotal:   types.NewMoney(item.LineTotalCents()),
		})
	}
	return dto
}
