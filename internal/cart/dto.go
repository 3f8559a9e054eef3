package cart

import (
	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

// ItemInput is one requested cart line.
type ItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gte=0,lte=999"`
}

// MergeInput carries the client-held cart collected before login.
type MergeInput struct {
	UserID    uuid.UUID
	SessionID string
	Items     []ItemInput
}

// CheckoutInput turns the caller's cart into an order.
type CheckoutInput struct {
	UserID   uuid.UUID
	Location string
}

// CartItemDTO renders a cart line at the product's live price.
type CartItemDTO struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	StallID     uuid.UUID       `json:"stallId"`
	Quantity    int             `json:"quantity"`
	StockType   enums.StockType `json:"stockType"`
	UnitPrice   types.Money     `json:"unitPrice"`
	LineTotal   types.Money     `json:"lineTotal"`
}

// CartDTO is the wire representation of a cart.
type CartDTO struct {
	ID        uuid.UUID     `json:"id"`
	StallID   *uuid.UUID    `json:"stallId"`
	Items     []CartItemDTO `json:"items"`
	ItemCount int           `json:"itemCount"`
	Subtotal  types.Money   `json:"subtotal"`
	Removed   []uuid.UUID   `json:"removedProductIds,omitempty"`
}

// SkippedItem reports an anonymous line that did not make it into the cart.
type SkippedItem struct {
	ProductID uuid.UUID      `json:"productId"`
	Quantity  int            `json:"quantity"`
	Reason    pkgerrors.Code `json:"reason"`
}

// MergeResult describes the outcome of folding an anonymous cart into the
// authenticated one.
type MergeResult struct {
	Cart            *CartDTO      `json:"cart"`
	Merged          []uuid.UUID   `json:"merged"`
	Dropped         []SkippedItem `json:"dropped"`
	Discarded       []SkippedItem `json:"discarded"`
	ConflictStallID *uuid.UUID    `json:"conflictStallId,omitempty"`
	AlreadyMerged   bool          `json:"alreadyMerged"`
}

// Halted reports whether a stall conflict stopped the merge.
func (r *MergeResult) Halted() bool {
	return r.ConflictStallID != nil
}

type line struct {
	item    models.CartItem
	product models.Product
}

func toDTO(cart *models.Cart, lines []line, removed []uuid.UUID) *CartDTO {
	dto := &CartDTO{
		ID:      cart.ID,
		Items:   make([]CartItemDTO, 0, len(lines)),
		Removed: removed,
	}
	var subtotal int64
	for _, l := range lines {
		lineTotal := l.product.PriceCents * int64(l.item.Quantity)
		subtotal += lineTotal
		dto.ItemCount += l.item.Quantity
		dto.Items = append(dto.Items, CartItemDTO{
			ProductID:   l.product.ID,
			ProductName: l.product.Name,
			StallID:     l.product.StallID,
			Quantity:    l.item.Quantity,
			StockType:   l.product.StockType,
			UnitPrice:   types.NewMoney(l.product.PriceCents),
			LineTotal:   types.NewMoney(lineTotal),
		})
	}
	if len(lines) > 0 {
		stallID := lines[0].product.StallID
		dto.StallID = &stallID
	}
	dto.Subtotal = types.NewMoney(subtotal)
	return dto
}
