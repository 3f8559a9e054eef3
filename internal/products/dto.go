package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/ratings"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

// CreateProductInput captures a new listing.
type CreateProductInput struct {
	Name          string  `json:"name" validate:"required,notblank,max=160"`
	Description   *string `json:"description" validate:"omitempty,max=4000"`
	PriceCents    int64   `json:"priceCents" validate:"required,gt=0"`
	StockType     string  `json:"stockType" validate:"omitempty"`
	StockQuantity *int    `json:"stockQuantity" validate:"omitempty,gte=0"`
	ImagePath     *string `json:"imagePath" validate:"omitempty,max=500"`
}

// UpdateProductInput carries optional listing changes.
type UpdateProductInput struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=160"`
	Description   *string `json:"description" validate:"omitempty,max=4000"`
	PriceCents    *int64  `json:"priceCents" validate:"omitempty,gt=0"`
	StockType     *string `json:"stockType"`
	StockQuantity *int    `json:"stockQuantity" validate:"omitempty,gte=0"`
	ImagePath     *string `json:"imagePath" validate:"omitempty,max=500"`
}

// ProductDTO is the wire representation of a product.
type ProductDTO struct {
	ID            uuid.UUID       `json:"id"`
	StallID       uuid.UUID       `json:"stallId"`
	Name          string          `json:"name"`
	Description   *string         `json:"description,omitempty"`
	Price         types.Money     `json:"price"`
	StockType     enums.StockType `json:"stockType"`
	StockQuantity *int            `json:"stockQuantity,omitempty"`
	ImagePath     *string         `json:"imagePath,omitempty"`
	Rating        ratings.Summary `json:"rating"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toDTO(p *models.Product, rating ratings.Summary) *ProductDTO {
	return &ProductDTO{
		ID:            p.ID,
		StallID:       p.StallID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         types.NewMoney(p.PriceCents),
		StockType:     p.StockType,
		StockQuantity: p.StockQuantity,
		ImagePath:     p.ImagePath,
		Rating:        rating,
		CreatedAt:     p.CreatedAt,
	}
}
