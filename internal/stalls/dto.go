package stalls

import (
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/ratings"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
)

// Actor identifies the caller of a stall operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// CreateStallInput captures the fields a seller provides when opening a stall.
type CreateStallInput struct {
	Name        string  `json:"name" validate:"required,notblank,min=2,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Location    string  `json:"location" validate:"required,notblank,max=200"`
	LogoPath    *string `json:"logoPath" validate:"omitempty,max=500"`
	CoverPath   *string `json:"coverPath" validate:"omitempty,max=500"`
}

// UpdateStallInput captures the mutable stall fields; nil leaves a field as is.
type UpdateStallInput struct {
	Name        *string `json:"name" validate:"omitempty,notblank,min=2,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
	LogoPath    *string `json:"logoPath" validate:"omitempty,max=500"`
	CoverPath   *string `json:"coverPath" validate:"omitempty,max=500"`
}

// StallDTO is the wire representation of a stall.
type StallDTO struct {
	ID          uuid.UUID         `json:"id"`
	OwnerID     uuid.UUID         `json:"ownerId"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Location    string            `json:"location"`
	LogoPath    *string           `json:"logoPath,omitempty"`
	CoverPath   *string           `json:"coverPath,omitempty"`
	Status      enums.StallStatus `json:"status"`
	Rating      ratings.Summary   `json:"rating"`
	ReviewedAt  *time.Time        `json:"reviewedAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func toDTO(stall *models.Stall, rating ratings.Summary) *StallDTO {
	return &StallDTO{
		ID:          stall.ID,
		OwnerID:     stall.OwnerID,
		Name:        stall.Name,
		Description: stall.Description,
		Location:    stall.Location,
		LogoPath:    stall.LogoPath,
		CoverPath:   stall.CoverPath,
		Status:      stall.Status,
		Rating:      rating,
		ReviewedAt:  stall.ReviewedAt,
		CreatedAt:   stall.CreatedAt,
	}
}
