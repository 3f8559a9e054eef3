package messages

import (
	"context"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/repo"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository persists order chat lines.
type Repository interface {
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	StallOwner(ctx context.Context, stallID uuid.UUID) (uuid.UUID, error)
	Create(ctx context.Context, message *models.Message) error
	ListByOrder(ctx context.Context, orderID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Message, string, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) StallOwner(ctx context.Context, stallID uuid.UUID) (uuid.UUID, error) {
	var stall models.Stall
	if err := r.DB(ctx).Unscoped().Select("id", "owner_id").Where("id = ?", stallID).First(&stall).Error; err != nil {
		return uuid.Nil, err
	}
	return stall.OwnerID, nil
}

func (r *repository) Create(ctx context.Context, message *models.Message) error {
	return r.DB(ctx).Create(message).Error
}

// ListByOrder returns messages oldest first, resuming after cursor.
func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Message, string, error) {
	query := r.DB(ctx).Model(&models.Message{}).Where("order_id = ?", orderID)
	var rows []models.Message
	if err := pagination.ApplyAsc(query, "", cursor, limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, limit, func(m models.Message) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return rows, next, nil
}
