package reviews

import (
	"context"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/repo"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines review persistence.
type Repository interface {
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	OrderHasProduct(ctx context.Context, orderID, productID uuid.UUID) (bool, error)
	FindActiveProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	StallOwner(ctx context.Context, stallID uuid.UUID) (uuid.UUID, error)
	Create(ctx context.Context, review *models.Review) error
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Review, string, error)
}

type repository struct {
	repo.Base
}

// NewRepository binds the review repository to a connection.
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

func (r *repository) OrderHasProduct(ctx context.Context, orderID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindActiveProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := repo.ActiveStallJoin(r.DB(ctx).Model(&models.Product{})).
		Where("products.id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// StallOwner resolves the owner even for closed stalls.
func (r *repository) StallOwner(ctx context.Context, stallID uuid.UUID) (uuid.UUID, error) {
	var stall models.Stall
	if err := r.DB(ctx).Unscoped().Select("id", "owner_id").Where("id = ?", stallID).First(&stall).Error; err != nil {
		return uuid.Nil, err
	}
	return stall.OwnerID, nil
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.DB(ctx).Create(review).Error
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Review, string, error) {
	query := r.DB(ctx).Model(&models.Review{}).Where("product_id = ?", productID)
	var rows []models.Review
	if err := pagination.ApplyDesc(query, "", cursor, limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return rows, next, nil
}
