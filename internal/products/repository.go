package product

import (
	"context"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/repo"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// ProductRepository defines CRUD operations for product listings.
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id uuid.UUID, changes map[string]any) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	FindActive(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListByStall(ctx context.Context, stallID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Product, string, error)
	FindStall(ctx context.Context, stallID uuid.UUID) (*models.Stall, error)
}

// Repository persists products with gorm.
type Repository struct {
	repo.Base
}

// NewRepository binds the product repository to a connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Create(product).Error
}

func (r *Repository) UpdateProduct(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	return r.DB(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(changes).Error
}

// DeleteProduct soft deletes the product; order history keeps referencing it.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// FindActive loads a live product whose stall is live too.
func (r *Repository) FindActive(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := repo.ActiveStallJoin(r.DB(ctx).Model(&models.Product{})).
		Where("products.id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) ListByStall(ctx context.Context, stallID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Product, string, error) {
	query := repo.ActiveStallJoin(r.DB(ctx).Model(&models.Product{})).
		Where("products.stall_id = ?", stallID)
	var rows []models.Product
	if err := pagination.ApplyDesc(query, "products", cursor, limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return rows, next, nil
}

// FindStall loads a live stall.
func (r *Repository) FindStall(ctx context.Context, stallID uuid.UUID) (*models.Stall, error) {
	var stall models.Stall
	if err := r.DB(ctx).Where("id = ?", stallID).First(&stall).Error; err != nil {
		return nil, err
	}
	return &stall, nil
}
