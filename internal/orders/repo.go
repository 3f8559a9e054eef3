package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindStall loads a live stall; soft-deleted stalls are reported as not found.
func (r *repository) FindStall(ctx context.Context, stallID uuid.UUID) (*models.Stall, error) {
	var stall models.Stall
	if err := r.db.WithContext(ctx).Where("id = ?", stallID).First(&stall).Error; err != nil {
		return nil, err
	}
	return &stall, nil
}

// FindStallAnyState includes soft-deleted stalls so past orders keep their seller.
func (r *repository) FindStallAnyState(ctx context.Context, stallID uuid.UUID) (*models.Stall, error) {
	var stall models.Stall
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", stallID).First(&stall).Error; err != nil {
		return nil, err
	}
	return &stall, nil
}

// FindStallOwners maps each stall id to its owner, soft-deleted stalls included.
func (r *repository) FindStallOwners(ctx context.Context, stallIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(stallIDs))
	if len(stallIDs) == 0 {
		return out, nil
	}
	var rows []models.Stall
	if err := r.db.WithContext(ctx).Unscoped().
		Select("id", "owner_id").
		Where("id IN ?", stallIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.OwnerID
	}
	return out, nil
}

// FindProducts returns the live products among ids.
func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) == 0 {
		return nil
	}
	return db.Create(&items).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindItems groups the items of every order in orderIDs.
func (r *repository) FindItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]models.OrderItem, error) {
	out := make(map[uuid.UUID][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var rows []models.OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OrderID] = append(out[row.OrderID], row)
	}
	return out, nil
}

// TransitionStatus moves the order from one status to another only if it is
// still in from. It reports whether a row changed.
func (r *repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case enums.OrderStatusConfirmed:
		updates["confirmed_at"] = at
	case enums.OrderStatusCompleted:
		updates["completed_at"] = at
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = at
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, filter listFilter) ([]models.Order, string, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.Order{}).Where("buyer_id = ?", buyerID), filter)
}

func (r *repository) ListByStall(ctx context.Context, stallID uuid.UUID, filter listFilter) ([]models.Order, string, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.Order{}).Where("stall_id = ?", stallID), filter)
}

func (r *repository) list(query *gorm.DB, filter listFilter) ([]models.Order, string, error) {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var rows []models.Order
	if err := pagination.ApplyDesc(query, "", filter.Cursor, filter.Limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, filter.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return rows, next, nil
}
