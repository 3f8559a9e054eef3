package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/notifications"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindStall(ctx context.Context, stallID uuid.UUID) (*models.Stall, error)
	FindStallAnyState(ctx context.Context, stallID uuid.UUID) (*models.Stall, error)
	FindStallOwners(ctx context.Context, stallIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]models.OrderItem, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, filter listFilter) ([]models.Order, string, error)
	ListByStall(ctx context.Context, stallID uuid.UUID, filter listFilter) ([]models.Order, string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Dispatch(ctx context.Context, events ...notifications.Event)
}

type metricsRecorder interface {
	IncOrderCreated(origin string)
	IncOrderTransition(from, to string)
	IncOrderRejection(code string)
}

type listFilter struct {
	Limit  int
	Cursor *pagination.Cursor
	Status *enums.OrderStatus
}
