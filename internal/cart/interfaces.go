package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/orders"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindProductsAnyState(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	FindStall(ctx context.Context, stallID uuid.UUID) (*models.Stall, error)
	InsertItem(ctx context.Context, item *models.CartItem) error
	SetQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (bool, error)
	DeleteItems(ctx context.Context, cartID uuid.UUID, productIDs ...uuid.UUID) (int64, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderPlacer interface {
	CreateOrderTx(ctx context.Context, tx *gorm.DB, input orders.CreateOrderInput) (*orders.OrderDTO, error)
	Placed(ctx context.Context, order *orders.OrderDTO, origin string)
}

// coordinator is the redis surface used for per-user locks and the
// merge-once marker.
type coordinator interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(parts ...string) string
	CartMergeKey(sessionID string) string
}

type metricsRecorder interface {
	IncCartConflict(kind string)
}
