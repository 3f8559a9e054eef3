// Package dbtest opens throwaway SQLite databases migrated with every model.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/localstall/stallmarket-backend/pkg/db"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
)

// Open returns an isolated in-memory database with foreign keys enforced. A
// single pooled connection keeps every statement on the same SQLite handle.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := db.SQLiteDSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	conn, err := gorm.Open(sqlite.Open(dsn), db.Config())
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

// Client wraps Open in a db.Client.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromGorm(conn), conn
}

// Fixtures creates rows with sensible defaults.
type Fixtures struct {
	t  *testing.T
	db *gorm.DB
}

func NewFixtures(t *testing.T, conn *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: conn}
}

func (f *Fixtures) User(email string) *models.User {
	f.t.Helper()
	user := &models.User{
		Email:       email,
		DisplayName: email,
		Provider:    "google",
		ExternalID:  uuid.NewString(),
	}
	require.NoError(f.t, f.db.Create(user).Error)
	return user
}

func (f *Fixtures) Stall(ownerID uuid.UUID, status enums.StallStatus) *models.Stall {
	f.t.Helper()
	stall := &models.Stall{
		OwnerID:  ownerID,
		Name:     "Stall " + ownerID.String()[:8],
		Location: "Market square",
		Status:   status,
	}
	require.NoError(f.t, f.db.Create(stall).Error)
	return stall
}

func (f *Fixtures) Product(stallID uuid.UUID, priceCents int64) *models.Product {
	f.t.Helper()
	product := &models.Product{
		StallID:    stallID,
		Name:       "Product " + uuid.NewString()[:8],
		PriceCents: priceCents,
		StockType:  enums.StockTypeInStock,
	}
	require.NoError(f.t, f.db.Create(product).Error)
	return product
}

func (f *Fixtures) Order(buyerID, stallID uuid.UUID, status enums.OrderStatus, items ...models.OrderItem) *models.Order {
	f.t.Helper()
	var total int64
	for _, item := range items {
		total += item.LineTotalCents()
	}
	order := &models.Order{
		BuyerID:    buyerID,
		StallID:    stallID,
		Status:     status,
		TotalCents: total,
		PickupCode: "1234-5678",
		Location:   "North gate",
	}
	require.NoError(f.t, f.db.Create(order).Error)
	for i := range items {
		items[i].OrderID = order.ID
		require.NoError(f.t, f.db.Create(&items[i]).Error)
	}
	return order
}

func (f *Fixtures) Review(userID, productID, orderID uuid.UUID, rating int) *models.Review {
	f.t.Helper()
	review := &models.Review{UserID: userID, ProductID: productID, OrderID: orderID, Rating: rating}
	require.NoError(f.t, f.db.Create(review).Error)
	return review
}

func (f *Fixtures) Message(orderID, userID uuid.UUID, content string) *models.Message {
	f.t.Helper()
	msg := &models.Message{OrderID: orderID, UserID: userID, Content: content}
	require.NoError(f.t, f.db.Create(msg).Error)
	return msg
}

func (f *Fixtures) CartWithItems(userID uuid.UUID, items map[uuid.UUID]int) *models.Cart {
	f.t.Helper()
	cart := &models.Cart{UserID: &userID}
	require.NoError(f.t, f.db.Create(cart).Error)
	for productID, qty := range items {
		require.NoError(f.t, f.db.Create(&models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: qty}).Error)
	}
	return cart
}

func (f *Fixtures) Notification(userID uuid.UUID, kind enums.NotificationType) *models.Notification {
	f.t.Helper()
	n := &models.Notification{UserID: userID, Type: kind}
	require.NoError(f.t, f.db.Create(n).Error)
	return n
}

// Count returns the number of rows of model, including soft-deleted ones.
func (f *Fixtures) Count(model any, query string, args ...any) int64 {
	f.t.Helper()
	var count int64
	q := f.db.Unscoped().Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(f.t, q.Count(&count).Error)
	return count
}
