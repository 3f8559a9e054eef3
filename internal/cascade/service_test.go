package cascade

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/dbtest"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingCleaner struct {
	db            *gorm.DB
	paths         []string
	stallsAtClean int64
	err           error
}

func (r *recordingCleaner) Cleanup(ctx context.Context, paths []string) error {
	r.paths = append(r.paths, paths...)
	r.db.Unscoped().Model(&models.Stall{}).Count(&r.stallsAtClean)
	return r.err
}

type cascadeMetrics struct {
	outcomes map[string]int
	rows     map[string]int64
}

func (m *cascadeMetrics) IncCascadeDeletion(root, outcome string) { m.outcomes[root+":"+outcome]++ }
func (m *cascadeMetrics) AddCascadeRows(rows map[string]int64) {
	for k, v := range rows {
		m.rows[k] += v
	}
}

type world struct {
	db      *gorm.DB
	fx      *dbtest.Fixtures
	svc     Service
	cleaner *recordingCleaner
	metrics *cascadeMetrics
}

func newWorld(t *testing.T) *world {
	t.Helper()
	client, conn := dbtest.Client(t)
	w := &world{
		db:      conn,
		fx:      dbtest.NewFixtures(t, conn),
		cleaner: &recordingCleaner{db: conn},
		metrics: &cascadeMetrics{outcomes: map[string]int{}, rows: map[string]int64{}},
	}
	svc, err := NewService(ServiceParams{
		Tx:      client,
		Files:   w.cleaner,
		Metrics: w.metrics,
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	w.svc = svc
	return w
}

func strPtr(s string) *string { return &s }

func TestDeleteUserRemovesOwnedGraph(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	seller := w.fx.User("seller@example.com")
	buyer := w.fx.User("buyer@example.com")
	stall := w.fx.Stall(seller.ID, enums.StallStatusApproved)
	require.NoError(t, w.db.Model(stall).Updates(map[string]any{"logo_path": "stalls/logo.png", "cover_path": "stalls/cover.png"}).Error)
	product := w.fx.Product(stall.ID, 800)
	require.NoError(t, w.db.Model(product).Update("image_path", strPtr("products/p.png")).Error)

	order := w.fx.Order(buyer.ID, stall.ID, enums.OrderStatusCompleted, models.OrderItem{
		ProductID:            product.ID,
		ProductName:          product.Name,
		Quantity:             1,
		PriceCentsAtPurchase: 800,
	})
	w.fx.Review(buyer.ID, product.ID, order.ID, 5)
	w.fx.Review(w.fx.User("other@example.com").ID, product.ID, order.ID, 3)
	w.fx.Message(order.ID, buyer.ID, "ready?")
	w.fx.Message(order.ID, seller.ID, "yes")
	buyerCart := w.fx.CartWithItems(buyer.ID, map[uuid.UUID]int{product.ID: 1})

	elsewhere := w.fx.Stall(w.fx.User("elsewhere@example.com").ID, enums.StallStatusApproved)
	sellerPurchase := w.fx.Order(seller.ID, elsewhere.ID, enums.OrderStatusNewOrder)
	w.fx.Notification(seller.ID, enums.NotificationTypeOrderPlaced)
	w.fx.Notification(buyer.ID, enums.NotificationTypeOrderPlaced)

	report, err := w.svc.DeleteUser(ctx, seller.ID)
	require.NoError(t, err)
	require.True(t, report.Found)

	assert.Zero(t, w.fx.Count(&models.User{}, "id = ?", seller.ID))
	assert.Zero(t, w.fx.Count(&models.Stall{}, "id = ?", stall.ID))
	assert.Zero(t, w.fx.Count(&models.Product{}, "id = ?", product.ID))
	assert.Zero(t, w.fx.Count(&models.Review{}, ""))
	assert.Zero(t, w.fx.Count(&models.CartItem{}, ""))
	assert.Zero(t, w.fx.Count(&models.Order{}, "id IN ?", []uuid.UUID{order.ID, sellerPurchase.ID}))
	assert.Zero(t, w.fx.Count(&models.OrderItem{}, ""))
	assert.Zero(t, w.fx.Count(&models.Message{}, ""))
	assert.Zero(t, w.fx.Count(&models.Notification{}, "user_id = ?", seller.ID))

	assert.Equal(t, int64(1), w.fx.Count(&models.User{}, "id = ?", buyer.ID))
	assert.Equal(t, int64(1), w.fx.Count(&models.Cart{}, "id = ?", buyerCart.ID))
	assert.Equal(t, int64(1), w.fx.Count(&models.Notification{}, "user_id = ?", buyer.ID))
	assert.Equal(t, int64(1), w.fx.Count(&models.Stall{}, "id = ?", elsewhere.ID))

	assert.Equal(t, int64(2), report.Rows["orders"])
	assert.Equal(t, int64(2), report.Rows["reviews"])
	assert.Equal(t, int64(2), report.Rows["messages"])
	assert.Equal(t, int64(1), report.Rows["cart_items"])
	assert.Equal(t, int64(1), report.Rows["products"])
	assert.Equal(t, int64(1), report.Rows["stalls"])
	assert.Equal(t, int64(1), report.Rows["users"])

	assert.ElementsMatch(t, []string{"products/p.png", "stalls/logo.png", "stalls/cover.png"}, w.cleaner.paths)
	assert.Equal(t, int64(1), w.cleaner.stallsAtClean, "files are removed only after the stall row is gone")
	assert.Equal(t, 1, w.metrics.outcomes["user:deleted"])
	assert.Equal(t, int64(1), w.metrics.rows["users"])
}

func TestDeleteUserIsIdempotent(t *testing.T) {
	w := newWorld(t)
	user := w.fx.User("gone@example.com")
	w.fx.CartWithItems(user.ID, nil)

	first, err := w.svc.DeleteUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, first.Found)
	assert.Equal(t, int64(1), first.Rows["carts"])

	second, err := w.svc.DeleteUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, second.Found)
	assert.Empty(t, second.Rows)
	assert.Empty(t, w.cleaner.paths)
	assert.Equal(t, 1, w.metrics.outcomes["user:noop"])
}

func TestDeleteStallIncludesClosedStalls(t *testing.T) {
	w := newWorld(t)
	seller := w.fx.User("seller@example.com")
	stall := w.fx.Stall(seller.ID, enums.StallStatusApproved)
	product := w.fx.Product(stall.ID, 500)
	require.NoError(t, w.db.Delete(product).Error)
	require.NoError(t, w.db.Delete(stall).Error)

	report, err := w.svc.DeleteStall(context.Background(), stall.ID)
	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, int64(1), report.Rows["products"])
	assert.Zero(t, w.fx.Count(&models.Stall{}, ""))
	assert.Equal(t, int64(1), w.fx.Count(&models.User{}, "id = ?", seller.ID))
}

func TestDeleteSucceedsWhenFileCleanupFails(t *testing.T) {
	w := newWorld(t)
	w.cleaner.err = errors.New("disk on fire")
	stall := w.fx.Stall(w.fx.User("seller@example.com").ID, enums.StallStatusApproved)
	require.NoError(t, w.db.Model(stall).Update("logo_path", "stalls/logo.png").Error)

	report, err := w.svc.DeleteStall(context.Background(), stall.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"stalls/logo.png"}, report.Files)
}

type failingTx struct{}

func (failingTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return errors.New("connection reset")
}

func TestDeleteReportsTransactionFailure(t *testing.T) {
	metrics := &cascadeMetrics{outcomes: map[string]int{}, rows: map[string]int64{}}
	svc, err := NewService(ServiceParams{Tx: failingTx{}, Metrics: metrics, Logger: logger.Nop()})
	require.NoError(t, err)

	_, err = svc.DeleteUser(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeTransactionFailed, pkgerrors.CodeOf(err))
	assert.Equal(t, 1, metrics.outcomes["user:failed"])

	_, err = svc.DeleteStall(context.Background(), uuid.Nil)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
