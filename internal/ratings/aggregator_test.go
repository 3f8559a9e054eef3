package ratings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/localstall/stallmarket-backend/pkg/db/dbtest"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
)

type ratingFixture struct {
	agg      *Aggregator
	fx       *dbtest.Fixtures
	stall    *models.Stall
	other    *models.Stall
	apple    *models.Product
	pear     *models.Product
	plum     *models.Product
	buyer    *models.User
	order    *models.Order
}

func setup(t *testing.T) *ratingFixture {
	t.Helper()
	conn := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, conn)
	seller := fx.User("seller@example.com")
	otherSeller := fx.User("other@example.com")
	buyer := fx.User("buyer@example.com")
	stall := fx.Stall(seller.ID, enums.StallStatusApproved)
	other := fx.Stall(otherSeller.ID, enums.StallStatusApproved)

	f := &ratingFixture{
		agg:   NewAggregator(conn),
		fx:    fx,
		stall: stall,
		other: other,
		apple: fx.Product(stall.ID, 300),
		pear:  fx.Product(stall.ID, 400),
		plum:  fx.Product(other.ID, 200),
		buyer: buyer,
	}
	f.order = fx.Order(buyer.ID, stall.ID, enums.OrderStatusCompleted)
	return f
}

func TestProductAverageWithoutReviewsIsZero(t *testing.T) {
	f := setup(t)

	summary, err := f.agg.ProductAverage(context.Background(), f.apple.ID)
	require.NoError(t, err)
	require.Equal(t, Summary{}, summary)
	require.Zero(t, summary.Average)
}

func TestProductAndStallAverages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.fx.Review(f.buyer.ID, f.apple.ID, f.order.ID, 5)
	f.fx.Review(f.fx.User("b2@example.com").ID, f.apple.ID, f.order.ID, 4)
	f.fx.Review(f.buyer.ID, f.pear.ID, f.order.ID, 1)
	f.fx.Review(f.buyer.ID, f.plum.ID, f.order.ID, 3)

	apple, err := f.agg.ProductAverage(ctx, f.apple.ID)
	require.NoError(t, err)
	require.InDelta(t, 4.5, apple.Average, 1e-9)
	require.EqualValues(t, 2, apple.ReviewCount)

	stall, err := f.agg.StallAverage(ctx, f.stall.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0/3.0, stall.Average, 1e-9)
	require.EqualValues(t, 3, stall.ReviewCount)

	batch, err := f.agg.StallSummaries(ctx, []uuid.UUID{f.stall.ID, f.other.ID, f.stall.ID})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.InDelta(t, 3.0, batch[f.other.ID].Average, 1e-9)

	products, err := f.agg.ProductSummaries(ctx, []uuid.UUID{f.apple.ID, f.pear.ID, f.plum.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, products, 4)
	require.InDelta(t, 1.0, products[f.pear.ID].Average, 1e-9)
}

func TestBatchWithEmptyIDsReturnsEmptyMap(t *testing.T) {
	f := setup(t)

	products, err := f.agg.ProductSummaries(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, products)
	require.Empty(t, products)

	stalls, err := f.agg.StallSummaries(context.Background(), []uuid.UUID{})
	require.NoError(t, err)
	require.Empty(t, stalls)
}

func TestSoftDeletedProductsAreExcluded(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	conn := f.agg.Raw()

	f.fx.Review(f.buyer.ID, f.apple.ID, f.order.ID, 5)
	f.fx.Review(f.buyer.ID, f.pear.ID, f.order.ID, 1)

	require.NoError(t, conn.Delete(&models.Product{}, "id = ?", f.pear.ID).Error)

	stall, err := f.agg.StallAverage(ctx, f.stall.ID)
	require.NoError(t, err)
	require.InDelta(t, 5.0, stall.Average, 1e-9)
	require.EqualValues(t, 1, stall.ReviewCount)

	pear, err := f.agg.ProductAverage(ctx, f.pear.ID)
	require.NoError(t, err)
	require.Zero(t, pear.ReviewCount)

	require.NoError(t, conn.Delete(&models.Stall{}, "id = ?", f.stall.ID).Error)
	stall, err = f.agg.StallAverage(ctx, f.stall.ID)
	require.NoError(t, err)
	require.Equal(t, Summary{}, stall)
}
