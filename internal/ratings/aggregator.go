// Package ratings derives average ratings and review counts from the review
// set on read. Nothing here is ever persisted on products or stalls.
package ratings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localstall/stallmarket-backend/internal/repo"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
)

// Summary is the derived rating of a product or stall.
type Summary struct {
	Average     float64 `json:"average"`
	ReviewCount int64   `json:"reviewCount"`
}

// Aggregator computes rating summaries with grouped queries.
type Aggregator struct {
	repo.Base
}

// NewAggregator binds the aggregator to a connection.
func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{Base: repo.NewBase(db)}
}

type aggregateRow struct {
	ID      uuid.UUID `gorm:"column:id"`
	Average float64   `gorm:"column:average"`
	Count   int64     `gorm:"column:review_count"`
}

// ProductAverage returns the mean rating of one product, 0 when unreviewed.
func (a *Aggregator) ProductAverage(ctx context.Context, productID uuid.UUID) (Summary, error) {
	summaries, err := a.ProductSummaries(ctx, []uuid.UUID{productID})
	if err != nil {
		return Summary{}, err
	}
	return summaries[productID], nil
}

// StallAverage returns the mean rating over every live product of a stall.
func (a *Aggregator) StallAverage(ctx context.Context, stallID uuid.UUID) (Summary, error) {
	summaries, err := a.StallSummaries(ctx, []uuid.UUID{stallID})
	if err != nil {
		return Summary{}, err
	}
	return summaries[stallID], nil
}

// ProductSummaries batch-computes summaries keyed by product id. Every
// requested id is present in the result; an empty input yields an empty map.
func (a *Aggregator) ProductSummaries(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]Summary, error) {
	ids := dedupe(productIDs)
	out := make(map[uuid.UUID]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []aggregateRow
	err := a.DB(ctx).
		Table("reviews").
		Select("reviews.product_id AS id, AVG(reviews.rating) AS average, COUNT(*) AS review_count").
		Joins("JOIN products ON products.id = reviews.product_id AND products.deleted_at IS NULL").
		Joins("JOIN stalls ON stalls.id = products.stall_id AND stalls.deleted_at IS NULL").
		Where("reviews.product_id IN ?", ids).
		Group("reviews.product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate product ratings")
	}
	return fill(out, ids, rows), nil
}

// StallSummaries batch-computes summaries keyed by stall id.
func (a *Aggregator) StallSummaries(ctx context.Context, stallIDs []uuid.UUID) (map[uuid.UUID]Summary, error) {
	ids := dedupe(stallIDs)
	out := make(map[uuid.UUID]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []aggregateRow
	err := a.DB(ctx).
		Table("reviews").
		Select("products.stall_id AS id, AVG(reviews.rating) AS average, COUNT(*) AS review_count").
		Joins("JOIN products ON products.id = reviews.product_id AND products.deleted_at IS NULL").
		Joins("JOIN stalls ON stalls.id = products.stall_id AND stalls.deleted_at IS NULL").
		Where("products.stall_id IN ?", ids).
		Group("products.stall_id").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate stall ratings")
	}
	return fill(out, ids, rows), nil
}

func fill(out map[uuid.UUID]Summary, ids []uuid.UUID, rows []aggregateRow) map[uuid.UUID]Summary {
	for _, id := range ids {
		out[id] = Summary{}
	}
	for _, row := range rows {
		out[row.ID] = Summary{Average: row.Average, ReviewCount: row.Count}
	}
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// String renders a summary for logs.
func (s Summary) String() string {
	return fmt.Sprintf("%.2f (%d)", s.Average, s.ReviewCount)
}
