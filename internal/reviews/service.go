package reviews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/notifications"
	"github.com/localstall/stallmarket-backend/internal/repo"
	"github.com/localstall/stallmarket-backend/pkg/db"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

const (
	MinRating        = 1
	MaxRating        = 5
	maxCommentLength = 2000
)

// CreateReviewInput is a buyer's rating of one product of a completed order.
type CreateReviewInput struct {
	OrderID   uuid.UUID `json:"orderId" validate:"required"`
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Comment   *string   `json:"comment" validate:"omitempty,max=2000"`
}

// ReviewDTO is the wire representation of a review.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	ProductID uuid.UUID `json:"productId"`
	OrderID   uuid.UUID `json:"orderId"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type notifier interface {
	Dispatch(ctx context.Context, events ...notifications.Event)
}

// Service exposes review operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*types.Page[ReviewDTO], error)
}

type service struct {
	repo     Repository
	notifier notifier
}

func NewService(repo Repository, notifier notifier) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{repo: repo, notifier: notifier}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error) {
	if input.Rating < MinRating || input.Rating > MaxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"rating": input.Rating})
	}
	comment := trimmed(input.Comment)
	if comment != nil && len(*comment) > maxCommentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment too long").
			WithDetails(map[string]any{"max": maxCommentLength})
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, repo.MapLookupError(err, "order")
	}
	if order.BuyerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may review this order")
	}
	if order.Status != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order must be completed before reviewing").
			WithDetails(map[string]any{"status": order.Status})
	}
	ok, err := s.repo.OrderHasProduct(ctx, order.ID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not part of this order").
			WithDetails(map[string]any{"productId": input.ProductID})
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: input.ProductID,
		OrderID:   order.ID,
		Rating:    input.Rating,
		Comment:   comment,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}

	if owner, err := s.repo.StallOwner(ctx, order.StallID); err == nil {
		s.notifier.Dispatch(ctx, notifications.Event{
			UserID: owner,
			Type:   enums.NotificationTypeNewReview,
			Params: types.Params{
				"productId": review.ProductID.String(),
				"orderId":   review.OrderID.String(),
				"rating":    review.Rating,
			},
		})
	}
	return toDTO(review), nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*types.Page[ReviewDTO], error) {
	if _, err := s.repo.FindActiveProduct(ctx, productID); err != nil {
		return nil, repo.MapLookupError(err, "product")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByProduct(ctx, productID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	page := &types.Page[ReviewDTO]{Items: make([]ReviewDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Items = append(page.Items, *toDTO(&rows[i]))
	}
	return page, nil
}

func toDTO(r *models.Review) *ReviewDTO {
	return &ReviewDTO{
		ID:        r.ID,
		UserID:    r.UserID,
		ProductID: r.ProductID,
		OrderID:   r.OrderID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
