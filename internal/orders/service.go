package orders

import (
	"context"
	"errors"
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
	"gorm.io/gorm"
)

const (
	// MaxQuantity caps a single order or cart line.
	MaxQuantity = 999

	OriginDirect   = "direct"
	OriginCheckout = "checkout"
)

// Service exposes the order lifecycle.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	// CreateOrderTx runs order creation inside the caller's transaction. The
	// caller must invoke Placed once the transaction has committed.
	CreateOrderTx(ctx context.Context, tx *gorm.DB, input CreateOrderInput) (*OrderDTO, error)
	Placed(ctx context.Context, order *OrderDTO, origin string)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params ListParams) (*types.Page[OrderDTO], error)
	ListForStall(ctx context.Context, stallID uuid.UUID, actor Actor, params ListParams) (*types.Page[OrderDTO], error)
}

// ServiceParams configure the orders service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Notifier notifier
	Metrics  metricsRecorder
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier notifier
	metrics  metricsRecorder
	now      func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	var created *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dto, err := s.create(ctx, s.repo.WithTx(tx), input)
		if err != nil {
			return err
		}
		created = dto
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}
	origin := input.Origin
	if origin == "" {
		origin = OriginDirect
	}
	s.Placed(ctx, created, origin)
	return created, nil
}

func (s *service) CreateOrderTx(ctx context.Context, tx *gorm.DB, input CreateOrderInput) (*OrderDTO, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	dto, err := s.create(ctx, s.repo.WithTx(tx), input)
	if err != nil {
		return nil, s.reject(err)
	}
	return dto, nil
}

// Placed records a committed order and tells the seller about it.
func (s *service) Placed(ctx context.Context, order *OrderDTO, origin string) {
	if order == nil {
		return
	}
	if s.metrics != nil {
		s.metrics.IncOrderCreated(origin)
	}
	s.notifier.Dispatch(ctx, notifications.Event{
		UserID: order.SellerID,
		Type:   enums.NotificationTypeOrderPlaced,
		Params: types.Params{
			"orderId":    order.ID.String(),
			"stallId":    order.StallID.String(),
			"totalCents": order.Total.Cents,
		},
	})
}

func (s *service) create(ctx context.Context, repository Repository, input CreateOrderInput) (*OrderDTO, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.StallID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stall id required")
	}
	requested, err := normalizeItems(input.Items)
	if err != nil {
		return nil, err
	}

	stall, err := repository.FindStall(ctx, input.StallID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stallUnavailable(input.StallID, "")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stall")
	}
	if !stall.AcceptsOrders() {
		return nil, stallUnavailable(stall.ID, stall.Status)
	}
	if stall.OwnerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeSelfPurchase, "cannot order from your own stall").
			WithDetails(map[string]any{"stallId": stall.ID})
	}

	ids := make([]uuid.UUID, 0, len(requested))
	for _, item := range requested {
		ids = append(ids, item.ProductID)
	}
	products, err := repository.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]models.OrderItem, 0, len(requested))
	var total int64
	for _, item := range requested {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if product.StallID != stall.ID {
			return nil, pkgerrors.New(pkgerrors.CodeProductMismatch, "product belongs to a different stall").
				WithDetails(map[string]any{
					"productId":       product.ID,
					"productStallId":  product.StallID,
					"expectedStallId": stall.ID,
				})
		}
		lines = append(lines, models.OrderItem{
			ProductID:            product.ID,
			ProductName:          product.Name,
			Quantity:             item.Quantity,
			PriceCentsAtPurchase: product.PriceCents,
		})
		total += product.PriceCents * int64(item.Quantity)
	}

	if total < MinimumOrderCents {
		return nil, pkgerrors.New(pkgerrors.CodeBelowMinimum, "order total is below the minimum").
			WithDetails(map[string]any{
				"totalCents":   total,
				"minimumCents": MinimumOrderCents,
				"total":        types.FormatCents(total),
				"minimum":      types.FormatCents(MinimumOrderCents),
			})
	}

	code, err := generatePickupCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate pickup code")
	}
	location := strings.TrimSpace(input.Location)
	if location == "" {
		location = stall.Location
	}

	order := models.Order{
		BuyerID:    input.BuyerID,
		StallID:    stall.ID,
		Status:     enums.OrderStatusNewOrder,
		TotalCents: total,
		PickupCode: code,
		Location:   location,
	}
	if err := repository.CreateOrder(ctx, &order, lines); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}
	return toDTO(order, stall.OwnerID, lines, PartyBuyer), nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": input.Status})
	}

	order, stall, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	parties := partiesFor(order, stall, input.Actor)
	if parties == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	dto, err := s.transition(ctx, order, stall, input.Actor, parties, input.Status)
	if err != nil {
		return nil, s.reject(err)
	}
	return dto, nil
}

// CancelOrder is the buyer's cancellation path; it only applies to new orders.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, stall, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can cancel this order")
	}
	if order.Status != enums.OrderStatusNewOrder {
		return nil, s.reject(invalidTransition(order.Status, enums.OrderStatusCancelled))
	}
	dto, err := s.transition(ctx, order, stall, actor, PartyBuyer, enums.OrderStatusCancelled)
	if err != nil {
		return nil, s.reject(err)
	}
	return dto, nil
}

func (s *service) transition(ctx context.Context, order *models.Order, stall *models.Stall, actor Actor, parties Party, to enums.OrderStatus) (*OrderDTO, error) {
	from := order.Status
	if !CanTransition(from, to) {
		return nil, invalidTransition(from, to)
	}
	if !PermittedFor(from, to, parties) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller may not perform this transition").
			WithDetails(map[string]any{"from": from, "to": to})
	}

	now := s.now().UTC()
	changed, err := s.repo.TransitionStatus(ctx, order.ID, from, to, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !changed {
		current, err := s.repo.FindOrder(ctx, order.ID)
		if err != nil {
			return nil, repo.MapLookupError(err, "order")
		}
		return nil, invalidTransition(current.Status, to)
	}
	if s.metrics != nil {
		s.metrics.IncOrderTransition(from.String(), to.String())
	}

	order.Status = to
	order.UpdatedAt = now
	switch to {
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case enums.OrderStatusCompleted:
		order.CompletedAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}

	items, err := s.repo.FindItems(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}

	var events []notifications.Event
	for _, recipient := range []uuid.UUID{order.BuyerID, stall.OwnerID} {
		if recipient == actor.UserID {
			continue
		}
		events = append(events, notifications.Event{
			UserID: recipient,
			Type:   enums.NotificationTypeOrderStatusChanged,
			Params: types.Params{
				"orderId": order.ID.String(),
				"stallId": order.StallID.String(),
				"from":    from.String(),
				"to":      to.String(),
			},
		})
	}
	s.notifier.Dispatch(ctx, events...)

	return toDTO(*order, stall.OwnerID, items[order.ID], parties), nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, stall, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	parties := partiesFor(order, stall, actor)
	if parties == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	items, err := s.repo.FindItems(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return toDTO(*order, stall.OwnerID, items[order.ID], parties), nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params ListParams) (*types.Page[OrderDTO], error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	filter, err := toFilter(params)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByBuyer(ctx, buyerID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return s.page(ctx, rows, next, func(models.Order, uuid.UUID) Party { return PartyBuyer })
}

func (s *service) ListForStall(ctx context.Context, stallID uuid.UUID, actor Actor, params ListParams) (*types.Page[OrderDTO], error) {
	if stallID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stall id required")
	}
	stall, err := s.repo.FindStallAnyState(ctx, stallID)
	if err != nil {
		return nil, repo.MapLookupError(err, "stall")
	}
	if stall.OwnerID != actor.UserID && !actor.IsAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "stall does not belong to caller")
	}
	filter, err := toFilter(params)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByStall(ctx, stallID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return s.page(ctx, rows, next, func(o models.Order, seller uuid.UUID) Party {
		return partiesFor(&o, &models.Stall{ID: o.StallID, OwnerID: seller}, actor)
	})
}

func (s *service) page(ctx context.Context, rows []models.Order, next string, partyOf func(models.Order, uuid.UUID) Party) (*types.Page[OrderDTO], error) {
	orderIDs := make([]uuid.UUID, 0, len(rows))
	stallIDs := make([]uuid.UUID, 0, len(rows))
	seen := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		orderIDs = append(orderIDs, row.ID)
		if _, ok := seen[row.StallID]; !ok {
			seen[row.StallID] = struct{}{}
			stallIDs = append(stallIDs, row.StallID)
		}
	}
	items, err := s.repo.FindItems(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	owners, err := s.repo.FindStallOwners(ctx, stallIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stall owners")
	}

	out := &types.Page[OrderDTO]{Items: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		seller := owners[row.StallID]
		out.Items = append(out.Items, *toDTO(row, seller, items[row.ID], partyOf(row, seller)))
	}
	return out, nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, *models.Stall, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, nil, repo.MapLookupError(err, "order")
	}
	stall, err := s.repo.FindStallAnyState(ctx, order.StallID)
	if err != nil {
		return nil, nil, repo.MapLookupError(err, "stall")
	}
	return order, stall, nil
}

// reject counts expected business rejections before handing err back.
func (s *service) reject(err error) error {
	err = db.TxError(err, "place order")
	if s.metrics != nil && pkgerrors.IsExpected(err) {
		s.metrics.IncOrderRejection(string(pkgerrors.CodeOf(err)))
	}
	return err
}

func partiesFor(order *models.Order, stall *models.Stall, actor Actor) Party {
	var parties Party
	if actor.UserID != uuid.Nil && order.BuyerID == actor.UserID {
		parties |= PartyBuyer
	}
	if actor.UserID != uuid.Nil && stall != nil && stall.OwnerID == actor.UserID {
		parties |= PartySeller
	}
	if actor.IsAdmin {
		parties |= PartyAdmin
	}
	return parties
}

func normalizeItems(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	index := make(map[uuid.UUID]int, len(items))
	out := make([]ItemInput, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if pos, ok := index[item.ProductID]; ok {
			out[pos].Quantity += item.Quantity
		} else {
			index[item.ProductID] = len(out)
			out = append(out, item)
		}
	}
	for _, item := range out {
		if item.Quantity > MaxQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity too large").
				WithDetails(map[string]any{"productId": item.ProductID, "max": MaxQuantity})
		}
	}
	return out, nil
}

func toFilter(params ListParams) (listFilter, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return listFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return listFilter{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	return listFilter{Limit: params.Limit, Cursor: cursor, Status: params.Status}, nil
}

func stallUnavailable(stallID uuid.UUID, status enums.StallStatus) error {
	details := map[string]any{"stallId": stallID}
	if status != "" {
		details["status"] = status
	}
	return pkgerrors.New(pkgerrors.CodeStallUnavailable, "stall is not accepting orders").WithDetails(details)
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot move order from %s to %s", from, to).
		WithDetails(map[string]any{"from": from, "to": to})
}
