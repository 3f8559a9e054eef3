package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/orders"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/redis"
	"gorm.io/gorm"
)

const (
	lockTTL        = 10 * time.Second
	mergeMarkerTTL = 30 * 24 * time.Hour
)

// Service exposes cart operations for authenticated users.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, input ItemInput) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, input ItemInput) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	MergeAnonymousCart(ctx context.Context, input MergeInput) (*MergeResult, error)
	Checkout(ctx context.Context, input CheckoutInput) (*orders.OrderDTO, error)
}

// ServiceParams groups the cart service dependencies. Redis is optional unless
// Locking is set; without it the merge-once marker is skipped.
type ServiceParams struct {
	Repo    CartRepository
	Tx      txRunner
	Orders  orderPlacer
	Redis   coordinator
	Metrics metricsRecorder
	Locking bool
}

type service struct {
	repo    CartRepository
	tx      txRunner
	orders  orderPlacer
	redis   coordinator
	metrics metricsRecorder
	locking bool
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Locking && params.Redis == nil {
		return nil, fmt.Errorf("redis required for cart locking")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		orders:  params.Orders,
		redis:   params.Redis,
		metrics: params.Metrics,
		locking: params.Locking,
	}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var out *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindOrCreateByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		out, err = s.view(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input ItemInput) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity < 1 {
		input.Quantity = 1
	}

	var out *CartDTO
	err := s.withUserLock(ctx, userID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := repo.FindOrCreateByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			if err := s.addItem(ctx, repo, cart, userID, input); err != nil {
				return err
			}
			out, err = s.view(ctx, repo, cart)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID uuid.UUID, input ItemInput) (*CartDTO, error) {
	if input.Quantity <= 0 {
		return s.RemoveItem(ctx, userID, input.ProductID)
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Quantity > orders.MaxQuantity {
		return nil, quantityTooLarge(input.ProductID)
	}

	var out *CartDTO
	err := s.withUserLock(ctx, userID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := repo.FindOrCreateByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			updated, err := repo.SetQuantity(ctx, cart.ID, input.ProductID, input.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			if !updated {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").
					WithDetails(map[string]any{"productId": input.ProductID})
			}
			out, err = s.view(ctx, repo, cart)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem is a no-op when the product is not in the cart.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var out *CartDTO
	err := s.withUserLock(ctx, userID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := repo.FindOrCreateByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			if _, err := repo.DeleteItems(ctx, cart.ID, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
			}
			out, err = s.view(ctx, repo, cart)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var out *CartDTO
	err := s.withUserLock(ctx, userID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := repo.FindOrCreateByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			if err := repo.ClearItems(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
			out = toDTO(cart, nil, nil)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) MergeAnonymousCart(ctx context.Context, input MergeInput) (*MergeResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	marker := ""
	if s.redis != nil && input.SessionID != "" {
		marker = s.redis.CartMergeKey(input.SessionID)
		first, err := s.redis.SetNX(ctx, marker, input.UserID.String(), mergeMarkerTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim cart merge")
		}
		if !first {
			cart, err := s.GetCart(ctx, input.UserID)
			if err != nil {
				return nil, err
			}
			return &MergeResult{Cart: cart, Merged: []uuid.UUID{}, Dropped: []SkippedItem{}, Discarded: []SkippedItem{}, AlreadyMerged: true}, nil
		}
	}

	result := &MergeResult{Merged: []uuid.UUID{}, Dropped: []SkippedItem{}, Discarded: []SkippedItem{}}
	err := s.withUserLock(ctx, input.UserID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := repo.FindOrCreateByUser(ctx, input.UserID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			if err := s.merge(ctx, repo, cart, input, result); err != nil {
				return err
			}
			result.Cart, err = s.view(ctx, repo, cart)
			return err
		})
	})
	if err != nil {
		if marker != "" {
			_ = s.redis.Del(context.WithoutCancel(ctx), marker)
		}
		return nil, err
	}
	return result, nil
}

// merge applies each anonymous line in order. Self purchases and vanished
// products are dropped; the first stall conflict discards everything left.
func (s *service) merge(ctx context.Context, repo CartRepository, cart *models.Cart, input MergeInput, result *MergeResult) error {
	for i, item := range input.Items {
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		err := s.addItem(ctx, repo, cart, input.UserID, item)
		switch pkgerrors.CodeOf(err) {
		case "":
			result.Merged = append(result.Merged, item.ProductID)
		case pkgerrors.CodeStallConflict:
			stallID := conflictingStall(err)
			result.ConflictStallID = &stallID
			for _, rest := range input.Items[i:] {
				result.Discarded = append(result.Discarded, SkippedItem{ProductID: rest.ProductID, Quantity: rest.Quantity, Reason: pkgerrors.CodeStallConflict})
			}
			return nil
		case pkgerrors.CodeSelfPurchase, pkgerrors.CodeNotFound, pkgerrors.CodeValidation:
			result.Dropped = append(result.Dropped, SkippedItem{ProductID: item.ProductID, Quantity: item.Quantity, Reason: pkgerrors.CodeOf(err)})
		default:
			return err
		}
	}
	return nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*orders.OrderDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var placed *orders.OrderDTO
	err := s.withUserLock(ctx, input.UserID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := repo.FindByUser(ctx, input.UserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return emptyCart()
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			lines, _, err := s.live(ctx, repo, cart)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return emptyCart()
			}

			items := make([]orders.ItemInput, 0, len(lines))
			for _, l := range lines {
				items = append(items, orders.ItemInput{ProductID: l.product.ID, Quantity: l.item.Quantity})
			}
			order, err := s.orders.CreateOrderTx(ctx, tx, orders.CreateOrderInput{
				BuyerID:  input.UserID,
				StallID:  lines[0].product.StallID,
				Items:    items,
				Location: input.Location,
				Origin:   orders.OriginCheckout,
			})
			if err != nil {
				return err
			}
			if err := repo.ClearItems(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
			placed = order
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.orders.Placed(ctx, placed, orders.OriginCheckout)
	return placed, nil
}

// addItem applies the cart rules in order: the product must exist, the caller
// may not buy from their own stall whatever its status, the stall must accept
// orders, and the cart may only hold one stall's products.
func (s *service) addItem(ctx context.Context, repo CartRepository, cart *models.Cart, userID uuid.UUID, input ItemInput) error {
	product, err := repo.FindProduct(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return productNotFound(input.ProductID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	stall, err := repo.FindStall(ctx, product.StallID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return productNotFound(input.ProductID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stall")
	}
	if stall.OwnerID == userID {
		s.conflict("self_purchase")
		return pkgerrors.New(pkgerrors.CodeSelfPurchase, "cannot add products from your own stall").
			WithDetails(map[string]any{"productId": product.ID, "stallId": stall.ID})
	}
	if !stall.AcceptsOrders() {
		return productNotFound(input.ProductID)
	}

	lines, _, err := s.live(ctx, repo, cart)
	if err != nil {
		return err
	}
	if len(lines) > 0 && lines[0].product.StallID != product.StallID {
		s.conflict("stall_conflict")
		return pkgerrors.New(pkgerrors.CodeStallConflict, "cart holds products from another stall").
			WithDetails(map[string]any{
				"existingStallId":  lines[0].product.StallID,
				"requestedStallId": product.StallID,
			})
	}

	for _, l := range lines {
		if l.product.ID != product.ID {
			continue
		}
		quantity := l.item.Quantity + input.Quantity
		if quantity > orders.MaxQuantity {
			return quantityTooLarge(product.ID)
		}
		if _, err := repo.SetQuantity(ctx, cart.ID, product.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	}

	if input.Quantity > orders.MaxQuantity {
		return quantityTooLarge(product.ID)
	}
	if err := repo.InsertItem(ctx, &models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: input.Quantity}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart item")
	}
	return nil
}

// live loads the cart lines whose products still exist and drops the rest.
func (s *service) live(ctx context.Context, repo CartRepository, cart *models.Cart) ([]line, []uuid.UUID, error) {
	items, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	if len(items) == 0 {
		return nil, nil, nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := repo.FindProductsAnyState(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	lines := make([]line, 0, len(items))
	var stale []uuid.UUID
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive() {
			stale = append(stale, item.ProductID)
			continue
		}
		lines = append(lines, line{item: item, product: product})
	}
	if len(stale) > 0 {
		if _, err := repo.DeleteItems(ctx, cart.ID, stale...); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune cart items")
		}
	}
	return lines, stale, nil
}

func (s *service) view(ctx context.Context, repo CartRepository, cart *models.Cart) (*CartDTO, error) {
	lines, removed, err := s.live(ctx, repo, cart)
	if err != nil {
		return nil, err
	}
	return toDTO(cart, lines, removed), nil
}

// withUserLock serializes cart mutations per user when locking is enabled.
func (s *service) withUserLock(ctx context.Context, userID uuid.UUID, fn func() error) error {
	if !s.locking {
		return fn()
	}
	lock, err := redis.NewLock(s.redis, s.redis.LockKey("cart", userID.String()), lockTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build cart lock")
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lock")
	}
	if !acquired {
		s.conflict("locked")
		return pkgerrors.New(pkgerrors.CodeConflict, "cart is being modified by another request")
	}
	// The lease expires on its own if release fails.
	defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	return fn()
}

func (s *service) conflict(kind string) {
	if s.metrics != nil {
		s.metrics.IncCartConflict(kind)
	}
}

func conflictingStall(err error) uuid.UUID {
	typed := pkgerrors.As(err)
	if typed == nil {
		return uuid.Nil
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return uuid.Nil
	}
	id, _ := details["existingStallId"].(uuid.UUID)
	return id
}

func productNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"productId": productID})
}

func quantityTooLarge(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds maximum").
		WithDetails(map[string]any{"productId": productID, "max": orders.MaxQuantity})
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
}
