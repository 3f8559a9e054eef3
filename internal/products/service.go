package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/ratings"
	"github.com/localstall/stallmarket-backend/internal/repo"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

type ratingSource interface {
	ProductSummaries(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ratings.Summary, error)
}

type pathResolver interface {
	Resolve(relativePath string) (string, error)
}

// Service exposes product listing operations.
type Service interface {
	Create(ctx context.Context, actorID, stallID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, actorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListByStall(ctx context.Context, stallID uuid.UUID, params pagination.Params) (*types.Page[ProductDTO], error)
	Delete(ctx context.Context, actorID, productID uuid.UUID) error
}

type service struct {
	repo    ProductRepository
	ratings ratingSource
	paths   pathResolver
}

// NewService builds a product service. paths may be nil, which skips upload
// path checks.
func NewService(repo ProductRepository, ratings ratingSource, paths pathResolver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if ratings == nil {
		return nil, fmt.Errorf("rating source required")
	}
	return &service{repo: repo, ratings: ratings, paths: paths}, nil
}

func (s *service) Create(ctx context.Context, actorID, stallID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if _, err := s.ownedStall(ctx, actorID, stallID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.PriceCents <= 0 {
		return nil, invalidPrice(input.PriceCents)
	}
	stockType := enums.StockTypeInStock
	if strings.TrimSpace(input.StockType) != "" {
		parsed, err := enums.ParseStockType(input.StockType)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stock type")
		}
		stockType = parsed
	}
	if err := validateStock(stockType, input.StockQuantity); err != nil {
		return nil, err
	}
	if err := s.checkPath(input.ImagePath); err != nil {
		return nil, err
	}

	product := &models.Product{
		StallID:       stallID,
		Name:          name,
		Description:   trimmed(input.Description),
		PriceCents:    input.PriceCents,
		StockType:     stockType,
		StockQuantity: input.StockQuantity,
		ImagePath:     trimmed(input.ImagePath),
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return toDTO(product, ratings.Summary{}), nil
}

func (s *service) Update(ctx context.Context, actorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindActive(ctx, productID)
	if err != nil {
		return nil, repo.MapLookupError(err, "product")
	}
	if _, err := s.ownedStall(ctx, actorID, product.StallID); err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		product.Name = name
		changes["name"] = name
	}
	if input.Description != nil {
		product.Description = trimmed(input.Description)
		changes["description"] = product.Description
	}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return nil, invalidPrice(*input.PriceCents)
		}
		product.PriceCents = *input.PriceCents
		changes["price_cents"] = product.PriceCents
	}
	if input.StockType != nil {
		parsed, err := enums.ParseStockType(*input.StockType)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stock type")
		}
		product.StockType = parsed
		changes["stock_type"] = parsed
		if !parsed.TracksQuantity() {
			product.StockQuantity = nil
			changes["stock_quantity"] = nil
		}
	}
	if input.StockQuantity != nil {
		product.StockQuantity = input.StockQuantity
		changes["stock_quantity"] = *input.StockQuantity
	}
	if err := validateStock(product.StockType, product.StockQuantity); err != nil {
		return nil, err
	}
	if input.ImagePath != nil {
		if err := s.checkPath(input.ImagePath); err != nil {
			return nil, err
		}
		product.ImagePath = trimmed(input.ImagePath)
		changes["image_path"] = product.ImagePath
	}

	if err := s.repo.UpdateProduct(ctx, product.ID, changes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return s.withRating(ctx, product)
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindActive(ctx, productID)
	if err != nil {
		return nil, repo.MapLookupError(err, "product")
	}
	return s.withRating(ctx, product)
}

func (s *service) ListByStall(ctx context.Context, stallID uuid.UUID, params pagination.Params) (*types.Page[ProductDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByStall(ctx, stallID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	summaries, err := s.ratings.ProductSummaries(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product ratings")
	}

	page := &types.Page[ProductDTO]{Items: make([]ProductDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Items = append(page.Items, *toDTO(&rows[i], summaries[rows[i].ID]))
	}
	return page, nil
}

// Delete soft deletes a listing. Live carts drop the line on their next read.
func (s *service) Delete(ctx context.Context, actorID, productID uuid.UUID) error {
	product, err := s.repo.FindActive(ctx, productID)
	if err != nil {
		return repo.MapLookupError(err, "product")
	}
	if _, err := s.ownedStall(ctx, actorID, product.StallID); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, product.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) ownedStall(ctx context.Context, actorID, stallID uuid.UUID) (*models.Stall, error) {
	stall, err := s.repo.FindStall(ctx, stallID)
	if err != nil {
		return nil, repo.MapLookupError(err, "stall")
	}
	if stall.OwnerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the stall owner may manage its products")
	}
	return stall, nil
}

func (s *service) withRating(ctx context.Context, product *models.Product) (*ProductDTO, error) {
	summaries, err := s.ratings.ProductSummaries(ctx, []uuid.UUID{product.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product rating")
	}
	return toDTO(product, summaries[product.ID]), nil
}

func (s *service) checkPath(path *string) error {
	if s.paths == nil || path == nil || strings.TrimSpace(*path) == "" {
		return nil
	}
	_, err := s.paths.Resolve(strings.TrimSpace(*path))
	return err
}

// validateStock requires a quantity exactly when the stock type tracks one.
func validateStock(stockType enums.StockType, quantity *int) error {
	if stockType.TracksQuantity() {
		if quantity == nil || *quantity < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity required for limited stock").
				WithDetails(map[string]any{"stockType": stockType})
		}
		return nil
	}
	if quantity != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity only applies to limited stock").
			WithDetails(map[string]any{"stockType": stockType})
	}
	return nil
}

func invalidPrice(cents int64) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive").
		WithDetails(map[string]any{"priceCents": cents})
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
