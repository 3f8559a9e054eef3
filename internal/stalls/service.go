package stalls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/cascade"
	"github.com/localstall/stallmarket-backend/internal/notifications"
	"github.com/localstall/stallmarket-backend/internal/ratings"
	"github.com/localstall/stallmarket-backend/internal/repo"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"github.com/localstall/stallmarket-backend/pkg/types"
	"gorm.io/gorm"
)

// StallRepository defines the persistence surface required by the stall service.
type StallRepository interface {
	WithTx(tx *gorm.DB) StallRepository
	Create(ctx context.Context, stall *models.Stall) error
	FindActive(ctx context.Context, id uuid.UUID) (*models.Stall, error)
	FindAnyState(ctx context.Context, id uuid.UUID) (*models.Stall, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Stall, error)
	ListByStatus(ctx context.Context, status enums.StallStatus, limit int, cursor *pagination.Cursor) ([]models.Stall, string, error)
	Update(ctx context.Context, id uuid.UUID, changes map[string]any) error
	SetStatus(ctx context.Context, id uuid.UUID, status enums.StallStatus, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ratingSource interface {
	StallSummaries(ctx context.Context, stallIDs []uuid.UUID) (map[uuid.UUID]ratings.Summary, error)
}

type stallPurger interface {
	DeleteStall(ctx context.Context, stallID uuid.UUID) (*cascade.Report, error)
}

type notifier interface {
	Dispatch(ctx context.Context, events ...notifications.Event)
}

// pathResolver rejects upload paths that escape the storage root.
type pathResolver interface {
	Resolve(relativePath string) (string, error)
}

// Service exposes stall operations.
type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreateStallInput) (*StallDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*StallDTO, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*StallDTO, error)
	ListApproved(ctx context.Context, params pagination.Params) (*types.Page[StallDTO], error)
	ListPending(ctx context.Context, actor Actor, params pagination.Params) (*types.Page[StallDTO], error)
	Approve(ctx context.Context, actor Actor, id uuid.UUID) (*StallDTO, error)
	Reject(ctx context.Context, actor Actor, id uuid.UUID) (*StallDTO, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateStallInput) (*StallDTO, error)
	Close(ctx context.Context, actor Actor, id uuid.UUID) error
	Purge(ctx context.Context, actor Actor, id uuid.UUID) (*cascade.Report, error)
}

// ServiceParams groups the stall service dependencies. Paths is optional.
type ServiceParams struct {
	Repo     StallRepository
	Tx       txRunner
	Ratings  ratingSource
	Cascade  stallPurger
	Notifier notifier
	Paths    pathResolver
}

type service struct {
	repo     StallRepository
	tx       txRunner
	ratings  ratingSource
	cascade  stallPurger
	notifier notifier
	paths    pathResolver
	now      func() time.Time
}

// NewService builds a stall service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stall repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ratings == nil {
		return nil, fmt.Errorf("rating source required")
	}
	if params.Cascade == nil {
		return nil, fmt.Errorf("cascade service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		ratings:  params.Ratings,
		cascade:  params.Cascade,
		notifier: params.Notifier,
		paths:    params.Paths,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreateStallInput) (*StallDTO, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name := strings.TrimSpace(input.Name)
	location := strings.TrimSpace(input.Location)
	if name == "" || location == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and location are required")
	}
	if err := s.checkPaths(input.LogoPath, input.CoverPath); err != nil {
		return nil, err
	}

	stall := &models.Stall{
		OwnerID:     ownerID,
		Name:        name,
		Description: trimmed(input.Description),
		Location:    location,
		LogoPath:    trimmed(input.LogoPath),
		CoverPath:   trimmed(input.CoverPath),
		Status:      enums.StallStatusPending,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repository := s.repo.WithTx(tx)
		existing, err := repository.FindByOwner(ctx, ownerID)
		if err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already owns a stall").
				WithDetails(map[string]any{"stallId": existing.ID})
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing stall")
		}
		if err := repository.Create(ctx, stall); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stall")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toDTO(stall, ratings.Summary{}), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*StallDTO, error) {
	stall, err := s.repo.FindActive(ctx, id)
	if err != nil {
		return nil, repo.MapLookupError(err, "stall")
	}
	return s.withRating(ctx, stall)
}

func (s *service) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*StallDTO, error) {
	stall, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, repo.MapLookupError(err, "stall")
	}
	return s.withRating(ctx, stall)
}

func (s *service) ListApproved(ctx context.Context, params pagination.Params) (*types.Page[StallDTO], error) {
	return s.list(ctx, enums.StallStatusApproved, params)
}

func (s *service) ListPending(ctx context.Context, actor Actor, params pagination.Params) (*types.Page[StallDTO], error) {
	if !actor.IsAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.list(ctx, enums.StallStatusPending, params)
}

func (s *service) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*StallDTO, error) {
	return s.moderate(ctx, actor, id, enums.StallStatusApproved, enums.NotificationTypeStallApproved)
}

func (s *service) Reject(ctx context.Context, actor Actor, id uuid.UUID) (*StallDTO, error) {
	return s.moderate(ctx, actor, id, enums.StallStatusRejected, enums.NotificationTypeStallRejected)
}

func (s *service) moderate(ctx context.Context, actor Actor, id uuid.UUID, status enums.StallStatus, kind enums.NotificationType) (*StallDTO, error) {
	if !actor.IsAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	stall, err := s.repo.FindActive(ctx, id)
	if err != nil {
		return nil, repo.MapLookupError(err, "stall")
	}
	if stall.Status == status {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stall already has this status").
			WithDetails(map[string]any{"status": status})
	}

	now := s.now().UTC()
	if err := s.repo.SetStatus(ctx, stall.ID, status, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stall status")
	}
	stall.Status = status
	stall.ReviewedAt = &now

	s.notifier.Dispatch(ctx, notifications.Event{
		UserID: stall.OwnerID,
		Type:   kind,
		Params: types.Params{"stallId": stall.ID.String(), "stallName": stall.Name},
	})
	return s.withRating(ctx, stall)
}

func (s *service) Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateStallInput) (*StallDTO, error) {
	stall, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkPaths(input.LogoPath, input.CoverPath); err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		changes["name"] = name
		stall.Name = name
	}
	if input.Location != nil {
		location := strings.TrimSpace(*input.Location)
		if location == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "location cannot be empty")
		}
		changes["location"] = location
		stall.Location = location
	}
	if input.Description != nil {
		stall.Description = trimmed(input.Description)
		changes["description"] = stall.Description
	}
	if input.LogoPath != nil {
		stall.LogoPath = trimmed(input.LogoPath)
		changes["logo_path"] = stall.LogoPath
	}
	if input.CoverPath != nil {
		stall.CoverPath = trimmed(input.CoverPath)
		changes["cover_path"] = stall.CoverPath
	}

	if err := s.repo.Update(ctx, stall.ID, changes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stall")
	}
	return s.withRating(ctx, stall)
}

// Close hides the stall and its products while keeping order history intact.
func (s *service) Close(ctx context.Context, actor Actor, id uuid.UUID) error {
	stall, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).SoftDelete(ctx, stall.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close stall")
		}
		return nil
	})
}

// Purge permanently removes the stall and everything referencing it. Closed
// stalls can still be purged by their owner.
func (s *service) Purge(ctx context.Context, actor Actor, id uuid.UUID) (*cascade.Report, error) {
	stall, err := s.repo.FindAnyState(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) && actor.IsAdmin {
			return s.cascade.DeleteStall(ctx, id)
		}
		return nil, repo.MapLookupError(err, "stall")
	}
	if !actor.IsAdmin && stall.OwnerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the stall owner or an admin may delete a stall")
	}
	return s.cascade.DeleteStall(ctx, stall.ID)
}

func (s *service) owned(ctx context.Context, actor Actor, id uuid.UUID) (*models.Stall, error) {
	stall, err := s.repo.FindActive(ctx, id)
	if err != nil {
		return nil, repo.MapLookupError(err, "stall")
	}
	if stall.OwnerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the stall owner may modify the stall")
	}
	return stall, nil
}

func (s *service) list(ctx context.Context, status enums.StallStatus, params pagination.Params) (*types.Page[StallDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByStatus(ctx, status, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stalls")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	summaries, err := s.ratings.StallSummaries(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stall ratings")
	}

	page := &types.Page[StallDTO]{Items: make([]StallDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Items = append(page.Items, *toDTO(&rows[i], summaries[rows[i].ID]))
	}
	return page, nil
}

func (s *service) withRating(ctx context.Context, stall *models.Stall) (*StallDTO, error) {
	summaries, err := s.ratings.StallSummaries(ctx, []uuid.UUID{stall.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stall rating")
	}
	return toDTO(stall, summaries[stall.ID]), nil
}

func (s *service) checkPaths(paths ...*string) error {
	if s.paths == nil {
		return nil
	}
	for _, p := range paths {
		if p == nil || strings.TrimSpace(*p) == "" {
			continue
		}
		if _, err := s.paths.Resolve(strings.TrimSpace(*p)); err != nil {
			return err
		}
	}
	return nil
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
