package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/cascade"
	"github.com/localstall/stallmarket-backend/internal/repo"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"gorm.io/gorm"
)

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	OwnedStallID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error
}

type accountDeleter interface {
	DeleteUser(ctx context.Context, userID uuid.UUID) (*cascade.Report, error)
}

// Service exposes profile and administration operations on users.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	IsOwner(email string) bool
	Promote(ctx context.Context, actorID, targetID uuid.UUID) (*UserDTO, error)
	Demote(ctx context.Context, actorID, targetID uuid.UUID) (*UserDTO, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID) (*cascade.Report, error)
	DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) (*cascade.Report, error)
}

type service struct {
	repo       userStore
	cascade    accountDeleter
	ownerEmail string
	logg       *logger.Logger
}

// NewService builds the users service. ownerEmail identifies the marketplace
// owner, who is always privileged and can never be demoted.
func NewService(repo userStore, deleter accountDeleter, ownerEmail string, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if deleter == nil {
		return nil, fmt.Errorf("cascade service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		cascade:    deleter,
		ownerEmail: normalizeEmail(ownerEmail),
		logg:       logg,
	}, nil
}

func (s *service) IsOwner(email string) bool {
	return s.ownerEmail != "" && normalizeEmail(email) == s.ownerEmail
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, user)
}

func (s *service) Promote(ctx context.Context, actorID, targetID uuid.UUID) (*UserDTO, error) {
	actor, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.privileged(actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators may promote users")
	}
	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !target.IsAdmin {
		if err := s.repo.SetAdmin(ctx, target.ID, true); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote user")
		}
		target.IsAdmin = true
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"actor_id": actor.ID.String(), "target_id": target.ID.String()}), "user promoted")
	}
	return s.render(ctx, target)
}

func (s *service) Demote(ctx context.Context, actorID, targetID uuid.UUID) (*UserDTO, error) {
	actor, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.IsOwner(actor.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the marketplace owner may demote administrators")
	}
	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if s.IsOwner(target.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "the marketplace owner cannot be demoted")
	}
	if target.IsAdmin {
		if err := s.repo.SetAdmin(ctx, target.ID, false); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "demote user")
		}
		target.IsAdmin = false
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"actor_id": actor.ID.String(), "target_id": target.ID.String()}), "user demoted")
	}
	return s.render(ctx, target)
}

func (s *service) DeleteAccount(ctx context.Context, userID uuid.UUID) (*cascade.Report, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	return s.cascade.DeleteUser(ctx, userID)
}

// DeleteUser is the administrative removal of another account.
func (s *service) DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) (*cascade.Report, error) {
	actor, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.privileged(actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators may delete users")
	}
	target, err := s.repo.FindByID(ctx, targetID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Already gone; the cascade reports a no-op.
	case err != nil:
		return nil, repo.MapLookupError(err, "user")
	case s.IsOwner(target.Email):
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "the marketplace owner cannot be deleted")
	}
	return s.cascade.DeleteUser(ctx, targetID)
}

func (s *service) privileged(u *models.User) bool {
	return u.IsAdmin || s.IsOwner(u.Email)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.MapLookupError(err, "user")
	}
	return user, nil
}

func (s *service) render(ctx context.Context, u *models.User) (*UserDTO, error) {
	stallID, err := s.repo.OwnedStallID(ctx, u.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load owned stall")
	}
	return FromModel(u, stallID, s.IsOwner(u.Email)), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
