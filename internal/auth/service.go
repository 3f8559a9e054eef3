package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/users"
	pkgAuth "github.com/localstall/stallmarket-backend/pkg/auth"
	"github.com/localstall/stallmarket-backend/pkg/config"
	"github.com/localstall/stallmarket-backend/pkg/db"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/localstall/stallmarket-backend/pkg/security"
	"gorm.io/gorm"
)

const invalidSessionMessage = "invalid session"

// Service issues and rotates credentials.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIdentity(ctx context.Context, provider, externalID string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, email, displayName string, avatarURL *string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	OwnedStallID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	StoreRefreshToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Users      userStore
	Verifiers  map[string]IdentityVerifier
	JWT        config.JWTConfig
	Password   config.PasswordConfig
	OwnerEmail string
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	users      userStore
	verifiers  map[string]IdentityVerifier
	jwtCfg     config.JWTConfig
	passCfg    config.PasswordConfig
	ownerEmail string
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if len(params.Verifiers) == 0 {
		return nil, fmt.Errorf("at least one identity verifier is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:      params.Users,
		verifiers:  params.Verifiers,
		jwtCfg:     params.JWT,
		passCfg:    params.Password,
		ownerEmail: strings.ToLower(strings.TrimSpace(params.OwnerEmail)),
		logg:       params.Logger,
		now:        now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	verifier, ok := s.verifiers[strings.ToLower(strings.TrimSpace(req.Provider))]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported identity provider").
			WithDetails(map[string]any{"provider": req.Provider})
	}
	if strings.TrimSpace(req.IDToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id token is required")
	}

	identity, err := verifier.Verify(ctx, req.IDToken)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid id token")
	}

	user, err := s.upsert(ctx, identity)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	user.LastLoginAt = &now

	resp, err := s.issue(ctx, user, "", now)
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "user logged in")
	return resp, nil
}

func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidSessionMessage)
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidSessionMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	now := s.now().UTC()
	if user.RefreshTokenHash == nil || user.RefreshTokenExpiresAt == nil || !now.Before(*user.RefreshTokenExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidSessionMessage)
	}
	match, err := security.VerifyToken(req.RefreshToken, *user.RefreshTokenHash)
	if err != nil || !match {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidSessionMessage)
	}

	return s.issue(s.logg.WithUserID(ctx, user.ID.String()), user, claims.SessionID(), now)
}

func (s *service) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke refresh token")
	}
	return nil
}

// upsert links identity to a user, creating one on first login.
func (s *service) upsert(ctx context.Context, identity *Identity) (*models.User, error) {
	user, err := s.users.FindByIdentity(ctx, identity.Provider, identity.ExternalID)
	switch {
	case err == nil:
		if user.Email != identity.Email || (identity.DisplayName != "" && user.DisplayName != identity.DisplayName) {
			name := identity.DisplayName
			if name == "" {
				name = user.DisplayName
			}
			if err := s.users.UpdateProfile(ctx, user.ID, identity.Email, name, identity.AvatarURL); err != nil {
				if db.IsUniqueViolation(err, "") {
					return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already linked to another account")
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
			}
			user.Email, user.DisplayName, user.AvatarURL = identity.Email, name, identity.AvatarURL
		}
		return user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	user, err = s.users.Create(ctx, users.CreateUserDTO{
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		Provider:    identity.Provider,
		ExternalID:  identity.ExternalID,
	})
	if err == nil {
		return user, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	// a concurrent first login may have won the insert
	if existing, findErr := s.users.FindByIdentity(ctx, identity.Provider, identity.ExternalID); findErr == nil {
		return existing, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already linked to another account")
}

// issue mints an access token and rotates the refresh token. An empty
// sessionID starts a new session.
func (s *service) issue(ctx context.Context, user *models.User, sessionID string, now time.Time) (*TokenResponse, error) {
	stallID, err := s.users.OwnedStallID(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stall")
	}
	owner := s.ownerEmail != "" && strings.EqualFold(user.Email, s.ownerEmail)

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:    user.ID,
		Role:      users.RoleFor(user, stallID, owner),
		StallID:   stallID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	refreshToken, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate refresh token")
	}
	hash, err := security.HashToken(refreshToken, s.passCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash refresh token")
	}
	if err := s.users.StoreRefreshToken(ctx, user.ID, hash, now.Add(s.jwtCfg.RefreshTokenTTL())); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user, stallID, owner),
	}, nil
}
