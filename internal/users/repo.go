package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIdentity retrieves the user linked to an external identity.
func (r *Repository) FindByIdentity(ctx context.Context, provider, externalID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// OwnedStallID returns the id of the live stall the user owns, if any.
func (r *Repository) OwnedStallID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Stall{}).
		Where("owner_id = ?", userID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return &ids[0], nil
}

// UpdateProfile refreshes the identity fields the provider reports.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, email, displayName string, avatarURL *string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"email":        email,
			"display_name": displayName,
			"avatar_url":   avatarURL,
		}).Error
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// SetAdmin flips the admin flag.
func (r *Repository) SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("is_admin", admin).Error
}

// StoreRefreshToken records the hashed refresh token and its expiry.
func (r *Repository) StoreRefreshToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"refresh_token_hash":       hash,
			"refresh_token_expires_at": expiresAt,
		}).Error
}

// ClearRefreshToken revokes the stored refresh token.
func (r *Repository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"refresh_token_hash":       nil,
			"refresh_token_expires_at": nil,
		}).Error
}
