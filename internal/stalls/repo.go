package stalls

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository exposes stall persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a stall repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) StallRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, stall *models.Stall) error {
	return r.db.WithContext(ctx).Create(stall).Error
}

// FindActive loads a stall that has not been closed.
func (r *Repository) FindActive(ctx context.Context, id uuid.UUID) (*models.Stall, error) {
	var stall models.Stall
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stall).Error; err != nil {
		return nil, err
	}
	return &stall, nil
}

// FindAnyState loads a stall including closed ones.
func (r *Repository) FindAnyState(ctx context.Context, id uuid.UUID) (*models.Stall, error) {
	var stall models.Stall
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&stall).Error; err != nil {
		return nil, err
	}
	return &stall, nil
}

// FindByOwner loads the live stall owned by ownerID.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Stall, error) {
	var stall models.Stall
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&stall).Error; err != nil {
		return nil, err
	}
	return &stall, nil
}

// ListByStatus pages live stalls in the given moderation state, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status enums.StallStatus, limit int, cursor *pagination.Cursor) ([]models.Stall, string, error) {
	query := r.db.WithContext(ctx).Model(&models.Stall{}).Where("status = ?", status)
	var rows []models.Stall
	if err := pagination.ApplyDesc(query, "", cursor, limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, limit, func(s models.Stall) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
	return rows, next, nil
}

// Update applies the column changes to a live stall.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Stall{}).Where("id = ?", id).Updates(changes).Error
}

// SetStatus records a moderation decision.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.StallStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Stall{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "reviewed_at": at}).Error
}

// SoftDelete closes the stall and hides its products.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("stall_id = ?", id).Delete(&models.Product{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.Stall{}).Error
}
