package repo

import (
	"context"
	"errors"

	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Raw returns the unbound connection, typically a transaction handle.
func (b Base) Raw() *gorm.DB {
	return b.db
}

// MapLookupError turns gorm's not-found sentinel into a NOT_FOUND error for
// entity and wraps anything else as a dependency failure.
func MapLookupError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}

// ActiveStallJoin restricts a products query to products whose stall is live.
func ActiveStallJoin(db *gorm.DB) *gorm.DB {
	return db.Joins("JOIN stalls ON stalls.id = products.stall_id AND stalls.deleted_at IS NULL")
}
