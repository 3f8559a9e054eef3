package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/localstall/stallmarket-backend/pkg/db/dbtest"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
)

type ctxKey struct{}

func TestNewBaseStoresConnection(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	require.Same(t, db, base.db)
	require.Same(t, db, base.Raw())
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)

	require.NotNil(t, withCtx)
	require.NotNil(t, withCtx.Statement)
	require.Equal(t, ctx, withCtx.Statement.Context)

	//nolint:staticcheck // nil context returns the raw handle
	require.Same(t, db, base.DB(nil))
}

func TestMapLookupError(t *testing.T) {
	require.NoError(t, MapLookupError(nil, "stall"))

	notFound := MapLookupError(gorm.ErrRecordNotFound, "stall")
	require.True(t, pkgerrors.IsCode(notFound, pkgerrors.CodeNotFound))
	require.Equal(t, "stall not found", pkgerrors.As(notFound).Message())

	typed := pkgerrors.New(pkgerrors.CodeForbidden, "nope")
	require.Same(t, typed, MapLookupError(typed, "stall"))

	infra := MapLookupError(errors.New("conn refused"), "stall")
	require.True(t, pkgerrors.IsCode(infra, pkgerrors.CodeDependency))
}
