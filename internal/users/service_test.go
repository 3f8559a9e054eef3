package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/cascade"
	"github.com/localstall/stallmarket-backend/pkg/db/dbtest"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerEmail = "Owner@Market.example"

func newTestService(t *testing.T) (Service, *dbtest.Fixtures) {
	t.Helper()
	client, conn := dbtest.Client(t)
	deleter, err := cascade.NewService(cascade.ServiceParams{Tx: client, Logger: logger.Nop()})
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), deleter, ownerEmail, logger.Nop())
	require.NoError(t, err)
	return svc, dbtest.NewFixtures(t, conn)
}

func TestGetDerivesRole(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()

	buyer := fx.User("buyer@example.com")
	seller := fx.User("seller@example.com")
	stall := fx.Stall(seller.ID, enums.StallStatusPending)
	owner := fx.User("owner@market.example")

	got, err := svc.Get(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleBuyer, got.Role)
	assert.Nil(t, got.StallID)

	got, err = svc.Get(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleSeller, got.Role)
	require.NotNil(t, got.StallID)
	assert.Equal(t, stall.ID, *got.StallID)

	got, err = svc.Get(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, got.Role)
	assert.True(t, got.IsOwner)

	_, err = svc.Get(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestPromoteAndDemote(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()

	owner := fx.User("owner@market.example")
	alice := fx.User("alice@example.com")
	bob := fx.User("bob@example.com")

	_, err := svc.Promote(ctx, alice.ID, bob.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	promoted, err := svc.Promote(ctx, owner.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)
	assert.Equal(t, enums.RoleAdmin, promoted.Role)

	// Admins may promote but never demote.
	_, err = svc.Promote(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.Demote(ctx, alice.ID, bob.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	demoted, err := svc.Demote(ctx, owner.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, demoted.IsAdmin)

	_, err = svc.Demote(ctx, owner.ID, owner.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestDeleteUser(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()

	owner := fx.User("owner@market.example")
	plain := fx.User("plain@example.com")
	target := fx.User("target@example.com")
	fx.Stall(target.ID, enums.StallStatusApproved)

	_, err := svc.DeleteUser(ctx, plain.ID, target.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = svc.DeleteUser(ctx, owner.ID, owner.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	report, err := svc.DeleteUser(ctx, owner.ID, target.ID)
	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Zero(t, fx.Count(&models.Stall{}, "owner_id = ?", target.ID))

	report, err = svc.DeleteUser(ctx, owner.ID, target.ID)
	require.NoError(t, err)
	assert.False(t, report.Found)
}

func TestDeleteAccount(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	user := fx.User("leaving@example.com")

	report, err := svc.DeleteAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Rows["users"])

	_, err = svc.DeleteAccount(ctx, user.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
