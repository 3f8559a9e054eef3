package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localstall/stallmarket-backend/internal/stalls"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
)

type fakeStalls struct {
	stalls.Service
	approveFn func(ctx context.Context, actor stalls.Actor, id uuid.UUID) (*stalls.StallDTO, error)
	createFn  func(ctx context.Context, ownerID uuid.UUID, input stalls.CreateStallInput) (*stalls.StallDTO, error)
}

func (f *fakeStalls) Approve(ctx context.Context, actor stalls.Actor, id uuid.UUID) (*stalls.StallDTO, error) {
	return f.approveFn(ctx, actor, id)
}

func (f *fakeStalls) Create(ctx context.Context, ownerID uuid.UUID, input stalls.CreateStallInput) (*stalls.StallDTO, error) {
	return f.createFn(ctx, ownerID, input)
}

func TestAdminApproveStallPassesActor(t *testing.T) {
	admin := uuid.New()
	stallID := uuid.New()
	svc := &fakeStalls{approveFn: func(_ context.Context, actor stalls.Actor, id uuid.UUID) (*stalls.StallDTO, error) {
		assert.Equal(t, stalls.Actor{UserID: admin, IsAdmin: true}, actor)
		return &stalls.StallDTO{ID: id, Status: enums.StallStatusApproved}, nil
	}}

	rec := serve(AdminApproveStall(svc, logger.Nop()), testRequest{
		method: http.MethodPost,
		target: "/api/v1/admin/stalls/" + stallID.String() + "/approve",
		userID: admin,
		role:   "admin",
		params: map[string]string{"stallId": stallID.String()},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var dto stalls.StallDTO
	decodeData(t, rec, &dto)
	assert.Equal(t, stallID, dto.ID)
	assert.Equal(t, enums.StallStatusApproved, dto.Status)
}

func TestAdminApproveStallSurfacesStateConflict(t *testing.T) {
	stallID := uuid.New()
	svc := &fakeStalls{approveFn: func(context.Context, stalls.Actor, uuid.UUID) (*stalls.StallDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stall already approved")
	}}

	rec := serve(AdminApproveStall(svc, logger.Nop()), testRequest{
		method: http.MethodPost,
		userID: uuid.New(),
		role:   "admin",
		target: "/",
		params: map[string]string{"stallId": stallID.String()},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), apiErr.Code)
	assert.Equal(t, "stall already approved", apiErr.Message)
}

func TestCreateStallValidatesBody(t *testing.T) {
	rec := serve(CreateStall(&fakeStalls{}, logger.Nop()), testRequest{
		method: http.MethodPost,
		target: "/api/v1/stalls",
		body:   `{"name":"A"}`,
		userID: uuid.New(),
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeError(t, rec)
	details, ok := apiErr.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "location")
}

func TestCreateStallReturnsCreated(t *testing.T) {
	owner := uuid.New()
	svc := &fakeStalls{createFn: func(_ context.Context, ownerID uuid.UUID, input stalls.CreateStallInput) (*stalls.StallDTO, error) {
		assert.Equal(t, owner, ownerID)
		return &stalls.StallDTO{ID: uuid.New(), OwnerID: ownerID, Name: input.Name, Status: enums.StallStatusPending}, nil
	}}

	rec := serve(CreateStall(svc, logger.Nop()), testRequest{
		method: http.MethodPost,
		target: "/api/v1/stalls",
		body:   `{"name":"Honey Hut","location":"Row 4"}`,
		userID: owner,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}
