package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"github.com/localstall/stallmarket-backend/pkg/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepository struct {
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, string, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	unread        int64
	unreadErr     error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, string, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, "", nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID, now)
	}
	return 0, nil
}

func (f *fakeRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return f.unread, f.unreadErr
}

func (f *fakeRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc
}

func TestService_ListPassesCursorAndFilter(t *testing.T) {
	userID := uuid.New()
	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()})

	readAt := time.Now().UTC()
	var captured listNotificationsParams
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, string, error) {
			captured = params
			return []models.Notification{
				{ID: uuid.New(), Type: enums.NotificationTypeOrderPlaced, Params: types.Params{"orderId": "o-1"}},
				{ID: uuid.New(), Type: enums.NotificationTypeNewMessage, ReadAt: &readAt},
			}, "next", nil
		},
		unread: 3,
	}

	result, err := newServiceWithRepo(t, repo).List(context.Background(), ListParams{
		UserID:     userID,
		Limit:      5,
		Cursor:     cursor,
		UnreadOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Equal(t, "next", result.NextCursor)
	require.EqualValues(t, 3, result.Unread)
	require.False(t, result.Items[0].Read)
	require.Equal(t, "o-1", result.Items[0].Params["orderId"])
	require.True(t, result.Items[1].Read)
	require.NotNil(t, result.Items[1].Params)
	require.Equal(t, userID, captured.UserID)
	require.True(t, captured.UnreadOnly)
	require.NotNil(t, captured.Cursor)
	require.Equal(t, 5, captured.Limit)
}

func TestService_ListRejectsBadInput(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.List(context.Background(), ListParams{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestService_ListEmptyReturnsEmptySlice(t *testing.T) {
	result, err := newServiceWithRepo(t, &fakeRepository{}).List(context.Background(), ListParams{UserID: uuid.New()})
	require.NoError(t, err)
	require.NotNil(t, result.Items)
	require.Empty(t, result.Items)
}

func TestService_ListWrapsUnreadCountError(t *testing.T) {
	repo := &fakeRepository{unreadErr: errors.New("boom")}
	_, err := newServiceWithRepo(t, repo).List(context.Background(), ListParams{UserID: uuid.New()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{}, nil
		},
	}
	err := newServiceWithRepo(t, repo).MarkRead(context.Background(), uuid.New(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestService_MarkReadAlreadyReadSucceeds(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true}, nil
		},
	}
	require.NoError(t, newServiceWithRepo(t, repo).MarkRead(context.Background(), uuid.New(), uuid.New()))
}

func TestService_MarkAllReadWrapsRepoError(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
			return 0, errors.New("boom")
		},
	}
	_, err := newServiceWithRepo(t, repo).MarkAllRead(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
