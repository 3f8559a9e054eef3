package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/localstall/stallmarket-backend/pkg/db/dbtest"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"github.com/stretchr/testify/require"
)

func TestRepository_ListPagesNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, conn)
	user := fx.User("reader@example.com")
	other := fx.User("other@example.com")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		n := fx.Notification(user.ID, enums.NotificationTypeNewMessage)
		require.NoError(t, conn.Model(n).UpdateColumn("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
	fx.Notification(other.ID, enums.NotificationTypeNewMessage)

	repo := NewRepository(conn)
	ctx := context.Background()

	page, next, err := repo.List(ctx, listNotificationsParams{UserID: user.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	require.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	cursor, err := pagination.ParseCursor(next)
	require.NoError(t, err)
	rest, next, err := repo.List(ctx, listNotificationsParams{UserID: user.ID, Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Empty(t, next)
}

func TestRepository_MarkReadAndUnreadFilter(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, conn)
	user := fx.User("reader@example.com")
	first := fx.Notification(user.ID, enums.NotificationTypeOrderPlaced)
	fx.Notification(user.ID, enums.NotificationTypeOrderPlaced)

	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	mark, err := repo.MarkRead(ctx, user.ID, first.ID, now)
	require.NoError(t, err)
	require.True(t, mark.Found)
	require.True(t, mark.Updated)

	mark, err = repo.MarkRead(ctx, user.ID, first.ID, now)
	require.NoError(t, err)
	require.True(t, mark.Found)
	require.False(t, mark.Updated)

	unread, _, err := repo.List(ctx, listNotificationsParams{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)

	total, err := repo.CountUnread(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	count, err := repo.MarkAllRead(ctx, user.ID, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestRepository_DeleteReadBefore(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, conn)
	user := fx.User("reader@example.com")
	old := fx.Notification(user.ID, enums.NotificationTypeNewReview)
	recent := fx.Notification(user.ID, enums.NotificationTypeNewReview)
	fx.Notification(user.ID, enums.NotificationTypeNewReview)

	now := time.Now().UTC()
	require.NoError(t, conn.Model(old).UpdateColumn("read_at", now.Add(-40*24*time.Hour)).Error)
	require.NoError(t, conn.Model(recent).UpdateColumn("read_at", now.Add(-time.Hour)).Error)

	deleted, err := NewRepository(conn).DeleteReadBefore(context.Background(), now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.Equal(t, int64(2), fx.Count(&models.Notification{}, "user_id = ?", user.ID))
}
