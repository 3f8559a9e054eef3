package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/dbtest"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/localstall/stallmarket-backend/pkg/types"
	"github.com/stretchr/testify/require"
)

type recordingCreator struct {
	mu   sync.Mutex
	rows []models.Notification
	err  error
}

func (r *recordingCreator) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, *n)
	return nil
}

func TestDispatcher_AsyncWritesAfterCallerContextEnds(t *testing.T) {
	repo := &recordingCreator{}
	d, err := NewDispatcher(repo, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, Event{UserID: uuid.New(), Type: enums.NotificationTypeOrderPlaced, Params: types.Params{"orderId": "o1"}})
	cancel()
	d.Wait()

	require.Len(t, repo.rows, 1)
	require.Equal(t, "o1", repo.rows[0].Params["orderId"])
}

func TestDispatcher_SkipsMalformedEvents(t *testing.T) {
	repo := &recordingCreator{}
	d, err := NewDispatcher(repo, logger.Nop(), Synchronous())
	require.NoError(t, err)

	d.Dispatch(context.Background(),
		Event{Type: enums.NotificationTypeNewMessage},
		Event{UserID: uuid.New(), Type: "bogus"},
		Event{UserID: uuid.New(), Type: enums.NotificationTypeNewMessage},
	)
	require.Len(t, repo.rows, 1)
	require.NotNil(t, repo.rows[0].Params)
}

func TestDispatcher_StoreFailureIsSwallowed(t *testing.T) {
	d, err := NewDispatcher(&recordingCreator{err: errors.New("db down")}, logger.Nop(), Synchronous())
	require.NoError(t, err)
	d.Dispatch(context.Background(), Event{UserID: uuid.New(), Type: enums.NotificationTypeNewReview})
}

func TestDispatcher_PersistsThroughRepository(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, conn)
	user := fx.User("notify@example.com")

	d, err := NewDispatcher(NewRepository(conn), logger.Nop(), Synchronous())
	require.NoError(t, err)
	d.Dispatch(context.Background(), Event{UserID: user.ID, Type: enums.NotificationTypeStallApproved, Params: types.Params{"stallId": "s"}})

	var stored models.Notification
	require.NoError(t, conn.Where("user_id = ?", user.ID).First(&stored).Error)
	require.Equal(t, enums.NotificationTypeStallApproved, stored.Type)
	require.Equal(t, "s", stored.Params["stallId"])
	require.Nil(t, stored.ReadAt)
}

func TestNewDispatcherValidates(t *testing.T) {
	_, err := NewDispatcher(nil, logger.Nop())
	require.Error(t, err)
	_, err = NewDispatcher(&recordingCreator{}, nil)
	require.Error(t, err)

	var nilDispatcher *Dispatcher
	nilDispatcher.Dispatch(context.Background(), Event{})
	nilDispatcher.Wait()
}
