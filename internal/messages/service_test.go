package messages

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localstall/stallmarket-backend/internal/notifications"
	"github.com/localstall/stallmarket-backend/pkg/db/dbtest"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Dispatch(_ context.Context, events ...notifications.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{channel: channel, payload: payload.([]byte)})
	return nil
}

func (p *fakePublisher) OrderMessagesChannel(orderID string) string {
	return "stallmarket:orders:" + orderID + ":messages"
}

type chatFixture struct {
	fx        *dbtest.Fixtures
	svc       Service
	notifier  *recordingNotifier
	publisher *fakePublisher
	buyer     *models.User
	seller    *models.User
	order     *models.Order
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	conn := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, conn)
	f := &chatFixture{fx: fx, notifier: &recordingNotifier{}, publisher: &fakePublisher{}}
	f.buyer = fx.User("buyer@example.com")
	f.seller = fx.User("seller@example.com")
	stall := fx.Stall(f.seller.ID, enums.StallStatusApproved)
	f.order = fx.Order(f.buyer.ID, stall.ID, enums.OrderStatusNewOrder)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestPost_BuyerMessageNotifiesSellerAndPublishes(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.svc.Post(context.Background(), f.order.ID, f.buyer.ID, PostInput{Content: "  is it ready?  "})
	require.NoError(t, err)
	assert.Equal(t, "is it ready?", msg.Content)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, f.seller.ID, f.notifier.events[0].UserID)
	assert.Equal(t, enums.NotificationTypeNewMessage, f.notifier.events[0].Type)

	require.Len(t, f.publisher.sent, 1)
	assert.Equal(t, "stallmarket:orders:"+f.order.ID.String()+":messages", f.publisher.sent[0].channel)
	var decoded MessageDTO
	require.NoError(t, json.Unmarshal(f.publisher.sent[0].payload, &decoded))
	assert.Equal(t, msg.ID, decoded.ID)
}

func TestPost_SellerMessageNotifiesBuyer(t *testing.T) {
	f := newChatFixture(t)
	_, err := f.svc.Post(context.Background(), f.order.ID, f.seller.ID, PostInput{Content: "yes"})
	require.NoError(t, err)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, f.buyer.ID, f.notifier.events[0].UserID)
}

func TestPost_RejectsOutsiders(t *testing.T) {
	f := newChatFixture(t)
	stranger := f.fx.User("stranger@example.com")

	_, err := f.svc.Post(context.Background(), f.order.ID, stranger.ID, PostInput{Content: "hi"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, int64(0), f.fx.Count(&models.Message{}, ""))
}

func TestPost_ValidatesContent(t *testing.T) {
	f := newChatFixture(t)
	cases := map[string]string{
		"blank":    "   ",
		"too long": strings.Repeat("a", MaxContentLength+1),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Post(context.Background(), f.order.ID, f.buyer.ID, PostInput{Content: content})
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}

	_, err := f.svc.Post(context.Background(), f.order.ID, f.buyer.ID, PostInput{Content: strings.Repeat("é", MaxContentLength)})
	require.NoError(t, err)
}

func TestPost_MissingOrder(t *testing.T) {
	f := newChatFixture(t)
	_, err := f.svc.Post(context.Background(), uuid.New(), f.buyer.ID, PostInput{Content: "hi"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPost_PublishFailureDoesNotFailPost(t *testing.T) {
	f := newChatFixture(t)
	f.publisher.err = errors.New("redis down")

	_, err := f.svc.Post(context.Background(), f.order.ID, f.buyer.ID, PostInput{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.fx.Count(&models.Message{}, ""))
}

func TestListByOrder_OldestFirstWithCursor(t *testing.T) {
	f := newChatFixture(t)
	for _, content := range []string{"one", "two", "three"} {
		_, err := f.svc.Post(context.Background(), f.order.ID, f.buyer.ID, PostInput{Content: content})
		require.NoError(t, err)
	}

	first, err := f.svc.ListByOrder(context.Background(), f.order.ID, f.seller.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	rest, err := f.svc.ListByOrder(context.Background(), f.order.ID, f.seller.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)

	all := append(first.Items, rest.Items...)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.Before(all[i-1].CreatedAt))
	}
	seen := map[uuid.UUID]bool{}
	for _, m := range all {
		assert.False(t, seen[m.ID])
		seen[m.ID] = true
	}
}

func TestListByOrder_Forbidden(t *testing.T) {
	f := newChatFixture(t)
	stranger := f.fx.User("stranger@example.com")
	_, err := f.svc.ListByOrder(context.Background(), f.order.ID, stranger.ID, pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
