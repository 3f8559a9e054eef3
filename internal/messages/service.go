package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/internal/notifications"
	"github.com/localstall/stallmarket-backend/internal/repo"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/localstall/stallmarket-backend/pkg/pagination"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

// MaxContentLength bounds a single message, counted in characters.
const MaxContentLength = 2000

// MessageDTO is the wire and pub/sub representation of a message.
type MessageDTO struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"orderId"`
	UserID    uuid.UUID `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type PostInput struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type notifier interface {
	Dispatch(ctx context.Context, events ...notifications.Event)
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	OrderMessagesChannel(orderID string) string
}

// Service exposes order chat operations.
type Service interface {
	Post(ctx context.Context, orderID, userID uuid.UUID, input PostInput) (*MessageDTO, error)
	ListByOrder(ctx context.Context, orderID, userID uuid.UUID, params pagination.Params) (*types.Page[MessageDTO], error)
}

type ServiceParams struct {
	Repo      Repository
	Notifier  notifier
	Publisher publisher // optional
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	notifier  notifier
	publisher publisher
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("messages repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		notifier:  params.Notifier,
		publisher: params.Publisher,
		logg:      params.Logger,
	}, nil
}

func (s *service) Post(ctx context.Context, orderID, userID uuid.UUID, input PostInput) (*MessageDTO, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message too long").
			WithDetails(map[string]any{"max": MaxContentLength})
	}

	order, owner, err := s.participants(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{OrderID: order.ID, UserID: userID, Content: content}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
	}
	dto := toDTO(msg)

	ctx = s.logg.WithFields(ctx, map[string]any{"orderId": order.ID.String(), "messageId": msg.ID.String()})
	s.publish(ctx, dto)

	recipient := owner
	if userID == owner {
		recipient = order.BuyerID
	}
	s.notifier.Dispatch(ctx, notifications.Event{
		UserID: recipient,
		Type:   enums.NotificationTypeNewMessage,
		Params: types.Params{"orderId": order.ID.String(), "messageId": msg.ID.String()},
	})
	return dto, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID, userID uuid.UUID, params pagination.Params) (*types.Page[MessageDTO], error) {
	if _, _, err := s.participants(ctx, orderID, userID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByOrder(ctx, orderID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	page := &types.Page[MessageDTO]{Items: make([]MessageDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Items = append(page.Items, *toDTO(&rows[i]))
	}
	return page, nil
}

// participants loads the order and confirms userID is its buyer or seller.
func (s *service) participants(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, uuid.UUID, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, uuid.Nil, repo.MapLookupError(err, "order")
	}
	owner, err := s.repo.StallOwner(ctx, order.StallID)
	if err != nil {
		return nil, uuid.Nil, repo.MapLookupError(err, "stall")
	}
	if userID != order.BuyerID && userID != owner {
		return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "only order participants may use this conversation")
	}
	return order, owner, nil
}

func (s *service) publish(ctx context.Context, dto *MessageDTO) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		s.logg.Error(ctx, "encode message for publish", err)
		return
	}
	if err := s.publisher.Publish(ctx, s.publisher.OrderMessagesChannel(dto.OrderID.String()), payload); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "publish message failed")
	}
}

func toDTO(m *models.Message) *MessageDTO {
	return &MessageDTO{
		ID:        m.ID,
		OrderID:   m.OrderID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
