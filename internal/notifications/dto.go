package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

type NotificationDTO struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	Params    map[string]any         `json:"params"`
	Read      bool                   `json:"read"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// ListResult is one page of notifications plus the caller's unread total.
type ListResult struct {
	types.Page[NotificationDTO]
	Unread int64 `json:"unread"`
}

func toDTO(n *models.Notification) NotificationDTO {
	params := map[string]any(n.Params)
	if params == nil {
		params = map[string]any{}
	}
	return NotificationDTO{
		ID:        n.ID,
		Type:      n.Type,
		Params:    params,
		Read:      n.ReadAt != nil,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
