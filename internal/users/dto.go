package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	AvatarURL   *string    `json:"avatarUrl,omitempty"`
	Role        enums.Role `json:"role"`
	IsAdmin     bool       `json:"isAdmin"`
	IsOwner     bool       `json:"isOwner"`
	StallID     *uuid.UUID `json:"stallId,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// CreateUserDTO holds the identity fields captured on first login.
type CreateUserDTO struct {
	Email       string
	DisplayName string
	AvatarURL   *string
	Provider    string
	ExternalID  string
}

func (c CreateUserDTO) ToModel() *models.User {
	name := c.DisplayName
	if name == "" {
		name = c.Email
	}
	return &models.User{
		Email:       c.Email,
		DisplayName: name,
		AvatarURL:   c.AvatarURL,
		Provider:    c.Provider,
		ExternalID:  c.ExternalID,
	}
}

// FromModel renders u for a caller; owner marks the configured marketplace owner.
func FromModel(u *models.User, stallID *uuid.UUID, owner bool) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Role:        RoleFor(u, stallID, owner),
		IsAdmin:     u.IsAdmin,
		IsOwner:     owner,
		StallID:     stallID,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// RoleFor derives the coarse role carried in access tokens.
func RoleFor(u *models.User, stallID *uuid.UUID, owner bool) enums.Role {
	switch {
	case u.IsAdmin || owner:
		return enums.RoleAdmin
	case stallID != nil:
		return enums.RoleSeller
	default:
		return enums.RoleBuyer
	}
}
