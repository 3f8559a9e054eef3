package auth

import "github.com/localstall/stallmarket-backend/internal/users"

// LoginRequest carries a provider id token.
type LoginRequest struct {
	Provider string `json:"provider" validate:"required,oneof=google"`
	IDToken  string `json:"idToken" validate:"required"`
}

type RefreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         *users.UserDTO `json:"user"`
}
