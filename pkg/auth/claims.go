package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Role      enums.Role
	StallID   *uuid.UUID
	SessionID string
}

// AccessTokenClaims represents the typed JWT issued to clients. The session
// id travels as the registered jti claim.
type AccessTokenClaims struct {
	UserID  uuid.UUID  `json:"user_id"`
	Role    enums.Role `json:"role"`
	StallID *uuid.UUID `json:"stall_id,omitempty"`
	jwt.RegisteredClaims
}

// SessionID returns the login session the token belongs to.
func (c *AccessTokenClaims) SessionID() string {
	return c.ID
}
