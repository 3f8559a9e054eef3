package auth

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"google.golang.org/api/idtoken"
)

const ProviderGoogle = "google"

// Identity is what an OAuth provider asserts about the caller.
type Identity struct {
	Provider    string
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   *string
}

// IdentityVerifier validates a provider id token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type tokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier checks Google-issued id tokens against the configured client id.
type GoogleVerifier struct {
	clientID  string
	validator tokenValidator
}

func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("google client id required")
	}
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("create google token validator: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, validator: validator}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	payload, err := g.validator.Validate(ctx, idToken, g.clientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid id token")
	}
	if payload.Subject == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "id token missing subject")
	}

	email := claimString(payload.Claims, "email")
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "id token missing email")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "email not verified")
	}

	identity := &Identity{
		Provider:    ProviderGoogle,
		ExternalID:  payload.Subject,
		Email:       email,
		DisplayName: claimString(payload.Claims, "name"),
	}
	if picture := claimString(payload.Claims, "picture"); picture != "" {
		identity.AvatarURL = &picture
	}
	return identity, nil
}

func claimString(claims map[string]interface{}, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}
