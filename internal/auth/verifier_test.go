package auth

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"google.golang.org/api/idtoken"
)

type stubValidator struct {
	payload  *idtoken.Payload
	err      error
	audience string
}

func (s *stubValidator) Validate(_ context.Context, _ string, audience string) (*idtoken.Payload, error) {
	s.audience = audience
	return s.payload, s.err
}

func TestGoogleVerifierMapsClaims(t *testing.T) {
	stub := &stubValidator{payload: &idtoken.Payload{
		Subject: "google-sub-1",
		Claims: map[string]interface{}{
			"email":          "ana@example.com",
			"email_verified": true,
			"name":           "Ana",
			"picture":        "https://img.example/ana.png",
		},
	}}
	verifier := &GoogleVerifier{clientID: "client-123", validator: stub}

	identity, err := verifier.Verify(context.Background(), "token")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if stub.audience != "client-123" {
		t.Fatalf("expected audience client-123, got %q", stub.audience)
	}
	if identity.Provider != ProviderGoogle || identity.ExternalID != "google-sub-1" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if identity.Email != "ana@example.com" || identity.DisplayName != "Ana" {
		t.Fatalf("unexpected profile %+v", identity)
	}
	if identity.AvatarURL == nil || *identity.AvatarURL != "https://img.example/ana.png" {
		t.Fatalf("expected avatar url, got %v", identity.AvatarURL)
	}
}

func TestGoogleVerifierRejects(t *testing.T) {
	cases := map[string]*stubValidator{
		"invalid token": {err: errors.New("bad signature")},
		"no subject":    {payload: &idtoken.Payload{Claims: map[string]interface{}{"email": "a@example.com"}}},
		"no email":      {payload: &idtoken.Payload{Subject: "s", Claims: map[string]interface{}{}}},
		"unverified": {payload: &idtoken.Payload{Subject: "s", Claims: map[string]interface{}{
			"email": "a@example.com", "email_verified": false,
		}}},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			verifier := &GoogleVerifier{clientID: "client", validator: stub}
			_, err := verifier.Verify(context.Background(), "token")
			if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestNewGoogleVerifierRequiresClientID(t *testing.T) {
	if _, err := NewGoogleVerifier(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty client id")
	}
}
