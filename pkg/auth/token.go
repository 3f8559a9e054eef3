package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/config"
)

var (
	signingMethod = jwt.SigningMethodHS256
	validMethods  = []string{signingMethod.Alg()}

	errNoSecret = errors.New("jwt secret is required")
)

// MintAccessToken signs claims for payload valid from now for the configured
// access TTL. An empty SessionID starts a new session.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return "", err
	}
	claims, err := newClaims(cfg, now, payload)
	if err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return parse(cfg, raw,
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
}

// ParseAccessTokenAllowExpired verifies the signature and issuer but ignores
// exp, so refresh can recover the session of an expired token.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	claims, err := parse(cfg, raw, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	return claims, nil
}

func parse(cfg config.JWTConfig, raw string, opts ...jwt.ParserOption) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	claims := &AccessTokenClaims{}
	parser := jwt.NewParser(append(opts, jwt.WithValidMethods(validMethods))...)
	if _, err := parser.ParseWithClaims(raw, claims, secretFor(cfg)); err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}

func newClaims(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (AccessTokenClaims, error) {
	if payload.UserID == uuid.Nil {
		return AccessTokenClaims{}, errors.New("user id is required")
	}
	if !payload.Role.IsValid() {
		return AccessTokenClaims{}, fmt.Errorf("invalid role %q", payload.Role)
	}
	session := strings.TrimSpace(payload.SessionID)
	if session == "" {
		session = uuid.NewString()
	}
	return AccessTokenClaims{
		UserID:  payload.UserID,
		Role:    payload.Role,
		StallID: payload.StallID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL())),
			ID:        session,
		},
	}, nil
}

func checkSigningConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return errNoSecret
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return errors.New("jwt expiration minutes must be positive")
	}
	return nil
}

func secretFor(cfg config.JWTConfig) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}
}
