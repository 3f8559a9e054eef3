package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/localstall/stallmarket-backend/api/responses"
	pkgAuth "github.com/localstall/stallmarket-backend/pkg/auth"
	"github.com/localstall/stallmarket-backend/pkg/config"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with its claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), claims.UserID.String(), string(claims.Role))
			ctx = WithSessionID(ctx, claims.SessionID())
			stallID := ""
			if claims.StallID != nil {
				stallID = claims.StallID.String()
				ctx = context.WithValue(ctx, ctxStallID, stallID)
			}
			ctx = logg.WithActor(ctx, claims.UserID.String(), string(claims.Role), stallID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) < 7 || !strings.EqualFold(raw[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(raw[7:])
	return token, token != ""
}
