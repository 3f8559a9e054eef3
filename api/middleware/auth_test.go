package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/localstall/stallmarket-backend/pkg/auth"
	"github.com/localstall/stallmarket-backend/pkg/config"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "middleware-secret", Issuer: "stallmarket", ExpirationMinutes: 5}

func mint(t *testing.T, cfg config.JWTConfig, now time.Time, payload pkgAuth.AccessTokenPayload) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, now, payload)
	require.NoError(t, err)
	return token
}

func TestAuthSeedsContext(t *testing.T) {
	userID := uuid.New()
	stallID := uuid.New()
	token := mint(t, testJWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:    userID,
		Role:      enums.RoleSeller,
		StallID:   &stallID,
		SessionID: "sess-1",
	})

	var gotUser, gotRole, gotStall, gotSession string
	handler := Auth(testJWT, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotStall = StallIDFromContext(r.Context())
		gotSession = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID.String(), gotUser)
	assert.Equal(t, "seller", gotRole)
	assert.Equal(t, stallID.String(), gotStall)
	assert.Equal(t, "sess-1", gotSession)
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	})
	handler := Auth(testJWT, logger.Nop())(next)

	expired := mint(t, testJWT, time.Now().Add(-time.Hour), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleBuyer})
	otherSecret := testJWT
	otherSecret.Secret = "someone-else"
	forged := mint(t, otherSecret, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleAdmin})

	for name, header := range map[string]string{
		"missing":  "",
		"scheme":   "Basic abc",
		"garbage":  "Bearer not-a-jwt",
		"expired":  "Bearer " + expired,
		"forged":   "Bearer " + forged,
		"no token": "Bearer ",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(logger.Nop(), enums.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := map[string]int{
		"admin":  http.StatusOK,
		"seller": http.StatusForbidden,
		"":       http.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), uuid.NewString(), role))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}
