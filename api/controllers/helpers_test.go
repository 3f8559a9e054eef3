package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/localstall/stallmarket-backend/api/middleware"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

type testRequest struct {
	method string
	target string
	body   string
	userID uuid.UUID
	role   string
	params map[string]string
}

func (tr testRequest) build() *http.Request {
	var req *http.Request
	if tr.body != "" {
		req = httptest.NewRequest(tr.method, tr.target, strings.NewReader(tr.body))
	} else {
		req = httptest.NewRequest(tr.method, tr.target, nil)
	}
	ctx := req.Context()
	if tr.userID != uuid.Nil {
		role := tr.role
		if role == "" {
			role = "buyer"
		}
		ctx = middleware.WithIdentity(ctx, tr.userID.String(), role)
	}
	if len(tr.params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range tr.params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func serve(h http.HandlerFunc, tr testRequest) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, tr.build())
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func newRecorder() *httptest.ResponseRecorder { return httptest.NewRecorder() }
