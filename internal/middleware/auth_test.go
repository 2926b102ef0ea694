package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-service/internal/auth"
	"go-auth-service/internal/model"
	"go-auth-service/internal/policy"
)

type stubAuthenticator struct {
	callers map[string]policy.Caller
	err     error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (policy.Caller, auth.VerifiedToken, error) {
	if s.err != nil {
		return policy.Anonymous(), auth.VerifiedToken{}, s.err
	}
	caller, ok := s.callers[token]
	if !ok {
		return policy.Anonymous(), auth.VerifiedToken{}, model.ErrTokenInvalid
	}
	return caller, auth.VerifiedToken{ID: "jti-" + token, Subject: caller.ID(), Role: caller.Role(), Kind: model.TokenKindAccess}, nil
}

func newStub() stubAuthenticator {
	return stubAuthenticator{callers: map[string]policy.Caller{
		"user-token":  policy.Authenticated("u-1", model.RoleUser, true),
		"admin-token": policy.Authenticated("a-1", model.RoleAdmin, true),
	}}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *model.APIError {
	t.Helper()
	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	mw := NewAuthMiddleware(newStub())

	var seen policy.Caller
	var seenToken auth.VerifiedToken
	var hasToken bool
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallerFromContext(r.Context())
		seenToken, hasToken = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("anonymous without header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, seen.IsAuthenticated())
		assert.False(t, hasToken)
	})

	t.Run("valid bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer user-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "u-1", seen.ID())
		assert.True(t, hasToken)
		assert.Equal(t, "jti-user-token", seenToken.ID)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_INVALID", decodeError(t, rec).Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthMiddleware_DistinctTokenErrors(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{model.ErrTokenExpired, "TOKEN_EXPIRED", http.StatusUnauthorized},
		{model.ErrTokenRevoked, "TOKEN_REVOKED", http.StatusUnauthorized},
		{model.ErrAccountDisabled, "ACCOUNT_DISABLED", http.StatusForbidden},
		{fmt.Errorf("%w: redis down", model.ErrStorageUnavailable), "STORAGE_UNAVAILABLE", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			mw := NewAuthMiddleware(stubAuthenticator{err: tt.err})
			handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			req.Header.Set("Authorization", "Bearer anything")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestAuthMiddleware_RequireAuthAndAuthorize(t *testing.T) {
	mw := NewAuthMiddleware(newStub())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	protected := mw.Authenticate(mw.RequireAuth(ok))
	adminOnly := mw.Authenticate(mw.Authorize(policy.UserList)(ok))

	serve := func(h http.Handler, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(protected, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_REQUIRED", decodeError(t, rec).Code)
	assert.Equal(t, http.StatusOK, serve(protected, "user-token").Code)

	rec = serve(adminOnly, "user-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ADMIN_REQUIRED", decodeError(t, rec).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(adminOnly, "").Code)
	assert.Equal(t, http.StatusOK, serve(adminOnly, "admin-token").Code)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("Token abc")
	assert.False(t, ok)
}
