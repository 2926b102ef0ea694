package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/auth"
	"go-auth-service/internal/config"
	"go-auth-service/internal/docstore"
	"go-auth-service/internal/event"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/revocation"
	"go-auth-service/internal/service"
	"go-auth-service/internal/validation"
)

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Error      *model.APIError   `json:"error"`
	Pagination *model.Pagination `json:"pagination"`
}

type testServer struct {
	handler http.Handler
	bus     *event.InMemoryBus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		RateLimitRPM:     0,
		AuthRateLimitRPM: 1000,
	}

	hasher := auth.NewHasher(bcrypt.MinCost)
	identities := repository.NewIdentityStore(
		docstore.NewMemoryCollection(repository.IdentitiesCollection, repository.IdentityUniqueFields...),
		hasher,
	)
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "router-test-secret-0123456789abcdef"}, revocation.NewMemoryRegistry())
	require.NoError(t, err)

	validate := validation.New()
	bus := event.NewBus()
	authService := service.NewAuthService(identities, hasher, tokens, validate, bus)
	_, err = authService.SeedAdmin(context.Background(), "root", "root@example.com", "root-password")
	require.NoError(t, err)

	h := New(cfg, middleware.NewAuthMiddleware(authService), Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(service.NewUserService(identities, validate, bus)),
		Product: handler.NewProductHandler(service.NewProductService(docstore.NewMemoryCollection(service.ProductsCollection), validate, bus)),
		Audit:   handler.NewAuditHandler(service.NewAuditService(docstore.NewMemoryCollection(service.AuditCollection))),
		Health:  handler.NewHealthHandler(nil),
		Events:  http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusSwitchingProtocols)
		}),
	})

	return &testServer{handler: h, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *testServer) login(t *testing.T, login, password string) model.TokenPair {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": login, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair model.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	return pair
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestRouter_RegisterLoginMeLogout(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, string(env.Data), "password")

	var registered model.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)
	assert.Equal(t, "alice@example.com", registered.User.Email)
	assert.Equal(t, model.RoleUser, registered.User.Role)

	pair := s.login(t, "ALICE@example.com", "correct-horse")

	rec, env = s.do(t, http.MethodGet, "/api/v1/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.IdentityView
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "alice", me.Username)
	assert.NotNil(t, me.LastLogin)

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed model.AccessTokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/logout", pair.AccessToken, map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/auth/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)
}

func TestRouter_AuthErrors(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "email")
	assert.Contains(t, env.Error.Fields, "password")

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "someone",
		"email":    "ROOT@example.com",
		"password": "password-123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_IDENTITY", env.Error.Code)

	unknown, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "whatever-1"})
	wrong, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "root@example.com", "password": "whatever-1"})
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	s.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_REQUIRED", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", env.Error.Code)
}

func TestRouter_UserAdministration(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root@example.com", "root-password")

	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "bob-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var bob model.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &bob))

	rec, env = s.do(t, http.MethodGet, "/api/v1/users", bob.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ADMIN_REQUIRED", env.Error.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/users?per_page=1", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(2), env.Pagination.TotalItems)
	assert.Equal(t, 2, env.Pagination.TotalPages)
	assert.True(t, env.Pagination.HasNext)

	rec, env = s.do(t, http.MethodPatch, "/api/v1/users/"+bob.User.ID, bob.AccessToken, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", env.Error.Code)

	rec, _ = s.do(t, http.MethodPatch, "/api/v1/users/"+bob.User.ID, bob.AccessToken, map[string]string{"full_name": "Bob B"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodDelete, "/api/v1/users/"+admin.User.ID, admin.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SELF_ACTION_DENIED", env.Error.Code)

	rec, _ = s.do(t, http.MethodPatch, "/api/v1/users/"+bob.User.ID+"/deactivate", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodPut, "/api/v1/auth/password", bob.AccessToken, map[string]string{
		"current_password": "bob-password",
		"new_password":     "bob-password-2",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCOUNT_DISABLED", env.Error.Code)

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "bob", "password": "bob-password"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCOUNT_DISABLED", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/users/not-a-uuid", admin.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestRouter_Products(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root@example.com", "root-password")

	product := map[string]any{
		"name":        "Trail Shoes",
		"description": "Light running shoes",
		"price":       89.5,
		"category":    "sports",
		"tags":        "running, trail",
	}

	rec, env := s.do(t, http.MethodPost, "/api/v1/products", "", product)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/v1/products", admin.AccessToken, product)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.Product
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, model.TagList{"running", "trail"}, created.Tags)

	rec, env = s.do(t, http.MethodGet, "/api/v1/products?category=sports&min_price=50", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), env.Pagination.TotalItems)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/products?min_price=cheap", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/products/search?q=t", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Error.Fields, "q")

	rec, env = s.do(t, http.MethodGet, "/api/v1/products/search?q=TRAIL", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), env.Pagination.TotalItems)

	rec, env = s.do(t, http.MethodGet, "/api/v1/products/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "electronics")

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/products/"+created.ID, admin.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/products/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ProductActiveFilter(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root@example.com", "root-password")

	for _, active := range []bool{true, false} {
		rec, _ := s.do(t, http.MethodPost, "/api/v1/products", admin.AccessToken, map[string]any{
			"name":        "Lamp",
			"description": "Desk lamp",
			"price":       20,
			"category":    "home",
			"active":      active,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	for path, want := range map[string]int64{
		"/api/v1/products":                  2,
		"/api/v1/products?active=true":      1,
		"/api/v1/products?active_only=true": 1,
		"/api/v1/products?active=false":     2,
	} {
		rec, env := s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, want, env.Pagination.TotalItems, path)
	}

	rec, _ := s.do(t, http.MethodGet, "/api/v1/products?active=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/api/v1/products?page=9223372036854775807", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(env.Data))
	assert.False(t, env.Pagination.HasNext)
}

func TestRouter_AuditRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root@example.com", "root-password")

	rec, _ := s.do(t, http.MethodGet, "/api/v1/audit", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/audit?from=yesterday", admin.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/api/v1/audit", admin.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, env.Pagination)
}

func TestRouter_EventStreamRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root@example.com", "root-password")

	rec, _ := s.do(t, http.MethodGet, "/api/v1/events/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/events/ws", admin.AccessToken, nil)
	assert.Equal(t, http.StatusSwitchingProtocols, rec.Code)
}
