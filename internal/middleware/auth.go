package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-auth-service/internal/auth"
	"go-auth-service/internal/model"
	"go-auth-service/internal/policy"
	"go-auth-service/pkg/apierror"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (policy.Caller, auth.VerifiedToken, error)
}

type contextKey string

const (
	callerContextKey contextKey = "caller"
	tokenContextKey  contextKey = "access_token"
)

type AuthMiddleware struct {
	authenticator Authenticator
}

func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Authenticate resolves the bearer token, when present, into a Caller.
// Requests without an Authorization header continue as anonymous; a header
// that is present but unusable is rejected.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), policy.Anonymous())))
			return
		}

		token, ok := BearerToken(header)
		if !ok {
			writeAuthError(w, r, model.ErrTokenInvalid)
			return
		}

		caller, verified, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}

		recordCaller(r.Context(), caller.ID())

		ctx := withCaller(r.Context(), caller)
		ctx = context.WithValue(ctx, tokenContextKey, verified)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CallerFromContext(r.Context()).IsAuthenticated() {
			writeAuthError(w, r, model.ErrAuthenticationRequired)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Authorize gates a route on an action that does not depend on a target
// resource. Ownership checks stay in the services.
func (m *AuthMiddleware) Authorize(action policy.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := policy.Authorize(CallerFromContext(r.Context()), action, "").Err(); err != nil {
				writeAuthError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerFromContext returns the anonymous caller when the request was not
// authenticated.
func CallerFromContext(ctx context.Context) policy.Caller {
	caller, ok := ctx.Value(callerContextKey).(policy.Caller)
	if !ok {
		return policy.Anonymous()
	}
	return caller
}

func TokenFromContext(ctx context.Context) (auth.VerifiedToken, bool) {
	token, ok := ctx.Value(tokenContextKey).(auth.VerifiedToken)
	return token, ok
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func withCaller(ctx context.Context, caller policy.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, known := apierror.From(err)
	if !known || errors.Is(err, model.ErrStorageUnavailable) {
		slog.Error("authentication failed", "path", r.URL.Path, "error", err)
	}
	writeAPIError(w, apiErr)
}
