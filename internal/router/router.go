package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/config"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/policy"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Product *handler.ProductHandler
	Audit   *handler.AuditHandler
	Health  *handler.HealthHandler
	Docs    *handler.DocsHandler
	Events  http.Handler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Live)
	r.Get("/health/ready", h.Health.Ready)
	if h.Docs != nil {
		r.Get(handler.OpenAPIRoute, h.Docs.OpenAPI)
		r.Get(handler.SwaggerUIRoute, h.Docs.SwaggerUI)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(authMiddleware.Authenticate)

		// Long-lived stream; stays outside the request timeout.
		if h.Events != nil {
			api.With(authMiddleware.Authorize(policy.EventStream)).Get("/events/ws", h.Events.ServeHTTP)
		}

		api.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(cfg.RequestTimeout))
			registerRoutes(api, authMiddleware, h)
		})
	})

	return r
}

func registerRoutes(api chi.Router, am *middleware.AuthMiddleware, h Handlers) {
	api.Route("/auth", func(auth chi.Router) {
		auth.Post("/register", h.Auth.Register)
		auth.Post("/login", h.Auth.Login)
		auth.Post("/refresh", h.Auth.Refresh)
		auth.With(am.RequireAuth).Post("/logout", h.Auth.Logout)
		auth.With(am.RequireAuth).Get("/me", h.Auth.Me)
		auth.With(am.RequireAuth).Put("/password", h.Auth.ChangePassword)
	})

	api.Route("/users", func(users chi.Router) {
		users.With(am.Authorize(policy.UserList)).Get("/", h.User.List)
		users.With(am.RequireAuth).Get("/{id}", h.User.Get)
		users.With(am.RequireAuth).Put("/{id}", h.User.Update)
		users.With(am.RequireAuth).Patch("/{id}", h.User.Update)
		users.With(am.Authorize(policy.UserDelete)).Delete("/{id}", h.User.Delete)
		users.With(am.Authorize(policy.UserActivate)).Patch("/{id}/activate", h.User.Activate)
		users.With(am.Authorize(policy.UserDeactivate)).Patch("/{id}/deactivate", h.User.Deactivate)
	})

	api.Route("/products", func(products chi.Router) {
		products.Get("/", h.Product.List)
		products.Get("/search", h.Product.Search)
		products.Get("/categories", h.Product.Categories)
		products.Get("/{id}", h.Product.Get)
		products.With(am.Authorize(policy.ProductCreate)).Post("/", h.Product.Create)
		products.With(am.Authorize(policy.ProductUpdate)).Put("/{id}", h.Product.Update)
		products.With(am.Authorize(policy.ProductUpdate)).Patch("/{id}", h.Product.Update)
		products.With(am.Authorize(policy.ProductDelete)).Delete("/{id}", h.Product.Delete)
	})

	api.With(am.Authorize(policy.AuditList)).Get("/audit", h.Audit.List)
}
