package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-auth-service/internal/auth"
	"go-auth-service/internal/config"
	"go-auth-service/internal/event"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/revocation"
	"go-auth-service/internal/router"
	"go-auth-service/internal/service"
	"go-auth-service/internal/validation"
	"go-auth-service/internal/websocket"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	stores, err := openBackends(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
	}, stores.revoked)
	if err != nil {
		stores.close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	validate := validation.New()
	bus := event.NewBus()

	identities := repository.NewIdentityStore(stores.identities, hasher)
	authService := service.NewAuthService(identities, hasher, tokens, validate, bus)
	userService := service.NewUserService(identities, validate, bus)
	productService := service.NewProductService(stores.products, validate, bus)
	auditService := service.NewAuditService(stores.audit)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	go event.Consume(workerCtx, bus, auditService.Record)
	go revocation.StartPurgeTicker(workerCtx, stores.revoked, cfg.RevocationPurgeInterval)
	hub := websocket.NewHub(bus)
	go hub.Run(workerCtx)
	if cfg.AMQPURL != "" {
		go event.NewAMQPForwarder(cfg.AMQPURL, cfg.AMQPQueue).Run(workerCtx, bus)
		slog.Info("event forwarding enabled", "queue", cfg.AMQPQueue)
	}

	if cfg.SeedAdminUsername != "" {
		if _, err := authService.SeedAdmin(context.Background(), cfg.SeedAdminUsername, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			workerCancel()
			stores.close()
			return nil, fmt.Errorf("failed to seed admin: %w", err)
		}
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(userService),
		Product: handler.NewProductHandler(productService),
		Audit:   handler.NewAuditHandler(auditService),
		Health:  handler.NewHealthHandler(stores.checks),
		Docs:    handler.NewDocsHandler(cfg.OpenAPISpecPath),
		Events:  hub,
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		cleanupFuncs: []func(){
			workerCancel,
			stores.close,
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
