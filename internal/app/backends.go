package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go-auth-service/internal/config"
	"go-auth-service/internal/database"
	"go-auth-service/internal/docstore"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/revocation"
	"go-auth-service/internal/service"
)

// backends holds the document collections and revocation registry selected
// by configuration, plus the health checks and closers of whatever clients
// they needed.
type backends struct {
	identities docstore.Collection
	products   docstore.Collection
	audit      docstore.Collection
	revoked    revocation.Registry
	checks     map[string]handler.HealthCheck
	closers    []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{checks: map[string]handler.HealthCheck{}}

	var db *database.DB
	if cfg.UsesPostgres() {
		slog.Info("connecting to PostgreSQL")
		var err error
		db, err = database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		b.checks["postgres"] = db.Health

		if err := db.EnsureSchema(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		b.identities = docstore.NewPostgresCollection(db.Pool, repository.IdentitiesCollection)
		b.products = docstore.NewPostgresCollection(db.Pool, service.ProductsCollection)
		b.audit = docstore.NewPostgresCollection(db.Pool, service.AuditCollection)
	case config.BackendMongo:
		if err := b.openMongo(ctx, cfg); err != nil {
			b.close()
			return nil, err
		}
	default:
		b.identities = docstore.NewMemoryCollection(repository.IdentitiesCollection, repository.IdentityUniqueFields...)
		b.products = docstore.NewMemoryCollection(service.ProductsCollection)
		b.audit = docstore.NewMemoryCollection(service.AuditCollection)
	}

	switch cfg.RevocationBackend {
	case config.BackendRedis:
		client, err := revocation.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		b.revoked = revocation.NewRedisRegistry(client)
	case config.BackendPostgres:
		b.revoked = revocation.NewPostgresRegistry(db.Pool)
	default:
		b.revoked = revocation.NewMemoryRegistry()
	}

	slog.Info("backends ready", "store", cfg.StoreBackend, "revocation", cfg.RevocationBackend)
	return b, nil
}

func (b *backends) openMongo(ctx context.Context, cfg *config.Config) error {
	slog.Info("connecting to MongoDB", "database", cfg.MongoDatabase)
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	b.closers = append(b.closers, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("failed to ping mongo: %w", err)
	}
	b.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

	mdb := client.Database(cfg.MongoDatabase)
	identities := docstore.NewMongoCollection(mdb, repository.IdentitiesCollection)
	if err := identities.EnsureUniqueIndexes(pingCtx, repository.IdentityUniqueFields...); err != nil {
		return fmt.Errorf("failed to ensure identity indexes: %w", err)
	}

	b.identities = identities
	b.products = docstore.NewMongoCollection(mdb, service.ProductsCollection)
	b.audit = docstore.NewMongoCollection(mdb, service.AuditCollection)
	return nil
}
