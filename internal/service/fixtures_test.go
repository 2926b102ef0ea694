package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/auth"
	"go-auth-service/internal/docstore"
	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/internal/policy"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/revocation"
	"go-auth-service/internal/validation"
)

type fixture struct {
	identities *repository.IdentityStore
	registry   *revocation.MemoryRegistry
	tokens     *auth.TokenService
	bus        *event.InMemoryBus
	auth       *AuthService
	users      *UserService
	products   *ProductService
	audit      *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher := auth.NewHasher(bcrypt.MinCost)
	identities := repository.NewIdentityStore(
		docstore.NewMemoryCollection(repository.IdentitiesCollection, repository.IdentityUniqueFields...),
		hasher,
	)
	registry := revocation.NewMemoryRegistry()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "service-test-secret-0123456789abcdef"}, registry)
	require.NoError(t, err)

	validate := validation.New()
	bus := event.NewBus()

	return &fixture{
		identities: identities,
		registry:   registry,
		tokens:     tokens,
		bus:        bus,
		auth:       NewAuthService(identities, hasher, tokens, validate, bus),
		users:      NewUserService(identities, validate, bus),
		products:   NewProductService(docstore.NewMemoryCollection(ProductsCollection), validate, bus),
		audit:      NewAuditService(docstore.NewMemoryCollection(AuditCollection)),
	}
}

func (f *fixture) register(t *testing.T, username string) model.TokenPair {
	t.Helper()
	pair, err := f.auth.Register(context.Background(), model.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password-" + username,
	})
	require.NoError(t, err)
	return pair
}

func (f *fixture) admin(t *testing.T) policy.Caller {
	t.Helper()
	created, err := f.auth.SeedAdmin(context.Background(), "root", "root@example.com", "root-password")
	require.NoError(t, err)
	require.True(t, created)

	identity, err := f.identities.FindByUsername(context.Background(), "root")
	require.NoError(t, err)
	return policy.Authenticated(identity.ID, identity.Role, identity.Active)
}

func callerOf(view model.IdentityView) policy.Caller {
	return policy.Authenticated(view.ID, view.Role, view.Active)
}
