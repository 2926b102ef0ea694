package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go-auth-service/internal/auth"
	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/internal/policy"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/validation"
)

const tokenTypeBearer = "Bearer"

type AuthService struct {
	identities *repository.IdentityStore
	hasher     *auth.Hasher
	tokens     *auth.TokenService
	validate   *validation.Validator
	bus        event.Bus
	now        func() time.Time
}

func NewAuthService(
	identities *repository.IdentityStore,
	hasher *auth.Hasher,
	tokens *auth.TokenService,
	validate *validation.Validator,
	bus event.Bus,
) *AuthService {
	if bus == nil {
		bus = event.Discard{}
	}
	return &AuthService{
		identities: identities,
		hasher:     hasher,
		tokens:     tokens,
		validate:   validate,
		bus:        bus,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register always creates a plain user; roles are granted by administrators.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.TokenPair, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validate.Struct(req); err != nil {
		return model.TokenPair{}, err
	}

	identity, err := s.identities.Create(ctx, model.NewIdentity{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Role:     model.RoleUser,
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	pair, err := s.issuePair(identity)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.bus.Publish(event.New(event.TypeRegistered, identity.ID, identity.ID))
	slog.Info("identity registered", "user_id", identity.ID, "username", identity.Username)
	return pair, nil
}

// Login never reveals whether the login exists: unknown identities and wrong
// passwords both return ErrInvalidCredentials after comparable work.
// ErrAccountDisabled is only reported once the password has been verified.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.TokenPair, error) {
	login := strings.TrimSpace(req.Login())
	if login == "" {
		return model.TokenPair{}, model.NewValidationError("email", "email or username is required")
	}
	if req.Password == "" {
		return model.TokenPair{}, model.NewValidationError("password", "is required")
	}

	identity, err := s.identities.FindByLogin(ctx, login)
	if errors.Is(err, model.ErrNotFound) {
		s.hasher.VerifyDummy(req.Password)
		s.bus.Publish(event.New(event.TypeLoginFailed, "", "").Failed("unknown login"))
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if !s.hasher.Verify(identity.PasswordHash, req.Password) {
		s.bus.Publish(event.New(event.TypeLoginFailed, "", identity.ID).Failed("wrong password"))
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if !identity.Active {
		s.bus.Publish(event.New(event.TypeLoginFailed, identity.ID, identity.ID).Failed("account disabled"))
		return model.TokenPair{}, model.ErrAccountDisabled
	}

	now := s.now()
	if err := s.identities.SetLastLogin(ctx, identity.ID, now); err != nil {
		return model.TokenPair{}, err
	}
	identity.LastLogin = &now

	pair, err := s.issuePair(identity)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.bus.Publish(event.New(event.TypeLoggedIn, identity.ID, identity.ID))
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token. The identity must
// still exist and be active; the new token carries the current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.AccessTokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.AccessTokenResponse{}, model.NewValidationError("refresh_token", "is required")
	}

	verified, err := s.tokens.Verify(ctx, refreshToken, model.TokenKindRefresh)
	if err != nil {
		return model.AccessTokenResponse{}, err
	}

	identity, err := s.identities.FindByID(ctx, verified.Subject)
	if errors.Is(err, model.ErrNotFound) {
		return model.AccessTokenResponse{}, model.ErrTokenInvalid
	}
	if err != nil {
		return model.AccessTokenResponse{}, err
	}
	if !identity.Active {
		return model.AccessTokenResponse{}, model.ErrAccountDisabled
	}

	access, err := s.tokens.IssueAccessToken(auth.Subject{ID: identity.ID, Role: identity.Role})
	if err != nil {
		return model.AccessTokenResponse{}, err
	}

	s.bus.Publish(event.New(event.TypeRefreshed, identity.ID, identity.ID))
	return model.AccessTokenResponse{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the presented access token. A refresh token belonging to
// the same subject is revoked too; anything else in that slot is ignored.
func (s *AuthService) Logout(ctx context.Context, access auth.VerifiedToken, refreshToken string) error {
	if _, err := s.tokens.Revoke(ctx, access); err != nil {
		return err
	}

	if strings.TrimSpace(refreshToken) != "" {
		refresh, err := s.tokens.Verify(ctx, refreshToken, model.TokenKindRefresh)
		switch {
		case err == nil && refresh.Subject == access.Subject:
			if _, err := s.tokens.Revoke(ctx, refresh); err != nil {
				return err
			}
		case errors.Is(err, model.ErrStorageUnavailable):
			return err
		}
	}

	s.bus.Publish(event.New(event.TypeLoggedOut, access.Subject, access.Subject))
	return nil
}

// Authenticate resolves a bearer access token into a Caller. The role comes
// from the token; active status is read fresh from the credential store.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (policy.Caller, auth.VerifiedToken, error) {
	verified, err := s.tokens.Verify(ctx, accessToken, model.TokenKindAccess)
	if err != nil {
		return policy.Anonymous(), auth.VerifiedToken{}, err
	}

	identity, err := s.identities.FindByID(ctx, verified.Subject)
	if errors.Is(err, model.ErrNotFound) {
		return policy.Anonymous(), auth.VerifiedToken{}, model.ErrTokenInvalid
	}
	if err != nil {
		return policy.Anonymous(), auth.VerifiedToken{}, err
	}

	return policy.Authenticated(identity.ID, verified.Role, identity.Active), verified, nil
}

func (s *AuthService) Me(ctx context.Context, caller policy.Caller) (model.IdentityView, error) {
	if err := policy.Authorize(caller, policy.ProfileRead, caller.ID()).Err(); err != nil {
		return model.IdentityView{}, err
	}
	identity, err := s.identities.FindByID(ctx, caller.ID())
	if err != nil {
		return model.IdentityView{}, err
	}
	return identity.View(), nil
}

func (s *AuthService) ChangePassword(ctx context.Context, caller policy.Caller, req model.ChangePasswordRequest) error {
	if err := policy.Authorize(caller, policy.PasswordChange, caller.ID()).Err(); err != nil {
		return err
	}
	if err := s.validate.Struct(req); err != nil {
		return err
	}

	identity, err := s.identities.FindByID(ctx, caller.ID())
	if err != nil {
		return err
	}
	if !s.hasher.Verify(identity.PasswordHash, req.CurrentPassword) {
		return model.ErrInvalidCredentials
	}
	if req.CurrentPassword == req.NewPassword {
		return model.NewValidationError("new_password", "must differ from the current password")
	}

	if err := s.identities.ChangePassword(ctx, identity.ID, req.NewPassword); err != nil {
		return err
	}

	s.bus.Publish(event.New(event.TypePasswordChanged, identity.ID, identity.ID))
	return nil
}

// SeedAdmin creates the bootstrap administrator unless the username is taken.
func (s *AuthService) SeedAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return false, nil
	}

	_, err := s.identities.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return false, err
	}

	identity, err := s.identities.Create(ctx, model.NewIdentity{
		Username: username,
		Email:    email,
		FullName: "Administrator",
		Password: password,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return false, err
	}

	slog.Info("seeded administrator account", "user_id", identity.ID, "username", identity.Username)
	return true, nil
}

func (s *AuthService) issuePair(identity model.Identity) (model.TokenPair, error) {
	pair, err := s.tokens.IssuePair(auth.Subject{ID: identity.ID, Role: identity.Role})
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		User:         identity.View(),
	}, nil
}
