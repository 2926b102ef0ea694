package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-auth-service/internal/model"
	"go-auth-service/internal/revocation"
)

const (
	DefaultIssuer     = "go-auth-service"
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims is the only accepted token payload shape.
type Claims struct {
	Role model.Role      `json:"role"`
	Kind model.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// Subject is the identity snapshot embedded at issuance.
type Subject struct {
	ID   string
	Role model.Role
}

type IssuedToken struct {
	Token     string
	ID        string
	Kind      model.TokenKind
	ExpiresAt time.Time
}

type IssuedPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// VerifiedToken is what Verify hands back once a token passed every check.
type VerifiedToken struct {
	ID        string
	Subject   string
	Role      model.Role
	Kind      model.TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	registry   revocation.Registry
	now        func() time.Time
}

func NewTokenService(cfg TokenConfig, registry revocation.Registry) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if registry == nil {
		return nil, errors.New("revocation registry is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		registry:   registry,
		now:        time.Now,
	}, nil
}

func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) IssueAccessToken(sub Subject) (IssuedToken, error) {
	return s.issue(sub, model.TokenKindAccess, s.accessTTL)
}

func (s *TokenService) IssueRefreshToken(sub Subject) (IssuedToken, error) {
	return s.issue(sub, model.TokenKindRefresh, s.refreshTTL)
}

func (s *TokenService) IssuePair(sub Subject) (IssuedPair, error) {
	access, err := s.IssueAccessToken(sub)
	if err != nil {
		return IssuedPair{}, err
	}
	refresh, err := s.IssueRefreshToken(sub)
	if err != nil {
		return IssuedPair{}, err
	}
	return IssuedPair{Access: access, Refresh: refresh}, nil
}

func (s *TokenService) issue(sub Subject, kind model.TokenKind, ttl time.Duration) (IssuedToken, error) {
	if _, err := uuid.Parse(sub.ID); err != nil {
		return IssuedToken{}, fmt.Errorf("issue %s token: subject is not a valid id", kind)
	}
	if !sub.Role.Valid() {
		return IssuedToken{}, fmt.Errorf("issue %s token: unknown role %q", kind, sub.Role)
	}

	now := s.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		Role: sub.Role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return IssuedToken{Token: signed, ID: jti, Kind: kind, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm, expiry, claim shape and kind, then
// consults the revocation registry. A registry failure denies the token.
func (s *TokenService) Verify(ctx context.Context, token string, expected model.TokenKind) (VerifiedToken, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return VerifiedToken{}, model.ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return VerifiedToken{}, model.ErrTokenExpired
	default:
		return VerifiedToken{}, model.ErrTokenInvalid
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return VerifiedToken{}, model.ErrTokenInvalid
	}
	if claims.ID == "" || claims.IssuedAt == nil || !claims.Role.Valid() {
		return VerifiedToken{}, model.ErrTokenInvalid
	}
	if claims.Kind != model.TokenKindAccess && claims.Kind != model.TokenKindRefresh {
		return VerifiedToken{}, model.ErrTokenInvalid
	}
	if expected != "" && claims.Kind != expected {
		return VerifiedToken{}, model.ErrTokenInvalid
	}

	revoked, err := s.registry.IsRevoked(ctx, claims.ID)
	if err != nil {
		return VerifiedToken{}, fmt.Errorf("%w: check token revocation: %w", model.ErrStorageUnavailable, err)
	}
	if revoked {
		return VerifiedToken{}, model.ErrTokenRevoked
	}

	return VerifiedToken{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Role:      claims.Role,
		Kind:      claims.Kind,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke adds the token's id to the registry until its natural expiry.
func (s *TokenService) Revoke(ctx context.Context, token VerifiedToken) (bool, error) {
	added, err := s.registry.Revoke(ctx, token.ID, token.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("%w: revoke token: %w", model.ErrStorageUnavailable, err)
	}
	return added, nil
}
