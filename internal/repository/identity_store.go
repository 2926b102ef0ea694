package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go-auth-service/internal/docstore"
	"go-auth-service/internal/model"
)

const IdentitiesCollection = "identities"

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

// IdentityUniqueFields are enforced by every backend's unique constraint.
var IdentityUniqueFields = []string{"email", "username"}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// IdentityStore is the credential store. Usernames and emails are stored
// trimmed and lowercased and every lookup normalises its input the same way.
type IdentityStore struct {
	repo   *Repository[model.Identity]
	hasher PasswordHasher
}

func NewIdentityStore(coll docstore.Collection, hasher PasswordHasher) *IdentityStore {
	return &IdentityStore{repo: New[model.Identity](coll), hasher: hasher}
}

func (s *IdentityStore) Repository() *Repository[model.Identity] {
	return s.repo
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (model.Identity, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (model.Identity, error) {
	email = model.NormalizeLogin(email)
	if email == "" {
		return model.Identity{}, model.ErrNotFound
	}
	return s.repo.FindOne(ctx, docstore.NewFilter().Equal("email", email))
}

func (s *IdentityStore) FindByUsername(ctx context.Context, username string) (model.Identity, error) {
	username = model.NormalizeLogin(username)
	if username == "" {
		return model.Identity{}, model.ErrNotFound
	}
	return s.repo.FindOne(ctx, docstore.NewFilter().Equal("username", username))
}

// FindByLogin resolves an email when the value contains '@' and a username
// otherwise.
func (s *IdentityStore) FindByLogin(ctx context.Context, login string) (model.Identity, error) {
	if strings.Contains(login, "@") {
		return s.FindByEmail(ctx, login)
	}
	return s.FindByUsername(ctx, login)
}

func (s *IdentityStore) Create(ctx context.Context, in model.NewIdentity) (model.Identity, error) {
	username := model.NormalizeLogin(in.Username)
	email := model.NormalizeLogin(in.Email)

	if err := checkUsername(username); err != nil {
		return model.Identity{}, err
	}
	if email == "" {
		return model.Identity{}, model.NewValidationError("email", "is required")
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return model.Identity{}, model.NewValidationError("role", "must be one of user, moderator, admin")
	}

	if err := s.ensureAvailable(ctx, "", email, username); err != nil {
		return model.Identity{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Insert(ctx, model.Identity{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if errors.Is(err, docstore.ErrDuplicateKey) {
		return model.Identity{}, &model.DuplicateIdentityError{}
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return created, nil
}

// identityUpdatable lists the keys UpdateFields accepts. Anything else,
// password_hash in particular, is dropped.
var identityUpdatable = map[string]bool{
	"username":  true,
	"email":     true,
	"full_name": true,
	"role":      true,
	"active":    true,
}

func (s *IdentityStore) UpdateFields(ctx context.Context, id string, fields map[string]any) (model.Identity, error) {
	set := make(map[string]any, len(fields))
	for k, v := range fields {
		if identityUpdatable[k] {
			set[k] = v
		}
	}

	var email, username string
	for _, key := range []string{"email", "username"} {
		raw, ok := set[key]
		if !ok {
			continue
		}
		value, isString := raw.(string)
		if !isString {
			return model.Identity{}, model.NewValidationError(key, "must be a string")
		}
		value = model.NormalizeLogin(value)
		set[key] = value
		if key == "email" {
			if value == "" {
				return model.Identity{}, model.NewValidationError("email", "is required")
			}
			email = value
		} else {
			if err := checkUsername(value); err != nil {
				return model.Identity{}, err
			}
			username = value
		}
	}
	if raw, ok := set["full_name"].(string); ok {
		set["full_name"] = strings.TrimSpace(raw)
	}
	if raw, ok := set["role"]; ok {
		role, valid := toRole(raw)
		if !valid {
			return model.Identity{}, model.NewValidationError("role", "must be one of user, moderator, admin")
		}
		set["role"] = role
	}
	if raw, ok := set["active"]; ok {
		if _, isBool := raw.(bool); !isBool {
			return model.Identity{}, model.NewValidationError("active", "must be a boolean")
		}
	}

	if err := s.ensureAvailable(ctx, id, email, username); err != nil {
		return model.Identity{}, err
	}

	updated, err := s.repo.UpdateByID(ctx, id, set)
	if errors.Is(err, docstore.ErrDuplicateKey) {
		return model.Identity{}, &model.DuplicateIdentityError{}
	}
	if err != nil {
		return model.Identity{}, err
	}
	return updated, nil
}

func (s *IdentityStore) Delete(ctx context.Context, id string, requestedBy string) error {
	if id == requestedBy {
		return model.ErrSelfActionDenied
	}
	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return model.ErrNotFound
	}
	return nil
}

func (s *IdentityStore) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.repo.UpdateByID(ctx, id, map[string]any{"last_login": at.UTC()})
	return err
}

func (s *IdentityStore) ChangePassword(ctx context.Context, id string, newPlaintext string) error {
	hash, err := s.hasher.Hash(newPlaintext)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.repo.UpdateByID(ctx, id, map[string]any{"password_hash": hash})
	return err
}

type IdentityFilter struct {
	Role   model.Role
	Active *bool
	Search string
}

func (s *IdentityStore) List(ctx context.Context, f IdentityFilter, page PageRequest) (Page[model.Identity], error) {
	filter := docstore.NewFilter().
		Equal("role", f.Role).
		Search(f.Search, "username", "email", "full_name")
	if f.Active != nil {
		filter = filter.Equal("active", *f.Active)
	}
	return s.repo.Paginate(ctx, filter, []docstore.Sort{docstore.Desc(docstore.FieldCreatedAt)}, page)
}

func (s *IdentityStore) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, docstore.NewFilter())
}

// ensureAvailable reports a field-specific DuplicateIdentityError when email
// or username already belongs to an identity other than selfID.
func (s *IdentityStore) ensureAvailable(ctx context.Context, selfID, email, username string) error {
	if email != "" {
		existing, err := s.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != selfID:
			return &model.DuplicateIdentityError{Field: "email"}
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return err
		}
	}
	if username != "" {
		existing, err := s.FindByUsername(ctx, username)
		switch {
		case err == nil && existing.ID != selfID:
			return &model.DuplicateIdentityError{Field: "username"}
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return err
		}
	}
	return nil
}

// checkUsername applies the username rules to the normalised value, so
// padding cannot satisfy the length limits.
func checkUsername(username string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case n == 0:
		return model.NewValidationError("username", "is required")
	case n < MinUsernameLength:
		return model.NewValidationError("username", fmt.Sprintf("must be at least %d characters", MinUsernameLength))
	case n > MaxUsernameLength:
		return model.NewValidationError("username", fmt.Sprintf("must be at most %d characters", MaxUsernameLength))
	case strings.Contains(username, "@"):
		// FindByLogin routes anything with '@' to the email lookup.
		return model.NewValidationError("username", `must not contain "@"`)
	}
	return nil
}

func toRole(v any) (model.Role, bool) {
	switch r := v.(type) {
	case model.Role:
		return model.ParseRole(string(r))
	case string:
		return model.ParseRole(r)
	}
	return "", false
}
