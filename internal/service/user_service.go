package service

import (
	"context"
	"strings"

	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/internal/policy"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/validation"
)

type UserService struct {
	identities *repository.IdentityStore
	validate   *validation.Validator
	bus        event.Bus
}

func NewUserService(identities *repository.IdentityStore, validate *validation.Validator, bus event.Bus) *UserService {
	if bus == nil {
		bus = event.Discard{}
	}
	return &UserService{identities: identities, validate: validate, bus: bus}
}

func (s *UserService) List(ctx context.Context, caller policy.Caller, filter repository.IdentityFilter, page repository.PageRequest) (repository.Page[model.IdentityView], error) {
	if err := policy.Authorize(caller, policy.UserList, "").Err(); err != nil {
		return repository.Page[model.IdentityView]{}, err
	}

	result, err := s.identities.List(ctx, filter, page)
	if err != nil {
		return repository.Page[model.IdentityView]{}, err
	}
	return mapPage(result, model.Identity.View), nil
}

func (s *UserService) Get(ctx context.Context, caller policy.Caller, id string) (model.IdentityView, error) {
	if err := policy.Authorize(caller, policy.UserRead, id).Err(); err != nil {
		return model.IdentityView{}, err
	}
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return model.IdentityView{}, err
	}
	return identity.View(), nil
}

func (s *UserService) Update(ctx context.Context, caller policy.Caller, id string, req model.UpdateIdentityRequest) (model.IdentityView, error) {
	req.Username = trimmed(req.Username)
	req.Email = trimmed(req.Email)
	req.FullName = trimmed(req.FullName)
	if err := s.validate.Struct(req); err != nil {
		return model.IdentityView{}, err
	}

	fields := identityFields(req)
	if err := policy.CheckIdentityUpdate(caller, id, fields).Err(); err != nil {
		return model.IdentityView{}, err
	}
	if len(fields) == 0 {
		return model.IdentityView{}, model.NewValidationError("body", "at least one field is required")
	}

	updated, err := s.identities.UpdateFields(ctx, id, fields)
	if err != nil {
		return model.IdentityView{}, err
	}

	s.bus.Publish(event.New(event.TypeUserUpdated, caller.ID(), id))
	return updated.View(), nil
}

func (s *UserService) Delete(ctx context.Context, caller policy.Caller, id string) error {
	if err := policy.CheckIdentityDeletion(caller, id).Err(); err != nil {
		return err
	}
	if err := s.identities.Delete(ctx, id, caller.ID()); err != nil {
		return err
	}

	s.bus.Publish(event.New(event.TypeUserDeleted, caller.ID(), id))
	return nil
}

func (s *UserService) SetActive(ctx context.Context, caller policy.Caller, id string, active bool) (model.IdentityView, error) {
	decision := policy.Authorize(caller, policy.UserActivate, id)
	eventType := event.TypeUserActivated
	if !active {
		decision = policy.CheckIdentityDeactivation(caller, id)
		eventType = event.TypeUserDeactivated
	}
	if err := decision.Err(); err != nil {
		return model.IdentityView{}, err
	}

	updated, err := s.identities.UpdateFields(ctx, id, map[string]any{"active": active})
	if err != nil {
		return model.IdentityView{}, err
	}

	s.bus.Publish(event.New(eventType, caller.ID(), id))
	return updated.View(), nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func identityFields(req model.UpdateIdentityRequest) map[string]any {
	fields := map[string]any{}
	if req.Username != nil {
		fields["username"] = *req.Username
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.FullName != nil {
		fields["full_name"] = *req.FullName
	}
	if req.Role != nil {
		fields["role"] = *req.Role
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	return fields
}

func mapPage[T, U any](in repository.Page[T], fn func(T) U) repository.Page[U] {
	items := make([]U, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, fn(item))
	}
	return repository.Page[U]{
		Items:      items,
		Page:       in.Page,
		PerPage:    in.PerPage,
		TotalItems: in.TotalItems,
		TotalPages: in.TotalPages,
		HasNext:    in.HasNext,
		HasPrev:    in.HasPrev,
	}
}
