package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/service"
	"go-auth-service/pkg/apierror"
)

type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	active, err := parseOptionalBool(query.Get("active"), "active")
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := repository.IdentityFilter{Active: active, Search: strings.TrimSpace(query.Get("search"))}
	if raw := strings.TrimSpace(query.Get("role")); raw != "" {
		role, ok := model.ParseRole(raw)
		if !ok {
			writeError(w, r, apierror.BadRequest("invalid 'role' value", raw))
			return
		}
		filter.Role = role
	}

	page, err := h.service.List(r.Context(), middleware.CallerFromContext(r.Context()), filter, repository.PageRequest{
		Page:    parseIntOrDefault(query.Get("page"), 1),
		PerPage: parseIntOrDefault(query.Get("per_page"), 0),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, page.Items, page.Pagination())
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, err := h.service.Get(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, identity, nil)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateIdentityRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	identity, err := h.service.Update(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, identity, nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "user deleted")
}

func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	identity, err := h.service.SetActive(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id"), active)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, identity, nil)
}
