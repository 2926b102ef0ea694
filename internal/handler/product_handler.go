package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
	"go-auth-service/internal/service"
)

type ProductHandler struct {
	service *service.ProductService
}

func NewProductHandler(service *service.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := productQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, page.Items, page.Pagination())
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := productQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q.Text = strings.TrimSpace(r.URL.Query().Get("q"))

	page, err := h.service.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, page.Items, page.Pagination())
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.Categories(), nil)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, product, nil)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateProductRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	product, err := h.service.Create(r.Context(), middleware.CallerFromContext(r.Context()), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, product, nil)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateProductRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	product, err := h.service.Update(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, product, nil)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "product deleted")
}

func productQuery(r *http.Request) (model.ProductQuery, error) {
	query := r.URL.Query()

	minPrice, err := parseOptionalFloat(query.Get("min_price"), "min_price")
	if err != nil {
		return model.ProductQuery{}, err
	}
	maxPrice, err := parseOptionalFloat(query.Get("max_price"), "max_price")
	if err != nil {
		return model.ProductQuery{}, err
	}
	// "active" is the older spelling of "active_only"; either one filters.
	activeParam := "active_only"
	if query.Get(activeParam) == "" {
		activeParam = "active"
	}
	activeOnly, err := parseOptionalBool(query.Get(activeParam), activeParam)
	if err != nil {
		return model.ProductQuery{}, err
	}

	return model.ProductQuery{
		Category:   strings.TrimSpace(query.Get("category")),
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		ActiveOnly: activeOnly != nil && *activeOnly,
		Page:       parseIntOrDefault(query.Get("page"), 1),
		PerPage:    parseIntOrDefault(query.Get("per_page"), 0),
	}, nil
}
