package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go-auth-service/internal/docstore"
	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/internal/policy"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/validation"
)

const ProductsCollection = "products"

const minSearchLength = 2

var productSearchFields = []string{"name", "description", "tags"}

type ProductService struct {
	repo     *repository.Repository[model.Product]
	validate *validation.Validator
	bus      event.Bus
}

func NewProductService(coll docstore.Collection, validate *validation.Validator, bus event.Bus) *ProductService {
	if bus == nil {
		bus = event.Discard{}
	}
	return &ProductService{
		repo:     repository.New[model.Product](coll),
		validate: validate,
		bus:      bus,
	}
}

func (s *ProductService) Categories() []model.Category {
	return append([]model.Category(nil), model.Categories...)
}

func (s *ProductService) List(ctx context.Context, q model.ProductQuery) (repository.Page[model.Product], error) {
	filter, err := productFilter(q)
	if err != nil {
		return repository.Page[model.Product]{}, err
	}
	return s.repo.Paginate(ctx, filter,
		[]docstore.Sort{docstore.Desc(docstore.FieldCreatedAt)},
		repository.PageRequest{Page: q.Page, PerPage: q.PerPage})
}

// Search is List with a mandatory text term of at least two characters.
func (s *ProductService) Search(ctx context.Context, q model.ProductQuery) (repository.Page[model.Product], error) {
	q.Text = strings.TrimSpace(q.Text)
	if utf8.RuneCountInString(q.Text) < minSearchLength {
		return repository.Page[model.Product]{}, model.NewValidationError("q", "must be at least 2 characters")
	}
	return s.List(ctx, q)
}

func (s *ProductService) Get(ctx context.Context, id string) (model.Product, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ProductService) Create(ctx context.Context, caller policy.Caller, req model.CreateProductRequest) (model.Product, error) {
	if err := policy.Authorize(caller, policy.ProductCreate, "").Err(); err != nil {
		return model.Product{}, err
	}
	if err := s.validate.Struct(req); err != nil {
		return model.Product{}, err
	}

	product := model.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Category:    model.Category(normalizeCategory(req.Category)),
		SKU:         strings.TrimSpace(req.SKU),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Tags:        req.Tags,
		Active:      true,
	}
	if req.Inventory != nil {
		product.Inventory = *req.Inventory
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if product.Tags == nil {
		product.Tags = model.TagList{}
	}

	created, err := s.repo.Insert(ctx, product)
	if err != nil {
		return model.Product{}, err
	}

	s.bus.Publish(event.New(event.TypeProductCreated, caller.ID(), created.ID))
	return created, nil
}

func (s *ProductService) Update(ctx context.Context, caller policy.Caller, id string, req model.UpdateProductRequest) (model.Product, error) {
	if err := policy.Authorize(caller, policy.ProductUpdate, "").Err(); err != nil {
		return model.Product{}, err
	}
	if err := s.validate.Struct(req); err != nil {
		return model.Product{}, err
	}

	fields := productFields(req)
	if len(fields) == 0 {
		return model.Product{}, model.NewValidationError("body", "at least one field is required")
	}

	updated, err := s.repo.UpdateByID(ctx, id, fields)
	if err != nil {
		return model.Product{}, err
	}

	s.bus.Publish(event.New(event.TypeProductUpdated, caller.ID(), id))
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, caller policy.Caller, id string) error {
	if err := policy.Authorize(caller, policy.ProductDelete, "").Err(); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return model.ErrNotFound
	}

	s.bus.Publish(event.New(event.TypeProductDeleted, caller.ID(), id))
	return nil
}

func productFilter(q model.ProductQuery) (docstore.Filter, error) {
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return docstore.Filter{}, model.NewValidationError("min_price", "must not exceed max_price")
	}

	filter := docstore.NewFilter().
		Equal("category", normalizeCategory(q.Category)).
		Range("price", q.MinPrice, q.MaxPrice).
		Search(q.Text, productSearchFields...)
	if q.ActiveOnly {
		filter = filter.ActiveOnly()
	}
	return filter, nil
}

func productFields(req model.UpdateProductRequest) map[string]any {
	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.Category != nil {
		fields["category"] = normalizeCategory(*req.Category)
	}
	if req.SKU != nil {
		fields["sku"] = strings.TrimSpace(*req.SKU)
	}
	if req.ImageURL != nil {
		fields["image_url"] = strings.TrimSpace(*req.ImageURL)
	}
	if req.Inventory != nil {
		fields["inventory"] = *req.Inventory
	}
	if req.Tags != nil {
		fields["tags"] = []string(*req.Tags)
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	return fields
}

func normalizeCategory(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
