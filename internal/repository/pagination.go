package repository

import (
	"context"
	"math"

	"go-auth-service/internal/docstore"
	"go-auth-service/internal/model"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100

	// MaxPage keeps (page-1)*per_page inside int64 on every platform.
	MaxPage = math.MaxInt32
)

type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize clamps the request: page < 1 becomes 1, page > MaxPage becomes
// MaxPage, a non-positive per_page becomes DefaultPerPage and anything above
// MaxPerPage is capped.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p PageRequest) Skip() int64 {
	n := p.Normalize()
	return int64(n.Page-1) * int64(n.PerPage)
}

type Page[T any] struct {
	Items      []T
	Page       int
	PerPage    int
	TotalItems int64
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	req = req.Normalize()
	totalPages := int((total + int64(req.PerPage) - 1) / int64(req.PerPage))
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		PerPage:    req.PerPage,
		TotalItems: total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}
}

func (p Page[T]) Pagination() *model.Pagination {
	return &model.Pagination{
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
		HasNext:    p.HasNext,
		HasPrev:    p.HasPrev,
	}
}

func (r *Repository[T]) Paginate(ctx context.Context, filter docstore.Filter, sort []docstore.Sort, req PageRequest) (Page[T], error) {
	req = req.Normalize()

	total, err := r.Count(ctx, filter)
	if err != nil {
		return Page[T]{}, err
	}
	if req.Skip() >= total {
		return NewPage[T](nil, req, total), nil
	}
	items, err := r.Find(ctx, filter, sort, req.Skip(), int64(req.PerPage))
	if err != nil {
		return Page[T]{}, err
	}
	return NewPage(items, req, total), nil
}
