package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-auth-service/internal/docstore"
	"go-auth-service/internal/model"
)

// Repository maps a docstore.Collection onto the struct type T. T must carry
// `json:"id"`, `json:"created_at"` and `json:"updated_at"` fields.
type Repository[T any] struct {
	coll docstore.Collection
	now  func() time.Time
}

func New[T any](coll docstore.Collection) *Repository[T] {
	return &Repository[T]{
		coll: coll,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source. Intended for tests.
func (r *Repository[T]) WithClock(now func() time.Time) *Repository[T] {
	r.now = now
	return r
}

func (r *Repository[T]) Collection() string {
	return r.coll.Name()
}

func (r *Repository[T]) FindOne(ctx context.Context, filter docstore.Filter) (T, error) {
	var zero T
	doc, err := r.coll.FindOne(ctx, filter)
	if err != nil {
		return zero, r.wrap("find one", err)
	}
	return decode[T](doc)
}

// FindByID treats ids that are not UUIDs as absent.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	if _, err := uuid.Parse(id); err != nil {
		return zero, model.ErrNotFound
	}
	return r.FindOne(ctx, docstore.ByID(id))
}

func (r *Repository[T]) Find(ctx context.Context, filter docstore.Filter, sort []docstore.Sort, skip, limit int64) ([]T, error) {
	docs, err := r.coll.Find(ctx, filter, docstore.FindOptions{Sort: sort, Skip: skip, Limit: limit})
	if err != nil {
		return nil, r.wrap("find", err)
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository[T]) Count(ctx context.Context, filter docstore.Filter) (int64, error) {
	n, err := r.coll.Count(ctx, filter)
	if err != nil {
		return 0, r.wrap("count", err)
	}
	return n, nil
}

// Insert stamps id, created_at and updated_at and returns the stored value.
// A caller-supplied id is kept when it is a valid UUID.
func (r *Repository[T]) Insert(ctx context.Context, item T) (T, error) {
	var zero T
	doc, err := encode(item)
	if err != nil {
		return zero, err
	}

	id, _ := doc[docstore.FieldID].(string)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	now := r.now()
	doc[docstore.FieldID] = id
	doc[docstore.FieldCreatedAt] = now
	doc[docstore.FieldUpdatedAt] = now

	if err := r.coll.Insert(ctx, doc); err != nil {
		return zero, r.wrap("insert", err)
	}
	return decode[T](doc)
}

// UpdateByID merges fields into the stored document and stamps updated_at.
// Keys id and created_at are ignored.
func (r *Repository[T]) UpdateByID(ctx context.Context, id string, fields map[string]any) (T, error) {
	var zero T
	if _, err := uuid.Parse(id); err != nil {
		return zero, model.ErrNotFound
	}

	set, err := encodeFields(fields)
	if err != nil {
		return zero, err
	}
	delete(set, docstore.FieldID)
	delete(set, docstore.FieldCreatedAt)
	set[docstore.FieldUpdatedAt] = r.now()

	doc, err := r.coll.Update(ctx, id, set)
	if err != nil {
		return zero, r.wrap("update", err)
	}
	return decode[T](doc)
}

func (r *Repository[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	deleted, err := r.coll.Delete(ctx, id)
	if err != nil {
		return false, r.wrap("delete", err)
	}
	return deleted, nil
}

func (r *Repository[T]) wrap(op string, err error) error {
	switch {
	case errors.Is(err, docstore.ErrNoDocument):
		return model.ErrNotFound
	case errors.Is(err, docstore.ErrDuplicateKey),
		errors.Is(err, docstore.ErrInvalidField),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s %s: %w", op, r.coll.Name(), err)
	}
	return fmt.Errorf("%w: %s %s: %w", model.ErrStorageUnavailable, op, r.coll.Name(), err)
}

func encode[T any](item T) (docstore.Document, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	doc := docstore.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

func encodeFields(fields map[string]any) (docstore.Document, error) {
	if len(fields) == 0 {
		return docstore.Document{}, nil
	}
	return encode(fields)
}

func decode[T any](doc docstore.Document) (T, error) {
	var item T
	raw, err := json.Marshal(doc)
	if err != nil {
		return item, fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("decode document: %w", err)
	}
	return item, nil
}
