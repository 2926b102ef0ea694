// Package docstore is the document-storage backend behind the generic
// repository. A Collection stores flat JSON-like documents keyed by a string
// "id" and answers conjunctive filters with sort, skip and limit.
//
// Backends: MemoryCollection (tests and single-process deployments),
// PostgresCollection (JSONB rows in the shared documents table) and
// MongoCollection.
package docstore

import (
	"context"
	"errors"
	"regexp"
	"time"
)

const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var (
	ErrNoDocument   = errors.New("docstore: no document")
	ErrDuplicateKey = errors.New("docstore: duplicate key")
	ErrInvalidField = errors.New("docstore: invalid field name")
)

// Document is a decoded record. FieldCreatedAt and FieldUpdatedAt hold
// time.Time values; every other value is JSON-shaped (string, float64, bool,
// nil, []any, map[string]any).
type Document map[string]any

type FindOptions struct {
	Sort  []Sort
	Skip  int64
	Limit int64
}

type Collection interface {
	Name() string
	FindOne(ctx context.Context, filter Filter) (Document, error)
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Insert(ctx context.Context, doc Document) error
	Update(ctx context.Context, id string, set Document) (Document, error)
	Delete(ctx context.Context, id string) (bool, error)
}

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidField reports whether name is safe to use as a document key in
// backend queries.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

func isTimestampField(name string) bool {
	return name == FieldCreatedAt || name == FieldUpdatedAt
}

func cloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case Document:
		return cloneDocument(t)
	case time.Time:
		return t
	default:
		return v
	}
}
