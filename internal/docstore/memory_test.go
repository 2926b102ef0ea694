package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProducts(t *testing.T, c *MemoryCollection) {
	t.Helper()
	ctx := context.Background()
	docs := []Document{
		{"id": "p1", "name": "Trail Shoe", "category": "sports", "price": 89.0, "active": true, "tags": []any{"running", "outdoor"}},
		{"id": "p2", "name": "Desk Lamp", "category": "home", "price": 25.5, "active": true, "tags": []any{"light"}},
		{"id": "p3", "name": "Yoga Mat", "category": "sports", "price": 30.0, "active": false, "tags": []any{"fitness"}},
		{"id": "p4", "name": "Running Socks", "category": "clothing", "price": 9.99, "active": true, "tags": []any{}},
	}
	for _, d := range docs {
		require.NoError(t, c.Insert(ctx, d))
	}
}

func TestMemoryCollection_FilterConjunction(t *testing.T) {
	c := NewMemoryCollection("products")
	seedProducts(t, c)

	lo, hi := 20.0, 100.0
	f := NewFilter().Equal("category", "sports").Range("price", &lo, &hi).ActiveOnly()

	docs, err := c.Find(context.Background(), f, FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0]["id"])
}

func TestMemoryCollection_SearchMatchesTagsCaseInsensitive(t *testing.T) {
	c := NewMemoryCollection("products")
	seedProducts(t, c)

	docs, err := c.Find(context.Background(), NewFilter().Search("RUNN", "name", "tags"), FindOptions{Sort: []Sort{Asc("name")}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Running Socks", docs[0]["name"])
	assert.Equal(t, "Trail Shoe", docs[1]["name"])
}

func TestMemoryCollection_EqualIgnoresEmptyValues(t *testing.T) {
	c := NewMemoryCollection("products")
	seedProducts(t, c)

	n, err := c.Count(context.Background(), NewFilter().Equal("category", "").Equal("name", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestMemoryCollection_SortSkipLimit(t *testing.T) {
	c := NewMemoryCollection("products")
	seedProducts(t, c)

	docs, err := c.Find(context.Background(), NewFilter(), FindOptions{Sort: []Sort{Desc("price")}, Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p3", docs[0]["id"])
	assert.Equal(t, "p2", docs[1]["id"])
}

func TestMemoryCollection_InsertionOrderIsStable(t *testing.T) {
	c := NewMemoryCollection("entries")
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, c.Insert(ctx, Document{"id": id, "kind": "x"}))
	}

	docs, err := c.Find(ctx, NewFilter().Equal("kind", "x"), FindOptions{Sort: []Sort{Asc("kind")}})
	require.NoError(t, err)
	ids := []any{docs[0]["id"], docs[1]["id"], docs[2]["id"]}
	assert.Equal(t, []any{"c", "a", "b"}, ids)
}

func TestMemoryCollection_TimeSort(t *testing.T) {
	c := NewMemoryCollection("entries")
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.Insert(ctx, Document{"id": "old", "created_at": base}))
	require.NoError(t, c.Insert(ctx, Document{"id": "new", "created_at": base.Add(time.Hour)}))

	docs, err := c.Find(ctx, NewFilter(), FindOptions{Sort: []Sort{Desc(FieldCreatedAt)}})
	require.NoError(t, err)
	assert.Equal(t, "new", docs[0]["id"])

	n, err := c.Count(ctx, NewFilter().Since(FieldCreatedAt, base.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryCollection_UniqueFields(t *testing.T) {
	c := NewMemoryCollection("identities", "email")
	ctx := context.Background()

	require.NoError(t, c.Insert(ctx, Document{"id": "u1", "email": "ann@example.com"}))
	assert.ErrorIs(t, c.Insert(ctx, Document{"id": "u2", "email": "ANN@example.com"}), ErrDuplicateKey)
	assert.ErrorIs(t, c.Insert(ctx, Document{"id": "u1", "email": "other@example.com"}), ErrDuplicateKey)

	require.NoError(t, c.Insert(ctx, Document{"id": "u3", "email": "bob@example.com"}))
	_, err := c.Update(ctx, "u3", Document{"email": "ann@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// Rewriting a document's own unique value is not a conflict.
	_, err = c.Update(ctx, "u1", Document{"email": "ann@example.com"})
	assert.NoError(t, err)
}

func TestMemoryCollection_UpdateMergesAndDelete(t *testing.T) {
	c := NewMemoryCollection("products")
	seedProducts(t, c)
	ctx := context.Background()

	doc, err := c.Update(ctx, "p2", Document{"price": 19.0, "id": "hijack"})
	require.NoError(t, err)
	assert.Equal(t, "p2", doc["id"])
	assert.Equal(t, 19.0, doc["price"])
	assert.Equal(t, "Desk Lamp", doc["name"])

	_, err = c.Update(ctx, "missing", Document{"price": 1.0})
	assert.ErrorIs(t, err, ErrNoDocument)

	deleted, err := c.Delete(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = c.FindOne(ctx, ByID("p2"))
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestMemoryCollection_ReturnsCopies(t *testing.T) {
	c := NewMemoryCollection("products")
	seedProducts(t, c)
	ctx := context.Background()

	doc, err := c.FindOne(ctx, ByID("p1"))
	require.NoError(t, err)
	doc["name"] = "mutated"
	doc["tags"].([]any)[0] = "mutated"

	again, err := c.FindOne(ctx, ByID("p1"))
	require.NoError(t, err)
	assert.Equal(t, "Trail Shoe", again["name"])
	assert.Equal(t, "running", again["tags"].([]any)[0])
}

func TestMemoryCollection_RejectsUnsafeFieldNames(t *testing.T) {
	c := NewMemoryCollection("products")
	_, err := c.Find(context.Background(), NewFilter().Equal("name'; drop", "x"), FindOptions{})
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestFilter_BuilderDoesNotAlias(t *testing.T) {
	base := NewFilter().Equal("category", "home")
	a := base.Equal("name", "a")
	b := base.Equal("name", "b")

	assert.Len(t, base.Conditions(), 1)
	assert.Equal(t, "a", a.Conditions()[1].Value)
	assert.Equal(t, "b", b.Conditions()[1].Value)
}

type shade string

func TestFilter_NormalizesNamedTypes(t *testing.T) {
	f := NewFilter().Equal("shade", shade("blue")).Equal("count", 3)
	conds := f.Conditions()
	assert.Equal(t, "blue", conds[0].Value)
	assert.Equal(t, 3.0, conds[1].Value)
}
