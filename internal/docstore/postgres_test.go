package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresWhere(t *testing.T) {
	lo := 10.0
	f := NewFilter().
		Equal("category", "home").
		Range("price", &lo, nil).
		ActiveOnly().
		Search("50%_off", "name", "tags")

	where, args, err := buildPostgresWhere("products", f)
	require.NoError(t, err)

	assert.Contains(t, where, "collection = $1")
	assert.Contains(t, where, "doc @> $2::jsonb")
	assert.Contains(t, where, "(doc->>'price')::double precision >= $3")
	assert.Contains(t, where, "doc @> $4::jsonb")
	assert.Contains(t, where, "jsonb_array_elements_text(doc->'tags')")
	assert.Contains(t, where, "doc->>'name' ILIKE $5")

	require.Len(t, args, 5)
	assert.Equal(t, "products", args[0])
	assert.JSONEq(t, `{"category":"home"}`, args[1].(string))
	assert.Equal(t, 10.0, args[2])
	assert.JSONEq(t, `{"active":true}`, args[3].(string))
	assert.Equal(t, `%50\%\_off%`, args[4])
}

func TestBuildPostgresWhere_IDAndTimestamps(t *testing.T) {
	f := NewFilter().Equal(FieldID, "8d5c3a9e-0000-0000-0000-000000000000")
	where, args, err := buildPostgresWhere("identities", f)
	require.NoError(t, err)
	assert.Equal(t, "collection = $1 AND id::text = $2", where)
	assert.Len(t, args, 2)
}

func TestBuildPostgresWhere_RejectsInjection(t *testing.T) {
	_, _, err := buildPostgresWhere("products", NewFilter().Search("x", "name') OR 1=1 --"))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestBuildPostgresOrderBy(t *testing.T) {
	order, err := buildPostgresOrderBy([]Sort{Desc("price"), Asc(FieldCreatedAt)})
	require.NoError(t, err)
	assert.Equal(t, "doc->'price' DESC, created_at ASC, id ASC", order)

	_, err = buildPostgresOrderBy([]Sort{Asc("Price")})
	assert.ErrorIs(t, err, ErrInvalidField)
}
