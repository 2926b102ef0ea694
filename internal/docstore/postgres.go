package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresCollection stores documents as JSONB rows of the shared documents
// table, partitioned by the collection column. id, created_at and updated_at
// live in their own columns and are stripped from the JSONB body.
type PostgresCollection struct {
	pool *pgxpool.Pool
	name string
}

func NewPostgresCollection(pool *pgxpool.Pool, name string) *PostgresCollection {
	return &PostgresCollection{pool: pool, name: name}
}

func (c *PostgresCollection) Name() string { return c.name }

func (c *PostgresCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	docs, err := c.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocument
	}
	return docs[0], nil
}

func (c *PostgresCollection) Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error) {
	where, args, err := buildPostgresWhere(c.name, filter)
	if err != nil {
		return nil, err
	}
	orderBy, err := buildPostgresOrderBy(opts.Sort)
	if err != nil {
		return nil, err
	}

	query := `SELECT id::text, doc, created_at, updated_at FROM documents WHERE ` + where + ` ORDER BY ` + orderBy
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Skip > 0 {
		args = append(args, opts.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s documents: %w", c.name, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanPostgresDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s document: %w", c.name, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s documents: %w", c.name, err)
	}
	return out, nil
}

func (c *PostgresCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args, err := buildPostgresWhere(c.name, filter)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s documents: %w", c.name, err)
	}
	return total, nil
}

func (c *PostgresCollection) Insert(ctx context.Context, doc Document) error {
	id, body, createdAt, updatedAt, err := splitPostgresDocument(doc)
	if err != nil {
		return err
	}

	_, err = c.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, doc, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, $4, $5)`,
		c.name, id, body, createdAt, updatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert %s document: %w", c.name, err)
	}
	return nil
}

func (c *PostgresCollection) Update(ctx context.Context, id string, set Document) (Document, error) {
	patch := cloneDocument(set)
	delete(patch, FieldID)
	delete(patch, FieldCreatedAt)
	updatedAt, ok := patch[FieldUpdatedAt].(time.Time)
	if !ok {
		updatedAt = time.Now().UTC()
	}
	delete(patch, FieldUpdatedAt)

	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode %s patch: %w", c.name, err)
	}

	row := c.pool.QueryRow(ctx,
		`UPDATE documents
		 SET doc = doc || $3::jsonb, updated_at = $4
		 WHERE collection = $1 AND id::text = $2
		 RETURNING id::text, doc, created_at, updated_at`,
		c.name, id, string(body), updatedAt)

	doc, err := scanPostgresDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicateKey
	}
	if err != nil {
		return nil, fmt.Errorf("update %s document: %w", c.name, err)
	}
	return doc, nil
}

func (c *PostgresCollection) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id::text = $2`, c.name, id)
	if err != nil {
		return false, fmt.Errorf("delete %s document: %w", c.name, err)
	}
	return tag.RowsAffected() > 0, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func splitPostgresDocument(doc Document) (id string, body string, createdAt, updatedAt time.Time, err error) {
	id, _ = doc[FieldID].(string)
	if id == "" {
		return "", "", time.Time{}, time.Time{}, errors.New("docstore: document is missing id")
	}
	now := time.Now().UTC()
	createdAt, ok := doc[FieldCreatedAt].(time.Time)
	if !ok {
		createdAt = now
	}
	updatedAt, ok = doc[FieldUpdatedAt].(time.Time)
	if !ok {
		updatedAt = createdAt
	}

	rest := cloneDocument(doc)
	delete(rest, FieldID)
	delete(rest, FieldCreatedAt)
	delete(rest, FieldUpdatedAt)

	raw, err := json.Marshal(rest)
	if err != nil {
		return "", "", time.Time{}, time.Time{}, fmt.Errorf("encode document: %w", err)
	}
	return id, string(raw), createdAt, updatedAt, nil
}

func scanPostgresDocument(row pgx.Row) (Document, error) {
	var (
		id        string
		raw       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &raw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc := Document{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document body: %w", err)
		}
	}
	doc[FieldID] = id
	doc[FieldCreatedAt] = createdAt.UTC()
	doc[FieldUpdatedAt] = updatedAt.UTC()
	return doc, nil
}

// buildPostgresWhere renders filter as a WHERE clause body. $1 is always the
// collection name.
func buildPostgresWhere(collection string, filter Filter) (string, []any, error) {
	clauses := []string{"collection = $1"}
	args := []any{collection}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, cond := range filter.conditions {
		switch cond.Op {
		case OpEqual:
			if !ValidField(cond.Field) {
				return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, cond.Field)
			}
			switch {
			case cond.Field == FieldID:
				clauses = append(clauses, "id::text = "+next(fmt.Sprint(cond.Value)))
			case isTimestampField(cond.Field):
				clauses = append(clauses, cond.Field+" = "+next(cond.Value))
			default:
				raw, err := json.Marshal(map[string]any{cond.Field: cond.Value})
				if err != nil {
					return "", nil, fmt.Errorf("encode condition on %s: %w", cond.Field, err)
				}
				clauses = append(clauses, "doc @> "+next(string(raw))+"::jsonb")
			}

		case OpGreaterOrEqual, OpLessOrEqual:
			if !ValidField(cond.Field) {
				return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, cond.Field)
			}
			op := ">="
			if cond.Op == OpLessOrEqual {
				op = "<="
			}
			switch v := cond.Value.(type) {
			case time.Time:
				if isTimestampField(cond.Field) {
					clauses = append(clauses, cond.Field+" "+op+" "+next(v))
				} else {
					clauses = append(clauses, fmt.Sprintf("(doc->>'%s')::timestamptz %s %s", cond.Field, op, next(v)))
				}
			case float64:
				clauses = append(clauses, fmt.Sprintf("(doc->>'%s')::double precision %s %s", cond.Field, op, next(v)))
			default:
				clauses = append(clauses, fmt.Sprintf("doc->>'%s' %s %s", cond.Field, op, next(fmt.Sprint(v))))
			}

		case OpSearch:
			text, _ := cond.Value.(string)
			placeholder := next("%" + escapeLike(text) + "%")
			parts := make([]string, 0, len(cond.Fields))
			for _, f := range cond.Fields {
				if !ValidField(f) {
					return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, f)
				}
				parts = append(parts, fmt.Sprintf(
					`(CASE WHEN jsonb_typeof(doc->'%[1]s') = 'array'
					  THEN EXISTS (SELECT 1 FROM jsonb_array_elements_text(doc->'%[1]s') AS elem(value) WHERE elem.value ILIKE %[2]s)
					  ELSE doc->>'%[1]s' ILIKE %[2]s END)`, f, placeholder))
			}
			clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")

		default:
			return "", nil, fmt.Errorf("docstore: unsupported operator %q", cond.Op)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

func buildPostgresOrderBy(sorts []Sort) (string, error) {
	parts := make([]string, 0, len(sorts)+2)
	seen := map[string]bool{}
	for _, s := range sorts {
		if !ValidField(s.Field) {
			return "", fmt.Errorf("%w: %q", ErrInvalidField, s.Field)
		}
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		seen[s.Field] = true
		switch {
		case s.Field == FieldID:
			parts = append(parts, "id "+dir)
		case isTimestampField(s.Field):
			parts = append(parts, s.Field+" "+dir)
		default:
			parts = append(parts, fmt.Sprintf("doc->'%s' %s", s.Field, dir))
		}
	}
	for _, tie := range []string{FieldCreatedAt, FieldID} {
		if !seen[tie] {
			parts = append(parts, tie+" ASC")
		}
	}
	return strings.Join(parts, ", "), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
