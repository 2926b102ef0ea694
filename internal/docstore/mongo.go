package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const mongoIDField = "_id"

// MongoCollection maps the document "id" onto Mongo's _id and keeps
// timestamps as BSON dates.
type MongoCollection struct {
	coll *mongo.Collection
}

func NewMongoCollection(db *mongo.Database, name string) *MongoCollection {
	return &MongoCollection{coll: db.Collection(name)}
}

func (c *MongoCollection) Name() string { return c.coll.Name() }

// EnsureUniqueIndexes creates a unique index per field. Index creation is
// idempotent on the server side.
func (c *MongoCollection) EnsureUniqueIndexes(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(fields))
	for _, f := range fields {
		if !ValidField(f) {
			return fmt.Errorf("%w: %q", ErrInvalidField, f)
		}
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: f, Value: 1}},
			Options: options.Index().SetUnique(true).SetName(c.coll.Name() + "_" + f + "_unique"),
		})
	}
	if _, err := c.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create %s indexes: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *MongoCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	query, err := buildMongoFilter(filter)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	err = c.coll.FindOne(ctx, query).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("find %s document: %w", c.coll.Name(), err)
	}
	return fromMongo(raw), nil
}

func (c *MongoCollection) Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error) {
	query, err := buildMongoFilter(filter)
	if err != nil {
		return nil, err
	}
	sortDoc, err := buildMongoSort(opts.Sort)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find().SetSort(sortDoc)
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := c.coll.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find %s documents: %w", c.coll.Name(), err)
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("read %s documents: %w", c.coll.Name(), err)
	}

	out := make([]Document, 0, len(raws))
	for _, raw := range raws {
		out = append(out, fromMongo(raw))
	}
	return out, nil
}

func (c *MongoCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	query, err := buildMongoFilter(filter)
	if err != nil {
		return 0, err
	}
	n, err := c.coll.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("count %s documents: %w", c.coll.Name(), err)
	}
	return n, nil
}

func (c *MongoCollection) Insert(ctx context.Context, doc Document) error {
	if id, _ := doc[FieldID].(string); id == "" {
		return errors.New("docstore: document is missing id")
	}
	_, err := c.coll.InsertOne(ctx, toMongo(doc))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert %s document: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *MongoCollection) Update(ctx context.Context, id string, set Document) (Document, error) {
	patch := bson.M{}
	for k, v := range set {
		if k == FieldID {
			continue
		}
		patch[k] = v
	}

	var raw bson.M
	err := c.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: mongoIDField, Value: id}},
		bson.D{{Key: "$set", Value: patch}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicateKey
	}
	if err != nil {
		return nil, fmt.Errorf("update %s document: %w", c.coll.Name(), err)
	}
	return fromMongo(raw), nil
}

func (c *MongoCollection) Delete(ctx context.Context, id string) (bool, error) {
	res, err := c.coll.DeleteOne(ctx, bson.D{{Key: mongoIDField, Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete %s document: %w", c.coll.Name(), err)
	}
	return res.DeletedCount > 0, nil
}

func mongoField(name string) string {
	if name == FieldID {
		return mongoIDField
	}
	return name
}

// buildMongoFilter translates filter into a query document. More than one
// condition is wrapped in $and so repeated fields (range bounds) survive.
func buildMongoFilter(filter Filter) (bson.D, error) {
	parts := make(bson.A, 0, len(filter.conditions))
	for _, cond := range filter.conditions {
		switch cond.Op {
		case OpEqual:
			if !ValidField(cond.Field) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidField, cond.Field)
			}
			parts = append(parts, bson.D{{Key: mongoField(cond.Field), Value: cond.Value}})
		case OpGreaterOrEqual, OpLessOrEqual:
			if !ValidField(cond.Field) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidField, cond.Field)
			}
			op := "$gte"
			if cond.Op == OpLessOrEqual {
				op = "$lte"
			}
			parts = append(parts, bson.D{{Key: mongoField(cond.Field), Value: bson.D{{Key: op, Value: cond.Value}}}})
		case OpSearch:
			text, _ := cond.Value.(string)
			pattern := bson.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
			alternatives := make(bson.A, 0, len(cond.Fields))
			for _, f := range cond.Fields {
				if !ValidField(f) {
					return nil, fmt.Errorf("%w: %q", ErrInvalidField, f)
				}
				alternatives = append(alternatives, bson.D{{Key: mongoField(f), Value: pattern}})
			}
			parts = append(parts, bson.D{{Key: "$or", Value: alternatives}})
		default:
			return nil, fmt.Errorf("docstore: unsupported operator %q", cond.Op)
		}
	}

	switch len(parts) {
	case 0:
		return bson.D{}, nil
	case 1:
		return parts[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: parts}}, nil
}

func buildMongoSort(sorts []Sort) (bson.D, error) {
	out := make(bson.D, 0, len(sorts)+2)
	seen := map[string]bool{}
	for _, s := range sorts {
		if !ValidField(s.Field) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, s.Field)
		}
		dir := 1
		if s.Descending {
			dir = -1
		}
		field := mongoField(s.Field)
		seen[field] = true
		out = append(out, bson.E{Key: field, Value: dir})
	}
	for _, tie := range []string{FieldCreatedAt, mongoIDField} {
		if !seen[tie] {
			out = append(out, bson.E{Key: tie, Value: 1})
		}
	}
	return out, nil
}

func toMongo(doc Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[mongoField(k)] = v
	}
	return out
}

func fromMongo(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == mongoIDField {
			k = FieldID
		}
		doc[k] = fromMongoValue(v)
	}
	return doc
}

func fromMongoValue(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromMongoValue(t[i])
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = fromMongoValue(inner)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromMongoValue(e.Value)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case time.Time:
		return t.UTC()
	}
	return v
}
