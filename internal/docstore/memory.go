package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryRecord struct {
	seq int64
	doc Document
}

// MemoryCollection keeps documents in a map guarded by a RWMutex. Unique
// fields are compared case-insensitively for strings.
type MemoryCollection struct {
	name   string
	unique []string

	mu   sync.RWMutex
	seq  int64
	docs map[string]*memoryRecord
}

func NewMemoryCollection(name string, uniqueFields ...string) *MemoryCollection {
	return &MemoryCollection{
		name:   name,
		unique: append([]string(nil), uniqueFields...),
		docs:   make(map[string]*memoryRecord),
	}
}

func (c *MemoryCollection) Name() string { return c.name }

func (c *MemoryCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	docs, err := c.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocument
	}
	return docs[0], nil
}

func (c *MemoryCollection) Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	for _, s := range opts.Sort {
		if !ValidField(s.Field) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, s.Field)
		}
	}

	// Records are copied under the lock; Update swaps rec.doc rather than
	// mutating the map it points to.
	c.mu.RLock()
	matched := make([]memoryRecord, 0, len(c.docs))
	for _, rec := range c.docs {
		if matchesAll(rec.doc, filter.conditions) {
			matched = append(matched, *rec)
		}
	}
	c.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		for _, s := range opts.Sort {
			cmp := compareValues(matched[i].doc[s.Field], matched[j].doc[s.Field])
			if cmp == 0 {
				continue
			}
			if s.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return matched[i].seq < matched[j].seq
	})

	start := opts.Skip
	if start < 0 {
		start = 0
	}
	if start > int64(len(matched)) {
		start = int64(len(matched))
	}
	end := int64(len(matched))
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	out := make([]Document, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, cloneDocument(rec.doc))
	}
	return out, nil
}

func (c *MemoryCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateFilter(filter); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int64
	for _, rec := range c.docs {
		if matchesAll(rec.doc, filter.conditions) {
			n++
		}
	}
	return n, nil
}

func (c *MemoryCollection) Insert(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, _ := doc[FieldID].(string)
	if id == "" {
		return fmt.Errorf("docstore: insert into %s: missing id", c.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; exists {
		return ErrDuplicateKey
	}
	if c.conflictsLocked(id, doc) {
		return ErrDuplicateKey
	}
	c.seq++
	c.docs[id] = &memoryRecord{seq: c.seq, doc: cloneDocument(doc)}
	return nil
}

func (c *MemoryCollection) Update(ctx context.Context, id string, set Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.docs[id]
	if !ok {
		return nil, ErrNoDocument
	}
	merged := cloneDocument(rec.doc)
	for k, v := range set {
		if k == FieldID {
			continue
		}
		merged[k] = cloneValue(v)
	}
	if c.conflictsLocked(id, merged) {
		return nil, ErrDuplicateKey
	}
	rec.doc = merged
	return cloneDocument(merged), nil
}

func (c *MemoryCollection) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return false, nil
	}
	delete(c.docs, id)
	return true, nil
}

func (c *MemoryCollection) conflictsLocked(id string, doc Document) bool {
	for _, field := range c.unique {
		want, ok := doc[field].(string)
		if !ok || want == "" {
			continue
		}
		for otherID, rec := range c.docs {
			if otherID == id {
				continue
			}
			if got, ok := rec.doc[field].(string); ok && strings.EqualFold(got, want) {
				return true
			}
		}
	}
	return false
}

func validateFilter(filter Filter) error {
	for _, cond := range filter.conditions {
		fields := cond.Fields
		if cond.Op != OpSearch {
			fields = []string{cond.Field}
		}
		for _, f := range fields {
			if !ValidField(f) {
				return fmt.Errorf("%w: %q", ErrInvalidField, f)
			}
		}
	}
	return nil
}

func matchesAll(doc Document, conds []Condition) bool {
	for _, cond := range conds {
		if !matches(doc, cond) {
			return false
		}
	}
	return true
}

func matches(doc Document, cond Condition) bool {
	switch cond.Op {
	case OpEqual:
		return compareValues(doc[cond.Field], cond.Value) == 0 && doc[cond.Field] != nil
	case OpGreaterOrEqual:
		v, ok := doc[cond.Field]
		return ok && orderable(v, cond.Value) && compareValues(v, cond.Value) >= 0
	case OpLessOrEqual:
		v, ok := doc[cond.Field]
		return ok && orderable(v, cond.Value) && compareValues(v, cond.Value) <= 0
	case OpSearch:
		needle, _ := cond.Value.(string)
		needle = strings.ToLower(needle)
		for _, f := range cond.Fields {
			if containsFold(doc[f], needle) {
				return true
			}
		}
		return false
	}
	return false
}

func containsFold(v any, lowerNeedle string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), lowerNeedle)
	case []string:
		for _, s := range t {
			if strings.Contains(strings.ToLower(s), lowerNeedle) {
				return true
			}
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.Contains(strings.ToLower(s), lowerNeedle) {
				return true
			}
		}
	}
	return false
}

func orderable(a, b any) bool {
	_, aNum := toFloat(a)
	_, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum
	}
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case time.Time:
		_, ok := b.(time.Time)
		return ok
	}
	return false
}

// compareValues orders nil first, then numbers, strings, times and booleans
// within their own kind. Mixed kinds compare by kind rank.
func compareValues(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return 0
	case 1:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		return a.(time.Time).Compare(b.(time.Time))
	case 4:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	if fmt.Sprint(a) == fmt.Sprint(b) {
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func kindRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case time.Time:
		return 3
	case bool:
		return 4
	}
	return 5
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
