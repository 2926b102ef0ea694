package docstore

import (
	"reflect"
	"strings"
	"time"
)

type Operator string

const (
	OpEqual          Operator = "eq"
	OpGreaterOrEqual Operator = "gte"
	OpLessOrEqual    Operator = "lte"
	OpSearch         Operator = "search"
)

// Condition is a single predicate. For OpSearch, Value is the search text and
// Fields lists the string or string-array fields it is matched against.
type Condition struct {
	Op     Operator
	Field  string
	Fields []string
	Value  any
}

// Filter is a conjunction of conditions. Builder methods return a new Filter
// and never modify the receiver.
type Filter struct {
	conditions []Condition
}

func NewFilter() Filter {
	return Filter{}
}

// ByID matches a single document id.
func ByID(id string) Filter {
	return NewFilter().Equal(FieldID, id)
}

func (f Filter) with(c Condition) Filter {
	next := make([]Condition, len(f.conditions), len(f.conditions)+1)
	copy(next, f.conditions)
	return Filter{conditions: append(next, c)}
}

// Equal adds field == value. A nil value or an empty string is ignored so
// callers can pass optional query parameters straight through.
func (f Filter) Equal(field string, value any) Filter {
	value = normalizeValue(value)
	if value == nil {
		return f
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return f
	}
	return f.with(Condition{Op: OpEqual, Field: field, Value: value})
}

// Range adds inclusive bounds; a nil bound is open.
func (f Filter) Range(field string, lower, upper *float64) Filter {
	out := f
	if lower != nil {
		out = out.with(Condition{Op: OpGreaterOrEqual, Field: field, Value: *lower})
	}
	if upper != nil {
		out = out.with(Condition{Op: OpLessOrEqual, Field: field, Value: *upper})
	}
	return out
}

func (f Filter) Since(field string, from time.Time) Filter {
	if from.IsZero() {
		return f
	}
	return f.with(Condition{Op: OpGreaterOrEqual, Field: field, Value: from.UTC()})
}

func (f Filter) Until(field string, to time.Time) Filter {
	if to.IsZero() {
		return f
	}
	return f.with(Condition{Op: OpLessOrEqual, Field: field, Value: to.UTC()})
}

func (f Filter) ActiveOnly() Filter {
	return f.with(Condition{Op: OpEqual, Field: "active", Value: true})
}

// Search adds a case-insensitive substring match of text across fields.
// Blank text is ignored.
func (f Filter) Search(text string, fields ...string) Filter {
	text = strings.TrimSpace(text)
	if text == "" || len(fields) == 0 {
		return f
	}
	return f.with(Condition{Op: OpSearch, Fields: append([]string(nil), fields...), Value: text})
}

func (f Filter) Conditions() []Condition {
	return append([]Condition(nil), f.conditions...)
}

func (f Filter) IsEmpty() bool {
	return len(f.conditions) == 0
}

type Sort struct {
	Field      string
	Descending bool
}

func Asc(field string) Sort  { return Sort{Field: field} }
func Desc(field string) Sort { return Sort{Field: field, Descending: true} }

// normalizeValue reduces named types to their JSON-shaped base so every
// backend compares like with like.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case string, bool, float64, time.Time:
		return t
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem().Interface())
	}
	return v
}
