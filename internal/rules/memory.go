package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Row is a single audience record keyed by field name.
type Row map[string]any

// Collection is an in-memory Queryable over a row slice. Operations
// evaluate immediately and return a fresh collection; it backs unit
// tests and rule dry runs that should not touch a real store.
type Collection struct {
	rows []Row
}

func NewCollection(rows []Row) *Collection {
	out := make([]Row, len(rows))
	copy(out, rows)
	return &Collection{rows: out}
}

// Rows materializes the current result set.
func (c *Collection) Rows() []Row {
	out := make([]Row, len(c.rows))
	copy(out, c.rows)
	return out
}

func (c *Collection) Len() int { return len(c.rows) }

func (c *Collection) Filter(p Predicate) (Queryable, error) {
	return c.sieve(p, true)
}

func (c *Collection) Exclude(p Predicate) (Queryable, error) {
	return c.sieve(p, false)
}

func (c *Collection) sieve(p Predicate, keep bool) (Queryable, error) {
	if err := c.checkField(p.Field); err != nil {
		return nil, err
	}
	var out []Row
	for _, row := range c.rows {
		matched, err := matchRow(row, p)
		if err != nil {
			return nil, err
		}
		if matched == keep {
			out = append(out, row)
		}
	}
	return &Collection{rows: out}, nil
}

// Annotate adds the count column to every row. Rows are cloned so the
// source collection stays untouched; re-annotating with the same
// relation recomputes the same value.
func (c *Collection) Annotate(a Annotation) (Queryable, error) {
	if err := c.checkField(a.Relation); err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(c.rows))
	for _, row := range c.rows {
		clone := make(Row, len(row)+1)
		for k, v := range row {
			clone[k] = v
		}
		clone[a.Alias] = countRelated(row[a.Relation], a.Distinct)
		out = append(out, clone)
	}
	return &Collection{rows: out}, nil
}

// checkField reports an unknown field only when no row in a non-empty
// collection carries it, tolerating sparse rows.
func (c *Collection) checkField(field string) error {
	if len(c.rows) == 0 {
		return nil
	}
	for _, row := range c.rows {
		if _, ok := row[field]; ok {
			return nil
		}
	}
	return &UnknownFieldError{Field: field}
}

func countRelated(v any, distinct bool) int {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 1
	}
	if !distinct {
		return rv.Len()
	}
	seen := make(map[any]struct{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		seen[rv.Index(i).Interface()] = struct{}{}
	}
	return len(seen)
}

func matchRow(row Row, p Predicate) (bool, error) {
	have, ok := row[p.Field]
	if !ok {
		return false, nil
	}

	want, err := resolveValue(row, p.Value)
	if err != nil {
		return false, err
	}

	return compare(have, want, p.Lookup)
}

// resolveValue turns a parsed value into a concrete comparand, chasing
// field references through the row being tested.
func resolveValue(row Row, v Value) (any, error) {
	switch v.Kind {
	case KindField:
		ref, ok := row[v.Field]
		if !ok {
			return nil, &UnknownFieldError{Field: v.Field}
		}
		return ref, nil
	case KindBool:
		return v.Bool, nil
	case KindTime, KindDate:
		return v.Time, nil
	default:
		return v.Scalar, nil
	}
}

func compare(have, want any, l Lookup) (bool, error) {
	switch l {
	case LookupExact:
		return equal(have, want), nil
	case LookupIExact:
		return strings.EqualFold(asString(have), asString(want)), nil
	case LookupContains:
		return strings.Contains(asString(have), asString(want)), nil
	case LookupIContains:
		return strings.Contains(lower(have), lower(want)), nil
	case LookupStartsWith:
		return strings.HasPrefix(asString(have), asString(want)), nil
	case LookupIStartsWith:
		return strings.HasPrefix(lower(have), lower(want)), nil
	case LookupEndsWith:
		return strings.HasSuffix(asString(have), asString(want)), nil
	case LookupIEndsWith:
		return strings.HasSuffix(lower(have), lower(want)), nil
	case LookupRegex:
		return matchRegex(asString(want), asString(have))
	case LookupIRegex:
		return matchRegex("(?i)"+asString(want), asString(have))
	case LookupGT, LookupGTE, LookupLT, LookupLTE:
		ord, err := order(have, want)
		if err != nil {
			return false, err
		}
		switch l {
		case LookupGT:
			return ord > 0, nil
		case LookupGTE:
			return ord >= 0, nil
		case LookupLT:
			return ord < 0, nil
		default:
			return ord <= 0, nil
		}
	default:
		return false, &UnknownLookupError{Lookup: string(l)}
	}
}

func matchRegex(pattern, s string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid pattern: %w", err)
	}
	return re.MatchString(s), nil
}

// equal compares with numeric and time coercion before falling back to
// string equality, so "18" matches int 18 and bools match bools.
func equal(have, want any) bool {
	if hb, ok := have.(bool); ok {
		if wb, ok := want.(bool); ok {
			return hb == wb
		}
	}
	if hn, ok := asFloat(have); ok {
		if wn, ok := asFloat(want); ok {
			return hn == wn
		}
	}
	if ht, ok := asTime(have); ok {
		if wt, ok := asTime(want); ok {
			return ht.Equal(wt)
		}
	}
	return asString(have) == asString(want)
}

// order returns -1, 0, or 1 for have relative to want, coercing both
// sides to numbers, then instants, then strings.
func order(have, want any) (int, error) {
	if hn, ok := asFloat(have); ok {
		if wn, ok := asFloat(want); ok {
			return cmpFloat(hn, wn), nil
		}
	}
	if ht, ok := asTime(have); ok {
		if wt, ok := asTime(want); ok {
			return ht.Compare(wt), nil
		}
	}
	return strings.Compare(asString(have), asString(want)), nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func lower(v any) string {
	return strings.ToLower(asString(v))
}
