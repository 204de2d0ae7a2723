package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClock() Clock {
	return fixedClock(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
}

func audience() *Collection {
	return NewCollection([]Row{
		{"id": "u1", "email": "alice@example.com", "age": 18, "active": true, "orders": []any{"o1", "o2", "o2"}},
		{"id": "u2", "email": "bob@example.org", "age": 21, "active": true, "orders": []any{"o3"}},
		{"id": "u3", "email": "carol@example.com", "age": 15, "active": false, "orders": []any{}},
	})
}

func rowIDs(t *testing.T, q Queryable) []string {
	t.Helper()
	coll, ok := q.(*Collection)
	require.True(t, ok)
	ids := make([]string, 0, coll.Len())
	for _, row := range coll.Rows() {
		ids = append(ids, row["id"].(string))
	}
	return ids
}

func TestCompile_FilterGTE(t *testing.T) {
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "age", Lookup: LookupGTE, RawValue: "18"}

	out, err := r.Compile(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, rowIDs(t, out))
}

func TestCompile_ExcludeInverts(t *testing.T) {
	r := Rule{ID: "r1", Method: MethodExclude, FieldName: "age", Lookup: LookupGTE, RawValue: "18"}

	out, err := r.Compile(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, rowIDs(t, out))
}

func TestCompile_UnknownMethodFallsBackToFilter(t *testing.T) {
	r := Rule{ID: "r1", Method: "include", FieldName: "age", Lookup: LookupGTE, RawValue: "18"}

	out, err := r.Compile(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, rowIDs(t, out))
}

func TestCompile_BooleanValue(t *testing.T) {
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "active", Lookup: LookupExact, RawValue: "True"}

	out, err := r.Compile(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, rowIDs(t, out))
}

func TestCompile_CaseInsensitiveLookups(t *testing.T) {
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "email", Lookup: LookupIStartsWith, RawValue: "ALICE"}

	out, err := r.Compile(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, rowIDs(t, out))
}

func TestCompile_RegexLookup(t *testing.T) {
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "email", Lookup: LookupRegex, RawValue: `@example\.org$`}

	out, err := r.Compile(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, rowIDs(t, out))
}

func TestCompile_CountAnnotation(t *testing.T) {
	// distinct count: u1 has orders o1, o2, o2 so it counts 2
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "orders__count", Lookup: LookupGTE, RawValue: "2"}

	out, err := r.Compile(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, rowIDs(t, out))
}

func TestCompile_CountAnnotationIdempotent(t *testing.T) {
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "orders__count", Lookup: LookupGTE, RawValue: "1"}

	once, err := r.Compile(audience(), testClock())
	require.NoError(t, err)
	twice, err := r.Compile(once, testClock())
	require.NoError(t, err)
	assert.Equal(t, rowIDs(t, once), rowIDs(t, twice))
}

func TestCompile_FieldReference(t *testing.T) {
	q := NewCollection([]Row{
		{"id": "u1", "referrer_id": "u9", "sponsor_id": "u9"},
		{"id": "u2", "referrer_id": "u9", "sponsor_id": "u7"},
	})
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "sponsor_id", Lookup: LookupExact, RawValue: "F_referrer_id"}

	out, err := r.Compile(q, testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, rowIDs(t, out))
}

func TestCompile_RelativeTime(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	q := NewCollection([]Row{
		{"id": "u1", "last_login": now.Add(-2 * time.Hour)},
		{"id": "u2", "last_login": now.Add(-50 * time.Hour)},
	})
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "last_login", Lookup: LookupGTE, RawValue: "now-1 day"}

	out, err := r.Compile(q, fixedClock(now))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, rowIDs(t, out))
}

func TestCompile_UnknownLookup(t *testing.T) {
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "age", Lookup: "between", RawValue: "18"}

	_, err := r.Compile(audience(), testClock())
	var lookupErr *UnknownLookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "between", lookupErr.Lookup)
}

func TestCompile_UnknownField(t *testing.T) {
	r := Rule{ID: "r1", Method: MethodFilter, FieldName: "missing", Lookup: LookupExact, RawValue: "x"}

	_, err := r.Compile(audience(), testClock())
	var fieldErr *UnknownFieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "missing", fieldErr.Field)
}
