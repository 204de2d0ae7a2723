package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuleSet_OrdersByPosition(t *testing.T) {
	rs := NewRuleSet([]Rule{
		{ID: "c", Position: 30},
		{ID: "a", Position: 10},
		{ID: "b", Position: 20},
	})

	ids := make([]string, 0, rs.Len())
	for _, r := range rs.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestNewRuleSet_StableOnEqualPositions(t *testing.T) {
	rs := NewRuleSet([]Rule{
		{ID: "first", Position: 10},
		{ID: "second", Position: 10},
	})

	rules := rs.Rules()
	assert.Equal(t, "first", rules[0].ID)
	assert.Equal(t, "second", rules[1].ID)
}

func TestRuleSet_Apply_EmptyIsIdentity(t *testing.T) {
	q := audience()
	out, err := NewRuleSet(nil).Apply(q, testClock())
	require.NoError(t, err)
	assert.Equal(t, rowIDs(t, q), rowIDs(t, out))
}

func TestRuleSet_Apply_Conjunction(t *testing.T) {
	rs := NewRuleSet([]Rule{
		{ID: "r1", Method: MethodFilter, FieldName: "age", Lookup: LookupGTE, RawValue: "18", Position: 10},
		{ID: "r2", Method: MethodExclude, FieldName: "email", Lookup: LookupIEndsWith, RawValue: ".org", Position: 20},
	})

	out, err := rs.Apply(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, rowIDs(t, out))
}

func TestRuleSet_Apply_OrderMatchesChaining(t *testing.T) {
	r1 := Rule{ID: "r1", Method: MethodFilter, FieldName: "age", Lookup: LookupGTE, RawValue: "18", Position: 10}
	r2 := Rule{ID: "r2", Method: MethodFilter, FieldName: "active", Lookup: LookupExact, RawValue: "True", Position: 20}

	chained, err := r1.Compile(audience(), testClock())
	require.NoError(t, err)
	chained, err = r2.Compile(chained, testClock())
	require.NoError(t, err)

	applied, err := NewRuleSet([]Rule{r2, r1}).Apply(audience(), testClock())
	require.NoError(t, err)
	assert.Equal(t, rowIDs(t, chained), rowIDs(t, applied))
}

func TestRuleSet_Apply_StopsAtFirstFailure(t *testing.T) {
	rs := NewRuleSet([]Rule{
		{ID: "bad", Method: MethodFilter, FieldName: "age", Lookup: "between", RawValue: "18", Position: 10},
		{ID: "good", Method: MethodFilter, FieldName: "age", Lookup: LookupGTE, RawValue: "18", Position: 20},
	})

	_, err := rs.Apply(audience(), testClock())
	require.Error(t, err)
	var lookupErr *UnknownLookupError
	assert.ErrorAs(t, err, &lookupErr)
	assert.Contains(t, err.Error(), "bad")
}

func TestRuleSet_Validate_CleanSet(t *testing.T) {
	rs := NewRuleSet([]Rule{
		{ID: "r1", Method: MethodFilter, FieldName: "age", Lookup: LookupGTE, RawValue: "18", Position: 10},
	})

	result := rs.Validate(audience(), testClock())
	assert.True(t, result.OK())
	assert.Empty(t, result.Issues)
}

func TestRuleSet_Validate_CollectsAllIssues(t *testing.T) {
	rs := NewRuleSet([]Rule{
		{ID: "r1", Method: MethodFilter, FieldName: "age", Lookup: "between", RawValue: "18", Position: 10},
		{ID: "r2", Method: MethodFilter, FieldName: "last_login", Lookup: LookupGTE, RawValue: "now+bogus", Position: 20},
		{ID: "r3", Method: MethodFilter, FieldName: "nonexistent", Lookup: LookupExact, RawValue: "x", Position: 30},
	})

	result := rs.Validate(audience(), testClock())
	require.Len(t, result.Issues, 3)
	assert.False(t, result.OK())

	byRule := make(map[string]RuleIssue, len(result.Issues))
	for _, issue := range result.Issues {
		byRule[issue.RuleID] = issue
	}
	assert.Equal(t, CategoryLookup, byRule["r1"].Category)
	assert.Equal(t, CategoryDuration, byRule["r2"].Category)
	assert.Equal(t, CategoryField, byRule["r3"].Category)
}

func TestRuleSet_Validate_FlagsUnknownMethod(t *testing.T) {
	rs := NewRuleSet([]Rule{
		{ID: "r1", Method: "include", FieldName: "age", Lookup: LookupGTE, RawValue: "18", Position: 10},
	})

	result := rs.Validate(audience(), testClock())
	require.Len(t, result.Issues, 1)
	assert.Equal(t, CategoryMethod, result.Issues[0].Category)
	assert.Equal(t, "r1", result.Issues[0].RuleID)
}

func TestRuleSet_Validate_RecoversPanics(t *testing.T) {
	rs := NewRuleSet([]Rule{
		{ID: "r1", Method: MethodFilter, FieldName: "age", Lookup: LookupGTE, RawValue: "18", Position: 10},
	})

	result := rs.Validate(panickyQueryable{}, testClock())
	require.Len(t, result.Issues, 1)
	assert.Equal(t, CategoryApply, result.Issues[0].Category)
	assert.Contains(t, result.Issues[0].Message, "panicked")
}

type panickyQueryable struct{}

func (panickyQueryable) Filter(Predicate) (Queryable, error)   { panic("boom") }
func (panickyQueryable) Exclude(Predicate) (Queryable, error)  { panic("boom") }
func (panickyQueryable) Annotate(Annotation) (Queryable, error) { panic("boom") }
