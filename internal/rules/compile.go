package rules

// Rule is a single declarative condition authored against an audience.
// RawValue stays a string until compile time so relative-time values
// re-resolve on every run.
type Rule struct {
	ID        string
	Method    Method
	FieldName string
	Lookup    Lookup
	RawValue  string
	Position  int
}

// Compile applies a rule to a queryable and returns the narrowed
// queryable. Any method other than exclude falls back to filter,
// matching how stored rules with stale method values have always been
// applied; Validate reports the mismatch separately.
func (r Rule) Compile(q Queryable, now Clock) (Queryable, error) {
	if !r.Lookup.Valid() {
		return nil, &UnknownLookupError{Lookup: string(r.Lookup)}
	}

	field, ann := ResolveField(r.FieldName)
	if ann != nil {
		var err error
		q, err = q.Annotate(*ann)
		if err != nil {
			return nil, err
		}
	}

	value, err := ParseValue(r.RawValue, now)
	if err != nil {
		return nil, err
	}

	pred := Predicate{Field: field, Lookup: r.Lookup, Value: value}
	if r.Method == MethodExclude {
		return q.Exclude(pred)
	}
	return q.Filter(pred)
}
