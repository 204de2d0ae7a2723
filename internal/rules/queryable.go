package rules

// Queryable is a lazy, composable collection. Implementations return
// new values from every operation; the receiver is never mutated.
// Execution is deferred until the caller materializes the collection
// through the adapter's own API.
type Queryable interface {
	Filter(p Predicate) (Queryable, error)
	Exclude(p Predicate) (Queryable, error)
	Annotate(a Annotation) (Queryable, error)
}

// Predicate is a single field/operator/value condition. Adapters
// translate it into their store's native filter syntax.
type Predicate struct {
	Field  string
	Lookup Lookup
	Value  Value
}

// Key is the composite "field__lookup" form, used for diagnostics and
// by adapters whose stores address conditions that way.
func (p Predicate) Key() string {
	return p.Field + "__" + string(p.Lookup)
}
