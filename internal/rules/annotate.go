package rules

import "strings"

// countSuffix marks a field as an aggregate count over a related
// collection, e.g. "orders__count".
const countSuffix = "__count"

// Annotation asks a queryable to expose a derived aggregate column
// under Alias so it can be filtered like a plain field.
type Annotation struct {
	Alias    string
	Relation string
	Distinct bool
}

// ResolveField maps a rule field name to the name predicates should
// use. Count-marked fields resolve to a deterministic alias plus the
// annotation needed to make that alias queryable; everything else
// passes through untouched.
func ResolveField(fieldName string) (string, *Annotation) {
	if !strings.HasSuffix(fieldName, countSuffix) {
		return fieldName, nil
	}
	relation := strings.TrimSuffix(fieldName, countSuffix)
	alias := "num_" + strings.ReplaceAll(relation, "__", "_")
	return alias, &Annotation{Alias: alias, Relation: relation, Distinct: true}
}
