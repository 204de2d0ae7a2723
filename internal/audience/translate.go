package audience

import (
	"fmt"
	"regexp"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"dripline/internal/rules"
)

// predicateToBSON translates one predicate into a MongoDB filter
// document. It is pure so the translation can be tested without a
// running server.
func predicateToBSON(p rules.Predicate) (bson.M, error) {
	if p.Value.Kind == rules.KindField {
		return fieldRefToBSON(p)
	}

	value := comparand(p.Value)

	switch p.Lookup {
	case rules.LookupExact:
		return bson.M{p.Field: value}, nil
	case rules.LookupIExact:
		return regexFilter(p.Field, "^"+quoteMeta(value)+"$", true)
	case rules.LookupContains:
		return regexFilter(p.Field, quoteMeta(value), false)
	case rules.LookupIContains:
		return regexFilter(p.Field, quoteMeta(value), true)
	case rules.LookupStartsWith:
		return regexFilter(p.Field, "^"+quoteMeta(value), false)
	case rules.LookupIStartsWith:
		return regexFilter(p.Field, "^"+quoteMeta(value), true)
	case rules.LookupEndsWith:
		return regexFilter(p.Field, quoteMeta(value)+"$", false)
	case rules.LookupIEndsWith:
		return regexFilter(p.Field, quoteMeta(value)+"$", true)
	case rules.LookupRegex:
		return verbatimRegexFilter(p.Field, value, false)
	case rules.LookupIRegex:
		return verbatimRegexFilter(p.Field, value, true)
	case rules.LookupGT:
		return bson.M{p.Field: bson.M{"$gt": value}}, nil
	case rules.LookupGTE:
		return bson.M{p.Field: bson.M{"$gte": value}}, nil
	case rules.LookupLT:
		return bson.M{p.Field: bson.M{"$lt": value}}, nil
	case rules.LookupLTE:
		return bson.M{p.Field: bson.M{"$lte": value}}, nil
	default:
		return nil, &rules.UnknownLookupError{Lookup: string(p.Lookup)}
	}
}

var exprOperators = map[rules.Lookup]string{
	rules.LookupExact: "$eq",
	rules.LookupGT:    "$gt",
	rules.LookupGTE:   "$gte",
	rules.LookupLT:    "$lt",
	rules.LookupLTE:   "$lte",
}

// fieldRefToBSON compares two fields of the same document through
// $expr. Only equality and ordering make sense against a field
// reference.
func fieldRefToBSON(p rules.Predicate) (bson.M, error) {
	op, ok := exprOperators[p.Lookup]
	if !ok {
		return nil, fmt.Errorf("lookup %q does not support field references", p.Lookup)
	}
	return bson.M{
		"$expr": bson.M{op: bson.A{"$" + p.Field, "$" + p.Value.Field}},
	}, nil
}

// comparand picks the BSON value a parsed rule value compares as.
// Numeric-looking scalars compare as numbers so that documents storing
// real numbers match.
func comparand(v rules.Value) interface{} {
	switch v.Kind {
	case rules.KindBool:
		return v.Bool
	case rules.KindTime, rules.KindDate:
		return v.Time
	default:
		if n, err := strconv.ParseFloat(v.Scalar, 64); err == nil {
			return n
		}
		return v.Scalar
	}
}

func regexFilter(field, pattern string, caseInsensitive bool) (bson.M, error) {
	return buildRegex(field, pattern, caseInsensitive), nil
}

// verbatimRegexFilter validates a user-supplied pattern before handing
// it to the server, so broken patterns surface during dry runs.
func verbatimRegexFilter(field string, value interface{}, caseInsensitive bool) (bson.M, error) {
	pattern, ok := value.(string)
	if !ok {
		pattern = fmt.Sprint(value)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return buildRegex(field, pattern, caseInsensitive), nil
}

func buildRegex(field, pattern string, caseInsensitive bool) bson.M {
	re := bson.M{"$regex": pattern}
	if caseInsensitive {
		re["$options"] = "i"
	}
	return bson.M{field: re}
}

func quoteMeta(value interface{}) string {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	return regexp.QuoteMeta(s)
}

// annotationToStage builds the $addFields stage exposing a count of a
// related array field under the annotation alias.
func annotationToStage(a rules.Annotation) bson.M {
	related := bson.M{"$ifNull": bson.A{"$" + a.Relation, bson.A{}}}
	var count bson.M
	if a.Distinct {
		count = bson.M{"$size": bson.M{"$setUnion": bson.A{related, bson.A{}}}}
	} else {
		count = bson.M{"$size": related}
	}
	return bson.M{"$addFields": bson.M{a.Alias: count}}
}

func combineConditions(conditions []bson.M) bson.M {
	switch len(conditions) {
	case 0:
		return bson.M{}
	case 1:
		return conditions[0]
	default:
		and := make(bson.A, len(conditions))
		for i, c := range conditions {
			and[i] = c
		}
		return bson.M{"$and": and}
	}
}
