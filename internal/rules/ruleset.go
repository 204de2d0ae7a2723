package rules

import (
	"errors"
	"fmt"
	"sort"
)

// RuleSet is an ordered collection of rules applied as a conjunction.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet orders rules by position, preserving input order between
// equal positions.
func NewRuleSet(rules []Rule) RuleSet {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return RuleSet{rules: ordered}
}

// Rules returns the rules in application order.
func (rs RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

func (rs RuleSet) Len() int { return len(rs.rules) }

// Apply threads the queryable through every rule in order. The first
// failing rule aborts the run; an empty set returns the input
// unchanged.
func (rs RuleSet) Apply(q Queryable, now Clock) (Queryable, error) {
	for _, r := range rs.rules {
		var err error
		q, err = r.Compile(q, now)
		if err != nil {
			return nil, fmt.Errorf("applying rule %s: %w", r.ID, err)
		}
	}
	return q, nil
}

// RuleIssue is one problem found during validation, attributed to the
// rule that caused it.
type RuleIssue struct {
	RuleID   string
	Category string
	Message  string
}

// ValidationResult collects every issue across a dry run. A set with no
// issues is safe to apply.
type ValidationResult struct {
	Issues []RuleIssue
}

func (v ValidationResult) OK() bool { return len(v.Issues) == 0 }

// Validate dry-runs every rule against the queryable without
// materializing results. Unlike Apply it does not stop at the first
// failure: each rule is checked independently so all problems surface
// in one pass. Rules carrying an unrecognized method validate as
// issues even though Compile would silently fall back to filter.
func (rs RuleSet) Validate(q Queryable, now Clock) ValidationResult {
	var result ValidationResult
	for _, r := range rs.rules {
		if !r.Method.Valid() {
			result.Issues = append(result.Issues, RuleIssue{
				RuleID:   r.ID,
				Category: CategoryMethod,
				Message:  fmt.Sprintf("unknown method %q", r.Method),
			})
		}
		if err := validateRule(r, q, now); err != nil {
			result.Issues = append(result.Issues, RuleIssue{
				RuleID:   r.ID,
				Category: categorize(err),
				Message:  err.Error(),
			})
		}
	}
	return result
}

func validateRule(r Rule, q Queryable, now Clock) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rule evaluation panicked: %v", rec)
		}
	}()
	_, err = r.Compile(q, now)
	return err
}

func categorize(err error) string {
	var durErr *DurationParseError
	var lookupErr *UnknownLookupError
	var fieldErr *UnknownFieldError
	switch {
	case errors.As(err, &durErr):
		return CategoryDuration
	case errors.As(err, &lookupErr):
		return CategoryLookup
	case errors.As(err, &fieldErr):
		return CategoryField
	default:
		return CategoryApply
	}
}
