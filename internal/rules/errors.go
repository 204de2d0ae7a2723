package rules

import "fmt"

// Error categories reported by RuleSet.Validate.
const (
	CategoryDuration = "duration"
	CategoryLookup   = "lookup"
	CategoryField    = "field"
	CategoryMethod   = "method"
	CategoryApply    = "apply"
)

type DurationParseError struct {
	Input string
}

func (e *DurationParseError) Error() string {
	return fmt.Sprintf("cannot parse duration %q", e.Input)
}

type UnknownLookupError struct {
	Lookup string
}

func (e *UnknownLookupError) Error() string {
	return fmt.Sprintf("unknown lookup %q", e.Lookup)
}

type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// RuleValidationError attributes a compile failure to a specific rule.
// Validate is the only layer that produces it; Compile and Apply surface
// the underlying errors directly.
type RuleValidationError struct {
	RuleID   string
	Category string
	Cause    error
}

func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("rule %s: %s error: %v", e.RuleID, e.Category, e.Cause)
}

func (e *RuleValidationError) Unwrap() error {
	return e.Cause
}
