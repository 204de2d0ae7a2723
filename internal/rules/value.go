package rules

import (
	"strconv"
	"strings"
	"time"
)

// Clock supplies the current instant. Evaluation never reads the wall
// clock directly so that repeated runs with a fixed clock are
// deterministic.
type Clock func() time.Time

type ValueKind int

const (
	KindScalar ValueKind = iota // passthrough string
	KindBool
	KindTime  // absolute instant derived from a "now" literal
	KindDate  // calendar date derived from a "today" literal
	KindField // deferred reference to another field on the same row
)

// Value is the typed result of interpreting a rule's raw value.
type Value struct {
	Kind   ValueKind
	Scalar string
	Bool   bool
	Time   time.Time
	Field  string
}

// ParseValue interprets a raw rule value. Grammars are tried in a fixed
// priority order: relative timestamp, relative date, field reference,
// boolean literal, passthrough scalar.
func ParseValue(raw string, now Clock) (Value, error) {
	switch {
	case strings.HasPrefix(raw, "now"):
		d, err := ParseSignedDuration(strings.TrimPrefix(raw, "now"))
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindTime, Time: now().Add(d)}, nil

	case strings.HasPrefix(raw, "today"):
		d, err := ParseSignedDuration(strings.TrimPrefix(raw, "today"))
		if err != nil {
			return Value{}, err
		}
		t := now().UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return Value{Kind: KindDate, Time: day.AddDate(0, 0, wholeDays(d))}, nil

	case strings.HasPrefix(raw, "F_"):
		return Value{Kind: KindField, Field: strings.TrimPrefix(raw, "F_")}, nil

	case raw == "True":
		return Value{Kind: KindBool, Bool: true}, nil

	case raw == "False":
		return Value{Kind: KindBool, Bool: false}, nil

	default:
		return Value{Kind: KindScalar, Scalar: raw}, nil
	}
}

// wholeDays floors a duration to whole days, so that a sub-day offset
// applied to a calendar date moves backwards only when it crosses
// midnight (e.g. -3h lands on the previous day).
func wholeDays(d time.Duration) int {
	days := d / (24 * time.Hour)
	if d%(24*time.Hour) < 0 {
		days--
	}
	return int(days)
}

// ParseSignedDuration parses "[N day(s), ][[H:]M:]S[.ffffff]" with an
// optional leading "+". An empty string is the identity duration. If the
// literal form fails and contains no comma, a bare day count is retried
// as "N days, 0 seconds". Both attempts failing is a DurationParseError.
func ParseSignedDuration(s string) (time.Duration, error) {
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, nil
	}
	if d, ok := parseDuration(s); ok {
		return d, nil
	}
	if !strings.Contains(s, ",") {
		if d, ok := parseDuration(s + ", 0"); ok {
			return d, nil
		}
	}
	return 0, &DurationParseError{Input: s}
}

func parseDuration(s string) (time.Duration, bool) {
	daysStr, clockStr, hasDays := splitDays(s)

	var days int64
	if hasDays {
		var err error
		days, err = strconv.ParseInt(daysStr, 10, 64)
		if err != nil {
			return 0, false
		}
	}

	clock, ok := parseClock(clockStr)
	if !ok {
		return 0, false
	}

	return time.Duration(days)*24*time.Hour + clock, true
}

// splitDays separates an optional day component from the clock
// component. "3 days, 0:00:10" and "3 5:06:07" both carry days;
// "0:00:10" does not.
func splitDays(s string) (daysStr, clock string, hasDays bool) {
	if i := strings.Index(s, ","); i >= 0 {
		head := s[:i]
		head = strings.TrimSuffix(head, " days")
		head = strings.TrimSuffix(head, " day")
		return head, strings.TrimSpace(s[i+1:]), true
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return "", s, false
}

func parseClock(s string) (time.Duration, bool) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return 0, false
	}

	var frac time.Duration
	if i := strings.IndexAny(s, ".,"); i >= 0 {
		us, ok := parseMicros(s[i+1:])
		if !ok {
			return 0, false
		}
		frac = time.Duration(us) * time.Microsecond
		s = s[:i]
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}

	var total time.Duration
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || p == "" {
			return 0, false
		}
		total = total*60 + time.Duration(n)*time.Second
	}
	total += frac

	if neg {
		total = -total
	}
	return total, true
}

// parseMicros reads up to six fractional digits as microseconds,
// discarding any further precision.
func parseMicros(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	digits := s
	if len(digits) > 6 {
		digits = digits[:6]
	}
	for len(digits) < 6 {
		digits += "0"
	}
	us, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	for _, r := range s[min(len(s), 6):] {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	return us, true
}
