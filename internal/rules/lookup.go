package rules

// Method decides whether matching rows are kept or removed.
type Method string

const (
	MethodFilter  Method = "filter"
	MethodExclude Method = "exclude"
)

func (m Method) Valid() bool {
	return m == MethodFilter || m == MethodExclude
}

// Lookup is one of the 14 comparison operators a rule may use.
type Lookup string

const (
	LookupExact       Lookup = "exact"
	LookupIExact      Lookup = "iexact"
	LookupContains    Lookup = "contains"
	LookupIContains   Lookup = "icontains"
	LookupRegex       Lookup = "regex"
	LookupIRegex      Lookup = "iregex"
	LookupGT          Lookup = "gt"
	LookupGTE         Lookup = "gte"
	LookupLT          Lookup = "lt"
	LookupLTE         Lookup = "lte"
	LookupStartsWith  Lookup = "startswith"
	LookupIStartsWith Lookup = "istartswith"
	LookupEndsWith    Lookup = "endswith"
	LookupIEndsWith   Lookup = "iendswith"
)

var allLookups = []Lookup{
	LookupExact, LookupIExact,
	LookupContains, LookupIContains,
	LookupRegex, LookupIRegex,
	LookupGT, LookupGTE, LookupLT, LookupLTE,
	LookupStartsWith, LookupIStartsWith,
	LookupEndsWith, LookupIEndsWith,
}

var lookupSet = func() map[Lookup]struct{} {
	set := make(map[Lookup]struct{}, len(allLookups))
	for _, l := range allLookups {
		set[l] = struct{}{}
	}
	return set
}()

func (l Lookup) Valid() bool {
	_, ok := lookupSet[l]
	return ok
}

func ParseLookup(s string) (Lookup, error) {
	l := Lookup(s)
	if !l.Valid() {
		return "", &UnknownLookupError{Lookup: s}
	}
	return l, nil
}

// Lookups returns the supported operators in declaration order.
func Lookups() []Lookup {
	out := make([]Lookup, len(allLookups))
	copy(out, allLookups)
	return out
}
