package shape

import "strings"

// Match is a name comparison rule.
type Match int

const (
	// MatchExact compares names case-sensitively.
	MatchExact Match = iota
	// MatchFold compares names with Unicode case folding.
	MatchFold
)

func (m Match) String() string {
	if m == MatchFold {
		return "fold"
	}
	return "exact"
}

// ParseMatch parses "exact" or "fold".
func ParseMatch(s string) (Match, bool) {
	switch s {
	case "exact":
		return MatchExact, true
	case "fold":
		return MatchFold, true
	}
	return MatchExact, false
}

// Equal compares a and b under m.
func (m Match) Equal(a, b string) bool {
	if m == MatchFold {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// DefaultTupleArity is the slot count after which a tuple continues in a
// nested Rest tuple.
const DefaultTupleArity = 7

// Policy holds the tunable quirks of shape synthesis.
//
// Constructor parameters and settable members deliberately use different
// match rules: parameters bind case-insensitively, setters bind exactly.
type Policy struct {
	TupleArity     int
	CtorParamMatch Match
	SetterMatch    Match
}

func DefaultPolicy() Policy {
	return Policy{
		TupleArity:     DefaultTupleArity,
		CtorParamMatch: MatchFold,
		SetterMatch:    MatchExact,
	}
}
