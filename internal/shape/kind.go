package shape

import "fmt"

// Kind is the structural category a type is classified into.
type Kind int

const (
	KindNone Kind = iota
	KindEnum
	KindNullable
	KindDictionary
	KindEnumerable
	KindTuple
	KindObject
)

var kindNames = [...]string{
	KindNone:       "None",
	KindEnum:       "Enum",
	KindNullable:   "Nullable",
	KindDictionary: "Dictionary",
	KindEnumerable: "Enumerable",
	KindTuple:      "Tuple",
	KindObject:     "Object",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the kind named s (case-sensitive, as printed by String).
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return KindNone, false
}

// classificationOrder is significant: a dictionary-like type is also
// enumerable-like, so Dictionary must be checked first.
var classificationOrder = [...]Kind{
	KindEnum,
	KindNullable,
	KindDictionary,
	KindEnumerable,
	KindTuple,
	KindObject,
}

// Traits answers the questions the classifier asks about one type. Both the
// reflect-backed Provider and the go/types-backed typesys package implement it.
type Traits interface {
	// Hint returns an explicitly declared kind, if any.
	Hint() (Kind, bool)
	// Leaf reports whether the type is a built-in with a fixed artifact.
	Leaf() bool
	// Recognizes reports whether the type is structurally k without any hint.
	Recognizes(k Kind) bool
	// Supports reports whether a k shape can be synthesized for the type.
	Supports(k Kind) bool
}

// Classify picks the kind of a type. A hint wins when the hinted shape can be
// synthesized; otherwise the fixed order Enum, Nullable, Dictionary,
// Enumerable, Tuple, Object applies and anything left over is None.
func Classify(t Traits) Kind {
	if k, ok := t.Hint(); ok && (k == KindNone || t.Supports(k)) {
		return k
	}
	if t.Leaf() {
		return KindNone
	}
	for _, k := range classificationOrder {
		if t.Recognizes(k) {
			return k
		}
	}
	return KindNone
}

// Hinter lets a type declare the kind it wants to be treated as.
type Hinter interface {
	ShapeKind() Kind
}
