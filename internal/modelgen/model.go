package modelgen

import (
	"go/token"
	"reflect"

	"github.com/hanpama/typeshape/internal/shape"
)

// TypeID identifies a type by its fully qualified type string.
type TypeID string

// Status is the outcome of exploring a type.
type Status int

const (
	StatusSuccess Status = iota
	StatusUnsupportedType
	StatusInaccessibleType
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusUnsupportedType:
		return "UnsupportedType"
	case StatusInaccessibleType:
		return "InaccessibleType"
	}
	return "Status(?)"
}

// Model is the persisted description of one explored type. Child types are
// referenced by ID and resolved through the context that holds the model.
type Model struct {
	ID      TypeID
	Kind    shape.Kind
	Name    string
	Package string
	Doc     string
	Pos     token.Position

	// Basic is the basic type name of a None model, or the type ID of a leaf.
	Basic string
	Leaf  bool

	// Elem is the enum underlying type, the nullable value type or the
	// enumerable element type.
	Elem TypeID
	// Len is the array length, -1 for every other enumerable.
	Len        int64
	Key, Value TypeID

	Fields []*Field
	Values []*EnumValue
}

// Named reports whether the model describes a declared type.
func (m *Model) Named() bool { return m.Name != "" }

// Field is an object property or a tuple slot.
type Field struct {
	Name     string
	Position int
	Type     TypeID
	Tag      reflect.StructTag
	Readonly bool
	Doc      string
	Pos      token.Position
}

// EnumValue is one declared enum constant.
type EnumValue struct {
	Name  string
	Value string
	Doc   string
}
