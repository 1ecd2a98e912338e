// Package shape describes Go types structurally for the runtime derivation
// engine. A Provider classifies a reflect.Type into a Kind and exposes the
// child types and accessors implied by that kind.
package shape

import (
	"fmt"
	"reflect"
)

// Shape is the immutable structural description of one type. Exactly one of
// the kind-specific fields is set, matching Kind; KindNone sets none.
type Shape struct {
	Type reflect.Type
	Kind Kind

	Enum       *Enum
	Nullable   *Nullable
	Dictionary *Dictionary
	Enumerable *Enumerable
	Tuple      *Tuple
	Object     *Object
}

// Role names the relationship between a shape and one of its child types.
type Role string

const (
	RoleUnderlying Role = "underlying"
	RoleValue      Role = "value"
	RoleKey        Role = "key"
	RoleElement    Role = "element"
	RoleSlot       Role = "slot"
	RoleProperty   Role = "property"
	RoleParameter  Role = "parameter"
)

// Child is one (role, type) edge of a shape.
type Child struct {
	Role Role
	Name string
	Type reflect.Type
}

func (c Child) String() string {
	if c.Name == "" {
		return fmt.Sprintf("%s %s", c.Role, c.Type)
	}
	return fmt.Sprintf("%s %s %s", c.Role, c.Name, c.Type)
}

// Children lists the child types implied by the shape's kind, in declaration
// order.
func (s *Shape) Children() []Child {
	switch s.Kind {
	case KindEnum:
		return []Child{{Role: RoleUnderlying, Type: s.Enum.Underlying}}
	case KindNullable:
		return []Child{{Role: RoleValue, Type: s.Nullable.Elem}}
	case KindDictionary:
		return []Child{
			{Role: RoleKey, Type: s.Dictionary.Key},
			{Role: RoleValue, Type: s.Dictionary.Value},
		}
	case KindEnumerable:
		return []Child{{Role: RoleElement, Type: s.Enumerable.Element}}
	case KindTuple:
		children := make([]Child, 0, len(s.Tuple.Slots))
		for _, slot := range s.Tuple.Slots {
			children = append(children, Child{Role: RoleSlot, Name: slot.Name, Type: slot.Type})
		}
		return children
	case KindObject:
		children := make([]Child, 0, len(s.Object.Properties))
		for _, p := range s.Object.Properties {
			children = append(children, Child{Role: RoleProperty, Name: p.Name, Type: p.Type})
		}
		if c := s.Object.Best(); c != nil {
			for _, param := range c.Params {
				children = append(children, Child{Role: RoleParameter, Name: param.Name, Type: param.Type})
			}
		}
		return children
	}
	return nil
}

func (s *Shape) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.Type)
}
