package shape

import (
	"fmt"
	"reflect"
)

// EnumValue is one named value of an enum.
type EnumValue struct {
	Name  string
	Value reflect.Value
}

// Enum is the shape of a named integer or string type with named values.
// Values is empty for enums recognized only through a String method.
type Enum struct {
	Underlying reflect.Type
	Values     []EnumValue
}

func (p *Provider) enumOf(t reflect.Type) *Enum {
	return &Enum{Underlying: basicType(t.Kind()), Values: p.enums[t]}
}

// Name returns the name of v: the registered name, the String result, or
// the formatted underlying value.
func (e *Enum) Name(v reflect.Value) string {
	for _, ev := range e.Values {
		if ev.Value.Equal(v) {
			return ev.Name
		}
	}
	if v.CanInterface() {
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
	}
	return fmt.Sprint(v.Convert(e.Underlying).Interface())
}

// Parse returns the value registered under name.
func (e *Enum) Parse(name string) (reflect.Value, bool) {
	for _, ev := range e.Values {
		if ev.Name == name {
			return ev.Value, true
		}
	}
	return reflect.Value{}, false
}

var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Int:    reflect.TypeFor[int](),
	reflect.Int8:   reflect.TypeFor[int8](),
	reflect.Int16:  reflect.TypeFor[int16](),
	reflect.Int32:  reflect.TypeFor[int32](),
	reflect.Int64:  reflect.TypeFor[int64](),
	reflect.Uint:   reflect.TypeFor[uint](),
	reflect.Uint8:  reflect.TypeFor[uint8](),
	reflect.Uint16: reflect.TypeFor[uint16](),
	reflect.Uint32: reflect.TypeFor[uint32](),
	reflect.Uint64: reflect.TypeFor[uint64](),
	reflect.String: reflect.TypeFor[string](),
}

func basicType(k reflect.Kind) reflect.Type {
	return basicTypes[k]
}

// Nullable is the shape of a pointer; nil is the null value.
type Nullable struct {
	Elem reflect.Type
}

// Wrap returns a new pointer holding a copy of v.
func (n *Nullable) Wrap(v reflect.Value) reflect.Value {
	pv := reflect.New(n.Elem)
	pv.Elem().Set(v)
	return pv
}
