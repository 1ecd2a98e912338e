package shape

import (
	"fmt"
	"reflect"
	"strconv"
)

var (
	hinterType   = reflect.TypeFor[Hinter]()
	stringerType = reflect.TypeFor[fmt.Stringer]()
)

type traits struct {
	p *Provider
	t reflect.Type
}

func (tr traits) Hint() (Kind, bool) {
	if k, ok := tr.p.hints[tr.t]; ok {
		return k, true
	}
	switch tr.t.Kind() {
	case reflect.Pointer, reflect.Interface:
		return KindNone, false
	}
	if tr.t.Implements(hinterType) {
		return reflect.Zero(tr.t).Interface().(Hinter).ShapeKind(), true
	}
	return KindNone, false
}

func (tr traits) Leaf() bool {
	_, ok := tr.p.leaves[tr.t]
	return ok
}

func (tr traits) Recognizes(k Kind) bool {
	t := tr.t
	switch k {
	case KindEnum:
		if _, ok := tr.p.enums[t]; ok {
			return true
		}
		return t.Name() != "" && t.PkgPath() != "" && isInteger(t.Kind()) && t.Implements(stringerType)
	case KindNullable:
		return t.Kind() == reflect.Pointer
	case KindDictionary:
		if t.Kind() == reflect.Map {
			return true
		}
		_, _, ok := seq2Method(t, "Entries")
		return ok
	case KindEnumerable:
		if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
			return true
		}
		_, ok := seqMethod(t, "All")
		return ok
	case KindTuple:
		return isPositional(t)
	case KindObject:
		return tr.Supports(KindObject)
	}
	return false
}

func (tr traits) Supports(k Kind) bool {
	t := tr.t
	switch k {
	case KindEnum:
		return isInteger(t.Kind()) || t.Kind() == reflect.String
	case KindTuple:
		return t.Kind() == reflect.Struct && len(exportedFields(t)) > 0
	case KindObject:
		if t.Kind() != reflect.Struct {
			return false
		}
		return len(exportedFields(t)) > 0 || len(tr.p.ctors[t]) > 0
	}
	return tr.Recognizes(k)
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func exportedFields(t reflect.Type) []reflect.StructField {
	var out []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() {
			out = append(out, f)
		}
	}
	return out
}

// isPositional reports whether t is a struct whose fields are exactly
// Item1..ItemN, optionally followed by a Rest continuation.
func isPositional(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.NumField() == 0 {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Name
		if name == "Item"+strconv.Itoa(i+1) {
			continue
		}
		if name == "Rest" && i == t.NumField()-1 && i > 0 {
			continue
		}
		return false
	}
	return true
}

// method looks name up on t, then on *t, and returns the bound method type
// without its receiver.
func method(t reflect.Type, name string) (reflect.Type, bool, bool) {
	if m, ok := t.MethodByName(name); ok {
		if t.Kind() == reflect.Interface {
			return m.Type, false, true
		}
		return withoutReceiver(m.Type), false, true
	}
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return nil, false, false
	}
	if m, ok := reflect.PointerTo(t).MethodByName(name); ok {
		return withoutReceiver(m.Type), true, true
	}
	return nil, false, false
}

func withoutReceiver(ft reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, ft.NumIn()-1)
	for i := 1; i < ft.NumIn(); i++ {
		in = append(in, ft.In(i))
	}
	out := make([]reflect.Type, 0, ft.NumOut())
	for i := 0; i < ft.NumOut(); i++ {
		out = append(out, ft.Out(i))
	}
	return reflect.FuncOf(in, out, ft.IsVariadic())
}

// seqMethod finds a niladic method returning iter.Seq[E].
func seqMethod(t reflect.Type, name string) (reflect.Type, bool) {
	mt, _, ok := method(t, name)
	if !ok || mt.NumIn() != 0 || mt.NumOut() != 1 {
		return nil, false
	}
	yield, ok := yieldOf(mt.Out(0))
	if !ok || yield.NumIn() != 1 {
		return nil, false
	}
	return yield.In(0), true
}

// seq2Method finds a niladic method returning iter.Seq2[K, V].
func seq2Method(t reflect.Type, name string) (reflect.Type, reflect.Type, bool) {
	mt, _, ok := method(t, name)
	if !ok || mt.NumIn() != 0 || mt.NumOut() != 1 {
		return nil, nil, false
	}
	yield, ok := yieldOf(mt.Out(0))
	if !ok || yield.NumIn() != 2 {
		return nil, nil, false
	}
	return yield.In(0), yield.In(1), true
}

// yieldOf unpacks func(yield func(...) bool).
func yieldOf(seq reflect.Type) (reflect.Type, bool) {
	if seq.Kind() != reflect.Func || seq.NumIn() != 1 || seq.NumOut() != 0 {
		return nil, false
	}
	yield := seq.In(0)
	if yield.Kind() != reflect.Func || yield.NumOut() != 1 || yield.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return yield, true
}
