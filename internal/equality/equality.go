// Package equality derives structural comparers.
package equality

import (
	"bytes"
	"errors"
	"reflect"

	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/shape"
)

// Func reports whether a and b, both of the compared type, are structurally
// equal.
type Func func(a, b reflect.Value) bool

const Name = "equality"

type visitor struct{}

func New(p *shape.Provider, opts ...derive.Option) *derive.Cache[Func] {
	return derive.NewCache[Func](p, visitor{}, append([]derive.Option{derive.WithName(Name)}, opts...)...)
}

func From(r *derive.Registry) *derive.Cache[Func] {
	return derive.Shared(r, Name, func() derive.Visitor[Func] { return visitor{} })
}

// Equal compares a and b.
func Equal[T any](c *derive.Cache[Func], a, b T) (bool, error) {
	f, err := derive.Of[T](c)
	if err != nil {
		return false, err
	}
	return f(reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem()), nil
}

func (visitor) Delay(d derive.Delayed[Func]) Func {
	return func(a, b reflect.Value) bool { return d.Get()(a, b) }
}

var bytesType = reflect.TypeFor[[]byte]()

func (visitor) VisitNone(_ *derive.Builder[Func], s *shape.Shape) (Func, error) {
	t := s.Type
	if t == bytesType {
		return func(a, b reflect.Value) bool { return bytes.Equal(a.Bytes(), b.Bytes()) }, nil
	}
	// time.Time and similar leaves compare through their Equal method.
	if m, ok := t.MethodByName("Equal"); ok && m.Type.NumIn() == 2 && m.Type.In(1) == t &&
		m.Type.NumOut() == 1 && m.Type.Out(0).Kind() == reflect.Bool {
		return func(a, b reflect.Value) bool {
			return m.Func.Call([]reflect.Value{a, b})[0].Bool()
		}, nil
	}
	if m, ok := reflect.PointerTo(t).MethodByName("Cmp"); ok && m.Type.NumIn() == 2 && m.Type.In(1) == reflect.PointerTo(t) {
		return func(a, b reflect.Value) bool {
			return m.Func.Call([]reflect.Value{addr(a), addr(b)})[0].Int() == 0
		}, nil
	}
	if t.Comparable() {
		return func(a, b reflect.Value) bool { return a.Equal(b) }, nil
	}
	return func(a, b reflect.Value) bool { return reflect.DeepEqual(a.Interface(), b.Interface()) }, nil
}

func addr(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

func (visitor) VisitEnum(*derive.Builder[Func], *shape.Shape) (Func, error) {
	return func(a, b reflect.Value) bool { return a.Equal(b) }, nil
}

func (visitor) VisitNullable(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	elem, ok, err := b.Get(s.Nullable.Elem)
	if err != nil {
		return nil, err
	}
	return func(x, y reflect.Value) bool {
		if x.IsNil() || y.IsNil() {
			return x.IsNil() == y.IsNil()
		}
		if x.Pointer() == y.Pointer() {
			return true
		}
		// Without an element comparer (a cycle the cache could not
		// delay) only identity counts.
		return ok && elem(x.Elem(), y.Elem())
	}, nil
}

func (visitor) VisitDictionary(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	d := s.Dictionary
	keyEq, kok, err := b.Get(d.Key)
	if err != nil {
		return nil, err
	}
	valEq, vok, err := b.Get(d.Value)
	if err != nil {
		return nil, err
	}
	if !kok || !vok {
		return nil, derive.ErrSkip
	}
	return func(x, y reflect.Value) bool {
		type kv struct{ k, v reflect.Value }
		var xs, ys []kv
		d.Range(x, func(k, v reflect.Value) bool { xs = append(xs, kv{k, v}); return true })
		d.Range(y, func(k, v reflect.Value) bool { ys = append(ys, kv{k, v}); return true })
		if len(xs) != len(ys) {
			return false
		}
		used := make([]bool, len(ys))
	outer:
		for _, a := range xs {
			for i, b := range ys {
				if !used[i] && keyEq(a.k, b.k) {
					if !valEq(a.v, b.v) {
						return false
					}
					used[i] = true
					continue outer
				}
			}
			return false
		}
		return true
	}, nil
}

func (visitor) VisitEnumerable(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	e := s.Enumerable
	elem, ok, err := b.Get(e.Element)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derive.ErrSkip
	}
	return func(x, y reflect.Value) bool {
		var xs, ys []reflect.Value
		e.Range(x, func(v reflect.Value) bool { xs = append(xs, v); return true })
		e.Range(y, func(v reflect.Value) bool { ys = append(ys, v); return true })
		if len(xs) != len(ys) {
			return false
		}
		for i := range xs {
			if !elem(xs[i], ys[i]) {
				return false
			}
		}
		return true
	}, nil
}

func (visitor) VisitTuple(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	tu := s.Tuple
	slots := make([]Func, len(tu.Slots))
	for i, slot := range tu.Slots {
		f, ok, err := b.Get(slot.Type)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, derive.ErrSkip
		}
		slots[i] = f
	}
	return func(x, y reflect.Value) bool {
		for i, slot := range tu.Slots {
			if !slots[i](tu.Get(x, slot), tu.Get(y, slot)) {
				return false
			}
		}
		return true
	}, nil
}

func (visitor) VisitObject(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	var props []*shape.Property
	var fs []Func
	for _, p := range s.Object.Properties {
		f, ok, err := b.Get(p.Type)
		if errors.Is(err, shape.ErrUnsupported) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok {
			props, fs = append(props, p), append(fs, f)
		}
	}
	return func(x, y reflect.Value) bool {
		for i, p := range props {
			if !fs[i](p.Get(x), p.Get(y)) {
				return false
			}
		}
		return true
	}, nil
}
