// Package printer derives human-readable renderers from type structure.
package printer

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/shape"
)

// Func renders v into b.
type Func func(b *strings.Builder, v reflect.Value)

// Name is the application name printers are registered under.
const Name = "printer"

type visitor struct{}

// New creates a printer cache over p.
func New(p *shape.Provider, opts ...derive.Option) *derive.Cache[Func] {
	return derive.NewCache[Func](p, visitor{}, append([]derive.Option{derive.WithName(Name)}, opts...)...)
}

// From returns the registry's shared printer cache.
func From(r *derive.Registry) *derive.Cache[Func] {
	return derive.Shared(r, Name, func() derive.Visitor[Func] { return visitor{} })
}

// Sprint renders v.
func Sprint[T any](c *derive.Cache[Func], v T) (string, error) {
	return SprintValue(c, reflect.ValueOf(&v).Elem())
}

// SprintValue renders v using the printer of its static type.
func SprintValue(c *derive.Cache[Func], v reflect.Value) (string, error) {
	f, err := derive.Build(c, v.Type())
	if err != nil {
		return "", err
	}
	var b strings.Builder
	f(&b, v)
	return b.String(), nil
}

func (visitor) Delay(d derive.Delayed[Func]) Func {
	return func(b *strings.Builder, v reflect.Value) { d.Get()(b, v) }
}

func (visitor) VisitNone(_ *derive.Builder[Func], s *shape.Shape) (Func, error) {
	switch s.Type.Kind() {
	case reflect.String:
		return func(b *strings.Builder, v reflect.Value) { b.WriteString(strconv.Quote(v.String())) }, nil
	case reflect.Interface:
		return func(b *strings.Builder, v reflect.Value) {
			if v.IsNil() {
				b.WriteString("null")
				return
			}
			fmt.Fprint(b, v.Interface())
		}, nil
	}
	return func(b *strings.Builder, v reflect.Value) {
		if v.CanInterface() {
			fmt.Fprint(b, v.Interface())
			return
		}
		fmt.Fprint(b, v)
	}, nil
}

func (visitor) VisitEnum(_ *derive.Builder[Func], s *shape.Shape) (Func, error) {
	e := s.Enum
	return func(b *strings.Builder, v reflect.Value) { b.WriteString(e.Name(v)) }, nil
}

func (visitor) VisitNullable(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	elem, ok, err := b.Get(s.Nullable.Elem)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derive.ErrSkip
	}
	return func(sb *strings.Builder, v reflect.Value) {
		if v.IsNil() {
			sb.WriteString("null")
			return
		}
		elem(sb, v.Elem())
	}, nil
}

func (visitor) VisitDictionary(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	d := s.Dictionary
	key, kok, err := b.Get(d.Key)
	if err != nil {
		return nil, err
	}
	val, vok, err := b.Get(d.Value)
	if err != nil {
		return nil, err
	}
	if !kok || !vok {
		return nil, derive.ErrSkip
	}
	return func(sb *strings.Builder, v reflect.Value) {
		if v.Kind() == reflect.Map && v.IsNil() {
			sb.WriteString("null")
			return
		}
		type pair struct{ k, v string }
		var pairs []pair
		d.Range(v, func(k, e reflect.Value) bool {
			var kb, vb strings.Builder
			key(&kb, k)
			val(&vb, e)
			pairs = append(pairs, pair{kb.String(), vb.String()})
			return true
		})
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })
		sb.WriteString("{")
		for i, p := range pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.k + ": " + p.v)
		}
		sb.WriteString("}")
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
	return func(sb *strings.Builder, v reflect.Value) {
		if v.Kind() == reflect.Slice && v.IsNil() {
			sb.WriteString("null")
			return
		}
		sb.WriteString("[")
		first := true
		e.Range(v, func(x reflect.Value) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			elem(sb, x)
			return true
		})
		sb.WriteString("]")
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
	return func(sb *strings.Builder, v reflect.Value) {
		sb.WriteString("(")
		for i, slot := range tu.Slots {
			if i > 0 {
				sb.WriteString(", ")
			}
			slots[i](sb, tu.Get(v, slot))
		}
		sb.WriteString(")")
	}, nil
}

func (visitor) VisitObject(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	type member struct {
		prop *shape.Property
		f    Func
	}
	var members []member
	for _, prop := range s.Object.Properties {
		f, ok, err := b.Get(prop.Type)
		if errors.Is(err, shape.ErrUnsupported) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok {
			members = append(members, member{prop, f})
		}
	}
	return func(sb *strings.Builder, v reflect.Value) {
		sb.WriteString("{")
		for i, m := range members {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(m.prop.Name + ": ")
			m.f(sb, m.prop.Get(v))
		}
		sb.WriteString("}")
	}, nil
}
