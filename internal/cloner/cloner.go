// Package cloner derives deep copy functions. Collections are rebuilt with
// their construction strategy and objects with their best constructor, so
// read-only properties survive a clone only when a constructor takes them.
package cloner

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/shape"
)

// Func returns a deep copy of v.
type Func func(v reflect.Value) (reflect.Value, error)

const Name = "cloner"

type visitor struct{}

func New(p *shape.Provider, opts ...derive.Option) *derive.Cache[Func] {
	return derive.NewCache[Func](p, visitor{}, append([]derive.Option{derive.WithName(Name)}, opts...)...)
}

func From(r *derive.Registry) *derive.Cache[Func] {
	return derive.Shared(r, Name, func() derive.Visitor[Func] { return visitor{} })
}

// Clone deep-copies v.
func Clone[T any](c *derive.Cache[Func], v T) (T, error) {
	var zero T
	f, err := derive.Of[T](c)
	if err != nil {
		return zero, err
	}
	out, err := f(reflect.ValueOf(&v).Elem())
	if err != nil {
		return zero, err
	}
	return out.Interface().(T), nil
}

func (visitor) Delay(d derive.Delayed[Func]) Func {
	return func(v reflect.Value) (reflect.Value, error) { return d.Get()(v) }
}

var (
	bytesType    = reflect.TypeFor[[]byte]()
	bigIntType   = reflect.TypeFor[big.Int]()
	bigFloatType = reflect.TypeFor[big.Float]()
)

func (visitor) VisitNone(_ *derive.Builder[Func], s *shape.Shape) (Func, error) {
	t := s.Type
	switch {
	case t == bigIntType:
		return func(v reflect.Value) (reflect.Value, error) {
			x := v.Interface().(big.Int)
			return reflect.ValueOf(*new(big.Int).Set(&x)), nil
		}, nil
	case t == bigFloatType:
		return func(v reflect.Value) (reflect.Value, error) {
			x := v.Interface().(big.Float)
			return reflect.ValueOf(*new(big.Float).Copy(&x)), nil
		}, nil
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		// []byte and named byte slices such as json.RawMessage.
		return func(v reflect.Value) (reflect.Value, error) {
			if v.IsNil() {
				return reflect.Zero(t), nil
			}
			return reflect.ValueOf(append([]byte(nil), v.Bytes()...)).Convert(t), nil
		}, nil
	}
	return copyValue, nil
}

func copyValue(v reflect.Value) (reflect.Value, error) {
	out := reflect.New(v.Type()).Elem()
	out.Set(v)
	return out, nil
}

func (visitor) VisitEnum(*derive.Builder[Func], *shape.Shape) (Func, error) {
	return copyValue, nil
}

func (visitor) VisitNullable(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	n := s.Nullable
	elem, err := child(b, n.Elem)
	if err != nil {
		return nil, err
	}
	t := s.Type
	return func(v reflect.Value) (reflect.Value, error) {
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		x, err := elem(v.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		return n.Wrap(x), nil
	}, nil
}

func (visitor) VisitDictionary(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	d := s.Dictionary
	if d.Strategy == shape.StrategyNone {
		return nil, fmt.Errorf("clone %s: %w", s.Type, shape.ErrNoStrategy)
	}
	key, err := child(b, d.Key)
	if err != nil {
		return nil, err
	}
	val, err := child(b, d.Value)
	if err != nil {
		return nil, err
	}
	t := s.Type
	return func(v reflect.Value) (reflect.Value, error) {
		if t.Kind() == reflect.Map && v.IsNil() {
			return reflect.Zero(t), nil
		}
		var keys, values []reflect.Value
		var err error
		d.Range(v, func(k, e reflect.Value) bool {
			var ck, ce reflect.Value
			if ck, err = key(k); err != nil {
				return false
			}
			if ce, err = val(e); err != nil {
				return false
			}
			keys, values = append(keys, ck), append(values, ce)
			return true
		})
		if err != nil {
			return reflect.Value{}, err
		}
		return d.Build(keys, values)
	}, nil
}

func (visitor) VisitEnumerable(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	e := s.Enumerable
	if e.Strategy == shape.StrategyNone {
		return nil, fmt.Errorf("clone %s: %w", s.Type, shape.ErrNoStrategy)
	}
	elem, err := child(b, e.Element)
	if err != nil {
		return nil, err
	}
	t := s.Type
	return func(v reflect.Value) (reflect.Value, error) {
		if t.Kind() == reflect.Slice && v.IsNil() {
			return reflect.Zero(t), nil
		}
		var elems []reflect.Value
		var err error
		e.Range(v, func(x reflect.Value) bool {
			var c reflect.Value
			if c, err = elem(x); err != nil {
				return false
			}
			elems = append(elems, c)
			return true
		})
		if err != nil {
			return reflect.Value{}, err
		}
		return e.Build(elems)
	}, nil
}

func (visitor) VisitTuple(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	tu := s.Tuple
	slots := make([]Func, len(tu.Slots))
	for i, slot := range tu.Slots {
		f, err := child(b, slot.Type)
		if err != nil {
			return nil, err
		}
		slots[i] = f
	}
	return func(v reflect.Value) (reflect.Value, error) {
		out := tu.New()
		for i, slot := range tu.Slots {
			x, err := slots[i](tu.Get(v, slot))
			if err != nil {
				return reflect.Value{}, err
			}
			tu.Set(out, slot, x)
		}
		return out, nil
	}, nil
}

func (visitor) VisitObject(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	o := s.Object
	ctor := o.Best()

	bound := make(map[*shape.Property]bool)
	var args []Func
	if ctor != nil {
		args = make([]Func, len(ctor.Params))
		for i, param := range ctor.Params {
			if param.Property == nil {
				continue
			}
			f, err := child(b, param.Property.Type)
			if err != nil {
				return nil, err
			}
			args[i] = f
			bound[param.Property] = true
		}
	}

	var setters []*shape.Property
	var funcs []Func
	for _, p := range o.Properties {
		if !p.CanSet || bound[p] {
			continue
		}
		f, err := child(b, p.Type)
		if err != nil {
			return nil, err
		}
		setters, funcs = append(setters, p), append(funcs, f)
	}

	return func(v reflect.Value) (reflect.Value, error) {
		out := o.New()
		if ctor != nil {
			in := make([]reflect.Value, len(ctor.Params))
			for i, param := range ctor.Params {
				if args[i] == nil {
					continue
				}
				x, err := args[i](param.Property.Get(v))
				if err != nil {
					return reflect.Value{}, err
				}
				if !x.Type().AssignableTo(param.Type) {
					if !x.Type().ConvertibleTo(param.Type) {
						return reflect.Value{}, fmt.Errorf("clone %s: parameter %s takes %s, property is %s",
							s.Type, param.Name, param.Type, x.Type())
					}
					x = x.Convert(param.Type)
				}
				in[i] = x
			}
			made, err := ctor.Invoke(in)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("clone %s: %w", s.Type, err)
			}
			out.Set(made)
		}
		for i, p := range setters {
			x, err := funcs[i](p.Get(v))
			if err != nil {
				return reflect.Value{}, err
			}
			p.Set(out, x)
		}
		return out, nil
	}, nil
}

// child resolves the cloner of t. An edge the cache had to drop copies the
// value shallowly.
func child(b *derive.Builder[Func], t reflect.Type) (Func, error) {
	f, ok, err := b.Get(t)
	if errors.Is(err, shape.ErrUnsupported) {
		return copyValue, nil
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return copyValue, nil
	}
	return f, nil
}
