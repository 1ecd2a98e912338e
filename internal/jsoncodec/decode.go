package jsoncodec

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/shape"
)

type decoder struct{}

func (decoder) Delay(d derive.Delayed[Decoder]) Decoder {
	return func(dec *jsontext.Decoder, v reflect.Value) error { return d.Get()(dec, v) }
}

func (decoder) VisitNone(_ *derive.Builder[Decoder], s *shape.Shape) (Decoder, error) {
	if f := decodeBasic(s.Type); f != nil {
		return f, nil
	}
	return func(dec *jsontext.Decoder, v reflect.Value) error {
		return json.UnmarshalDecode(dec, v.Addr().Interface())
	}, nil
}

func decodeBasic(t reflect.Type) Decoder {
	if encodeBasic(t) == nil {
		return nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return func(dec *jsontext.Decoder, v reflect.Value) error {
			tok, err := dec.ReadToken()
			if err != nil {
				return err
			}
			if k := tok.Kind(); k != 't' && k != 'f' {
				return mismatch(t, tok)
			}
			v.SetBool(tok.Bool())
			return nil
		}
	case reflect.String:
		return func(dec *jsontext.Decoder, v reflect.Value) error {
			tok, err := dec.ReadToken()
			if err != nil {
				return err
			}
			if tok.Kind() != '"' {
				return mismatch(t, tok)
			}
			v.SetString(tok.String())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return numberDecoder(t, func(v reflect.Value, lit string) error {
			n, err := strconv.ParseInt(lit, 10, t.Bits())
			if err == nil {
				v.SetInt(n)
			}
			return err
		})
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return numberDecoder(t, func(v reflect.Value, lit string) error {
			n, err := strconv.ParseUint(lit, 10, t.Bits())
			if err == nil {
				v.SetUint(n)
			}
			return err
		})
	case reflect.Float32, reflect.Float64:
		return numberDecoder(t, func(v reflect.Value, lit string) error {
			f, err := strconv.ParseFloat(lit, t.Bits())
			if err == nil {
				v.SetFloat(f)
			}
			return err
		})
	}
	return nil
}

func numberDecoder(t reflect.Type, set func(v reflect.Value, lit string) error) Decoder {
	return func(dec *jsontext.Decoder, v reflect.Value) error {
		tok, err := dec.ReadToken()
		if err != nil {
			return err
		}
		if tok.Kind() != '0' {
			return mismatch(t, tok)
		}
		if err := set(v, tok.String()); err != nil {
			return fmt.Errorf("%w: %s into %s: %v", ErrSyntax, tok.String(), t, err)
		}
		return nil
	}
}

func mismatch(t reflect.Type, tok jsontext.Token) error {
	return fmt.Errorf("%w: cannot decode %s into %s", ErrSyntax, tok.Kind(), t)
}

// expect consumes one token of kind want.
func expect(dec *jsontext.Decoder, t reflect.Type, want jsontext.Kind) error {
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	if tok.Kind() != want {
		return mismatch(t, tok)
	}
	return nil
}

// null consumes a JSON null if one is next.
func null(dec *jsontext.Decoder) (bool, error) {
	if dec.PeekKind() != 'n' {
		return false, nil
	}
	_, err := dec.ReadToken()
	return true, err
}

func (decoder) VisitEnum(_ *derive.Builder[Decoder], s *shape.Shape) (Decoder, error) {
	e := s.Enum
	t := s.Type
	if len(e.Values) > 0 {
		return func(dec *jsontext.Decoder, v reflect.Value) error {
			tok, err := dec.ReadToken()
			if err != nil {
				return err
			}
			if tok.Kind() != '"' {
				return mismatch(t, tok)
			}
			x, ok := e.Parse(tok.String())
			if !ok {
				return fmt.Errorf("%w: %q is not a value of %s", ErrSyntax, tok.String(), t)
			}
			v.Set(x)
			return nil
		}, nil
	}
	under := decodeBasic(e.Underlying)
	return func(dec *jsontext.Decoder, v reflect.Value) error {
		x := reflect.New(e.Underlying).Elem()
		if err := under(dec, x); err != nil {
			return err
		}
		v.Set(x.Convert(t))
		return nil
	}, nil
}

func (decoder) VisitNullable(b *derive.Builder[Decoder], s *shape.Shape) (Decoder, error) {
	n := s.Nullable
	elem, err := childDecoder(b, n.Elem)
	if err != nil {
		return nil, err
	}
	return func(dec *jsontext.Decoder, v reflect.Value) error {
		if isNull, err := null(dec); isNull || err != nil {
			v.SetZero()
			return err
		}
		pv := reflect.New(n.Elem)
		if err := elem(dec, pv.Elem()); err != nil {
			return err
		}
		v.Set(pv)
		return nil
	}, nil
}

func (decoder) VisitDictionary(b *derive.Builder[Decoder], s *shape.Shape) (Decoder, error) {
	d := s.Dictionary
	t := s.Type
	if d.Strategy == shape.StrategyNone {
		return nil, fmt.Errorf("decode %s: %w", t, shape.ErrNoStrategy)
	}
	keys, err := keyCodecOf(d.Key)
	if err != nil {
		return nil, err
	}
	val, err := childDecoder(b, d.Value)
	if err != nil {
		return nil, err
	}
	return func(dec *jsontext.Decoder, v reflect.Value) error {
		if isNull, err := null(dec); isNull || err != nil {
			v.SetZero()
			return err
		}
		if err := expect(dec, t, '{'); err != nil {
			return err
		}
		var ks, vs []reflect.Value
		for dec.PeekKind() != '}' {
			tok, err := dec.ReadToken()
			if err != nil {
				return err
			}
			k, err := keys.parse(tok.String())
			if err != nil {
				return err
			}
			x := reflect.New(d.Value).Elem()
			if err := val(dec, x); err != nil {
				return err
			}
			ks, vs = append(ks, k), append(vs, x)
		}
		if err := expect(dec, t, '}'); err != nil {
			return err
		}
		built, err := d.Build(ks, vs)
		if err != nil {
			return err
		}
		v.Set(built)
		return nil
	}, nil
}

func (decoder) VisitEnumerable(b *derive.Builder[Decoder], s *shape.Shape) (Decoder, error) {
	e := s.Enumerable
	t := s.Type
	if e.Strategy == shape.StrategyNone {
		return nil, fmt.Errorf("decode %s: %w", t, shape.ErrNoStrategy)
	}
	elem, err := childDecoder(b, e.Element)
	if err != nil {
		return nil, err
	}
	return func(dec *jsontext.Decoder, v reflect.Value) error {
		if isNull, err := null(dec); isNull || err != nil {
			v.SetZero()
			return err
		}
		if err := expect(dec, t, '['); err != nil {
			return err
		}
		var elems []reflect.Value
		for dec.PeekKind() != ']' {
			x := reflect.New(e.Element).Elem()
			if err := elem(dec, x); err != nil {
				return err
			}
			elems = append(elems, x)
		}
		if err := expect(dec, t, ']'); err != nil {
			return err
		}
		built, err := e.Build(elems)
		if err != nil {
			return err
		}
		v.Set(built)
		return nil
	}, nil
}

func (decoder) VisitTuple(b *derive.Builder[Decoder], s *shape.Shape) (Decoder, error) {
	tu := s.Tuple
	t := s.Type
	slots := make([]Decoder, len(tu.Slots))
	for i, slot := range tu.Slots {
		f, err := childDecoder(b, slot.Type)
		if err != nil {
			return nil, err
		}
		slots[i] = f
	}
	return func(dec *jsontext.Decoder, v reflect.Value) error {
		if err := expect(dec, t, '['); err != nil {
			return err
		}
		out := tu.New()
		for i, slot := range tu.Slots {
			if dec.PeekKind() == ']' {
				return fmt.Errorf("%w: %s needs %d elements, got %d", ErrSyntax, t, len(tu.Slots), i)
			}
			if err := slots[i](dec, out.FieldByIndex(slot.Index)); err != nil {
				return err
			}
		}
		if dec.PeekKind() != ']' {
			return fmt.Errorf("%w: %s takes %d elements", ErrSyntax, t, len(tu.Slots))
		}
		if err := expect(dec, t, ']'); err != nil {
			return err
		}
		v.Set(out)
		return nil
	}, nil
}

func (decoder) VisitObject(b *derive.Builder[Decoder], s *shape.Shape) (Decoder, error) {
	o := s.Object
	t := s.Type
	ctor := o.Best()

	var params []Decoder
	if ctor != nil {
		params = make([]Decoder, len(ctor.Params))
		for i, param := range ctor.Params {
			f, err := childDecoder(b, param.Type)
			if err != nil {
				return nil, err
			}
			params[i] = f
		}
	}
	setters := make(map[*shape.Property]Decoder)
	for _, p := range o.Properties {
		if !p.CanSet {
			continue
		}
		f, err := childDecoder(b, p.Type)
		if err != nil {
			return nil, err
		}
		setters[p] = f
	}

	return func(dec *jsontext.Decoder, v reflect.Value) error {
		if isNull, err := null(dec); isNull || err != nil {
			return err
		}
		if err := expect(dec, t, '{'); err != nil {
			return err
		}
		var args []reflect.Value
		if ctor != nil {
			args = make([]reflect.Value, len(ctor.Params))
		}
		type assignment struct {
			prop  *shape.Property
			value reflect.Value
		}
		var assigned []assignment
		for dec.PeekKind() != '}' {
			tok, err := dec.ReadToken()
			if err != nil {
				return err
			}
			name := tok.String()
			if ctor != nil {
				if param := o.Parameter(ctor, name); param != nil {
					x := reflect.New(param.Type).Elem()
					if err := params[param.Position](dec, x); err != nil {
						return fmt.Errorf("%s.%s: %w", t, name, err)
					}
					args[param.Position] = x
					continue
				}
			}
			if p := o.Property(name); p != nil && setters[p] != nil {
				x := reflect.New(p.Type).Elem()
				if err := setters[p](dec, x); err != nil {
					return fmt.Errorf("%s.%s: %w", t, name, err)
				}
				assigned = append(assigned, assignment{p, x})
				continue
			}
			if err := dec.SkipValue(); err != nil {
				return err
			}
		}
		if err := expect(dec, t, '}'); err != nil {
			return err
		}

		out := o.New()
		if ctor != nil {
			made, err := ctor.Invoke(args)
			if err != nil {
				return fmt.Errorf("decode %s: %w", t, err)
			}
			out.Set(made)
		}
		for _, a := range assigned {
			a.prop.Set(out, a.value)
		}
		v.Set(out)
		return nil
	}, nil
}

func childDecoder(b *derive.Builder[Decoder], t reflect.Type) (Decoder, error) {
	f, ok, err := b.Get(t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derive.ErrSkip
	}
	return f, nil
}
