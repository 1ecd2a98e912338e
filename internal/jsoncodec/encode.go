package jsoncodec

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/shape"
)

type encoder struct{}

func (encoder) Delay(d derive.Delayed[Encoder]) Encoder {
	return func(enc *jsontext.Encoder, v reflect.Value) error { return d.Get()(enc, v) }
}

func (encoder) VisitNone(_ *derive.Builder[Encoder], s *shape.Shape) (Encoder, error) {
	if f := encodeBasic(s.Type); f != nil {
		return f, nil
	}
	return func(enc *jsontext.Encoder, v reflect.Value) error {
		// Through a pointer so that pointer-receiver marshalers apply.
		return json.MarshalEncode(enc, addressable(v).Addr().Interface())
	}, nil
}

// encodeBasic handles the predeclared scalar kinds. Named scalars with their
// own marshaling fall back to the json package.
func encodeBasic(t reflect.Type) Encoder {
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) ||
		reflect.PointerTo(t).Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return func(enc *jsontext.Encoder, v reflect.Value) error { return enc.WriteToken(jsontext.Bool(v.Bool())) }
	case reflect.String:
		return func(enc *jsontext.Encoder, v reflect.Value) error { return enc.WriteToken(jsontext.String(v.String())) }
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(enc *jsontext.Encoder, v reflect.Value) error { return enc.WriteToken(jsontext.Int(v.Int())) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(enc *jsontext.Encoder, v reflect.Value) error { return enc.WriteToken(jsontext.Uint(v.Uint())) }
	case reflect.Float32, reflect.Float64:
		return func(enc *jsontext.Encoder, v reflect.Value) error { return enc.WriteToken(jsontext.Float(v.Float())) }
	}
	return nil
}

var (
	jsonMarshalerType   = reflect.TypeFor[json.Marshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

func (encoder) VisitEnum(_ *derive.Builder[Encoder], s *shape.Shape) (Encoder, error) {
	e := s.Enum
	if len(e.Values) > 0 {
		return func(enc *jsontext.Encoder, v reflect.Value) error {
			return enc.WriteToken(jsontext.String(e.Name(v)))
		}, nil
	}
	under := encodeBasic(e.Underlying)
	return func(enc *jsontext.Encoder, v reflect.Value) error {
		return under(enc, v.Convert(e.Underlying))
	}, nil
}

func (encoder) VisitNullable(b *derive.Builder[Encoder], s *shape.Shape) (Encoder, error) {
	elem, err := childEncoder(b, s.Nullable.Elem)
	if err != nil {
		return nil, err
	}
	return func(enc *jsontext.Encoder, v reflect.Value) error {
		if v.IsNil() {
			return enc.WriteToken(jsontext.Null)
		}
		return elem(enc, v.Elem())
	}, nil
}

func (encoder) VisitDictionary(b *derive.Builder[Encoder], s *shape.Shape) (Encoder, error) {
	d := s.Dictionary
	keys, err := keyCodecOf(d.Key)
	if err != nil {
		return nil, err
	}
	val, err := childEncoder(b, d.Value)
	if err != nil {
		return nil, err
	}
	return func(enc *jsontext.Encoder, v reflect.Value) error {
		if v.Kind() == reflect.Map && v.IsNil() {
			return enc.WriteToken(jsontext.Null)
		}
		type entry struct {
			name  string
			value reflect.Value
		}
		var entries []entry
		var err error
		d.Range(v, func(k, e reflect.Value) bool {
			var name string
			if name, err = keys.format(k); err != nil {
				return false
			}
			entries = append(entries, entry{name, e})
			return true
		})
		if err != nil {
			return err
		}
		if v.Kind() == reflect.Map {
			sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
		}
		if err := enc.WriteToken(jsontext.BeginObject); err != nil {
			return err
		}
		for _, e := range entries {
			if err := enc.WriteToken(jsontext.String(e.name)); err != nil {
				return err
			}
			if err := val(enc, e.value); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndObject)
	}, nil
}

func (encoder) VisitEnumerable(b *derive.Builder[Encoder], s *shape.Shape) (Encoder, error) {
	e := s.Enumerable
	elem, err := childEncoder(b, e.Element)
	if err != nil {
		return nil, err
	}
	return func(enc *jsontext.Encoder, v reflect.Value) error {
		if v.Kind() == reflect.Slice && v.IsNil() {
			return enc.WriteToken(jsontext.Null)
		}
		if err := enc.WriteToken(jsontext.BeginArray); err != nil {
			return err
		}
		var err error
		e.Range(v, func(x reflect.Value) bool {
			err = elem(enc, x)
			return err == nil
		})
		if err != nil {
			return err
		}
		return enc.WriteToken(jsontext.EndArray)
	}, nil
}

func (encoder) VisitTuple(b *derive.Builder[Encoder], s *shape.Shape) (Encoder, error) {
	tu := s.Tuple
	slots := make([]Encoder, len(tu.Slots))
	for i, slot := range tu.Slots {
		f, err := childEncoder(b, slot.Type)
		if err != nil {
			return nil, err
		}
		slots[i] = f
	}
	return func(enc *jsontext.Encoder, v reflect.Value) error {
		if err := enc.WriteToken(jsontext.BeginArray); err != nil {
			return err
		}
		for i, slot := range tu.Slots {
			if err := slots[i](enc, tu.Get(v, slot)); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndArray)
	}, nil
}

func (encoder) VisitObject(b *derive.Builder[Encoder], s *shape.Shape) (Encoder, error) {
	var props []*shape.Property
	var fs []Encoder
	for _, p := range s.Object.Properties {
		if !p.CanGet {
			continue
		}
		f, ok, err := b.Get(p.Type)
		if err != nil {
			return nil, err
		}
		if ok {
			props, fs = append(props, p), append(fs, f)
		}
	}
	return func(enc *jsontext.Encoder, v reflect.Value) error {
		if err := enc.WriteToken(jsontext.BeginObject); err != nil {
			return err
		}
		for i, p := range props {
			if err := enc.WriteToken(jsontext.String(p.Name)); err != nil {
				return err
			}
			if err := fs[i](enc, p.Get(v)); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndObject)
	}, nil
}

func childEncoder(b *derive.Builder[Encoder], t reflect.Type) (Encoder, error) {
	f, ok, err := b.Get(t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derive.ErrSkip
	}
	return f, nil
}

func keyCodecOf(t reflect.Type) (keyCodec, error) {
	switch {
	case t.Kind() == reflect.String:
		return keyCodec{
			format: func(v reflect.Value) (string, error) { return v.String(), nil },
			parse:  func(s string) (reflect.Value, error) { return reflect.ValueOf(s).Convert(t), nil },
		}, nil
	case reflect.PointerTo(t).Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType):
		return keyCodec{
			format: func(v reflect.Value) (string, error) {
				text, err := addressable(v).Addr().Interface().(encoding.TextMarshaler).MarshalText()
				return string(text), err
			},
			parse: func(s string) (reflect.Value, error) {
				pv := reflect.New(t)
				err := pv.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
				return pv.Elem(), err
			},
		}, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return keyCodec{
			format: func(v reflect.Value) (string, error) { return strconv.FormatInt(v.Int(), 10), nil },
			parse: func(s string) (reflect.Value, error) {
				n, err := strconv.ParseInt(s, 10, t.Bits())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("%w: key %q of %s: %v", ErrSyntax, s, t, err)
				}
				return reflect.ValueOf(n).Convert(t), nil
			},
		}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return keyCodec{
			format: func(v reflect.Value) (string, error) { return strconv.FormatUint(v.Uint(), 10), nil },
			parse: func(s string) (reflect.Value, error) {
				n, err := strconv.ParseUint(s, 10, t.Bits())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("%w: key %q of %s: %v", ErrSyntax, s, t, err)
				}
				return reflect.ValueOf(n).Convert(t), nil
			},
		}, nil
	}
	return keyCodec{}, fmt.Errorf("%s cannot be a JSON object key: %w", t, shape.ErrUnsupported)
}

func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	pv := reflect.New(v.Type())
	pv.Elem().Set(v)
	return pv.Elem()
}
