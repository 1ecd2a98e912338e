// Package jsoncodec derives token-level JSON encoders and decoders from
// type structure.
//
// Objects encode as JSON objects keyed by property name and tuples as JSON
// arrays. Enums with registered values encode by name, other enums by their
// underlying value. Opaque leaves such as time.Time go through the json
// package's own marshaling.
//
// Decoding an object binds keys to the best constructor's parameters first,
// matched case-insensitively, and then to settable properties, matched
// exactly. Unknown keys are skipped.
package jsoncodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/shape"
)

// ErrSyntax is returned when the input does not match the expected shape.
var ErrSyntax = errors.New("unexpected json")

// Encoder writes v to enc.
type Encoder func(enc *jsontext.Encoder, v reflect.Value) error

// Decoder reads one JSON value from dec into the addressable v.
type Decoder func(dec *jsontext.Decoder, v reflect.Value) error

const (
	EncoderName = "json.encoder"
	DecoderName = "json.decoder"
)

// Codec pairs the encoder and decoder caches of one provider.
type Codec struct {
	Encoders *derive.Cache[Encoder]
	Decoders *derive.Cache[Decoder]
}

func New(p *shape.Provider, opts ...derive.Option) *Codec {
	return &Codec{
		Encoders: derive.NewCache[Encoder](p, encoder{}, append([]derive.Option{derive.WithName(EncoderName)}, opts...)...),
		Decoders: derive.NewCache[Decoder](p, decoder{}, append([]derive.Option{derive.WithName(DecoderName)}, opts...)...),
	}
}

func From(r *derive.Registry) *Codec {
	return &Codec{
		Encoders: derive.Shared(r, EncoderName, func() derive.Visitor[Encoder] { return encoder{} }),
		Decoders: derive.Shared(r, DecoderName, func() derive.Visitor[Decoder] { return decoder{} }),
	}
}

// Encode writes v to w as one JSON value followed by a newline.
func (c *Codec) Encode(w io.Writer, v reflect.Value) error {
	f, err := derive.Build(c.Encoders, v.Type())
	if err != nil {
		return err
	}
	return f(jsontext.NewEncoder(w), v)
}

// Decode reads one JSON value from r into the addressable v.
func (c *Codec) Decode(r io.Reader, v reflect.Value) error {
	f, err := derive.Build(c.Decoders, v.Type())
	if err != nil {
		return err
	}
	dec := jsontext.NewDecoder(r)
	if err := f(dec, v); err != nil {
		return err
	}
	if _, err := dec.ReadToken(); err != io.EOF {
		if err == nil {
			return fmt.Errorf("%w: trailing data after %s", ErrSyntax, v.Type())
		}
		return err
	}
	return nil
}

// Marshal encodes v as compact JSON.
func Marshal[T any](c *Codec, v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, reflect.ValueOf(&v).Elem()); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Unmarshal decodes data into a new T.
func Unmarshal[T any](c *Codec, data []byte) (T, error) {
	var out T
	err := c.Decode(bytes.NewReader(data), reflect.ValueOf(&out).Elem())
	return out, err
}

// keyCodec turns dictionary keys into JSON object names and back.
type keyCodec struct {
	format func(reflect.Value) (string, error)
	parse  func(string) (reflect.Value, error)
}
