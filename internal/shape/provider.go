package shape

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sync"
	"time"
)

// ErrUnsupported is returned for types that have no structural
// representation, such as functions, channels and unsafe pointers.
var ErrUnsupported = errors.New("unsupported type")

var builtinLeaves = []reflect.Type{
	reflect.TypeFor[time.Time](),
	reflect.TypeFor[time.Duration](),
	reflect.TypeFor[[]byte](),
	reflect.TypeFor[big.Int](),
	reflect.TypeFor[big.Float](),
	reflect.TypeFor[json.RawMessage](),
}

// Provider is the reflect-backed structural metadata source. Shapes are
// computed once per type and shared by every caller of the provider.
type Provider struct {
	policy Policy

	hints           map[reflect.Type]Kind
	leaves          map[reflect.Type]struct{}
	enums           map[reflect.Type][]EnumValue
	ctors           map[reflect.Type][]*Constructor
	collectionCtors map[reflect.Type][]reflect.Value

	mu     sync.Mutex
	shapes map[reflect.Type]*Shape
}

// Option configures a Provider.
type Option func(*Provider)

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		policy:          DefaultPolicy(),
		hints:           make(map[reflect.Type]Kind),
		leaves:          make(map[reflect.Type]struct{}),
		enums:           make(map[reflect.Type][]EnumValue),
		ctors:           make(map[reflect.Type][]*Constructor),
		collectionCtors: make(map[reflect.Type][]reflect.Value),
		shapes:          make(map[reflect.Type]*Shape),
	}
	for _, t := range builtinLeaves {
		p.leaves[t] = struct{}{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithPolicy replaces the default policy.
func WithPolicy(policy Policy) Option {
	return func(p *Provider) { p.policy = policy }
}

// WithKind declares the kind t should be treated as.
func WithKind(t reflect.Type, k Kind) Option {
	return func(p *Provider) { p.hints[t] = k }
}

// WithLeaf registers t as an opaque leaf with a fixed artifact.
func WithLeaf(t reflect.Type) Option {
	return func(p *Provider) { p.leaves[t] = struct{}{} }
}

// WithEnum registers T as an enum with the given values, in order. Value
// names come from fmt.Sprint, so a String method is honoured.
func WithEnum[T comparable](values ...T) Option {
	return func(p *Provider) {
		t := reflect.TypeFor[T]()
		vs := p.enums[t]
		if vs == nil {
			vs = []EnumValue{}
		}
		for _, v := range values {
			vs = append(vs, EnumValue{Name: fmt.Sprint(v), Value: reflect.ValueOf(v)})
		}
		p.enums[t] = vs
	}
}

// WithConstructor registers fn as a constructor of the type it returns. fn
// must return T, *T, (T, error) or (*T, error); params names its parameters
// in order. It panics on a malformed registration.
func WithConstructor(fn any, params ...string) Option {
	return func(p *Provider) {
		c, err := newConstructor(fn, params)
		if err != nil {
			panic("shape.WithConstructor: " + err.Error())
		}
		c.order = len(p.ctors[c.Target])
		p.ctors[c.Target] = append(p.ctors[c.Target], c)
	}
}

// WithCollectionConstructor registers fn as a bulk constructor of the
// collection type it returns. Accepted forms are func(iter.Seq[E]) T,
// func(iter.Seq2[K, V]) T, func([]E) T and func(map[K]V) T, each optionally
// returning *T and/or a trailing error.
func WithCollectionConstructor(fn any) Option {
	return func(p *Provider) {
		v := reflect.ValueOf(fn)
		target, err := constructorTarget(v.Type())
		if err != nil || v.Type().NumIn() != 1 {
			panic(fmt.Sprintf("shape.WithCollectionConstructor: invalid constructor %s", v.Type()))
		}
		p.collectionCtors[target] = append(p.collectionCtors[target], v)
	}
}

// Policy returns the provider's policy.
func (p *Provider) Policy() Policy { return p.policy }

// Traits returns the classifier view of t.
func (p *Provider) Traits(t reflect.Type) Traits { return traits{p: p, t: t} }

// Describe returns the shape of t, computing it on first use.
func (p *Provider) Describe(t reflect.Type) (*Shape, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnsupported)
	}
	p.mu.Lock()
	s, ok := p.shapes[t]
	p.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := p.describe(t)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.shapes[t]; ok {
		return prev, nil
	}
	p.shapes[t] = s
	return s, nil
}

func (p *Provider) describe(t reflect.Type) (*Shape, error) {
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}

	s := &Shape{Type: t, Kind: Classify(p.Traits(t))}
	switch s.Kind {
	case KindEnum:
		s.Enum = p.enumOf(t)
	case KindNullable:
		s.Nullable = &Nullable{Elem: t.Elem()}
	case KindDictionary:
		s.Dictionary = p.dictionaryOf(t)
	case KindEnumerable:
		s.Enumerable = p.enumerableOf(t)
	case KindTuple:
		s.Tuple = p.tupleOf(t)
	case KindObject:
		s.Object = p.objectOf(t)
	}
	return s, nil
}
