// Package schemagen derives JSON Schema (draft 2020-12) documents from type
// structure. The schemas describe the documents jsoncodec produces.
//
// Named composite types are emitted once under $defs and referenced with
// $ref, which is also how recursive types close their cycles.
package schemagen

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/invopop/jsonschema"
)

const Name = "schemagen"

const defsPrefix = "#/$defs/"

// Generator derives schemas and assembles them into documents.
type Generator struct {
	cache *derive.Cache[*jsonschema.Schema]
	v     *visitor
}

func New(p *shape.Provider, opts ...derive.Option) *Generator {
	v := newVisitor()
	c := derive.NewCache[*jsonschema.Schema](p, v, append([]derive.Option{derive.WithName(Name)}, opts...)...)
	return &Generator{cache: c, v: v}
}

func From(r *derive.Registry) *Generator {
	c := derive.Shared(r, Name, func() derive.Visitor[*jsonschema.Schema] { return newVisitor() })
	return &Generator{cache: c, v: c.Visitor().(*visitor)}
}

// Cache returns the underlying artifact cache.
func (g *Generator) Cache() *derive.Cache[*jsonschema.Schema] { return g.cache }

// Schema returns the schema of t without definitions. Named types come back
// as a $ref.
func (g *Generator) Schema(t reflect.Type) (*jsonschema.Schema, error) {
	s, err := derive.Build(g.cache, t)
	if err != nil {
		return nil, err
	}
	g.v.resolve()
	return s, nil
}

// Generate returns a self-contained document for t holding the definitions
// reachable from it.
func (g *Generator) Generate(t reflect.Type) (*jsonschema.Schema, error) {
	s, err := g.Schema(t)
	if err != nil {
		return nil, err
	}
	doc := &jsonschema.Schema{Version: jsonschema.Version}
	if s.Ref != "" {
		doc.Ref = s.Ref
	} else {
		*doc = *s
		doc.Version = jsonschema.Version
	}
	if defs := g.v.reachable(s); len(defs) > 0 {
		doc.Definitions = defs
	}
	return doc, nil
}

// Of is Generate for a type parameter.
func Of[T any](g *Generator) (*jsonschema.Schema, error) {
	return g.Generate(reflect.TypeFor[T]())
}

type pending struct {
	shell *jsonschema.Schema
	d     derive.Delayed[*jsonschema.Schema]
}

type visitor struct {
	mu      sync.Mutex
	defs    map[string]*jsonschema.Schema
	names   map[reflect.Type]string
	taken   map[string]reflect.Type
	pending []pending
}

func newVisitor() *visitor {
	return &visitor{
		defs:  make(map[string]*jsonschema.Schema),
		names: make(map[reflect.Type]string),
		taken: make(map[string]reflect.Type),
	}
}

// Delay refers to the definition of a named type. Unnamed types get an
// empty shell that resolve fills once the real schema exists.
func (v *visitor) Delay(d derive.Delayed[*jsonschema.Schema]) *jsonschema.Schema {
	if name, ok := v.defName(d.Type()); ok {
		return &jsonschema.Schema{Ref: defsPrefix + name}
	}
	shell := &jsonschema.Schema{}
	v.mu.Lock()
	v.pending = append(v.pending, pending{shell, d})
	v.mu.Unlock()
	return shell
}

func (v *visitor) resolve() {
	v.mu.Lock()
	defer v.mu.Unlock()
	rest := v.pending[:0]
	for _, p := range v.pending {
		if !p.d.Ready() {
			rest = append(rest, p)
			continue
		}
		*p.shell = *p.d.Get()
	}
	v.pending = rest
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// defName reports whether t gets a $defs entry and under which name. The
// first type to claim a name keeps it; later ones are qualified by package.
func (v *visitor) defName(t reflect.Type) (string, bool) {
	if t.Name() == "" || t.PkgPath() == "" {
		return "", false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if name, ok := v.names[t]; ok {
		return name, true
	}
	base := strings.Trim(unsafeChars.ReplaceAllString(t.Name(), "_"), "_")
	name := base
	if owner, ok := v.taken[name]; ok && owner != t {
		pkg := t.PkgPath()[strings.LastIndex(t.PkgPath(), "/")+1:]
		name = pkg + "." + base
		for i := 2; v.taken[name] != nil; i++ {
			name = fmt.Sprintf("%s.%s%d", pkg, base, i)
		}
	}
	v.names[t] = name
	v.taken[name] = t
	return name, true
}

// define stores body as the definition of a named type and returns the
// reference to it. Unnamed types return body itself.
func (v *visitor) define(t reflect.Type, body *jsonschema.Schema) *jsonschema.Schema {
	name, ok := v.defName(t)
	if !ok {
		return body
	}
	if body.Title == "" {
		body.Title = t.Name()
	}
	v.mu.Lock()
	v.defs[name] = body
	v.mu.Unlock()
	return &jsonschema.Schema{Ref: defsPrefix + name}
}

func (v *visitor) reachable(root *jsonschema.Schema) jsonschema.Definitions {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := jsonschema.Definitions{}
	seen := make(map[*jsonschema.Schema]bool)
	var walk func(s *jsonschema.Schema)
	walk = func(s *jsonschema.Schema) {
		if s == nil || seen[s] {
			return
		}
		seen[s] = true
		if name, ok := strings.CutPrefix(s.Ref, defsPrefix); ok {
			if def, ok := v.defs[name]; ok && out[name] == nil {
				out[name] = def
				walk(def)
			}
		}
		walk(s.Items)
		walk(s.AdditionalProperties)
		walk(s.PropertyNames)
		for _, c := range s.PrefixItems {
			walk(c)
		}
		for _, c := range s.AnyOf {
			walk(c)
		}
		for _, c := range s.AllOf {
			walk(c)
		}
		if s.Properties != nil {
			for el := s.Properties.Oldest(); el != nil; el = el.Next() {
				walk(el.Value)
			}
		}
	}
	walk(root)
	return out
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	bigIntType   = reflect.TypeFor[big.Int]()
	bigFloatType = reflect.TypeFor[big.Float]()
	rawType      = reflect.TypeFor[json.RawMessage]()
)

func (v *visitor) VisitNone(_ *derive.Builder[*jsonschema.Schema], s *shape.Shape) (*jsonschema.Schema, error) {
	t := s.Type
	switch t {
	case timeType:
		return &jsonschema.Schema{Type: "string", Format: "date-time"}, nil
	case durationType, bigIntType:
		return &jsonschema.Schema{Type: "integer"}, nil
	case bigFloatType:
		return &jsonschema.Schema{Type: "string"}, nil
	case rawType:
		return &jsonschema.Schema{}, nil
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return &jsonschema.Schema{Type: "string", ContentEncoding: "base64"}, nil
	}
	if typ := basicType(t.Kind()); typ != "" {
		return &jsonschema.Schema{Type: typ}, nil
	}
	return &jsonschema.Schema{}, nil
}

func basicType(k reflect.Kind) string {
	switch k {
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	}
	return ""
}

func (v *visitor) VisitEnum(_ *derive.Builder[*jsonschema.Schema], s *shape.Shape) (*jsonschema.Schema, error) {
	e := s.Enum
	body := &jsonschema.Schema{Type: basicType(e.Underlying.Kind())}
	if len(e.Values) > 0 {
		body.Type = "string"
		for _, ev := range e.Values {
			body.Enum = append(body.Enum, ev.Name)
		}
	}
	return v.define(s.Type, body), nil
}

func (v *visitor) VisitNullable(b *derive.Builder[*jsonschema.Schema], s *shape.Shape) (*jsonschema.Schema, error) {
	elem, err := child(b, s.Nullable.Elem)
	if err != nil {
		return nil, err
	}
	return v.define(s.Type, &jsonschema.Schema{AnyOf: []*jsonschema.Schema{{Type: "null"}, elem}}), nil
}

func (v *visitor) VisitDictionary(b *derive.Builder[*jsonschema.Schema], s *shape.Shape) (*jsonschema.Schema, error) {
	d := s.Dictionary
	val, err := child(b, d.Value)
	if err != nil {
		return nil, err
	}
	body := &jsonschema.Schema{Type: "object", AdditionalProperties: val}
	if basicType(d.Key.Kind()) == "integer" {
		body.PropertyNames = &jsonschema.Schema{Type: "string", Pattern: "^-?[0-9]+$"}
	}
	return v.define(s.Type, body), nil
}

func (v *visitor) VisitEnumerable(b *derive.Builder[*jsonschema.Schema], s *shape.Shape) (*jsonschema.Schema, error) {
	elem, err := child(b, s.Enumerable.Element)
	if err != nil {
		return nil, err
	}
	return v.define(s.Type, &jsonschema.Schema{Type: "array", Items: elem}), nil
}

func (v *visitor) VisitTuple(b *derive.Builder[*jsonschema.Schema], s *shape.Shape) (*jsonschema.Schema, error) {
	body := &jsonschema.Schema{Type: "array", Items: jsonschema.FalseSchema}
	for _, slot := range s.Tuple.Slots {
		c, err := child(b, slot.Type)
		if err != nil {
			return nil, err
		}
		body.PrefixItems = append(body.PrefixItems, c)
	}
	return v.define(s.Type, body), nil
}

func (v *visitor) VisitObject(b *derive.Builder[*jsonschema.Schema], s *shape.Shape) (*jsonschema.Schema, error) {
	body := &jsonschema.Schema{Type: "object", Properties: jsonschema.NewProperties()}
	for _, p := range s.Object.Properties {
		c, err := child(b, p.Type)
		if errors.Is(err, shape.ErrUnsupported) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.CanSet {
			c = &jsonschema.Schema{AllOf: []*jsonschema.Schema{c}, ReadOnly: true}
		}
		body.Properties.Set(p.Name, c)
		switch p.Type.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		default:
			body.Required = append(body.Required, p.Name)
		}
	}
	return v.define(s.Type, body), nil
}

func child(b *derive.Builder[*jsonschema.Schema], t reflect.Type) (*jsonschema.Schema, error) {
	c, ok, err := b.Get(t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derive.ErrSkip
	}
	return c, nil
}
