// Package sdl renders explored models as a GraphQL schema.
//
// Objects and tuples become object types and enums with declared values
// become enum types. Fields are non-null unless their Go type is a
// pointer. Dictionaries and leaf types map to custom scalars declared at the
// end of the document.
package sdl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/hanpama/typeshape/internal/eventbus"
	"github.com/hanpama/typeshape/internal/events"
	"github.com/hanpama/typeshape/internal/language"
	"github.com/hanpama/typeshape/internal/modelgen"
	"github.com/hanpama/typeshape/internal/shape"
)

const Emitter = "sdl"

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrUnsupported  = errors.New("no GraphQL representation")
)

// Option configures Generate.
type Option func(*generator)

// WithScalar maps the leaf type with the given ID to a GraphQL scalar,
// declaring it when it is not built in.
func WithScalar(id modelgen.TypeID, scalar string) Option {
	return func(g *generator) { g.custom[id] = scalar }
}

// WithSourceName sets the source name reported by validation errors.
func WithSourceName(name string) Option {
	return func(g *generator) { g.source = name }
}

// Generate builds the schema document for models, renders it and checks
// the result with the GraphQL validator.
func Generate(ctx context.Context, models []*modelgen.Model, opts ...Option) (string, error) {
	start := time.Now()
	if eventbus.Enabled() {
		eventbus.Publish(ctx, events.GenerateStart{Emitter: Emitter, Models: len(models)})
	}
	out, err := generate(models, opts)
	if eventbus.Enabled() {
		files := 0
		if err == nil {
			files = 1
		}
		eventbus.Publish(ctx, events.GenerateFinish{Emitter: Emitter, Files: files, Err: err, Duration: time.Since(start)})
	}
	return out, err
}

func generate(models []*modelgen.Model, opts []Option) (string, error) {
	g := newGenerator(models, opts)
	doc, err := g.document()
	if err != nil {
		return "", err
	}
	out := language.Format(doc)
	if _, err := language.LoadSchema(g.source, out); err != nil {
		return "", fmt.Errorf("generated schema is invalid: %w", err)
	}
	return out, nil
}

// Build returns the schema document for models without rendering it.
func Build(models []*modelgen.Model, opts ...Option) (*language.SchemaDocument, error) {
	return newGenerator(models, opts).document()
}

type generator struct {
	source  string
	models  map[modelgen.TypeID]*modelgen.Model
	sorted  []*modelgen.Model
	custom  map[modelgen.TypeID]string
	names   map[modelgen.TypeID]string
	taken   map[string]bool
	scalars map[string]string // declared custom scalars and their descriptions

	resolving map[modelgen.TypeID]bool
}

func newGenerator(models []*modelgen.Model, opts []Option) *generator {
	g := &generator{
		source:    "schema.graphql",
		models:    make(map[modelgen.TypeID]*modelgen.Model, len(models)),
		custom:    make(map[modelgen.TypeID]string),
		names:     make(map[modelgen.TypeID]string),
		taken:     make(map[string]bool),
		scalars:   make(map[string]string),
		resolving: make(map[modelgen.TypeID]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.sorted = make([]*modelgen.Model, len(models))
	copy(g.sorted, models)
	sort.Slice(g.sorted, func(i, j int) bool { return g.sorted[i].ID < g.sorted[j].ID })
	for _, m := range g.sorted {
		g.models[m.ID] = m
	}
	for _, name := range builtinScalars {
		g.taken[name] = true
	}
	for _, s := range leafScalars {
		g.taken[s.name] = true
	}
	g.taken[mapScalar] = true
	return g
}

func (g *generator) document() (*language.SchemaDocument, error) {
	for _, m := range g.sorted {
		if declares(m) {
			g.names[m.ID] = g.claim(m)
		}
	}

	doc := &language.SchemaDocument{}
	for _, m := range g.sorted {
		if !declares(m) {
			continue
		}
		def, err := g.definition(m)
		if err != nil {
			return nil, err
		}
		doc.Definitions = append(doc.Definitions, def)
	}

	names := make([]string, 0, len(g.scalars))
	for name := range g.scalars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Definitions = append(doc.Definitions, &language.Definition{
			Kind:        language.Scalar,
			Name:        name,
			Description: g.scalars[name],
		})
	}
	return doc, nil
}

func declares(m *modelgen.Model) bool {
	switch m.Kind {
	case shape.KindObject, shape.KindTuple:
		return true
	case shape.KindEnum:
		return len(m.Values) > 0
	}
	return false
}

func (g *generator) definition(m *modelgen.Model) (*language.Definition, error) {
	def := &language.Definition{Name: g.names[m.ID], Description: m.Doc}
	switch m.Kind {
	case shape.KindEnum:
		def.Kind = language.Enum
		seen := make(map[string]bool)
		for _, v := range m.Values {
			name := enumValueName(v.Name)
			if seen[name] {
				continue
			}
			seen[name] = true
			def.EnumValues = append(def.EnumValues, &language.EnumValueDefinition{Name: name, Description: v.Doc})
		}
		return def, nil
	}

	if len(m.Fields) == 0 {
		// object types need at least one field
		def.Kind = language.Scalar
		return def, nil
	}
	def.Kind = language.Object
	seen := make(map[string]bool)
	for _, f := range m.Fields {
		typ, err := g.typeRef(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.ID, f.Name, err)
		}
		name := fieldName(f.Name)
		for i := 2; seen[name]; i++ {
			name = fmt.Sprintf("%s%d", fieldName(f.Name), i)
		}
		seen[name] = true
		def.Fields = append(def.Fields, &language.FieldDefinition{Name: name, Description: f.Doc, Type: typ})
	}
	return def, nil
}

// typeRef returns the GraphQL type of a field of type id.
func (g *generator) typeRef(id modelgen.TypeID) (*language.Type, error) {
	m, ok := g.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	if name, ok := g.names[id]; ok {
		return language.NamedType(name, true), nil
	}
	switch m.Kind {
	case shape.KindNone:
		name, err := g.scalar(m)
		if err != nil {
			return nil, err
		}
		return language.NamedType(name, true), nil
	case shape.KindEnum:
		return g.typeRef(m.Elem)
	case shape.KindDictionary:
		g.scalars[mapScalar] = "Map is a JSON object."
		return language.NamedType(mapScalar, true), nil
	}

	if g.resolving[id] {
		return nil, fmt.Errorf("%w: %s contains itself without an object in between", ErrUnsupported, id)
	}
	g.resolving[id] = true
	defer delete(g.resolving, id)

	elem, err := g.typeRef(m.Elem)
	if err != nil {
		return nil, err
	}
	switch m.Kind {
	case shape.KindNullable:
		nullable := *elem
		nullable.NonNull = false
		return &nullable, nil
	case shape.KindEnumerable:
		return language.ListType(elem, true), nil
	}
	return nil, fmt.Errorf("%w: %s of kind %s", ErrUnsupported, id, m.Kind)
}

func (g *generator) scalar(m *modelgen.Model) (string, error) {
	if name, ok := g.custom[m.ID]; ok {
		if !isBuiltin(name) {
			if _, ok := g.scalars[name]; !ok {
				g.scalars[name] = ""
			}
		}
		return name, nil
	}
	if name, ok := basics[m.Basic]; ok {
		return name, nil
	}
	for _, s := range leafScalars {
		if s.ids[m.Basic] {
			g.scalars[s.name] = s.doc
			return s.name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, m.ID)
}

// claim reserves a type name for m. Types that clash with a taken name are
// prefixed with their package name.
func (g *generator) claim(m *modelgen.Model) string {
	base := typeName(m)
	name := base
	if g.taken[name] && m.Package != "" {
		pkg := m.Package[strings.LastIndex(m.Package, "/")+1:]
		base = exportName(pkg) + base
		name = base
	}
	for i := 2; g.taken[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	g.taken[name] = true
	return name
}

func isBuiltin(name string) bool {
	for _, b := range builtinScalars {
		if b == name {
			return true
		}
	}
	return false
}

func exportName(s string) string {
	s = strings.Trim(nonName.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "X"
	}
	rs := []rune(s)
	if unicode.IsDigit(rs[0]) {
		return "T" + s
	}
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}
