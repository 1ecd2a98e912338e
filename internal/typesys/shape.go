package typesys

import (
	"fmt"
	"go/token"
	"go/types"
	"reflect"
	"strconv"
	"sync"

	"github.com/hanpama/typeshape/internal/shape"
)

// ID is the fully qualified type string, stable across loads.
func ID(t types.Type) string {
	return types.TypeString(t, nil)
}

var builtinLeaves = []string{
	"time.Time",
	"time.Duration",
	"[]byte",
	"[]uint8",
	"math/big.Int",
	"math/big.Float",
	"encoding/json.RawMessage",
}

// Field is an object property or a tuple slot.
type Field struct {
	Name     string
	Position int
	Type     types.Type
	Tag      reflect.StructTag
	Readonly bool
	Doc      string
	Pos      token.Position
}

// EnumValue is one declared constant of an enum type.
type EnumValue struct {
	Name  string
	Value string
	Doc   string
	Pos   token.Position
}

// Shape is the static structural description of a type. Which fields are
// set depends on Kind.
type Shape struct {
	Type types.Type
	ID   string
	Kind shape.Kind

	// Obj is the declared type name, nil for unnamed types.
	Obj  *types.TypeName
	Doc  string
	Pos  token.Position
	Leaf bool

	Underlying types.Type // Enum
	Values     []EnumValue
	Elem       types.Type // Nullable value and Enumerable element
	Len        int64      // array length, -1 for other enumerables
	Key, Value types.Type // Dictionary
	Fields     []Field    // Object properties and Tuple slots
}

// Child is one (role, type) edge of a static shape.
type Child struct {
	Role shape.Role
	Name string
	Type types.Type
}

// Children lists the child types in declaration order.
func (s *Shape) Children() []Child {
	switch s.Kind {
	case shape.KindEnum:
		return []Child{{Role: shape.RoleUnderlying, Type: s.Underlying}}
	case shape.KindNullable:
		return []Child{{Role: shape.RoleValue, Type: s.Elem}}
	case shape.KindDictionary:
		return []Child{{Role: shape.RoleKey, Type: s.Key}, {Role: shape.RoleValue, Type: s.Value}}
	case shape.KindEnumerable:
		return []Child{{Role: shape.RoleElement, Type: s.Elem}}
	case shape.KindTuple, shape.KindObject:
		role := shape.RoleProperty
		if s.Kind == shape.KindTuple {
			role = shape.RoleSlot
		}
		children := make([]Child, len(s.Fields))
		for i, f := range s.Fields {
			children[i] = Child{Role: role, Name: f.Name, Type: f.Type}
		}
		return children
	}
	return nil
}

func (s *Shape) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.ID)
}

// Provider classifies and describes types of one Universe. Shapes are
// memoized by ID.
type Provider struct {
	u      *Universe
	policy shape.Policy
	hints  map[string]shape.Kind
	leaves map[string]struct{}

	mu     sync.Mutex
	shapes map[string]*Shape
}

// Option configures a Provider.
type Option func(*Provider)

// WithPolicy replaces the default policy.
func WithPolicy(policy shape.Policy) Option {
	return func(p *Provider) { p.policy = policy }
}

// WithKind declares the kind of the type with the given ID.
func WithKind(id string, k shape.Kind) Option {
	return func(p *Provider) { p.hints[id] = k }
}

// WithLeaf registers the type with the given ID as an opaque leaf.
func WithLeaf(id string) Option {
	return func(p *Provider) { p.leaves[id] = struct{}{} }
}

func NewProvider(u *Universe, opts ...Option) *Provider {
	p := &Provider{
		u:      u,
		policy: shape.DefaultPolicy(),
		hints:  make(map[string]shape.Kind),
		leaves: make(map[string]struct{}),
		shapes: make(map[string]*Shape),
	}
	for _, id := range builtinLeaves {
		p.leaves[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Universe returns the packages the provider describes.
func (p *Provider) Universe() *Universe { return p.u }

// Policy returns the provider's policy.
func (p *Provider) Policy() shape.Policy { return p.policy }

// Traits returns the classifier view of t.
func (p *Provider) Traits(t types.Type) shape.Traits { return traits{p: p, t: t} }

// Describe returns the shape of t. Types without a structural
// representation fail with shape.ErrUnsupported.
func (p *Provider) Describe(t types.Type) (*Shape, error) {
	id := ID(t)
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.shapes[id]; ok {
		return s, nil
	}
	s, err := p.describe(t, id)
	if err != nil {
		return nil, err
	}
	p.shapes[id] = s
	return s, nil
}

func (p *Provider) describe(t types.Type, id string) (*Shape, error) {
	if _, ok := t.(*types.TypeParam); ok {
		return nil, fmt.Errorf("%w: unbound type parameter %s", shape.ErrUnsupported, id)
	}
	s := &Shape{Type: t, ID: id, Kind: shape.Classify(p.Traits(t)), Len: -1}
	if named, ok := types.Unalias(t).(*types.Named); ok {
		s.Obj = named.Obj()
		s.Doc = p.u.Doc(s.Obj)
		s.Pos = p.u.Position(s.Obj.Pos())
	}

	under := t.Underlying()
	switch s.Kind {
	case shape.KindNone:
		if _, ok := p.leaves[id]; ok {
			s.Leaf = true
			return s, nil
		}
		b, ok := under.(*types.Basic)
		if !ok || b.Kind() == types.UnsafePointer || b.Kind() == types.Invalid || b.Info()&types.IsUntyped != 0 {
			return nil, fmt.Errorf("%w: %s has no structural representation", shape.ErrUnsupported, id)
		}
	case shape.KindEnum:
		s.Underlying = basicOf(under)
		named, ok := types.Unalias(t).(*types.Named)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a named type and cannot be an enum", shape.ErrUnsupported, id)
		}
		for _, c := range enumValues(named) {
			s.Values = append(s.Values, EnumValue{
				Name:  c.Name(),
				Value: c.Val().ExactString(),
				Doc:   p.u.Doc(c),
				Pos:   p.u.Position(c.Pos()),
			})
		}
	case shape.KindNullable:
		s.Elem = under.(*types.Pointer).Elem()
	case shape.KindDictionary:
		if m, ok := under.(*types.Map); ok {
			s.Key, s.Value = m.Key(), m.Elem()
		} else {
			s.Key, s.Value, _ = seq2Method(t, "Entries")
		}
	case shape.KindEnumerable:
		switch u := under.(type) {
		case *types.Slice:
			s.Elem = u.Elem()
		case *types.Array:
			s.Elem, s.Len = u.Elem(), u.Len()
		default:
			s.Elem, _ = seqMethod(t, "All")
		}
	case shape.KindTuple:
		s.Fields = p.slots(under.(*types.Struct))
	case shape.KindObject:
		s.Fields = p.properties(under.(*types.Struct))
	}
	return s, nil
}

func basicOf(t types.Type) types.Type {
	if b, ok := t.(*types.Basic); ok {
		return types.Typ[b.Kind()]
	}
	return t
}

// properties lists exported fields, promoting the fields of embedded
// structs that are not reached through a pointer. A promoted field is hidden
// by a field of the same name at a shallower depth, and fields that collide
// at the same depth hide each other, as with Go selectors.
func (p *Provider) properties(st *types.Struct) []Field {
	var all []depthField
	p.collect(st, 0, &all)

	type visibility struct{ depth, count int }
	seen := make(map[string]visibility, len(all))
	for _, c := range all {
		v, ok := seen[c.Name]
		switch {
		case !ok || c.depth < v.depth:
			seen[c.Name] = visibility{c.depth, 1}
		case c.depth == v.depth:
			v.count++
			seen[c.Name] = v
		}
	}

	var out []Field
	for _, c := range all {
		if v := seen[c.Name]; c.depth != v.depth || v.count > 1 {
			continue
		}
		c.Position = len(out)
		out = append(out, c.Field)
	}
	return out
}

type depthField struct {
	Field
	depth int
}

func (p *Provider) collect(st *types.Struct, depth int, out *[]depthField) {
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Embedded() {
			if inner, ok := f.Type().Underlying().(*types.Struct); ok {
				p.collect(inner, depth+1, out)
				continue
			}
		}
		if !f.Exported() {
			continue
		}
		tag := reflect.StructTag(st.Tag(i))
		name, readonly, skip := shape.ParseTag(tag.Get("shape"))
		if skip {
			continue
		}
		if name == "" {
			name = f.Name()
		}
		*out = append(*out, depthField{
			Field: Field{
				Name:     name,
				Type:     f.Type(),
				Tag:      tag,
				Readonly: readonly,
				Doc:      p.u.Doc(f),
				Pos:      p.u.Position(f.Pos()),
			},
			depth: depth,
		})
	}
}

// slots numbers the tuple slots, flattening a trailing Rest tuple when the
// struct has exactly TupleArity+1 fields.
func (p *Provider) slots(st *types.Struct) []Field {
	fields := exportedFields(st)
	var rest *types.Var
	if arity := p.policy.TupleArity; arity > 0 && len(fields) == arity+1 {
		last := fields[len(fields)-1]
		if shape.Classify(p.Traits(last.Type())) == shape.KindTuple {
			rest = last
			fields = fields[:len(fields)-1]
		}
	}
	var out []Field
	add := func(f *types.Var) {
		out = append(out, Field{
			Name:     "Item" + strconv.Itoa(len(out)+1),
			Position: len(out),
			Type:     f.Type(),
			Doc:      p.u.Doc(f),
			Pos:      p.u.Position(f.Pos()),
		})
	}
	for _, f := range fields {
		add(f)
	}
	if rest != nil {
		for _, f := range p.slots(rest.Type().Underlying().(*types.Struct)) {
			f.Name = "Item" + strconv.Itoa(len(out)+1)
			f.Position = len(out)
			out = append(out, f)
		}
	}
	return out
}

// Accessible reports whether code in package scope can name t. Unexported
// named types of other packages, including as type arguments, are not.
func Accessible(t types.Type, scope string) bool {
	switch t := types.Unalias(t).(type) {
	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() != nil && obj.Pkg().Path() != scope && !obj.Exported() {
			return false
		}
		args := t.TypeArgs()
		for i := 0; i < args.Len(); i++ {
			if !Accessible(args.At(i), scope) {
				return false
			}
		}
	}
	return true
}
