package typesys_test

import (
	"go/types"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/hanpama/typeshape/internal/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `package fixture

import (
	"iter"
	"time"
)

// Color is a primary color.
type Color int

const (
	// Red comes first.
	Red Color = iota
	Green
	Blue
)

type Plain int

type Node struct {
	Value int
	Next  *Node
}

type Bag struct{ items map[string]int }

func (b *Bag) Entries() iter.Seq2[string, int] { return nil }
func (b *Bag) All() iter.Seq[string]          { return nil }

type List struct{ items []int }

func (l List) All() iter.Seq[int] { return nil }

type Pair struct {
	Item1 int
	Item2 string
}

type Kind int

const KindTuple Kind = 5

type Coord struct {
	X, Y float64
}

func (Coord) ShapeKind() Kind { return KindTuple }

type Base struct {
	Created time.Time
}

// Account is a user account.
type Account struct {
	Base
	// ID is assigned by the store.
	ID    string ` + "`shape:\",readonly\"`" + `
	Owner string ` + "`shape:\"owner\"`" + `
	Skip  int    ` + "`shape:\"-\"`" + `
	note  string
}

type Callback func()

type opaque struct{ x int }

type Wide struct {
	Item1, Item2, Item3, Item4, Item5, Item6, Item7 int
	Rest Pair
}

type Fixed [4]byte
`

func load(t *testing.T) (*typesys.Universe, *typesys.Provider) {
	t.Helper()
	u, err := typesys.Check("example.com/fixture", map[string]string{"fixture.go": fixture})
	require.NoError(t, err)
	return u, typesys.NewProvider(u)
}

func lookup(t *testing.T, u *typesys.Universe, name string) types.Type {
	t.Helper()
	typ, err := u.Lookup("example.com/fixture." + name)
	require.NoError(t, err)
	return typ
}

func TestClassify(t *testing.T) {
	u, p := load(t)
	tests := []struct {
		name string
		want shape.Kind
	}{
		{"Color", shape.KindEnum},
		{"Plain", shape.KindNone},
		{"Node", shape.KindObject},
		{"Bag", shape.KindDictionary},
		{"List", shape.KindEnumerable},
		{"Pair", shape.KindTuple},
		{"Coord", shape.KindTuple},
		{"Account", shape.KindObject},
		{"Fixed", shape.KindEnumerable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shape.Classify(p.Traits(lookup(t, u, tt.name))))
		})
	}
	assert.Equal(t, shape.KindNullable, shape.Classify(p.Traits(types.NewPointer(lookup(t, u, "Bag")))))
}

func TestDictionaryBeatsEnumerable(t *testing.T) {
	u, p := load(t)
	s, err := p.Describe(lookup(t, u, "Bag"))
	require.NoError(t, err)
	assert.Equal(t, shape.KindDictionary, s.Kind)
	assert.Equal(t, "string", typesys.ID(s.Key))
	assert.Equal(t, "int", typesys.ID(s.Value))
}

func TestDescribeEnum(t *testing.T) {
	u, p := load(t)
	s, err := p.Describe(lookup(t, u, "Color"))
	require.NoError(t, err)

	assert.Equal(t, "example.com/fixture.Color", s.ID)
	assert.Equal(t, "Color is a primary color.", s.Doc)
	assert.Equal(t, "int", typesys.ID(s.Underlying))
	names := make([]string, len(s.Values))
	for i, v := range s.Values {
		names[i] = v.Name + "=" + v.Value
	}
	assert.Equal(t, []string{"Red=0", "Green=1", "Blue=2"}, names)
	assert.Equal(t, "Red comes first.", s.Values[0].Doc)
}

func TestDescribeObject(t *testing.T) {
	u, p := load(t)
	s, err := p.Describe(lookup(t, u, "Account"))
	require.NoError(t, err)

	type field struct {
		Name     string
		Type     string
		Readonly bool
	}
	var got []field
	for _, f := range s.Fields {
		got = append(got, field{f.Name, typesys.ID(f.Type), f.Readonly})
	}
	want := []field{
		{"Created", "time.Time", false},
		{"ID", "string", true},
		{"owner", "string", false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "ID is assigned by the store.", s.Fields[1].Doc)
	assert.Equal(t, "Account is a user account.", s.Doc)
	assert.Equal(t, "fixture.go", s.Pos.Filename)
}

func TestDescribeTupleFlattensRest(t *testing.T) {
	u, p := load(t)
	s, err := p.Describe(lookup(t, u, "Wide"))
	require.NoError(t, err)
	require.Equal(t, shape.KindTuple, s.Kind)
	require.Len(t, s.Fields, 9)
	assert.Equal(t, "Item8", s.Fields[7].Name)
	assert.Equal(t, "int", typesys.ID(s.Fields[7].Type))
	assert.Equal(t, "Item9", s.Fields[8].Name)
	assert.Equal(t, "string", typesys.ID(s.Fields[8].Type))

	noFlatten := typesys.NewProvider(u, typesys.WithPolicy(shape.Policy{TupleArity: 0}))
	s, err = noFlatten.Describe(lookup(t, u, "Wide"))
	require.NoError(t, err)
	assert.Len(t, s.Fields, 8)
}

func TestDescribeHintedTuple(t *testing.T) {
	u, p := load(t)
	s, err := p.Describe(lookup(t, u, "Coord"))
	require.NoError(t, err)
	children := s.Children()
	require.Len(t, children, 2)
	assert.Equal(t, shape.RoleSlot, children[0].Role)
	assert.Equal(t, "Item1", children[0].Name)
}

func TestProviderHint(t *testing.T) {
	u, _ := load(t)
	pair := lookup(t, u, "Pair")
	p := typesys.NewProvider(u, typesys.WithKind(typesys.ID(pair), shape.KindObject))
	s, err := p.Describe(pair)
	require.NoError(t, err)
	assert.Equal(t, shape.KindObject, s.Kind)

	// A hint that cannot be honoured falls back to the fixed order.
	p = typesys.NewProvider(u, typesys.WithKind(typesys.ID(pair), shape.KindDictionary))
	s, err = p.Describe(pair)
	require.NoError(t, err)
	assert.Equal(t, shape.KindTuple, s.Kind)
}

func TestDescribeArray(t *testing.T) {
	u, p := load(t)
	s, err := p.Describe(lookup(t, u, "Fixed"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.Len)
	assert.Equal(t, "byte", typesys.ID(s.Elem))
}

func TestDescribeUnsupported(t *testing.T) {
	u, p := load(t)
	for _, name := range []string{"Callback", "opaque"} {
		_, err := p.Describe(lookup(t, u, name))
		assert.ErrorIs(t, err, shape.ErrUnsupported, name)
	}
}

func TestLeaves(t *testing.T) {
	u, p := load(t)
	s, err := p.Describe(lookup(t, u, "Base"))
	require.NoError(t, err)
	created, err := p.Describe(s.Fields[0].Type)
	require.NoError(t, err)
	assert.True(t, created.Leaf)
	assert.Equal(t, shape.KindNone, created.Kind)
}

func TestAccessible(t *testing.T) {
	u, _ := load(t)
	opaque := lookup(t, u, "opaque")
	assert.True(t, typesys.Accessible(opaque, "example.com/fixture"))
	assert.False(t, typesys.Accessible(opaque, "example.com/other"))
	assert.True(t, typesys.Accessible(lookup(t, u, "Node"), "example.com/other"))
	assert.True(t, typesys.Accessible(types.NewSlice(opaque), "example.com/other"), "only named types are checked")
}

func TestLookupErrors(t *testing.T) {
	u, _ := load(t)
	for _, name := range []string{"nodot", "example.com/fixture.Missing", "example.com/nope.Node"} {
		_, err := u.Lookup(name)
		assert.ErrorIs(t, err, typesys.ErrNotFound, name)
	}
}

func TestNamedInDeclarationOrder(t *testing.T) {
	u, _ := load(t)
	var names []string
	for _, typ := range u.Named() {
		names = append(names, typ.(*types.Named).Obj().Name())
	}
	assert.Equal(t, []string{
		"Color", "Plain", "Node", "Bag", "List", "Pair", "Kind", "Coord",
		"Base", "Account", "Callback", "opaque", "Wide", "Fixed",
	}, names)
}

func TestEnumHintNeedsNamedType(t *testing.T) {
	u, _ := load(t)
	p := typesys.NewProvider(u,
		typesys.WithKind("int", shape.KindEnum),
		typesys.WithKind("example.com/fixture.Plain", shape.KindEnum))

	assert.False(t, p.Traits(types.Typ[types.Int]).Supports(shape.KindEnum))
	require.NotPanics(t, func() {
		s, err := p.Describe(types.Typ[types.Int])
		require.NoError(t, err)
		assert.Equal(t, shape.KindNone, s.Kind)
	})

	s, err := p.Describe(lookup(t, u, "Plain"))
	require.NoError(t, err)
	assert.Equal(t, shape.KindEnum, s.Kind)
	assert.Empty(t, s.Values)
}

const embedding = `package embedding

type Audit struct {
	ID      int
	Version int
}

type Record struct {
	Audit
	ID   string
	Body string
}

type Left struct {
	Name string
	L    int
}

type Right struct {
	Name string
	R    int
}

type Both struct {
	Left
	Right
}
`

func TestPromotedFieldsAreShadowed(t *testing.T) {
	u, err := typesys.Check("example.com/embedding", map[string]string{"embedding.go": embedding})
	require.NoError(t, err)
	p := typesys.NewProvider(u)

	fields := func(name string) []string {
		typ, err := u.Lookup("example.com/embedding." + name)
		require.NoError(t, err)
		s, err := p.Describe(typ)
		require.NoError(t, err)
		var out []string
		for i, f := range s.Fields {
			assert.Equal(t, i, f.Position)
			out = append(out, f.Name+" "+typesys.ID(f.Type))
		}
		return out
	}

	assert.Equal(t, []string{"Version int", "ID string", "Body string"}, fields("Record"))
	assert.Equal(t, []string{"L int", "R int"}, fields("Both"))
}
