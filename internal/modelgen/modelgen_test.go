package modelgen_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/typeshape/internal/eventbus"
	"github.com/hanpama/typeshape/internal/events"
	"github.com/hanpama/typeshape/internal/modelgen"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/hanpama/typeshape/internal/typesys"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `package fixture

type Node struct {
	Value int
	Next  *Node
}

type Left struct {
	Right *Right
}

type Right struct {
	Left []Left
}

type Callback func()

type Child struct {
	Name string
}

type Parent struct {
	Good  Child
	Bad   Callback
	Items []Callback
}

type Other struct {
	Hook Callback
}

type Broken struct {
	Item1 int
	Item2 Callback
}

type hidden struct {
	X int
}

type Outer struct {
	H hidden
	N int
}

type Status int

const (
	Active Status = iota + 1
	Retired
)

type Registry struct {
	ByName map[string]Status
	Tags   [2]string
}
`

const pkg = "example.com/fixture"

func newGenerator(t *testing.T, opts ...modelgen.Option) *modelgen.Generator {
	t.Helper()
	u, err := typesys.Check(pkg, map[string]string{"fixture.go": fixture})
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	return modelgen.New(typesys.NewProvider(u), append([]modelgen.Option{modelgen.WithLogger(log)}, opts...)...)
}

func ids(models []*modelgen.Model) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = string(m.ID)
	}
	return out
}

func TestIncludeCyclicType(t *testing.T) {
	g := newGenerator(t)
	st, m, err := g.Include(context.Background(), pkg+".Node")
	require.NoError(t, err)
	require.Equal(t, modelgen.StatusSuccess, st)

	assert.Equal(t, "Node", m.Name)
	assert.Equal(t, pkg, m.Package)
	require.Len(t, m.Fields, 2)
	assert.Equal(t, modelgen.TypeID("*"+pkg+".Node"), m.Fields[1].Type)

	assert.Equal(t, []string{"*" + pkg + ".Node", pkg + ".Node", "int"}, ids(g.Models()))
	ptr, ok := g.Model("*" + pkg + ".Node")
	require.True(t, ok)
	assert.Equal(t, shape.KindNullable, ptr.Kind)
	assert.Equal(t, modelgen.TypeID(pkg+".Node"), ptr.Elem)
	assert.Empty(t, g.Diagnostics())
}

func TestIncludeMutualRecursion(t *testing.T) {
	g := newGenerator(t)
	st, _, err := g.Include(context.Background(), pkg+".Left")
	require.NoError(t, err)
	require.Equal(t, modelgen.StatusSuccess, st)
	assert.Equal(t, []string{
		"*" + pkg + ".Right",
		"[]" + pkg + ".Left",
		pkg + ".Left",
		pkg + ".Right",
	}, ids(g.Models()))

	// Already committed: same model, nothing new.
	st, m, err := g.Include(context.Background(), pkg+".Right")
	require.NoError(t, err)
	assert.Equal(t, modelgen.StatusSuccess, st)
	assert.Equal(t, "Right", m.Name)
	assert.Equal(t, 4, g.Context().Len())
}

func TestUnsupportedPropertyIsDropped(t *testing.T) {
	g := newGenerator(t)
	st, m, err := g.Include(context.Background(), pkg+".Parent")
	require.NoError(t, err)
	require.Equal(t, modelgen.StatusSuccess, st)

	require.Len(t, m.Fields, 1)
	assert.Equal(t, "Good", m.Fields[0].Name)
	assert.Equal(t, 0, m.Fields[0].Position)
	for _, id := range ids(g.Models()) {
		assert.NotContains(t, id, "Callback")
	}
	_, ok := g.Model(pkg + ".Child")
	assert.True(t, ok)
}

func TestFailedBranchLeavesNoModels(t *testing.T) {
	g := newGenerator(t)
	before := g.Context()

	st, m, err := g.Include(context.Background(), pkg+".Broken")
	require.NoError(t, err)
	assert.Equal(t, modelgen.StatusUnsupportedType, st)
	assert.Nil(t, m)
	assert.Equal(t, 0, g.Context().Len(), "int was explored inside the failed fork")
	assert.Equal(t, before, g.Context())

	errs := g.Diagnostics().Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Broken could not be included: UnsupportedType")
	assert.Error(t, g.Diagnostics().Err())
}

func TestDiagnosticsAreDeduplicated(t *testing.T) {
	g := newGenerator(t)
	for _, name := range []string{"Parent", "Other", "Parent"} {
		_, _, err := g.Include(context.Background(), pkg+"."+name)
		require.NoError(t, err)
	}

	var got []string
	for _, d := range g.Diagnostics() {
		got = append(got, fmt.Sprintf("%d %s", d.Line, d.Message))
	}
	want := []string{
		"16 unsupported type: example.com/fixture.Callback has no structural representation",
		"24 field Bad of example.com/fixture.Parent dropped: UnsupportedType",
		"25 field Items of example.com/fixture.Parent dropped: UnsupportedType",
		"29 field Hook of example.com/fixture.Other dropped: UnsupportedType",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, g.Diagnostics().Err())
}

func TestInaccessibleType(t *testing.T) {
	g := newGenerator(t, modelgen.WithScope("example.com/other"))
	st, m, err := g.Include(context.Background(), pkg+".Outer")
	require.NoError(t, err)
	require.Equal(t, modelgen.StatusSuccess, st)
	require.Len(t, m.Fields, 1)
	assert.Equal(t, "N", m.Fields[0].Name)

	st, _, err = g.Include(context.Background(), pkg+".hidden")
	require.NoError(t, err)
	assert.Equal(t, modelgen.StatusInaccessibleType, st)

	var messages []string
	for _, d := range g.Diagnostics() {
		messages = append(messages, d.Message)
	}
	assert.Contains(t, messages, "type example.com/fixture.hidden is not accessible from package example.com/other")
}

func TestEnumAndCollections(t *testing.T) {
	g := newGenerator(t)
	st, m, err := g.Include(context.Background(), pkg+".Registry")
	require.NoError(t, err)
	require.Equal(t, modelgen.StatusSuccess, st)
	require.Len(t, m.Fields, 2)

	byName, ok := g.Model(m.Fields[0].Type)
	require.True(t, ok)
	assert.Equal(t, shape.KindDictionary, byName.Kind)
	assert.Equal(t, modelgen.TypeID("string"), byName.Key)
	assert.Equal(t, modelgen.TypeID(pkg+".Status"), byName.Value)

	status, ok := g.Model(pkg + ".Status")
	require.True(t, ok)
	assert.Equal(t, shape.KindEnum, status.Kind)
	assert.Equal(t, modelgen.TypeID("int"), status.Elem)
	require.Len(t, status.Values, 2)
	assert.Equal(t, "Retired", status.Values[1].Name)
	assert.Equal(t, "2", status.Values[1].Value)

	tags, ok := g.Model(m.Fields[1].Type)
	require.True(t, ok)
	assert.Equal(t, int64(2), tags.Len)
}

func TestCancellation(t *testing.T) {
	g := newGenerator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := g.Include(ctx, pkg+".Node")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, g.Context().Len())
}

func TestExploreEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	var explored []string
	statuses := map[string]string{}
	eventbus.On(bus, func(_ context.Context, e events.ExploreStart) { explored = append(explored, e.Type) })
	eventbus.On(bus, func(_ context.Context, e events.ExploreFinish) { statuses[e.Type] = e.Status })

	g := newGenerator(t)
	_, _, err := g.Include(context.Background(), pkg+".Node")
	require.NoError(t, err)

	assert.Equal(t, []string{pkg + ".Node", "int", "*" + pkg + ".Node"}, explored)
	assert.Equal(t, "Success", statuses[pkg+".Node"])
}

func TestLookupUnknownType(t *testing.T) {
	g := newGenerator(t)
	_, _, err := g.Include(context.Background(), pkg+".Missing")
	assert.ErrorIs(t, err, typesys.ErrNotFound)
}
