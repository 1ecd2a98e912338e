package sdl_test

import (
	"context"
	"testing"

	"github.com/hanpama/typeshape/internal/eventbus"
	"github.com/hanpama/typeshape/internal/events"
	"github.com/hanpama/typeshape/internal/language"
	"github.com/hanpama/typeshape/internal/modelgen"
	"github.com/hanpama/typeshape/internal/sdl"
	"github.com/hanpama/typeshape/internal/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `package shop

import "time"

// Item is a line of an order.
type Item struct {
	SKU      string
	Quantity int32
	Price    float64
}

// Status tracks delivery.
type Status int

const (
	Pending Status = iota
	// Shipped orders have left the warehouse.
	Shipped
)

type Pair[K comparable, V any] struct {
	Item1 K
	Item2 V
}

// Order is placed by a customer.
type Order struct {
	ID       string
	Status   Status
	Items    []Item
	Note     *string
	Parent   *Order
	Labels   map[string]string
	Grid     [][]int
	PlacedAt time.Time
	Total    int64
	Span     Pair[int, string]
	Tags     []*string
}

type Empty struct{}

type Holder struct {
	E Empty
}

type Time struct {
	Hour int32
}

type Clock struct {
	Now   time.Time
	Alarm Time
}

type Signal struct {
	Level complex128
}

type Tree []Tree

type Forest struct {
	Trees Tree
}
`

const pkg = "example.com/shop"

func models(t *testing.T, names ...string) []*modelgen.Model {
	t.Helper()
	u, err := typesys.Check(pkg, map[string]string{"shop.go": fixture})
	require.NoError(t, err)
	g := modelgen.New(typesys.NewProvider(u))
	for _, name := range names {
		st, _, err := g.Include(context.Background(), pkg+"."+name)
		require.NoError(t, err)
		require.Equal(t, modelgen.StatusSuccess, st, name)
	}
	return g.Models()
}

func load(t *testing.T, out string) *language.Schema {
	t.Helper()
	schema, err := language.LoadSchema("schema.graphql", out)
	require.NoError(t, err, out)
	return schema
}

func TestGenerateObjectTypes(t *testing.T) {
	out, err := sdl.Generate(context.Background(), models(t, "Order"))
	require.NoError(t, err)
	schema := load(t, out)

	order := schema.Types["Order"]
	require.NotNil(t, order)
	assert.Equal(t, language.Object, order.Kind)
	assert.Equal(t, "Order is placed by a customer.", order.Description)

	tests := map[string]string{
		"id":       "String!",
		"status":   "Status!",
		"items":    "[Item!]!",
		"note":     "String",
		"parent":   "Order",
		"labels":   "Map!",
		"grid":     "[[Int64!]!]!",
		"placedAt": "Time!",
		"total":    "Int64!",
		"span":     "Pair_int_string!",
		"tags":     "[String]!",
	}
	for name, want := range tests {
		f := order.Fields.ForName(name)
		if assert.NotNil(t, f, name) {
			assert.Equal(t, want, f.Type.String(), name)
		}
	}
	assert.Len(t, order.Fields, len(tests))

	item := schema.Types["Item"]
	require.NotNil(t, item)
	assert.Equal(t, "Int!", item.Fields.ForName("quantity").Type.String())
	assert.Equal(t, "Float!", item.Fields.ForName("price").Type.String())
	assert.NotNil(t, item.Fields.ForName("sku"))

	pair := schema.Types["Pair_int_string"]
	require.NotNil(t, pair)
	assert.Equal(t, "Int64!", pair.Fields.ForName("item1").Type.String())
	assert.Equal(t, "String!", pair.Fields.ForName("item2").Type.String())
}

func TestGenerateEnumsAndScalars(t *testing.T) {
	out, err := sdl.Generate(context.Background(), models(t, "Order"))
	require.NoError(t, err)
	schema := load(t, out)

	status := schema.Types["Status"]
	require.NotNil(t, status)
	assert.Equal(t, language.Enum, status.Kind)
	require.Len(t, status.EnumValues, 2)
	assert.Equal(t, "PENDING", status.EnumValues[0].Name)
	assert.Equal(t, "SHIPPED", status.EnumValues[1].Name)
	assert.Equal(t, "Shipped orders have left the warehouse.", status.EnumValues[1].Description)

	for _, name := range []string{"Map", "Int64", "Time"} {
		if assert.NotNil(t, schema.Types[name], name) {
			assert.Equal(t, language.Scalar, schema.Types[name].Kind)
		}
	}
	assert.Nil(t, schema.Types["Bytes"], "unused scalars are not declared")
}

func TestGenerateNameClash(t *testing.T) {
	out, err := sdl.Generate(context.Background(), models(t, "Clock"))
	require.NoError(t, err)
	schema := load(t, out)

	clock := schema.Types["Clock"]
	require.NotNil(t, clock)
	assert.Equal(t, "Time!", clock.Fields.ForName("now").Type.String())
	assert.Equal(t, "ShopTime!", clock.Fields.ForName("alarm").Type.String())
	assert.Equal(t, language.Object, schema.Types["ShopTime"].Kind)
	assert.Equal(t, language.Scalar, schema.Types["Time"].Kind)
}

func TestGenerateEmptyObject(t *testing.T) {
	out, err := sdl.Generate(context.Background(), models(t, "Holder"))
	require.NoError(t, err)
	schema := load(t, out)
	assert.Equal(t, language.Scalar, schema.Types["Empty"].Kind)
	assert.Equal(t, "Empty!", schema.Types["Holder"].Fields.ForName("e").Type.String())
}

func TestGenerateUnsupported(t *testing.T) {
	ms := models(t, "Signal")
	_, err := sdl.Generate(context.Background(), ms)
	assert.ErrorIs(t, err, sdl.ErrUnsupported)

	out, err := sdl.Generate(context.Background(), ms, sdl.WithScalar("complex128", "Complex"))
	require.NoError(t, err)
	schema := load(t, out)
	assert.Equal(t, "Complex!", schema.Types["Signal"].Fields.ForName("level").Type.String())
	assert.Equal(t, language.Scalar, schema.Types["Complex"].Kind)

	_, err = sdl.Generate(context.Background(), models(t, "Forest"))
	assert.ErrorIs(t, err, sdl.ErrUnsupported)
}

func TestBuildDocument(t *testing.T) {
	doc, err := sdl.Build(models(t, "Item"))
	require.NoError(t, err)
	require.Len(t, doc.Definitions, 1)
	assert.Equal(t, "Item", doc.Definitions[0].Name)
	assert.Equal(t, "Item is a line of an order.", doc.Definitions[0].Description)
}

func TestGenerateEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	var started []events.GenerateStart
	var finished []events.GenerateFinish
	eventbus.On(bus, func(_ context.Context, e events.GenerateStart) { started = append(started, e) })
	eventbus.On(bus, func(_ context.Context, e events.GenerateFinish) { finished = append(finished, e) })

	ms := models(t, "Item")
	_, err := sdl.Generate(context.Background(), ms)
	require.NoError(t, err)

	require.Len(t, started, 1)
	assert.Equal(t, sdl.Emitter, started[0].Emitter)
	assert.Equal(t, len(ms), started[0].Models)
	require.Len(t, finished, 1)
	assert.Equal(t, 1, finished[0].Files)
	assert.NoError(t, finished[0].Err)
}
