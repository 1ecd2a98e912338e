package protoreg_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hanpama/typeshape/internal/modelgen"
	"github.com/hanpama/typeshape/internal/protoreg"
	"github.com/hanpama/typeshape/internal/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
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
	Scores   map[float64]string
	Grid     [][]int
	PlacedAt time.Time
	Timeout  time.Duration
	Payload  []byte
	Span     Pair[int, string]
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

func buildOrder(t *testing.T) *protoreg.Registry {
	t.Helper()
	reg, err := protoreg.Build(context.Background(), models(t, "Order"))
	require.NoError(t, err)
	return reg
}

func TestBuildFiles(t *testing.T) {
	reg := buildOrder(t)
	require.Len(t, reg.Files(), 1)
	fd := reg.Files()[0]
	assert.Equal(t, "example.com/shop/shop.proto", fd.Path())
	assert.Equal(t, protoreflect.FullName("example.com.shop"), fd.Package())
	assert.Equal(t, protoreflect.Proto3, fd.Syntax())

	var messages []string
	for i := 0; i < fd.Messages().Len(); i++ {
		messages = append(messages, string(fd.Messages().Get(i).Name()))
	}
	assert.ElementsMatch(t, []string{"Item", "Order", "Pair_int_string"}, messages)
	assert.Equal(t, 1, fd.Enums().Len())
}

func TestBuildFieldTypes(t *testing.T) {
	reg := buildOrder(t)
	order := pkg + ".Order"

	tests := []struct {
		field    string
		name     string
		kind     protoreflect.Kind
		repeated bool
		optional bool
		target   string // message or enum name
	}{
		{field: "ID", name: "id", kind: protoreflect.StringKind},
		{field: "Status", name: "status", kind: protoreflect.EnumKind, target: "Status"},
		{field: "Items", name: "items", kind: protoreflect.MessageKind, repeated: true, target: "Item"},
		{field: "Note", name: "note", kind: protoreflect.StringKind, optional: true},
		{field: "Parent", name: "parent", kind: protoreflect.MessageKind, target: "Order"},
		{field: "Scores", name: "scores", kind: protoreflect.MessageKind, repeated: true, target: "ScoresEntry"},
		{field: "Grid", name: "grid", kind: protoreflect.MessageKind, repeated: true, target: "GridList"},
		{field: "PlacedAt", name: "placed_at", kind: protoreflect.StringKind},
		{field: "Timeout", name: "timeout", kind: protoreflect.Int64Kind},
		{field: "Payload", name: "payload", kind: protoreflect.BytesKind},
		{field: "Span", name: "span", kind: protoreflect.MessageKind, target: "Pair_int_string"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			fd := reg.Field(modelgen.TypeID(order), tt.field)
			require.NotNil(t, fd)
			assert.Equal(t, tt.name, string(fd.Name()))
			assert.Equal(t, tt.kind, fd.Kind())
			assert.Equal(t, tt.repeated, fd.Cardinality() == protoreflect.Repeated)
			assert.Equal(t, tt.optional, fd.HasOptionalKeyword())
			assert.True(t, fd.Number() >= 1 && fd.Number() <= 31767)
			switch tt.kind {
			case protoreflect.MessageKind:
				assert.Equal(t, tt.target, string(fd.Message().Name()))
			case protoreflect.EnumKind:
				assert.Equal(t, tt.target, string(fd.Enum().Name()))
			}
		})
	}

	assert.Nil(t, reg.Field(modelgen.TypeID(order), "Missing"))
	assert.Nil(t, reg.Field("example.com/shop.Missing", "ID"))
}

func TestBuildMapsAndWrappers(t *testing.T) {
	reg := buildOrder(t)
	order := modelgen.TypeID(pkg + ".Order")

	labels := reg.Field(order, "Labels")
	require.NotNil(t, labels)
	require.True(t, labels.IsMap())
	assert.Equal(t, protoreflect.StringKind, labels.MapKey().Kind())
	assert.Equal(t, protoreflect.StringKind, labels.MapValue().Kind())

	scores := reg.Field(order, "Scores").Message()
	assert.Equal(t, protoreflect.DoubleKind, scores.Fields().ByName("key").Kind())
	assert.Equal(t, protoreflect.StringKind, scores.Fields().ByName("value").Kind())

	grid := reg.Field(order, "Grid").Message()
	items := grid.Fields().ByName("items")
	require.NotNil(t, items)
	assert.Equal(t, protoreflect.Int64Kind, items.Kind())
	assert.Equal(t, protoreflect.Repeated, items.Cardinality())
}

func TestBuildEnum(t *testing.T) {
	reg := buildOrder(t)
	ed := reg.Enum(pkg + ".Status")
	require.NotNil(t, ed)

	values := ed.Values()
	require.Equal(t, 3, values.Len())
	assert.Equal(t, protoreflect.Name("STATUS_UNSPECIFIED"), values.ByNumber(0).Name())
	assert.NotNil(t, values.ByName("STATUS_PENDING"))
	shipped := values.ByName("STATUS_SHIPPED")
	require.NotNil(t, shipped)
	assert.NotZero(t, shipped.Number())
}

func TestBuildTupleMessage(t *testing.T) {
	reg := buildOrder(t)
	md := reg.Message(`example.com/shop.Pair[int, string]`)
	require.NotNil(t, md)
	assert.Equal(t, protoreflect.Int64Kind, md.Fields().ByName("item1").Kind())
	assert.Equal(t, protoreflect.StringKind, md.Fields().ByName("item2").Kind())
}

func TestBuildIsDeterministic(t *testing.T) {
	first := buildOrder(t)
	second := buildOrder(t)

	var a, b bytes.Buffer
	require.NoError(t, protoreg.Print(first.Files()[0], &a))
	require.NoError(t, protoreg.Print(second.Files()[0], &b))
	assert.Equal(t, a.String(), b.String())
}

func TestPrint(t *testing.T) {
	reg := buildOrder(t)
	var buf bytes.Buffer
	require.NoError(t, protoreg.Print(reg.Files()[0], &buf))

	out := buf.String()
	assert.Contains(t, out, `syntax = "proto3";`)
	assert.Contains(t, out, "package example.com.shop;")
	assert.Contains(t, out, "message Order {")
	assert.Contains(t, out, "enum Status {")
	assert.Contains(t, out, "Order is placed by a customer.")
	assert.Contains(t, out, "Shipped orders have left the warehouse.")
}

func TestRender(t *testing.T) {
	reg := buildOrder(t)
	dir := t.TempDir()
	written, err := protoreg.Render(reg, dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "example.com", "shop", "shop.proto")}, written)

	data, err := os.ReadFile(written[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "message Item {")
}

func TestBuildUnsupportedScalar(t *testing.T) {
	ms := models(t, "Signal")
	_, err := protoreg.Build(context.Background(), ms)
	assert.ErrorIs(t, err, protoreg.ErrUnsupported)

	reg, err := protoreg.Build(context.Background(), ms, protoreg.WithScalar("complex128", "bytes"))
	require.NoError(t, err)
	assert.Equal(t, protoreflect.BytesKind, reg.Field(pkg+".Signal", "Level").Kind())

	_, err = protoreg.Build(context.Background(), ms, protoreg.WithScalar("complex128", "decimal"))
	assert.ErrorContains(t, err, `unknown proto type "decimal"`)
}

func TestBuildSelfContainingList(t *testing.T) {
	_, err := protoreg.Build(context.Background(), models(t, "Forest"))
	assert.ErrorIs(t, err, protoreg.ErrUnsupported)
}

func TestBuildPackagePrefix(t *testing.T) {
	reg, err := protoreg.Build(context.Background(), models(t, "Item"), protoreg.WithPackagePrefix("acme"))
	require.NoError(t, err)
	assert.Equal(t, protoreflect.FullName("acme.example.com.shop"), reg.Files()[0].Package())
}

func TestBuildEmpty(t *testing.T) {
	reg, err := protoreg.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, reg.Files())
	assert.Nil(t, reg.Message("anything"))
}
