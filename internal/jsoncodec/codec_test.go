package jsoncodec_test

import (
	"context"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/jsoncodec"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Node struct {
	Value int
	Next  *Node
}

type Level int

const (
	Debug Level = iota
	Info
)

func (l Level) String() string {
	if l == Info {
		return "INFO"
	}
	return "DEBUG"
}

type Entry struct {
	Level   Level
	Message string
	Labels  map[string]int
	Counts  map[int]bool
	At      time.Time
	Span    shape.Tuple2[int, string]
	Tags    []string
	Ratio   float64
	Skipped string `shape:"-"`
	Alias   string `shape:"alias"`
}

type Account struct {
	ID    string `shape:",readonly"`
	Owner string
	Name  string
}

func NewAccount(id, owner string) Account {
	return Account{ID: id, Owner: owner}
}

// View can be enumerated but never built.
type View struct{ items []int }

func (v View) All() iter.Seq[int] { return slices.Values(v.items) }

func newCodec(opts ...shape.Option) *jsoncodec.Codec {
	return jsoncodec.New(shape.NewProvider(opts...))
}

func TestMarshalLinkedList(t *testing.T) {
	c := newCodec()
	list := &Node{Value: 1, Next: &Node{Value: 2}}

	data, err := jsoncodec.Marshal(c, list)
	require.NoError(t, err)
	assert.Equal(t, `{"Value":1,"Next":{"Value":2,"Next":null}}`, string(data))

	got, err := jsoncodec.Unmarshal[*Node](c, data)
	require.NoError(t, err)
	if diff := cmp.Diff(list, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalComposite(t *testing.T) {
	c := newCodec(shape.WithEnum(Debug, Info))
	e := Entry{
		Level:   Info,
		Message: "hi",
		Labels:  map[string]int{"b": 2, "a": 1},
		Counts:  map[int]bool{10: true, 2: false},
		At:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Span:    shape.Tuple2[int, string]{Item1: 3, Item2: "x"},
		Ratio:   0.5,
		Skipped: "gone",
		Alias:   "renamed",
	}

	data, err := jsoncodec.Marshal(c, e)
	require.NoError(t, err)
	assert.Equal(t,
		`{"Level":"INFO","Message":"hi","Labels":{"a":1,"b":2},"Counts":{"10":true,"2":false},`+
			`"At":"2024-01-02T03:04:05Z","Span":[3,"x"],"Tags":null,"Ratio":0.5,"alias":"renamed"}`,
		string(data))

	got, err := jsoncodec.Unmarshal[Entry](c, data)
	require.NoError(t, err)
	e.Skipped = ""
	if diff := cmp.Diff(e, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBindsConstructorThenSetters(t *testing.T) {
	c := newCodec(shape.WithConstructor(NewAccount, "id", "owner"))

	got, err := jsoncodec.Unmarshal[Account](c, []byte(`{"ID":"a-1","OWNER":"kim","Name":"main","name":"x","extra":[1,{}]}`))
	require.NoError(t, err)
	assert.Equal(t, Account{ID: "a-1", Owner: "kim", Name: "main"}, got)
}

func TestDecodeReadonlyWithoutConstructor(t *testing.T) {
	c := newCodec()
	got, err := jsoncodec.Unmarshal[Account](c, []byte(`{"ID":"a-1","Owner":"kim","owner":"lee"}`))
	require.NoError(t, err)
	assert.Equal(t, Account{Owner: "kim"}, got)
}

func TestDecodeErrors(t *testing.T) {
	c := newCodec(shape.WithEnum(Debug, Info))

	for name, tc := range map[string]struct {
		run func() error
	}{
		"wrong kind": {func() error {
			_, err := jsoncodec.Unmarshal[Node](c, []byte(`{"Value":"one"}`))
			return err
		}},
		"fraction": {func() error {
			_, err := jsoncodec.Unmarshal[Node](c, []byte(`{"Value":1.5}`))
			return err
		}},
		"unknown enum": {func() error {
			_, err := jsoncodec.Unmarshal[Level](c, []byte(`"TRACE"`))
			return err
		}},
		"short tuple": {func() error {
			_, err := jsoncodec.Unmarshal[shape.Tuple2[int, string]](c, []byte(`[1]`))
			return err
		}},
		"trailing": {func() error {
			_, err := jsoncodec.Unmarshal[int](c, []byte(`1 2`))
			return err
		}},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, tc.run(), jsoncodec.ErrSyntax)
		})
	}
}

func TestDecodeWithoutStrategyFails(t *testing.T) {
	c := newCodec()

	data, err := jsoncodec.Marshal(c, View{items: []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))

	_, err = jsoncodec.Unmarshal[View](c, data)
	assert.ErrorIs(t, err, shape.ErrNoStrategy)
}

func TestRegistryCodecShared(t *testing.T) {
	r := derive.NewRegistry(context.Background(), nil, nil)
	a, b := jsoncodec.From(r), jsoncodec.From(r)
	assert.Same(t, a.Encoders, b.Encoders)
	assert.Same(t, a.Decoders, b.Decoders)
	assert.NotEqual(t, a.Encoders.Name(), a.Decoders.Name())
}
