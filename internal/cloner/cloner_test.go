package cloner_test

import (
	"iter"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/typeshape/internal/cloner"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Node struct {
	Value int
	Next  *Node
}

type Account struct {
	ID     string `shape:",readonly"`
	Owner  string
	Labels map[string][]string
	calls  int
}

func NewAccount(id string) *Account {
	return &Account{ID: id, calls: 1}
}

type Ledger struct {
	Entries Frozen
	Span    shape.Tuple2[int, []string]
}

// Frozen is only buildable from a slice.
type Frozen struct{ items []int }

func (f Frozen) All() iter.Seq[int] { return slices.Values(f.items) }

func FrozenOf(s []int) Frozen { return Frozen{items: slices.Clone(s)} }

// View can be enumerated but never built.
type View struct{ items []int }

func (v View) All() iter.Seq[int] { return slices.Values(v.items) }

func TestCloneLinkedList(t *testing.T) {
	c := cloner.New(shape.NewProvider())
	src := &Node{Value: 1, Next: &Node{Value: 2, Next: &Node{Value: 3}}}

	got, err := cloner.Clone(c, src)
	require.NoError(t, err)
	if diff := cmp.Diff(src, got); diff != "" {
		t.Errorf("clone mismatch (-want +got):\n%s", diff)
	}
	assert.NotSame(t, src, got)
	assert.NotSame(t, src.Next.Next, got.Next.Next)

	got.Next.Value = 20
	assert.Equal(t, 2, src.Next.Value)
}

func TestCloneReadonlyThroughConstructor(t *testing.T) {
	src := Account{ID: "a-1", Owner: "kim", Labels: map[string][]string{"team": {"core"}}}

	t.Run("constructor", func(t *testing.T) {
		c := cloner.New(shape.NewProvider(shape.WithConstructor(NewAccount, "id")))
		got, err := cloner.Clone(c, src)
		require.NoError(t, err)
		assert.Equal(t, "a-1", got.ID)
		assert.Equal(t, "kim", got.Owner)
		assert.Equal(t, 1, got.calls, "built by the constructor")

		got.Labels["team"][0] = "edge"
		assert.Equal(t, "core", src.Labels["team"][0])
	})

	t.Run("no constructor", func(t *testing.T) {
		c := cloner.New(shape.NewProvider())
		got, err := cloner.Clone(c, src)
		require.NoError(t, err)
		assert.Empty(t, got.ID)
		assert.Equal(t, "kim", got.Owner)
	})
}

func TestCloneUsesCollectionStrategy(t *testing.T) {
	c := cloner.New(shape.NewProvider(shape.WithCollectionConstructor(FrozenOf)))
	src := Ledger{
		Entries: FrozenOf([]int{1, 2, 3}),
		Span:    shape.Tuple2[int, []string]{Item1: 7, Item2: []string{"x"}},
	}

	got, err := cloner.Clone(c, src)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, slices.Collect(got.Entries.All()))
	assert.Equal(t, 7, got.Span.Item1)

	got.Span.Item2[0] = "y"
	assert.Equal(t, "x", src.Span.Item2[0])
}

func TestCloneWithoutStrategyFails(t *testing.T) {
	c := cloner.New(shape.NewProvider())
	_, err := cloner.Clone(c, View{items: []int{1}})
	assert.ErrorIs(t, err, shape.ErrNoStrategy)
}

func TestCloneKeepsNil(t *testing.T) {
	c := cloner.New(shape.NewProvider())
	got, err := cloner.Clone(c, Account{})
	require.NoError(t, err)
	assert.Nil(t, got.Labels)

	n, err := cloner.Clone[*Node](c, nil)
	require.NoError(t, err)
	assert.Nil(t, n)
}

type Hook struct {
	Name     string
	Callback func()
	Handlers []func()
}

func TestCloneSharesUnsupportedValues(t *testing.T) {
	c := cloner.New(shape.NewProvider())
	calls := 0
	inc := func() { calls++ }
	src := Hook{Name: "on-save", Callback: inc, Handlers: []func(){inc, inc}}

	got, err := cloner.Clone(c, src)
	require.NoError(t, err)
	assert.Equal(t, "on-save", got.Name)
	require.NotNil(t, got.Callback)
	require.Len(t, got.Handlers, 2)

	got.Callback()
	got.Handlers[1]()
	assert.Equal(t, 2, calls)
}
