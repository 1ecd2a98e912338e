package modelgen

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushDetectsCycles(t *testing.T) {
	var root Context
	a, ok := root.Push("A")
	require.True(t, ok)
	b, ok := a.Push("B")
	require.True(t, ok)

	_, ok = b.Push("A")
	assert.False(t, ok)
	assert.Equal(t, []TypeID{"A", "B"}, b.Path())
	assert.Equal(t, 2, b.Depth())
	assert.Equal(t, 0, root.Depth(), "pushing never changes the receiver")
}

func TestCommitMovesFromStackToModels(t *testing.T) {
	var root Context
	fork, _ := root.Push("A")
	inner, _ := fork.Push("B")
	fork = fork.Commit(inner, &Model{ID: "B"})

	assert.Equal(t, []TypeID{"A"}, fork.Path())
	_, ok := fork.Lookup("B")
	assert.True(t, ok)

	done := root.Commit(fork, &Model{ID: "A"})
	assert.Equal(t, 0, done.Depth())
	assert.Equal(t, 2, done.Len())
	assert.Equal(t, 0, root.Len())

	// Dropping the fork instead leaves the caller's snapshot as it was.
	_, ok = root.Lookup("B")
	assert.False(t, ok)
}

func TestTrieIsPersistent(t *testing.T) {
	var c Context
	var snapshots []Context
	for i := range 2000 {
		fork, _ := c.Push(TypeID(fmt.Sprint(i)))
		c = c.Commit(fork, &Model{ID: TypeID(fmt.Sprint(i))})
		if i%500 == 0 {
			snapshots = append(snapshots, c)
		}
	}
	require.Equal(t, 2000, c.Len())
	for i := range 2000 {
		m, ok := c.Lookup(TypeID(fmt.Sprint(i)))
		require.True(t, ok, i)
		assert.Equal(t, TypeID(fmt.Sprint(i)), m.ID)
	}
	_, ok := c.Lookup("missing")
	assert.False(t, ok)

	for n, snap := range snapshots {
		assert.Equal(t, n*500+1, snap.Len())
		_, ok := snap.Lookup(TypeID(fmt.Sprint(n*500 + 1)))
		assert.False(t, ok)
	}
	assert.Len(t, c.Models(), 2000)
}

func TestCommitReplacesExistingModel(t *testing.T) {
	var c Context
	c = c.Commit(c, &Model{ID: "A", Name: "first"})
	c = c.Commit(c, &Model{ID: "A", Name: "second"})
	m, _ := c.Lookup("A")
	assert.Equal(t, "second", m.Name)
	assert.Equal(t, 1, c.Len())
}

func TestDiagnosticSetOrdersAndCollapses(t *testing.T) {
	var s diagnosticSet
	d1 := Diagnostic{Severity: SeverityWarning, Message: "b", File: "x.go", Line: 3}
	d2 := Diagnostic{Severity: SeverityWarning, Message: "a", File: "x.go", Line: 1}
	assert.True(t, s.add(d1))
	assert.True(t, s.add(d2))
	assert.False(t, s.add(d1))
	assert.Equal(t, Diagnostics{d2, d1}, s.sorted())
}
