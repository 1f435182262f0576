package alphabet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrivial(t *testing.T) {
	a := Trivial(4)
	require.Equal(t, 4, a.Size())
	assert.Equal(t, []Symbol{0, 1, 2, 3}, a.Symbols())
	for i := 0; i < 4; i++ {
		assert.True(t, a.Contains(Symbol(i)))
		assert.Equal(t, i, a.IndexOf(Symbol(i)))
	}
	assert.False(t, a.Contains(4))
	assert.Equal(t, NotFound, a.IndexOf(4))
}

func TestFromSymbols_Sparse(t *testing.T) {
	a := FromSymbols([]Symbol{0, 2, 5})
	require.Equal(t, 3, a.Size())
	assert.Equal(t, 1, a.IndexOf(2))
	assert.Equal(t, 2, a.IndexOf(5))
	assert.Equal(t, NotFound, a.IndexOf(1))
	assert.Equal(t, Symbol(5), a.At(2))
}

func TestUnion_PreservesOrder(t *testing.T) {
	a := FromSymbols([]Symbol{0, 2})
	b := FromSymbols([]Symbol{0, 1, 3})
	u := Union(a, b)
	assert.Equal(t, []Symbol{0, 1, 2, 3}, u.Symbols())
}

func TestUnion_Disjoint(t *testing.T) {
	a := FromSymbols([]Symbol{5, 9})
	b := FromSymbols([]Symbol{1, 7})
	u := Union(a, b)
	assert.Equal(t, []Symbol{1, 5, 7, 9}, u.Symbols())
	assert.Equal(t, 2, u.IndexOf(7))
}

func TestDuplicate_Independent(t *testing.T) {
	a := Trivial(3)
	d := a.Duplicate()
	require.True(t, a.Equal(d))
	assert.NotSame(t, a, d)
}

func TestEqual(t *testing.T) {
	assert.True(t, Trivial(4).Equal(FromSymbols([]Symbol{0, 1, 2, 3})))
	assert.False(t, Trivial(4).Equal(Trivial(3)))
	assert.False(t, FromSymbols([]Symbol{0, 2}).Equal(FromSymbols([]Symbol{0, 3})))
}
