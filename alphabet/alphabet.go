// Package alphabet provides ordered symbol sets for quality-value streams.
//
// An Alphabet is an immutable, ascending sequence of unique symbols with
// O(1) membership and position lookup. Quantizer output alphabets and
// per-column input alphabets are both represented this way.
package alphabet

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Symbol is a quality value in [0, MaxSize).
type Symbol = uint8

// MaxSize is the largest supported alphabet size.
const MaxSize = 64

// NotFound is the sentinel returned by IndexOf for absent symbols.
const NotFound = int(-1)

// Alphabet is an ordered set of unique symbols. Immutable after
// construction; all mutating-looking operations return a new Alphabet.
type Alphabet struct {
	symbols []Symbol
	members *roaring.Bitmap
	index   [MaxSize]int16 // symbol -> position, -1 when absent
}

func build(symbols []Symbol) *Alphabet {
	a := &Alphabet{
		symbols: symbols,
		members: roaring.New(),
	}
	for i := range a.index {
		a.index[i] = -1
	}
	for i, s := range symbols {
		a.members.Add(uint32(s))
		a.index[s] = int16(i)
	}
	return a
}

// Trivial returns the alphabet {0, ..., n-1}.
func Trivial(n int) *Alphabet {
	symbols := make([]Symbol, n)
	for i := range symbols {
		symbols[i] = Symbol(i)
	}
	return build(symbols)
}

// FromSymbols returns an alphabet over the given symbols, which must be
// unique and in ascending order.
func FromSymbols(symbols []Symbol) *Alphabet {
	cloned := make([]Symbol, len(symbols))
	copy(cloned, symbols)
	return build(cloned)
}

// Duplicate returns a copy of a.
func (a *Alphabet) Duplicate() *Alphabet {
	return FromSymbols(a.symbols)
}

// Union returns the ascending union of a and b.
func Union(a, b *Alphabet) *Alphabet {
	merged := a.members.Clone()
	merged.Or(b.members)
	symbols := make([]Symbol, 0, merged.GetCardinality())
	it := merged.Iterator()
	for it.HasNext() {
		symbols = append(symbols, Symbol(it.Next()))
	}
	return build(symbols)
}

// Size returns the number of symbols.
func (a *Alphabet) Size() int {
	return len(a.symbols)
}

// Symbols returns the ordered symbol slice. Callers must not modify it.
func (a *Alphabet) Symbols() []Symbol {
	return a.symbols
}

// At returns the symbol at position i.
func (a *Alphabet) At(i int) Symbol {
	return a.symbols[i]
}

// Contains reports whether s is a member.
func (a *Alphabet) Contains(s Symbol) bool {
	return a.members.Contains(uint32(s))
}

// IndexOf returns the position of s, or NotFound.
func (a *Alphabet) IndexOf(s Symbol) int {
	if int(s) >= MaxSize {
		return NotFound
	}
	if idx := a.index[s]; idx >= 0 {
		return int(idx)
	}
	return NotFound
}

// Equal reports whether a and b contain the same symbol set.
func (a *Alphabet) Equal(b *Alphabet) bool {
	if a.Size() != b.Size() {
		return false
	}
	for i, s := range a.symbols {
		if b.symbols[i] != s {
			return false
		}
	}
	return true
}
