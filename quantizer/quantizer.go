// Package quantizer implements fixed-rate scalar quantizers over
// discrete symbol alphabets, designed against a source PMF and a
// distortion table.
package quantizer

import (
	"fmt"

	"github.com/Krlucete/qvz/alphabet"
)

// Quantizer maps every input symbol in [0, A) to a reproduction symbol.
// It carries the output alphabet (the sorted unique image of the
// mapping), the mixing ratio it was designed for, and the expected
// distortion over the PMF it was designed against.
type Quantizer struct {
	alpha  *alphabet.Alphabet
	q      []alphabet.Symbol
	output *alphabet.Alphabet
	ratio  float64
	dist   float64
}

// FromMapping builds a quantizer from a raw mapping array. The output
// alphabet is derived as the sorted unique image. Used by the codebook
// reader; the designer produces quantizers via Design.
func FromMapping(a *alphabet.Alphabet, mapping []alphabet.Symbol, ratio float64) (*Quantizer, error) {
	if len(mapping) != a.Size() {
		return nil, fmt.Errorf("quantizer: mapping length %d does not match alphabet size %d", len(mapping), a.Size())
	}
	var seen [alphabet.MaxSize]bool
	for _, r := range mapping {
		if a.IndexOf(r) == alphabet.NotFound {
			return nil, fmt.Errorf("quantizer: reproduction symbol %d not in alphabet", r)
		}
		seen[r] = true
	}
	uniques := make([]alphabet.Symbol, 0, len(mapping))
	for s := 0; s < alphabet.MaxSize; s++ {
		if seen[s] {
			uniques = append(uniques, alphabet.Symbol(s))
		}
	}
	cloned := make([]alphabet.Symbol, len(mapping))
	copy(cloned, mapping)
	return &Quantizer{
		alpha:  a,
		q:      cloned,
		output: alphabet.FromSymbols(uniques),
		ratio:  ratio,
	}, nil
}

// Alphabet returns the input alphabet.
func (q *Quantizer) Alphabet() *alphabet.Alphabet {
	return q.alpha
}

// Map returns the reproduction symbol for input s.
func (q *Quantizer) Map(s alphabet.Symbol) alphabet.Symbol {
	return q.q[q.alpha.IndexOf(s)]
}

// MapAt returns the reproduction symbol for the input at position idx.
func (q *Quantizer) MapAt(idx int) alphabet.Symbol {
	return q.q[idx]
}

// Mapping returns the raw mapping array. Callers must not modify it.
func (q *Quantizer) Mapping() []alphabet.Symbol {
	return q.q
}

// OutputAlphabet returns the sorted unique image of the mapping.
func (q *Quantizer) OutputAlphabet() *alphabet.Alphabet {
	return q.output
}

// States returns the number of distinct outputs.
func (q *Quantizer) States() int {
	return q.output.Size()
}

// Ratio returns the mixing ratio recorded at design time.
func (q *Quantizer) Ratio() float64 {
	return q.ratio
}

// ExpectedDistortion returns E[D(X, q(X))] over the design PMF.
func (q *Quantizer) ExpectedDistortion() float64 {
	return q.dist
}

// StateIndex returns the state encoding of a reproduction symbol: its
// position in the output alphabet, or alphabet.NotFound.
func (q *Quantizer) StateIndex(value alphabet.Symbol) int {
	return q.output.IndexOf(value)
}

// MappingEqual reports whether q and other share the same mapping array.
func (q *Quantizer) MappingEqual(other *Quantizer) bool {
	if len(q.q) != len(other.q) {
		return false
	}
	for i := range q.q {
		if q.q[i] != other.q[i] {
			return false
		}
	}
	return true
}
