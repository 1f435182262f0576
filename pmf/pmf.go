// Package pmf implements probability mass functions over symbol alphabets.
package pmf

import (
	"errors"
	"fmt"
	"math"

	"github.com/Krlucete/qvz/alphabet"
)

// ErrEmptyDistribution is returned when a PMF expected to carry mass has
// a zero total.
var ErrEmptyDistribution = errors.New("pmf: empty distribution")

// PMF is a probability mass function over an alphabet. Before
// Renormalize it holds raw counts (or unnormalized weights); afterwards
// it is marked ready and components sum to 1.
type PMF struct {
	alpha *alphabet.Alphabet
	p     []float64
	ready bool
}

// New returns an all-zero counts PMF over a.
func New(a *alphabet.Alphabet) *PMF {
	return &PMF{
		alpha: a,
		p:     make([]float64, a.Size()),
	}
}

// Alphabet returns the alphabet this PMF is defined over.
func (m *PMF) Alphabet() *alphabet.Alphabet {
	return m.alpha
}

// Ready reports whether the PMF holds normalized probabilities.
func (m *PMF) Ready() bool {
	return m.ready
}

// Increment bumps the count for symbol s. The PMF must not be ready.
func (m *PMF) Increment(s alphabet.Symbol) error {
	if m.ready {
		return fmt.Errorf("pmf: increment on normalized distribution (symbol %d)", s)
	}
	idx := m.alpha.IndexOf(s)
	if idx == alphabet.NotFound {
		return fmt.Errorf("pmf: symbol %d not in alphabet", s)
	}
	m.p[idx]++
	return nil
}

// AddAt adds weight w at position idx. The PMF must not be ready.
func (m *PMF) AddAt(idx int, w float64) {
	m.p[idx] += w
}

// Renormalize divides by the total mass and marks the PMF ready.
func (m *PMF) Renormalize() error {
	var total float64
	for _, v := range m.p {
		total += v
	}
	if total == 0 {
		return ErrEmptyDistribution
	}
	inv := 1 / total
	for i := range m.p {
		m.p[i] *= inv
	}
	m.ready = true
	return nil
}

// Mass returns the current total mass, normalized or not.
func (m *PMF) Mass() float64 {
	var total float64
	for _, v := range m.p {
		total += v
	}
	return total
}

// Probability returns the probability (or raw weight) of symbol s.
// Symbols outside the alphabet have zero probability.
func (m *PMF) Probability(s alphabet.Symbol) float64 {
	idx := m.alpha.IndexOf(s)
	if idx == alphabet.NotFound {
		return 0
	}
	return m.p[idx]
}

// ProbabilityAt returns the component at position idx.
func (m *PMF) ProbabilityAt(idx int) float64 {
	return m.p[idx]
}

// Entropy returns -sum p*log2(p), with 0*log(0) taken as 0.
func (m *PMF) Entropy() float64 {
	var h float64
	for _, v := range m.p {
		if v > 0 {
			h -= v * math.Log2(v)
		}
	}
	return h
}

// Support returns the number of symbols with nonzero probability.
func (m *PMF) Support() int {
	n := 0
	for _, v := range m.p {
		if v > 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of m.
func (m *PMF) Clone() *PMF {
	out := &PMF{
		alpha: m.alpha,
		p:     make([]float64, len(m.p)),
		ready: m.ready,
	}
	copy(out.p, m.p)
	return out
}

// Combine computes out[i] = alpha*p[i] + beta*q[i] componentwise. The
// three PMFs must share an alphabet size; out may alias p or q. The
// result is left unnormalized (not ready) for the caller to finish.
func Combine(p, q *PMF, alphaW, betaW float64, out *PMF) error {
	if len(p.p) != len(q.p) || len(p.p) != len(out.p) {
		return fmt.Errorf("pmf: combine size mismatch (%d, %d, %d)", len(p.p), len(q.p), len(out.p))
	}
	for i := range out.p {
		out.p[i] = alphaW*p.p[i] + betaW*q.p[i]
	}
	out.ready = false
	return nil
}

// List is a fixed-size collection of PMFs sharing one alphabet.
type List struct {
	pmfs []*PMF
}

// NewList returns n fresh PMFs over a.
func NewList(n int, a *alphabet.Alphabet) *List {
	l := &List{pmfs: make([]*PMF, n)}
	for i := range l.pmfs {
		l.pmfs[i] = New(a)
	}
	return l
}

// Size returns the number of PMFs.
func (l *List) Size() int {
	return len(l.pmfs)
}

// Get returns the i-th PMF.
func (l *List) Get(i int) *PMF {
	return l.pmfs[i]
}
