// Package distortion provides pairwise symbol distortion tables.
package distortion

import (
	"fmt"
	"math"
)

// Measure selects the distortion metric used to design quantizers.
type Measure int

const (
	// MSE is squared error, (i-j)^2.
	MSE Measure = iota
	// Manhattan is absolute error, |i-j|.
	Manhattan
	// Lorentz is log2(1 + |i-j|).
	Lorentz
)

func (m Measure) String() string {
	switch m {
	case MSE:
		return "MSE"
	case Manhattan:
		return "L1"
	case Lorentz:
		return "log(1+L1)"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Table is a precomputed symmetric size x size distortion matrix with a
// zero diagonal. Built once per run; lookups are O(1).
type Table struct {
	measure Measure
	size    int
	d       []float64
}

// NewTable builds the distortion table for the given alphabet size.
func NewTable(size int, m Measure) (*Table, error) {
	var f func(i, j int) float64
	switch m {
	case MSE:
		f = func(i, j int) float64 {
			d := float64(i - j)
			return d * d
		}
	case Manhattan:
		f = func(i, j int) float64 {
			return math.Abs(float64(i - j))
		}
	case Lorentz:
		f = func(i, j int) float64 {
			return math.Log2(1 + math.Abs(float64(i-j)))
		}
	default:
		return nil, fmt.Errorf("distortion: unsupported measure: %v", m)
	}

	t := &Table{
		measure: m,
		size:    size,
		d:       make([]float64, size*size),
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			t.d[i*size+j] = f(i, j)
		}
	}
	return t, nil
}

// Measure returns the metric the table was built from.
func (t *Table) Measure() Measure {
	return t.measure
}

// Size returns the alphabet size the table covers.
func (t *Table) Size() int {
	return t.size
}

// At returns the distortion between symbols i and j.
func (t *Table) At(i, j int) float64 {
	return t.d[i*t.size+j]
}
