package codebook

import (
	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/internal/well"
	"github.com/Krlucete/qvz/quantizer"
)

// CondQuantizerList is the output of codebook generation: for every
// column, an input alphabet of left-context symbols and, per context, a
// low/high quantizer pair with the mixing ratio between them.
//
// The list owns a WELL1024a generator used by Choose at encode and
// decode time. Generation itself never advances it, so a parallel
// design pass cannot perturb selections.
type CondQuantizerList struct {
	columns int
	inputs  []*alphabet.Alphabet
	// Quantizers are stored flat per column: lo at 2*idx, hi at 2*idx+1,
	// idx being the context's position in the column input alphabet.
	q      [][]*quantizer.Quantizer
	ratios [][]float64
	rng    *well.Source
}

// NewCondQuantizerList allocates an empty list for the given number of
// columns, with the selection PRNG seeded to seed.
func NewCondQuantizerList(columns int, seed uint32) *CondQuantizerList {
	return &CondQuantizerList{
		columns: columns,
		inputs:  make([]*alphabet.Alphabet, columns),
		q:       make([][]*quantizer.Quantizer, columns),
		ratios:  make([][]float64, columns),
		rng:     well.NewSource(seed),
	}
}

// Columns returns the number of columns.
func (l *CondQuantizerList) Columns() int {
	return l.columns
}

// InitColumn opens a column with its input alphabet (the union of all
// possible left-context symbols). The alphabet is duplicated so later
// mutation of the argument cannot leak in.
func (l *CondQuantizerList) InitColumn(column int, inputUnion *alphabet.Alphabet) {
	l.inputs[column] = inputUnion.Duplicate()
	l.q[column] = make([]*quantizer.Quantizer, 2*inputUnion.Size())
	l.ratios[column] = make([]float64, inputUnion.Size())
}

// InputAlphabet returns the input alphabet of a column.
func (l *CondQuantizerList) InputAlphabet(column int) *alphabet.Alphabet {
	return l.inputs[column]
}

// StoreIndexed stores the quantizer pair and ratio at a raw context
// index within the column.
func (l *CondQuantizerList) StoreIndexed(column, idx int, lo, hi *quantizer.Quantizer, ratio float64) {
	l.q[column][2*idx] = lo
	l.q[column][2*idx+1] = hi
	l.ratios[column][idx] = ratio
}

// Store stores the quantizer pair and ratio under a context symbol.
func (l *CondQuantizerList) Store(column int, prev alphabet.Symbol, lo, hi *quantizer.Quantizer, ratio float64) error {
	idx := l.inputs[column].IndexOf(prev)
	if idx == alphabet.NotFound {
		return ErrAlphabetLookupMiss
	}
	l.StoreIndexed(column, idx, lo, hi, ratio)
	return nil
}

// GetIndexed returns the quantizer at a raw slot within the column: lo
// quantizers live at even slots, hi at odd. Used when iterating all
// stored quantizers during next-column union derivation.
func (l *CondQuantizerList) GetIndexed(column, slot int) *quantizer.Quantizer {
	return l.q[column][slot]
}

// Get returns the (lo, hi, ratio) triple stored under a context symbol.
func (l *CondQuantizerList) Get(column int, prev alphabet.Symbol) (*quantizer.Quantizer, *quantizer.Quantizer, float64, error) {
	idx := l.inputs[column].IndexOf(prev)
	if idx == alphabet.NotFound {
		return nil, nil, 0, ErrAlphabetLookupMiss
	}
	return l.q[column][2*idx], l.q[column][2*idx+1], l.ratios[column][idx], nil
}

// RatioIndexed returns the ratio at a raw context index.
func (l *CondQuantizerList) RatioIndexed(column, idx int) float64 {
	return l.ratios[column][idx]
}

// ContextCount returns the number of contexts stored for a column.
func (l *CondQuantizerList) ContextCount(column int) int {
	return l.inputs[column].Size()
}

// SeedRNG reseeds the selection PRNG. Encoder and decoder must seed
// identically and call Choose in the same order.
func (l *CondQuantizerList) SeedRNG(seed uint32) {
	l.rng.Seed(seed)
}

// Choose draws from the selection PRNG and returns the low quantizer
// when the draw falls below the stored ratio, the high one otherwise.
func (l *CondQuantizerList) Choose(column int, prev alphabet.Symbol) (*quantizer.Quantizer, error) {
	q, _, _, err := l.ChooseIndexed(column, prev)
	return q, err
}

// ChooseIndexed is Choose plus the context index and which member of
// the pair was drawn, which entropy-coding callers key their adaptive
// models on.
func (l *CondQuantizerList) ChooseIndexed(column int, prev alphabet.Symbol) (q *quantizer.Quantizer, idx int, high bool, err error) {
	idx = l.inputs[column].IndexOf(prev)
	if idx == alphabet.NotFound {
		return nil, 0, false, ErrAlphabetLookupMiss
	}
	lo, hi := l.q[column][2*idx], l.q[column][2*idx+1]
	if lo == nil || hi == nil {
		return nil, 0, false, invariantf(column, int(prev), nil, "no quantizer stored for reachable context")
	}
	if l.rng.Float64() < l.ratios[column][idx] {
		return lo, idx, false, nil
	}
	return hi, idx, true, nil
}
