// Package codebook implements the codebook-generation pipeline: per-column
// conditional statistics, entropy-driven bit allocation, conditional
// quantizer storage, and the column-by-column generator that ties them
// together.
package codebook

import (
	"fmt"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/pmf"
)

// Corpus is the training-data handle the statistics pass consumes.
// Lines are fixed width; every symbol lies in [0, A).
type Corpus interface {
	LineCount() int
	Columns() int
	Line(i int) []alphabet.Symbol
}

// CondPMFList holds the empirical conditional PMFs of a training corpus:
// one unconditional PMF for column 0 and one PMF per (column >= 1,
// previous symbol) pair, stored flat. Use the accessor; the layout is
// 1 + A*(C-1) entries. Marginals are derived after counting.
type CondPMFList struct {
	columns   int
	alpha     *alphabet.Alphabet
	pmfs      []*pmf.PMF
	marginals *pmf.List
}

// NewCondPMFList allocates the conditional PMF table for the given
// alphabet and column count.
func NewCondPMFList(a *alphabet.Alphabet, columns int) *CondPMFList {
	count := 1 + a.Size()*(columns-1)
	l := &CondPMFList{
		columns: columns,
		alpha:   a,
		pmfs:    make([]*pmf.PMF, count),
	}
	for i := range l.pmfs {
		l.pmfs[i] = pmf.New(a)
	}
	return l
}

// Columns returns the number of columns covered.
func (l *CondPMFList) Columns() int {
	return l.columns
}

// Alphabet returns the source alphabet.
func (l *CondPMFList) Alphabet() *alphabet.Alphabet {
	return l.alpha
}

// Get returns the PMF of the given column conditioned on the previous
// column's symbol. Column 0 has a single unconditional PMF; prev is
// ignored there.
func (l *CondPMFList) Get(column int, prev alphabet.Symbol) *pmf.PMF {
	if column == 0 {
		return l.pmfs[0]
	}
	return l.pmfs[1+(column-1)*l.alpha.Size()+int(prev)]
}

// Marginal returns the derived marginal PMF of a column. Only valid
// after CalculateStatistics.
func (l *CondPMFList) Marginal(column int) *pmf.PMF {
	return l.marginals.Get(column)
}

// CalculateStatistics accumulates conditional counts over the corpus,
// normalizes every PMF that saw mass, and derives per-column marginals
// by forward chaining. Conditional PMFs of contexts that never occur in
// training are left empty; they are unreachable from the stored
// quantizers and the generator skips them.
func (l *CondPMFList) CalculateStatistics(corpus Corpus) error {
	if corpus.LineCount() == 0 || corpus.Columns() == 0 {
		return ErrTrainingCorpusEmpty
	}
	if corpus.Columns() != l.columns {
		return fmt.Errorf("codebook: corpus has %d columns, table allocated for %d", corpus.Columns(), l.columns)
	}

	for i := 0; i < corpus.LineCount(); i++ {
		line := corpus.Line(i)
		if err := l.Get(0, 0).Increment(line[0]); err != nil {
			return err
		}
		for c := 1; c < l.columns; c++ {
			if err := l.Get(c, line[c-1]).Increment(line[c]); err != nil {
				return err
			}
		}
	}

	for _, m := range l.pmfs {
		if m.Mass() > 0 {
			if err := m.Renormalize(); err != nil {
				return err
			}
		}
	}

	// marg[c] = sum_s marg[c-1](s) * cond[c|s]
	l.marginals = pmf.NewList(l.columns, l.alpha)
	if err := pmf.Combine(l.Get(0, 0), l.Get(0, 0), 1, 0, l.marginals.Get(0)); err != nil {
		return err
	}
	if err := l.marginals.Get(0).Renormalize(); err != nil {
		return err
	}
	for c := 1; c < l.columns; c++ {
		marg := l.marginals.Get(c)
		prev := l.marginals.Get(c - 1)
		for j := 0; j < l.alpha.Size(); j++ {
			w := prev.ProbabilityAt(j)
			if w == 0 {
				continue
			}
			if err := pmf.Combine(marg, l.Get(c, l.alpha.At(j)), 1, w, marg); err != nil {
				return err
			}
		}
		if err := marg.Renormalize(); err != nil {
			return fmt.Errorf("codebook: marginal of column %d: %w", c, err)
		}
	}
	return nil
}
