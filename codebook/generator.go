package codebook

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/distortion"
	"github.com/Krlucete/qvz/internal/well"
	"github.com/Krlucete/qvz/pmf"
	"github.com/Krlucete/qvz/quantizer"
)

// GenerateResult carries the generated quantizer list and the expected
// per-symbol distortion of the codebook over the training statistics.
type GenerateResult struct {
	Quantizers         *CondQuantizerList
	ExpectedDistortion float64
}

// Generator drives codebook generation column by column.
type Generator struct {
	tbl      *distortion.Table
	comp     float64
	seed     uint32
	parallel int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSeed sets the seed for the selection PRNG owned by the generated
// quantizer list.
func WithSeed(seed uint32) GeneratorOption {
	return func(g *Generator) { g.seed = seed }
}

// WithParallelism bounds the number of per-context design goroutines
// per column. Values < 1 select GOMAXPROCS. The stored result is
// identical to a sequential run regardless of the setting.
func WithParallelism(n int) GeneratorOption {
	return func(g *Generator) { g.parallel = n }
}

// NewGenerator returns a generator for the given distortion table and
// entropy-budget multiplier comp.
func NewGenerator(tbl *distortion.Table, comp float64, opts ...GeneratorOption) *Generator {
	g := &Generator{
		tbl:  tbl,
		comp: comp,
		seed: well.DefaultSeed,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.parallel < 1 {
		g.parallel = runtime.GOMAXPROCS(0)
	}
	return g
}

// designedPair is one context's design output, produced by the
// fan-out and written into the store in index order.
type designedPair struct {
	lo, hi *quantizer.Quantizer
	ratio  float64
}

// designContext allocates states for one source PMF and designs the
// low/high quantizer pair.
func (g *Generator) designContext(src *pmf.PMF) (designedPair, error) {
	low, high, ratio, err := FindStates(src.Entropy() * g.comp)
	if err != nil {
		return designedPair{}, err
	}
	lo, err := quantizer.Design(src, g.tbl, low, ratio)
	if err != nil {
		return designedPair{}, err
	}
	hi, err := quantizer.Design(src, g.tbl, high, 1-ratio)
	if err != nil {
		return designedPair{}, err
	}
	return designedPair{lo: lo, hi: hi, ratio: ratio}, nil
}

// Generate produces the conditional quantizer list for the statistics
// in pmfs. Columns are processed strictly left to right; within a
// column, per-context design fans out with keyed writes so the stored
// result matches the sequential order bit for bit.
func (g *Generator) Generate(pmfs *CondPMFList) (*GenerateResult, error) {
	columns := pmfs.Columns()
	if columns == 0 {
		return nil, ErrTrainingCorpusEmpty
	}
	a := pmfs.Alphabet()
	list := NewCondQuantizerList(columns, g.seed)

	// Column 0: a single unconditional context.
	p0 := pmfs.Get(0, 0)
	if !p0.Ready() {
		return nil, invariantf(0, 0, pmf.ErrEmptyDistribution, "column 0 statistics not normalized")
	}
	pair, err := g.designContext(p0)
	if err != nil {
		return nil, invariantf(0, 0, err, "column 0 design failed")
	}
	list.InitColumn(0, alphabet.Trivial(1))
	list.StoreIndexed(0, 0, pair.lo, pair.hi, pair.ratio)

	totalDist := pair.ratio*pair.lo.ExpectedDistortion() + (1-pair.ratio)*pair.hi.ExpectedDistortion()

	// Context set of the previous column (input alphabet of column c-1).
	prevUnion := alphabet.Trivial(1)
	// P(Q_{c-2} | X_{c-2} = x) per source symbol, over prevUnion.
	var prevQPMF *pmf.List

	for column := 1; column < columns; column++ {
		union := outputUnion(list, column-1, prevUnion)
		list.InitColumn(column, union)

		// P(Q_{c-1} | X_{c-1} = x) for every source symbol x.
		qpmfList := pmf.NewList(a.Size(), union)
		if column == 1 {
			seedQPMF(qpmfList, pair.lo, pair.hi, pair.ratio, union)
		} else if err := propagateQPMF(qpmfList, pmfs, column, prevQPMF, union, prevUnion, list); err != nil {
			return nil, err
		}

		// P(X_c | Q_{c-1} = q) for every q in the union.
		xpmfList, err := deriveXPMF(qpmfList, pmfs, column, union)
		if err != nil {
			return nil, err
		}

		pairs := make([]designedPair, union.Size())
		skip := make([]bool, union.Size())

		var eg errgroup.Group
		eg.SetLimit(g.parallel)
		for j := 0; j < union.Size(); j++ {
			j := j
			eg.Go(func() error {
				src := xpmfList.Get(j)
				if !src.Ready() {
					// Context only reachable through zero-probability
					// paths; nothing to design for it.
					skip[j] = true
					return nil
				}
				p, err := g.designContext(src)
				if err != nil {
					return invariantf(column, int(union.At(j)), err, "context design failed")
				}
				pairs[j] = p
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		// Keyed writes in index order keep the store deterministic.
		for j := range pairs {
			if skip[j] {
				continue
			}
			list.StoreIndexed(column, j, pairs[j].lo, pairs[j].hi, pairs[j].ratio)
		}

		totalDist += columnDistortion(pmfs, column, qpmfList, pairs, skip, union)

		prevUnion = union
		prevQPMF = qpmfList
	}

	return &GenerateResult{
		Quantizers:         list,
		ExpectedDistortion: totalDist / float64(columns),
	}, nil
}

// outputUnion forms the next column's input alphabet: the union of the
// output alphabets of every quantizer stored at the previous column.
func outputUnion(list *CondQuantizerList, column int, prevUnion *alphabet.Alphabet) *alphabet.Alphabet {
	var union *alphabet.Alphabet
	for slot := 0; slot < 2*prevUnion.Size(); slot++ {
		q := list.GetIndexed(column, slot)
		if q == nil {
			continue
		}
		if union == nil {
			union = q.OutputAlphabet().Duplicate()
		} else {
			union = alphabet.Union(union, q.OutputAlphabet())
		}
	}
	return union
}

// seedQPMF fills P(Q_0 | X_0 = x) directly from the column-0 pair:
// the low mapping receives ratio, the high mapping 1-ratio.
func seedQPMF(out *pmf.List, lo, hi *quantizer.Quantizer, ratio float64, union *alphabet.Alphabet) {
	a := lo.Alphabet()
	for x := 0; x < a.Size(); x++ {
		row := out.Get(x)
		for idx := 0; idx < union.Size(); idx++ {
			q := union.At(idx)
			var p float64
			if lo.MapAt(x) == q {
				p += ratio
			}
			if hi.MapAt(x) == q {
				p += 1 - ratio
			}
			if p > 0 {
				row.AddAt(idx, p)
			}
		}
		if row.Mass() > 0 {
			_ = row.Renormalize()
		}
	}
}

// propagateQPMF computes P(Q_{c-1} = q | X_{c-1} = k) for c = column:
//
//	sum_j w_j(k) * (r_j*1{lo_j(k)=q} + (1-r_j)*1{hi_j(k)=q})
//	w_j(k) = sum_x P(Q_{c-2}=j | X_{c-2}=x) * P(X_{c-1}=k | X_{c-2}=x) * P(X_{c-2}=x)
//
// then renormalizes each row. Rows of symbols unreachable at column c-1
// stay empty; their mass downstream is zero anyway.
func propagateQPMF(out *pmf.List, pmfs *CondPMFList, column int, prevQPMF *pmf.List, union, prevUnion *alphabet.Alphabet, list *CondQuantizerList) error {
	a := pmfs.Alphabet()
	margPrev := pmfs.Marginal(column - 2)

	// w[j][k], shared across all q for this column.
	weights := make([][]float64, prevUnion.Size())
	for j := range weights {
		weights[j] = make([]float64, a.Size())
		for x := 0; x < a.Size(); x++ {
			px := margPrev.ProbabilityAt(x)
			if px == 0 {
				continue
			}
			pj := prevQPMF.Get(x).ProbabilityAt(j)
			if pj == 0 {
				continue
			}
			cond := pmfs.Get(column-1, a.At(x))
			if !cond.Ready() {
				continue
			}
			for k := 0; k < a.Size(); k++ {
				weights[j][k] += pj * cond.ProbabilityAt(k) * px
			}
		}
	}

	for k := 0; k < a.Size(); k++ {
		row := out.Get(k)
		for j := 0; j < prevUnion.Size(); j++ {
			w := weights[j][k]
			if w == 0 {
				continue
			}
			lo := list.GetIndexed(column-1, 2*j)
			hi := list.GetIndexed(column-1, 2*j+1)
			if lo == nil || hi == nil {
				continue
			}
			ratio := list.RatioIndexed(column-1, j)
			if idx := union.IndexOf(lo.MapAt(k)); idx != alphabet.NotFound {
				row.AddAt(idx, w*ratio)
			} else {
				return invariantf(column, int(lo.MapAt(k)), nil, "quantizer output missing from union")
			}
			if idx := union.IndexOf(hi.MapAt(k)); idx != alphabet.NotFound {
				row.AddAt(idx, w*(1-ratio))
			} else {
				return invariantf(column, int(hi.MapAt(k)), nil, "quantizer output missing from union")
			}
		}
		if row.Mass() > 0 {
			if err := row.Renormalize(); err != nil {
				return invariantf(column, k, err, "qpmf renormalization")
			}
		}
	}
	return nil
}

// deriveXPMF computes P(X_c = k | Q_{c-1} = q) for every q in union:
//
//	sum_x P(Q_{c-1}=q | X_{c-1}=x) * P(X_c=k | X_{c-1}=x) * P(X_{c-1}=x)
//
// renormalized per q. Rows with no mass stay unready and are skipped by
// the caller.
func deriveXPMF(qpmfList *pmf.List, pmfs *CondPMFList, column int, union *alphabet.Alphabet) (*pmf.List, error) {
	a := pmfs.Alphabet()
	marg := pmfs.Marginal(column - 1)
	out := pmf.NewList(union.Size(), a)

	for idx := 0; idx < union.Size(); idx++ {
		row := out.Get(idx)
		for x := 0; x < a.Size(); x++ {
			px := marg.ProbabilityAt(x)
			if px == 0 {
				continue
			}
			pq := qpmfList.Get(x).ProbabilityAt(idx)
			if pq == 0 {
				continue
			}
			cond := pmfs.Get(column, a.At(x))
			if !cond.Ready() {
				return nil, invariantf(column, x, pmf.ErrEmptyDistribution, "conditional statistics missing for seen context")
			}
			for k := 0; k < a.Size(); k++ {
				row.AddAt(k, pq*cond.ProbabilityAt(k)*px)
			}
		}
		if row.Mass() > 0 {
			if err := row.Renormalize(); err != nil {
				return nil, invariantf(column, int(union.At(idx)), err, "xpmf renormalization")
			}
		}
	}
	return out, nil
}

// columnDistortion weighs each context's mixed expected distortion by
// the probability of that context occurring, P(Q_{c-1} = q_j).
func columnDistortion(pmfs *CondPMFList, column int, qpmfList *pmf.List, pairs []designedPair, skip []bool, union *alphabet.Alphabet) float64 {
	a := pmfs.Alphabet()
	marg := pmfs.Marginal(column - 1)

	var total float64
	for j := range pairs {
		if skip[j] {
			continue
		}
		var pq float64
		for x := 0; x < a.Size(); x++ {
			pq += marg.ProbabilityAt(x) * qpmfList.Get(x).ProbabilityAt(j)
		}
		mixed := pairs[j].ratio*pairs[j].lo.ExpectedDistortion() + (1-pairs[j].ratio)*pairs[j].hi.ExpectedDistortion()
		total += pq * mixed
	}
	return total
}
