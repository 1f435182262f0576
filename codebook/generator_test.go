package codebook

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/distortion"
)

func generateScenario(t *testing.T, comp float64) *GenerateResult {
	t.Helper()
	stats := scenarioStats(t)
	tbl, err := distortion.NewTable(4, distortion.MSE)
	require.NoError(t, err)
	res, err := NewGenerator(tbl, comp).Generate(stats)
	require.NoError(t, err)
	return res
}

func TestGenerate_ZeroComp_CollapsesToSinglePoint(t *testing.T) {
	res := generateScenario(t, 0)
	list := res.Quantizers

	for c := 0; c < list.Columns(); c++ {
		require.Equal(t, 1, list.ContextCount(c), "column %d", c)
		prev := list.InputAlphabet(c).At(0)
		lo, hi, ratio, err := list.Get(c, prev)
		require.NoError(t, err)
		assert.Equal(t, 1.0, ratio)
		assert.Equal(t, 1, lo.States())
		assert.Equal(t, 1, hi.States())
		assert.True(t, lo.MappingEqual(hi))
	}

	// Column 0 collapses onto symbol 1, the distortion-optimal point of
	// the training PMF [.5, .25, 0, .25] under MSE.
	lo, _, _, err := list.Get(0, 0)
	require.NoError(t, err)
	for s := 0; s < 4; s++ {
		assert.Equal(t, alphabet.Symbol(1), lo.Map(alphabet.Symbol(s)))
	}
}

func TestGenerate_UnitComp_HighQuantizerLossless(t *testing.T) {
	res := generateScenario(t, 1)
	list := res.Quantizers

	// Column 0 entropy is 1.5 bits: allocation (2, 3) with the high
	// quantizer covering the full support {0,1,3} losslessly.
	lo, hi, ratio, err := list.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, lo.States())
	assert.Equal(t, 3, hi.States())
	want := (1.5 - math.Log2(3)) / (1 - math.Log2(3))
	assert.InDelta(t, want, ratio, 1e-12)

	for _, s := range []alphabet.Symbol{0, 1, 3} {
		assert.Equal(t, s, hi.Map(s))
	}
	assert.Zero(t, hi.ExpectedDistortion())
	assert.InDelta(t, 0.25, lo.ExpectedDistortion(), 1e-12)
}

func TestGenerate_HalfComp_MixedAllocation(t *testing.T) {
	res := generateScenario(t, 0.5)
	list := res.Quantizers

	// H = 1.5 * 0.5 = 0.75: allocation (1, 2), ratio 0.25.
	lo, hi, ratio, err := list.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, lo.States())
	assert.Equal(t, 2, hi.States())
	assert.InDelta(t, 0.25, ratio, 1e-12)
}

func TestGenerate_InputAlphabetIsOutputUnion(t *testing.T) {
	for _, comp := range []float64{0, 0.25, 0.5, 0.75, 1} {
		res := generateScenario(t, comp)
		list := res.Quantizers

		for c := 1; c < list.Columns(); c++ {
			var union *alphabet.Alphabet
			for slot := 0; slot < 2*list.ContextCount(c-1); slot++ {
				q := list.GetIndexed(c-1, slot)
				if q == nil {
					continue
				}
				if union == nil {
					union = q.OutputAlphabet().Duplicate()
				} else {
					union = alphabet.Union(union, q.OutputAlphabet())
				}
			}
			require.NotNil(t, union)
			assert.True(t, list.InputAlphabet(c).Equal(union),
				"comp=%v column %d: input %v != union %v", comp, c,
				list.InputAlphabet(c).Symbols(), union.Symbols())
		}
	}
}

func TestGenerate_UnitComp_Column1Union(t *testing.T) {
	res := generateScenario(t, 1)
	list := res.Quantizers

	// Column-0 quantizers output {0,3} (low) and {0,1,3} (high), so
	// column 1 must answer for contexts {0,1,3}.
	assert.Equal(t, []alphabet.Symbol{0, 1, 3}, list.InputAlphabet(1).Symbols())
}

func TestGenerate_RatiosInRange(t *testing.T) {
	for _, comp := range []float64{0, 0.3, 0.62, 1, 1.7} {
		res := generateScenario(t, comp)
		list := res.Quantizers
		for c := 0; c < list.Columns(); c++ {
			for idx := 0; idx < list.ContextCount(c); idx++ {
				r := list.RatioIndexed(c, idx)
				assert.GreaterOrEqual(t, r, 0.0)
				assert.LessOrEqual(t, r, 1.0)
			}
		}
	}
}

func TestGenerate_DistortionMonotoneInComp(t *testing.T) {
	comps := []float64{0, 0.25, 0.5, 0.75, 1}
	var prev float64 = math.Inf(1)
	for _, comp := range comps {
		res := generateScenario(t, comp)
		assert.LessOrEqual(t, res.ExpectedDistortion, prev+1e-9, "comp=%v", comp)
		prev = res.ExpectedDistortion
	}
}

func TestGenerate_ParallelMatchesSequential(t *testing.T) {
	stats := scenarioStats(t)
	tbl, err := distortion.NewTable(4, distortion.MSE)
	require.NoError(t, err)

	seq, err := NewGenerator(tbl, 0.5, WithParallelism(1)).Generate(stats)
	require.NoError(t, err)
	par, err := NewGenerator(tbl, 0.5, WithParallelism(8)).Generate(stats)
	require.NoError(t, err)

	require.Equal(t, seq.Quantizers.Columns(), par.Quantizers.Columns())
	assert.Equal(t, seq.ExpectedDistortion, par.ExpectedDistortion)
	for c := 0; c < seq.Quantizers.Columns(); c++ {
		require.True(t, seq.Quantizers.InputAlphabet(c).Equal(par.Quantizers.InputAlphabet(c)))
		for slot := 0; slot < 2*seq.Quantizers.ContextCount(c); slot++ {
			a, b := seq.Quantizers.GetIndexed(c, slot), par.Quantizers.GetIndexed(c, slot)
			if a == nil {
				assert.Nil(t, b)
				continue
			}
			require.NotNil(t, b)
			assert.True(t, a.MappingEqual(b))
		}
		for idx := 0; idx < seq.Quantizers.ContextCount(c); idx++ {
			assert.Equal(t, seq.Quantizers.RatioIndexed(c, idx), par.Quantizers.RatioIndexed(c, idx))
		}
	}
}

func TestChoose_MissingContext(t *testing.T) {
	res := generateScenario(t, 0)
	list := res.Quantizers

	// With comp = 0 every column has a single context; any other symbol
	// must miss.
	present := list.InputAlphabet(2).At(0)
	var absent alphabet.Symbol
	for s := 0; s < 4; s++ {
		if alphabet.Symbol(s) != present {
			absent = alphabet.Symbol(s)
			break
		}
	}
	_, err := list.Choose(2, absent)
	assert.ErrorIs(t, err, ErrAlphabetLookupMiss)
}

func TestChoose_Deterministic(t *testing.T) {
	a := generateScenario(t, 0.5).Quantizers
	b := generateScenario(t, 0.5).Quantizers
	a.SeedRNG(777)
	b.SeedRNG(777)

	prevA, prevB := alphabet.Symbol(0), alphabet.Symbol(0)
	for i := 0; i < 200; i++ {
		for c := 0; c < a.Columns(); c++ {
			if c == 0 {
				prevA, prevB = 0, 0
			}
			qa, err := a.Choose(c, prevA)
			require.NoError(t, err)
			qb, err := b.Choose(c, prevB)
			require.NoError(t, err)
			require.True(t, qa.MappingEqual(qb), "iteration %d column %d", i, c)
			prevA = qa.Map(1)
			prevB = qb.Map(1)
		}
	}
}

func TestGenerate_SingleColumn(t *testing.T) {
	a := alphabet.Trivial(4)
	stats := NewCondPMFList(a, 1)
	require.NoError(t, stats.CalculateStatistics(&memCorpus{lines: [][]alphabet.Symbol{{0}, {1}, {3}}}))
	tbl, err := distortion.NewTable(4, distortion.MSE)
	require.NoError(t, err)

	res, err := NewGenerator(tbl, 1).Generate(stats)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Quantizers.Columns())
}
