package quantizer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/distortion"
	"github.com/Krlucete/qvz/pmf"
)

func uniformPMF(t *testing.T, a *alphabet.Alphabet) *pmf.PMF {
	t.Helper()
	p := pmf.New(a)
	for _, s := range a.Symbols() {
		require.NoError(t, p.Increment(s))
	}
	require.NoError(t, p.Renormalize())
	return p
}

func mseTable(t *testing.T, size int) *distortion.Table {
	t.Helper()
	tbl, err := distortion.NewTable(size, distortion.MSE)
	require.NoError(t, err)
	return tbl
}

func TestDesign_IdentityWhenEnoughStates(t *testing.T) {
	a := alphabet.Trivial(4)
	p := uniformPMF(t, a)
	tbl := mseTable(t, 4)

	q, err := Design(p, tbl, 4, 0.5)
	require.NoError(t, err)

	for _, s := range a.Symbols() {
		assert.Equal(t, s, q.Map(s))
	}
	assert.Zero(t, q.ExpectedDistortion())
	assert.Equal(t, 4, q.States())
	assert.InDelta(t, 0.5, q.Ratio(), 1e-15)
}

func TestDesign_SinglePoint(t *testing.T) {
	a := alphabet.Trivial(4)
	p := uniformPMF(t, a)
	tbl := mseTable(t, 4)

	q, err := Design(p, tbl, 1, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, q.States())

	rep := q.Map(0)
	for _, s := range a.Symbols() {
		assert.Equal(t, rep, q.Map(s))
	}
	// Uniform over {0..3} under MSE: reproduction 1 or 2 both cost 1.5;
	// the tie goes to the smaller symbol.
	assert.Equal(t, alphabet.Symbol(1), rep)
	assert.InDelta(t, 1.5, q.ExpectedDistortion(), 1e-12)
}

func TestDesign_TwoStatesUniform(t *testing.T) {
	a := alphabet.Trivial(4)
	p := uniformPMF(t, a)
	tbl := mseTable(t, 4)

	q, err := Design(p, tbl, 2, 0.0)
	require.NoError(t, err)
	assert.Equal(t, 2, q.States())
	// Every two-cell split costs 0.5 in total (e.g. {0,1}|{2,3} at 0.25
	// each side); the DP keeps the first cut it reaches, {0}|{1,2,3} with
	// reproduction points 0 and 2.
	assert.InDelta(t, 0.5, q.ExpectedDistortion(), 1e-12)
	assert.Equal(t, q.Map(1), q.Map(2))
	assert.Equal(t, q.Map(2), q.Map(3))
	assert.NotEqual(t, q.Map(0), q.Map(1))
}

func TestDesign_OutOfSupportMapsToNearest(t *testing.T) {
	a := alphabet.Trivial(6)
	p := pmf.New(a)
	require.NoError(t, p.Increment(0))
	require.NoError(t, p.Increment(5))
	require.NoError(t, p.Renormalize())
	tbl := mseTable(t, 6)

	q, err := Design(p, tbl, 2, 1.0)
	require.NoError(t, err)
	assert.Equal(t, alphabet.Symbol(0), q.Map(0))
	assert.Equal(t, alphabet.Symbol(5), q.Map(5))
	assert.Zero(t, q.ExpectedDistortion())

	// Symbols without mass land on the closer reproduction point; the
	// midpoint tie at 2.5 does not arise, 2 is closer to 0.
	assert.Equal(t, alphabet.Symbol(0), q.Map(1))
	assert.Equal(t, alphabet.Symbol(0), q.Map(2))
	assert.Equal(t, alphabet.Symbol(5), q.Map(3))
	assert.Equal(t, alphabet.Symbol(5), q.Map(4))
}

func TestDesign_EmptyPMF(t *testing.T) {
	a := alphabet.Trivial(4)
	p := pmf.New(a)
	tbl := mseTable(t, 4)

	_, err := Design(p, tbl, 2, 1.0)
	assert.ErrorIs(t, err, pmf.ErrEmptyDistribution)
}

func TestDesign_StateBudgetRespected(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		size := 2 + rng.Intn(7)
		a := alphabet.Trivial(size)
		p := pmf.New(a)
		for i := 0; i < size; i++ {
			p.AddAt(i, rng.Float64())
		}
		require.NoError(t, p.Renormalize())
		tbl := mseTable(t, size)

		m := 1 + rng.Intn(size)
		q, err := Design(p, tbl, m, 0.5)
		require.NoError(t, err)
		assert.LessOrEqual(t, q.States(), m)
	}
}

// expectedDistortionOf recomputes E[D(X, q(X))] directly.
func expectedDistortionOf(q *Quantizer, p *pmf.PMF, tbl *distortion.Table) float64 {
	var total float64
	a := p.Alphabet()
	for i := 0; i < a.Size(); i++ {
		s := a.At(i)
		total += p.ProbabilityAt(i) * tbl.At(int(s), int(q.Map(s)))
	}
	return total
}

// kmeansBaseline runs Lloyd iteration with nearest-neighbor reassignment
// over the same discrete problem, as a comparison point for the DP.
func kmeansBaseline(p *pmf.PMF, tbl *distortion.Table, m int, rng *rand.Rand) float64 {
	a := p.Alphabet()
	n := a.Size()

	reps := make([]int, m)
	perm := rng.Perm(n)
	for i := range reps {
		reps[i] = perm[i%n]
	}

	assign := make([]int, n)
	for iter := 0; iter < 50; iter++ {
		for i := 0; i < n; i++ {
			best, bestD := 0, math.Inf(1)
			for c, r := range reps {
				if d := tbl.At(i, r); d < bestD {
					bestD = d
					best = c
				}
			}
			assign[i] = best
		}
		for c := range reps {
			best, bestCost := reps[c], math.Inf(1)
			for r := 0; r < n; r++ {
				var cost float64
				for i := 0; i < n; i++ {
					if assign[i] == c {
						cost += p.ProbabilityAt(i) * tbl.At(i, r)
					}
				}
				if cost < bestCost {
					bestCost = cost
					best = r
				}
			}
			reps[c] = best
		}
	}

	var total float64
	for i := 0; i < n; i++ {
		best := math.Inf(1)
		for _, r := range reps {
			if d := tbl.At(i, r); d < best {
				best = d
			}
		}
		total += p.ProbabilityAt(i) * best
	}
	return total
}

func TestDesign_BeatsKMeansBaseline(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 100; trial++ {
		size := 3 + rng.Intn(6) // A <= 8
		a := alphabet.Trivial(size)
		p := pmf.New(a)
		for i := 0; i < size; i++ {
			p.AddAt(i, rng.Float64())
		}
		require.NoError(t, p.Renormalize())
		tbl := mseTable(t, size)

		m := 1 + rng.Intn(size)
		q, err := Design(p, tbl, m, 0.5)
		require.NoError(t, err)

		got := expectedDistortionOf(q, p, tbl)
		assert.InDelta(t, q.ExpectedDistortion(), got, 1e-9, "reported distortion must be accurate")

		baseline := kmeansBaseline(p, tbl, m, rng)
		assert.LessOrEqual(t, got, baseline+1e-9)
	}
}

func TestFromMapping_OutputAlphabet(t *testing.T) {
	a := alphabet.Trivial(4)
	q, err := FromMapping(a, []alphabet.Symbol{0, 0, 2, 2}, 0.25)
	require.NoError(t, err)
	assert.Equal(t, []alphabet.Symbol{0, 2}, q.OutputAlphabet().Symbols())
	assert.Equal(t, 0, q.StateIndex(0))
	assert.Equal(t, 1, q.StateIndex(2))
	assert.Equal(t, alphabet.NotFound, q.StateIndex(1))
}

func TestFromMapping_BadLength(t *testing.T) {
	_, err := FromMapping(alphabet.Trivial(4), []alphabet.Symbol{0, 1}, 0)
	assert.Error(t, err)
}
