package quantizer

import (
	"fmt"
	"math"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/distortion"
	"github.com/Krlucete/qvz/pmf"
)

// Design builds an optimal fixed-rate scalar quantizer for the source
// PMF p under the distortion table, with at most states distinct
// outputs. The recorded ratio is attached to the result untouched.
//
// The partition search runs a dynamic program over contiguous cells of
// the source support, which is optimal for convex distortion measures.
func Design(p *pmf.PMF, tbl *distortion.Table, states int, ratio float64) (*Quantizer, error) {
	if states < 1 {
		return nil, fmt.Errorf("quantizer: target state count %d < 1", states)
	}
	a := p.Alphabet()
	if a.Size() > tbl.Size() {
		return nil, fmt.Errorf("quantizer: alphabet size %d exceeds distortion table size %d", a.Size(), tbl.Size())
	}

	// Support of the source, in alphabet (ascending) order.
	support := make([]int, 0, a.Size())
	for i := 0; i < a.Size(); i++ {
		if p.ProbabilityAt(i) > 0 {
			support = append(support, i)
		}
	}
	if len(support) == 0 {
		return nil, pmf.ErrEmptyDistribution
	}

	var reps []alphabet.Symbol
	mapping := make([]alphabet.Symbol, a.Size())
	var expected float64

	if states >= len(support) {
		// Identity on the support, zero distortion.
		reps = make([]alphabet.Symbol, len(support))
		for i, idx := range support {
			s := a.At(idx)
			reps[i] = s
			mapping[idx] = s
		}
	} else {
		cells, cellReps, total := optimalPartition(p, tbl, a, support, states)
		reps = cellReps
		expected = total
		for c, cell := range cells {
			for _, idx := range cell {
				mapping[idx] = cellReps[c]
			}
		}
	}

	// Inputs outside the support map to the nearest reproduction symbol
	// under the distortion measure, ties to the smallest symbol.
	inSupport := make([]bool, a.Size())
	for _, idx := range support {
		inSupport[idx] = true
	}
	for i := 0; i < a.Size(); i++ {
		if inSupport[i] {
			continue
		}
		s := a.At(i)
		best := reps[0]
		bestD := tbl.At(int(s), int(best))
		for _, r := range reps[1:] {
			if d := tbl.At(int(s), int(r)); d < bestD {
				bestD = d
				best = r
			}
		}
		mapping[i] = best
	}

	q, err := FromMapping(a, mapping, ratio)
	if err != nil {
		return nil, err
	}
	q.dist = expected
	return q, nil
}

// optimalPartition splits the support indices into exactly m contiguous
// cells minimizing total weighted distortion. Returns the cells, the
// reproduction symbol per cell, and the total expected distortion.
func optimalPartition(p *pmf.PMF, tbl *distortion.Table, a *alphabet.Alphabet, support []int, m int) ([][]int, []alphabet.Symbol, float64) {
	n := len(support)

	// cellCost[i][j]: cheapest cost of covering support[i..j] with one
	// reproduction point; cellRep[i][j]: the symbol achieving it, ties
	// resolved to the smallest symbol by scan order.
	cellCost := make([][]float64, n)
	cellRep := make([][]alphabet.Symbol, n)
	for i := 0; i < n; i++ {
		cellCost[i] = make([]float64, n)
		cellRep[i] = make([]alphabet.Symbol, n)
		for j := i; j < n; j++ {
			best := math.Inf(1)
			var bestRep alphabet.Symbol
			for ri := 0; ri < a.Size(); ri++ {
				r := a.At(ri)
				var cost float64
				for k := i; k <= j; k++ {
					idx := support[k]
					cost += p.ProbabilityAt(idx) * tbl.At(int(a.At(idx)), int(r))
				}
				if cost < best {
					best = cost
					bestRep = r
				}
			}
			cellCost[i][j] = best
			cellRep[i][j] = bestRep
		}
	}

	// dp[c][j]: best cost of covering support[0..j] with c+1 cells.
	dp := make([][]float64, m)
	cut := make([][]int, m)
	for c := range dp {
		dp[c] = make([]float64, n)
		cut[c] = make([]int, n)
	}
	for j := 0; j < n; j++ {
		dp[0][j] = cellCost[0][j]
		cut[0][j] = 0
	}
	for c := 1; c < m; c++ {
		for j := c; j < n; j++ {
			best := math.Inf(1)
			bestI := c
			for i := c; i <= j; i++ {
				cost := dp[c-1][i-1] + cellCost[i][j]
				if cost < best {
					best = cost
					bestI = i
				}
			}
			dp[c][j] = best
			cut[c][j] = bestI
		}
	}

	// Recover the cell boundaries from the cut table.
	cells := make([][]int, m)
	reps := make([]alphabet.Symbol, m)
	j := n - 1
	for c := m - 1; c >= 0; c-- {
		i := cut[c][j]
		cell := make([]int, 0, j-i+1)
		for k := i; k <= j; k++ {
			cell = append(cell, support[k])
		}
		cells[c] = cell
		reps[c] = cellRep[i][j]
		j = i - 1
	}
	return cells, reps, dp[m-1][n-1]
}
