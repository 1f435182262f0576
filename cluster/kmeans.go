// Package cluster partitions training lines into groups with similar
// quality profiles so each group gets its own codebook.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/Krlucete/qvz/lines"
)

// Options configure the clustering pass.
type Options struct {
	// Clusters is the number of groups, >= 1.
	Clusters int
	// Threshold is the L2 center-movement bound under which a solution
	// counts as stable.
	Threshold float64
	// MaxIterations bounds Lloyd iteration; 0 selects a default.
	MaxIterations int
	// Seed makes center initialization reproducible.
	Seed int64
}

// DefaultThreshold matches the reference tool's movement bound.
const DefaultThreshold = 4.0

const defaultMaxIterations = 100

// Result maps every line to a cluster and exposes per-cluster corpora.
type Result struct {
	Assignments []int
	Groups      []*lines.Corpus
}

// Run clusters the corpus with Lloyd's algorithm over raw symbol values
// and L2 distance. A cluster left empty after reassignment is reseeded
// from a random line.
func Run(c *lines.Corpus, opts Options) (*Result, error) {
	if opts.Clusters < 1 {
		return nil, fmt.Errorf("cluster: cluster count %d < 1", opts.Clusters)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}

	n := c.LineCount()
	k := opts.Clusters
	if k > n {
		k = n
	}
	dim := c.Columns()
	rng := rand.New(rand.NewSource(opts.Seed))

	centers := make([][]float64, k)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		centers[i] = lineToFloats(c.Line(perm[i]), dim)
	}

	assign := make([]int, n)
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		for i := 0; i < n; i++ {
			assign[i] = nearestCenter(c.Line(i), centers)
		}

		for i := range sums {
			for d := range sums[i] {
				sums[i][d] = 0
			}
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			line := c.Line(i)
			for d := 0; d < dim; d++ {
				sums[assign[i]][d] += float64(line[d])
			}
			counts[assign[i]]++
		}

		var moved float64
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				centers[j] = lineToFloats(c.Line(rng.Intn(n)), dim)
				moved = math.Inf(1)
				continue
			}
			var dist2 float64
			inv := 1 / float64(counts[j])
			for d := 0; d < dim; d++ {
				next := sums[j][d] * inv
				delta := next - centers[j][d]
				dist2 += delta * delta
				centers[j][d] = next
			}
			if m := math.Sqrt(dist2); m > moved {
				moved = m
			}
		}
		if moved < opts.Threshold {
			break
		}
	}

	// Final assignment against the settled centers.
	for i := 0; i < n; i++ {
		assign[i] = nearestCenter(c.Line(i), centers)
	}

	groups := make([]*lines.Corpus, 0, k)
	remap := make([]int, k)
	for j := 0; j < k; j++ {
		var idx []int
		for i := 0; i < n; i++ {
			if assign[i] == j {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			remap[j] = -1
			continue
		}
		sub, err := c.Subset(idx)
		if err != nil {
			return nil, err
		}
		remap[j] = len(groups)
		groups = append(groups, sub)
	}
	for i := range assign {
		assign[i] = remap[assign[i]]
	}

	return &Result{Assignments: assign, Groups: groups}, nil
}

func lineToFloats(line []uint8, dim int) []float64 {
	out := make([]float64, dim)
	for d := 0; d < dim; d++ {
		out[d] = float64(line[d])
	}
	return out
}

func nearestCenter(line []uint8, centers [][]float64) int {
	best := 0
	bestD := math.Inf(1)
	for j, center := range centers {
		var d2 float64
		for d := range center {
			delta := float64(line[d]) - center[d]
			d2 += delta * delta
		}
		if d2 < bestD {
			bestD = d2
			best = j
		}
	}
	return best
}
