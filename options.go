package qvz

import (
	"io"

	"github.com/Krlucete/qvz/cluster"
	"github.com/Krlucete/qvz/distortion"
	"github.com/Krlucete/qvz/internal/well"
)

// DefaultAlphabetSize covers Sanger-encoded Phred scores 0..40.
const DefaultAlphabetSize = 41

// DefaultTrainingLines caps how many lines feed the statistics pass.
const DefaultTrainingLines = 1_000_000

type options struct {
	alphabetSize     int
	distortion       distortion.Measure
	comp             float64
	clusters         int
	clusterThreshold float64
	trainingLines    int
	seed             uint32
	lossyOutput      io.Writer
	logger           *Logger
}

func defaultOptions() *options {
	return &options{
		alphabetSize:     DefaultAlphabetSize,
		distortion:       distortion.MSE,
		comp:             0.5,
		clusters:         1,
		clusterThreshold: cluster.DefaultThreshold,
		trainingLines:    DefaultTrainingLines,
		seed:             well.DefaultSeed,
		logger:           NoopLogger(),
	}
}

// Option configures the encode/decode pipeline.
type Option func(*options)

// WithAlphabetSize sets the symbol alphabet size, 1..64.
func WithAlphabetSize(n int) Option {
	return func(o *options) { o.alphabetSize = n }
}

// WithDistortion selects the distortion measure quantizers optimize.
func WithDistortion(m distortion.Measure) Option {
	return func(o *options) { o.distortion = m }
}

// WithComp sets the entropy-budget multiplier: bits of output entropy
// per bit of source entropy per symbol. 0 collapses every column to a
// single point; 1 targets the source entropy.
func WithComp(comp float64) Option {
	return func(o *options) { o.comp = comp }
}

// WithClusters partitions training lines into n groups, each with its
// own codebook.
func WithClusters(n int) Option {
	return func(o *options) { o.clusters = n }
}

// WithClusterThreshold sets the center-movement bound (L2) under which
// clustering is declared stable.
func WithClusterThreshold(threshold float64) Option {
	return func(o *options) { o.clusterThreshold = threshold }
}

// WithTrainingLines caps the number of lines used for statistics; 0
// trains on everything.
func WithTrainingLines(n int) Option {
	return func(o *options) { o.trainingLines = n }
}

// WithSeed sets the seed of the quantizer-selection PRNG. Encoder and
// decoder agree through the container header, so this only needs
// setting for reproducibility experiments.
func WithSeed(seed uint32) Option {
	return func(o *options) { o.seed = seed }
}

// WithLossyOutput also writes the lossy reconstruction produced during
// encoding to w, as Phred+33 text lines.
func WithLossyOutput(w io.Writer) Option {
	return func(o *options) { o.lossyOutput = w }
}

// WithLogger sets the pipeline logger. Nil selects the no-op logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}
