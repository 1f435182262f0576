// Package qvz implements lossy compression of fixed-width quality-value
// streams. Training lines are clustered, per-cluster codebooks of
// conditional scalar quantizers are generated against an entropy
// budget, and quantizer states are arithmetic-coded into a container
// the paired decoder reconstructs lossy lines from.
package qvz

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/blobstore"
	"github.com/Krlucete/qvz/cluster"
	"github.com/Krlucete/qvz/codebook"
	"github.com/Krlucete/qvz/coder"
	"github.com/Krlucete/qvz/distortion"
	"github.com/Krlucete/qvz/lines"
)

var containerMagic = [4]byte{'Q', 'V', 'Z', '1'}

const containerVersion = 1

// EncodeStats summarizes an encode run.
type EncodeStats struct {
	RunID              string
	Lines              int
	Columns            int
	Clusters           int
	BytesWritten       int64
	ExpectedDistortion float64
	ActualDistortion   float64
}

// DecodeStats summarizes a decode run.
type DecodeStats struct {
	Lines   int
	Columns int
}

// Rate returns the coded bits per source symbol.
func (s *EncodeStats) Rate() float64 {
	if s.Lines == 0 || s.Columns == 0 {
		return 0
	}
	return float64(s.BytesWritten*8) / (float64(s.Lines) * float64(s.Columns))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Encode reads Phred+33 quality lines from r and writes the compressed
// container to w.
func Encode(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) (*EncodeStats, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := validateOptions(o); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.logger.With("run_id", runID)
	start := time.Now()

	corpus, err := lines.Load(r, lines.LoadOptions{AlphabetSize: o.alphabetSize})
	if err != nil {
		return nil, err
	}
	log.Info("corpus loaded", "lines", corpus.LineCount(), "columns", corpus.Columns())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clusterRes, err := cluster.Run(corpus, cluster.Options{
		Clusters:  o.clusters,
		Threshold: o.clusterThreshold,
		Seed:      int64(o.seed),
	})
	if err != nil {
		return nil, err
	}
	log.Info("clustering done", "groups", len(clusterRes.Groups), "elapsed", time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tbl, err := distortion.NewTable(o.alphabetSize, o.distortion)
	if err != nil {
		return nil, err
	}
	a := alphabet.Trivial(o.alphabetSize)

	books := make([]*codebook.CondQuantizerList, len(clusterRes.Groups))
	var expected, expectedWeight float64
	for g, group := range clusterRes.Groups {
		train := group
		if o.trainingLines > 0 && group.LineCount() > o.trainingLines {
			idx := make([]int, o.trainingLines)
			for i := range idx {
				idx[i] = i
			}
			if train, err = group.Subset(idx); err != nil {
				return nil, err
			}
		}

		stats := codebook.NewCondPMFList(a, group.Columns())
		if err := stats.CalculateStatistics(train); err != nil {
			return nil, err
		}
		res, err := codebook.NewGenerator(tbl, o.comp, codebook.WithSeed(o.seed)).Generate(stats)
		if err != nil {
			return nil, err
		}
		books[g] = res.Quantizers
		expected += res.ExpectedDistortion * float64(group.LineCount())
		expectedWeight += float64(group.LineCount())

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	log.Info("codebooks generated", "elapsed", time.Since(start))

	// Serialize each codebook and encode against the reread form: the
	// decoder only ever sees the file's centiquantized ratios, so the
	// encoder must draw its quantizer selections against the same
	// values or the two sides fall out of lockstep.
	bookBlobs := make([][]byte, len(books))
	for g, book := range books {
		var buf bytes.Buffer
		if err := codebook.Write(&buf, book); err != nil {
			return nil, err
		}
		bookBlobs[g] = buf.Bytes()
		if books[g], err = codebook.Read(bytes.NewReader(bookBlobs[g]), a); err != nil {
			return nil, err
		}
	}

	streams := make([]*bytes.Buffer, len(clusterRes.Groups))
	perGroup := make([]*lines.Corpus, len(clusterRes.Groups))
	for g, group := range clusterRes.Groups {
		streams[g] = &bytes.Buffer{}
		lossyGroup, err := coder.EncodeLines(streams[g], group, books[g], o.seed)
		if err != nil {
			return nil, err
		}
		perGroup[g] = lossyGroup
	}

	cw := &countingWriter{w: w}
	if err := writeContainer(cw, o, corpus, clusterRes, bookBlobs, streams); err != nil {
		return nil, err
	}

	lossy, err := reassembleLossy(corpus, clusterRes, perGroup)
	if err != nil {
		return nil, err
	}
	var actual float64
	for i := 0; i < corpus.LineCount(); i++ {
		orig, rec := corpus.Line(i), lossy.Line(i)
		for c := range orig {
			actual += tbl.At(int(orig[c]), int(rec[c]))
		}
	}
	actual /= float64(corpus.LineCount() * corpus.Columns())

	if o.lossyOutput != nil {
		if _, err := lossy.WriteTo(o.lossyOutput); err != nil {
			return nil, err
		}
	}

	stats := &EncodeStats{
		RunID:              runID,
		Lines:              corpus.LineCount(),
		Columns:            corpus.Columns(),
		Clusters:           len(clusterRes.Groups),
		BytesWritten:       cw.n,
		ExpectedDistortion: expected / expectedWeight,
		ActualDistortion:   actual,
	}
	log.Info("encode done", "bytes", stats.BytesWritten, "rate", stats.Rate(),
		"distortion", stats.ActualDistortion, "elapsed", time.Since(start))
	return stats, nil
}

func writeContainer(w io.Writer, o *options, corpus *lines.Corpus, clusterRes *cluster.Result, bookBlobs [][]byte, streams []*bytes.Buffer) error {
	if _, err := w.Write(containerMagic[:]); err != nil {
		return err
	}
	header := []any{
		uint8(containerVersion),
		uint8(o.alphabetSize),
		uint8(len(clusterRes.Groups)),
		o.seed,
		uint32(corpus.Columns()),
		uint64(corpus.LineCount()),
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, blob := range bookBlobs {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(blob))); err != nil {
			return err
		}
		if _, err := w.Write(blob); err != nil {
			return err
		}
	}

	if len(clusterRes.Groups) > 1 {
		assign := make([]byte, len(clusterRes.Assignments))
		for i, g := range clusterRes.Assignments {
			assign[i] = byte(g)
		}
		if _, err := w.Write(assign); err != nil {
			return err
		}
	}

	for g, group := range clusterRes.Groups {
		if err := binary.Write(w, binary.LittleEndian, uint64(group.LineCount())); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(streams[g].Len())); err != nil {
			return err
		}
		if _, err := w.Write(streams[g].Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// reassembleLossy reorders per-group lossy reconstructions back into
// the original line order, the same way the decoder will.
func reassembleLossy(corpus *lines.Corpus, clusterRes *cluster.Result, perGroup []*lines.Corpus) (*lines.Corpus, error) {
	next := make([]int, len(perGroup))
	data := make([][]alphabet.Symbol, corpus.LineCount())
	for i, g := range clusterRes.Assignments {
		data[i] = perGroup[g].Line(next[g])
		next[g]++
	}
	return lines.FromLines(data)
}

// EncodeToStore compresses input and persists the container as an
// artifact named name in store.
func EncodeToStore(ctx context.Context, r io.Reader, store blobstore.Store, name string, opts ...Option) (*EncodeStats, error) {
	var buf bytes.Buffer
	stats, err := Encode(ctx, r, &buf, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, name, buf.Bytes()); err != nil {
		return nil, err
	}
	return stats, nil
}

// DecodeFromStore fetches a container artifact from store and writes
// the lossy quality lines to w.
func DecodeFromStore(ctx context.Context, store blobstore.Store, name string, w io.Writer, opts ...Option) (*DecodeStats, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return Decode(ctx, bytes.NewReader(data), w, opts...)
}

// Decode reads a compressed container from r and writes the lossy
// quality lines to w.
func Decode(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) (*DecodeStats, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != containerMagic {
		return nil, fmt.Errorf("qvz: bad container magic %q", magic)
	}
	var (
		version      uint8
		alphabetSize uint8
		clusters     uint8
		seed         uint32
		columns      uint32
		lineCount    uint64
	)
	for _, v := range []any{&version, &alphabetSize, &clusters, &seed, &columns, &lineCount} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if version != containerVersion {
		return nil, fmt.Errorf("qvz: unsupported container version %d", version)
	}
	if clusters == 0 || columns == 0 || lineCount == 0 {
		return nil, fmt.Errorf("qvz: corrupt container header")
	}

	a := alphabet.Trivial(int(alphabetSize))
	books := make([]*codebook.CondQuantizerList, clusters)
	for g := range books {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}
		raw := make([]byte, size)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
		book, err := codebook.Read(bytes.NewReader(raw), a)
		if err != nil {
			return nil, err
		}
		if book.Columns() != int(columns) {
			return nil, fmt.Errorf("qvz: codebook %d has %d columns, header says %d", g, book.Columns(), columns)
		}
		books[g] = book
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assign := make([]byte, lineCount)
	if clusters > 1 {
		if _, err := io.ReadFull(r, assign); err != nil {
			return nil, err
		}
	}

	perGroup := make([]*lines.Corpus, clusters)
	for g := range perGroup {
		var count uint64
		var streamLen uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &streamLen); err != nil {
			return nil, err
		}
		stream := make([]byte, streamLen)
		if _, err := io.ReadFull(r, stream); err != nil {
			return nil, err
		}
		decoded, err := coder.DecodeLines(bytes.NewReader(stream), books[g], int(count), seed)
		if err != nil {
			return nil, err
		}
		perGroup[g] = decoded
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	next := make([]int, clusters)
	data := make([][]alphabet.Symbol, lineCount)
	for i := range data {
		g := assign[i]
		if int(g) >= len(perGroup) || next[g] >= perGroup[g].LineCount() {
			return nil, fmt.Errorf("qvz: corrupt cluster assignment at line %d", i)
		}
		data[i] = perGroup[g].Line(next[g])
		next[g]++
	}
	out, err := lines.FromLines(data)
	if err != nil {
		return nil, err
	}
	if _, err := out.WriteTo(w); err != nil {
		return nil, err
	}

	o.logger.Info("decode done", "lines", lineCount, "columns", columns)
	return &DecodeStats{Lines: int(lineCount), Columns: int(columns)}, nil
}
