// Package lines loads fixed-width quality-value lines for training and
// encoding. Input bytes are Phred+33 ASCII; symbols are the offsets
// into [0, A).
package lines

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/Krlucete/qvz/alphabet"
)

// PhredOffset is the ASCII offset of Sanger-encoded quality values.
const PhredOffset = 33

// ErrEmptyCorpus is returned when the input contains no usable lines.
var ErrEmptyCorpus = errors.New("lines: empty corpus")

// Corpus is a fixed-width training set held in memory. It satisfies the
// codebook Corpus interface.
type Corpus struct {
	columns int
	data    [][]alphabet.Symbol
}

// LoadOptions bound what Load accepts.
type LoadOptions struct {
	// AlphabetSize rejects symbols outside [0, AlphabetSize).
	AlphabetSize int
	// MaxLines caps how many lines are retained for training; 0 keeps
	// everything.
	MaxLines int
}

// Load reads newline-terminated quality lines from r. All lines must
// share one width; the first line fixes it.
func Load(r io.Reader, opts LoadOptions) (*Corpus, error) {
	if opts.AlphabetSize < 1 || opts.AlphabetSize > alphabet.MaxSize {
		return nil, fmt.Errorf("lines: alphabet size %d out of range [1, %d]", opts.AlphabetSize, alphabet.MaxSize)
	}

	c := &Corpus{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if c.columns == 0 {
			c.columns = len(raw)
		} else if len(raw) != c.columns {
			return nil, fmt.Errorf("lines: line %d has width %d, want %d", lineNo, len(raw), c.columns)
		}
		line := make([]alphabet.Symbol, len(raw))
		for i, b := range raw {
			if b < PhredOffset || int(b-PhredOffset) >= opts.AlphabetSize {
				return nil, fmt.Errorf("lines: line %d byte %d: quality %q outside alphabet of size %d", lineNo, i, b, opts.AlphabetSize)
			}
			line[i] = alphabet.Symbol(b - PhredOffset)
		}
		c.data = append(c.data, line)
		if opts.MaxLines > 0 && len(c.data) >= opts.MaxLines {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(c.data) == 0 {
		return nil, ErrEmptyCorpus
	}
	return c, nil
}

// FromLines wraps pre-parsed symbol lines. All lines must share one
// width.
func FromLines(data [][]alphabet.Symbol) (*Corpus, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, ErrEmptyCorpus
	}
	width := len(data[0])
	for i, line := range data {
		if len(line) != width {
			return nil, fmt.Errorf("lines: line %d has width %d, want %d", i, len(line), width)
		}
	}
	return &Corpus{columns: width, data: data}, nil
}

// LineCount returns the number of lines.
func (c *Corpus) LineCount() int {
	return len(c.data)
}

// Columns returns the line width.
func (c *Corpus) Columns() int {
	return c.columns
}

// Line returns the i-th line. Callers must not modify it.
func (c *Corpus) Line(i int) []alphabet.Symbol {
	return c.data[i]
}

// Subset returns a corpus view over the given line indices. The
// underlying lines are shared, not copied.
func (c *Corpus) Subset(idx []int) (*Corpus, error) {
	if len(idx) == 0 {
		return nil, ErrEmptyCorpus
	}
	sub := &Corpus{columns: c.columns, data: make([][]alphabet.Symbol, len(idx))}
	for i, j := range idx {
		sub.data[i] = c.data[j]
	}
	return sub, nil
}

// WriteTo writes the corpus back out as Phred+33 text lines.
func (c *Corpus) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	buf := make([]byte, c.columns+1)
	for _, line := range c.data {
		for i, s := range line {
			buf[i] = byte(s) + PhredOffset
		}
		buf[c.columns] = '\n'
		m, err := bw.Write(buf)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
