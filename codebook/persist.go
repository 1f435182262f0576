package codebook

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/internal/well"
	"github.com/Krlucete/qvz/quantizer"
)

// Codebook file layout (text, newline-terminated records):
//
//	line 1:  C placeholder bytes (reserved)
//	line 2:  C placeholder bytes (reserved)
//	line 3:  C bytes, per-column ratio as floor(ratio*100)+33
//	line 4:  column-0 low quantizer, A bytes of q[i]+33
//	line 5:  column-0 high quantizer, same encoding
//	then for each column c >= 1 two lines (low, high), each holding A
//	blocks of A bytes; block j is the quantizer at context symbol j, or
//	A ASCII spaces when that context has none.
const (
	symbolOffset = 33
	blankByte    = 0x20
)

// Write persists the quantizer list in the codebook text format.
func Write(w io.Writer, list *CondQuantizerList) error {
	bw := bufio.NewWriter(w)
	columns := list.Columns()
	q0 := list.GetIndexed(0, 0)
	size := q0.Alphabet().Size()

	blank := make([]byte, columns)
	for i := range blank {
		blank[i] = blankByte
	}

	// Reserved lines keep their width for existing decoders.
	for i := 0; i < 2; i++ {
		if _, err := bw.Write(blank); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	ratios := make([]byte, columns)
	for c := 0; c < columns; c++ {
		// Truncate to centiunits; the epsilon keeps rereads of already
		// quantized ratios from flooring one unit low.
		ratios[c] = byte(math.Floor(list.RatioIndexed(c, 0)*100+1e-9)) + symbolOffset
	}
	if _, err := bw.Write(ratios); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	// Column 0: a single context, low then high.
	for slot := 0; slot < 2; slot++ {
		if err := writeMapping(bw, list.GetIndexed(0, slot)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	empty := make([]byte, size)
	for i := range empty {
		empty[i] = blankByte
	}
	for c := 1; c < columns; c++ {
		for slot := 0; slot < 2; slot++ {
			for s := 0; s < size; s++ {
				lo, hi, _, err := list.Get(c, alphabet.Symbol(s))
				if err != nil {
					// Context symbol absent from this column.
					if _, werr := bw.Write(empty); werr != nil {
						return werr
					}
					continue
				}
				q := lo
				if slot == 1 {
					q = hi
				}
				if q == nil {
					if _, werr := bw.Write(empty); werr != nil {
						return werr
					}
					continue
				}
				if err := writeMapping(bw, q); err != nil {
					return err
				}
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func writeMapping(bw *bufio.Writer, q *quantizer.Quantizer) error {
	for _, r := range q.Mapping() {
		if err := bw.WriteByte(byte(r) + symbolOffset); err != nil {
			return err
		}
	}
	return nil
}

// Read reconstructs a quantizer list from the codebook text format.
// The symbol alphabet must match the one the codebook was built for.
func Read(r io.Reader, a *alphabet.Alphabet) (*CondQuantizerList, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	size := a.Size()

	line1, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("codebook: reserved line 1: %w", err)
	}
	columns := len(line1)
	if columns == 0 {
		return nil, fmt.Errorf("codebook: zero columns")
	}
	if _, err := readLine(br); err != nil {
		return nil, fmt.Errorf("codebook: reserved line 2: %w", err)
	}

	ratioLine, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("codebook: ratio line: %w", err)
	}
	if len(ratioLine) != columns {
		return nil, fmt.Errorf("codebook: ratio line width %d, want %d", len(ratioLine), columns)
	}
	ratios := make([]float64, columns)
	for c, b := range ratioLine {
		ratios[c] = float64(b-symbolOffset) / 100
	}

	list := NewCondQuantizerList(columns, well.DefaultSeed)

	// Column 0.
	lo0, err := readQuantizerLine(br, a, ratios[0])
	if err != nil {
		return nil, fmt.Errorf("codebook: column 0 low: %w", err)
	}
	hi0, err := readQuantizerLine(br, a, 1-ratios[0])
	if err != nil {
		return nil, fmt.Errorf("codebook: column 0 high: %w", err)
	}
	list.InitColumn(0, alphabet.Trivial(1))
	list.StoreIndexed(0, 0, lo0, hi0, ratios[0])

	for c := 1; c < columns; c++ {
		loLine, err := readLine(br)
		if err != nil {
			return nil, fmt.Errorf("codebook: column %d low: %w", c, err)
		}
		hiLine, err := readLine(br)
		if err != nil {
			return nil, fmt.Errorf("codebook: column %d high: %w", c, err)
		}
		if len(loLine) != size*size || len(hiLine) != size*size {
			return nil, fmt.Errorf("codebook: column %d line width %d, want %d", c, len(loLine), size*size)
		}

		var contexts []alphabet.Symbol
		for j := 0; j < size; j++ {
			if loLine[j*size] != blankByte {
				contexts = append(contexts, alphabet.Symbol(j))
			}
		}
		if len(contexts) == 0 {
			return nil, fmt.Errorf("codebook: column %d has no contexts", c)
		}
		list.InitColumn(c, alphabet.FromSymbols(contexts))

		for idx, ctx := range contexts {
			j := int(ctx)
			lo, err := parseMapping(loLine[j*size:(j+1)*size], a, ratios[c])
			if err != nil {
				return nil, fmt.Errorf("codebook: column %d context %d low: %w", c, j, err)
			}
			hi, err := parseMapping(hiLine[j*size:(j+1)*size], a, 1-ratios[c])
			if err != nil {
				return nil, fmt.Errorf("codebook: column %d context %d high: %w", c, j, err)
			}
			list.StoreIndexed(c, idx, lo, hi, ratios[c])
		}
	}
	return list, nil
}

func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

func readQuantizerLine(br *bufio.Reader, a *alphabet.Alphabet, ratio float64) (*quantizer.Quantizer, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if len(line) != a.Size() {
		return nil, fmt.Errorf("quantizer line width %d, want %d", len(line), a.Size())
	}
	return parseMapping(line, a, ratio)
}

func parseMapping(block []byte, a *alphabet.Alphabet, ratio float64) (*quantizer.Quantizer, error) {
	mapping := make([]alphabet.Symbol, len(block))
	for i, b := range block {
		if b < symbolOffset {
			return nil, fmt.Errorf("invalid codebook byte %#x", b)
		}
		mapping[i] = alphabet.Symbol(b - symbolOffset)
	}
	return quantizer.FromMapping(a, mapping, ratio)
}
