package coder

import (
	"fmt"
	"io"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/codebook"
	"github.com/Krlucete/qvz/lines"
)

// Per-column, per-context, per-pair-member adaptive models. A quantizer
// with a single state codes zero bits, so no model is allocated for it.
type modelBank struct {
	models [][]*adaptiveModel
}

func newModelBank(book *codebook.CondQuantizerList) *modelBank {
	b := &modelBank{models: make([][]*adaptiveModel, book.Columns())}
	for c := 0; c < book.Columns(); c++ {
		b.models[c] = make([]*adaptiveModel, 2*book.ContextCount(c))
		for slot := 0; slot < 2*book.ContextCount(c); slot++ {
			q := book.GetIndexed(c, slot)
			if q == nil || q.States() <= 1 {
				continue
			}
			b.models[c][slot] = newAdaptiveModel(q.States())
		}
	}
	return b
}

func (b *modelBank) get(column, ctxIdx int, high bool) *adaptiveModel {
	slot := 2 * ctxIdx
	if high {
		slot++
	}
	return b.models[column][slot]
}

// EncodeLines arithmetic-codes every line of the corpus against the
// codebook, seeding the selection PRNG to seed first. It returns the
// lossy reconstruction the decoder will reproduce.
func EncodeLines(w io.Writer, corpus *lines.Corpus, book *codebook.CondQuantizerList, seed uint32) (*lines.Corpus, error) {
	if corpus.Columns() != book.Columns() {
		return nil, fmt.Errorf("coder: corpus has %d columns, codebook %d", corpus.Columns(), book.Columns())
	}
	book.SeedRNG(seed)
	bank := newModelBank(book)
	enc := newArithEncoder(w)

	lossy := make([][]alphabet.Symbol, corpus.LineCount())
	for i := 0; i < corpus.LineCount(); i++ {
		line := corpus.Line(i)
		out := make([]alphabet.Symbol, len(line))
		var prev alphabet.Symbol
		for c := 0; c < len(line); c++ {
			q, ctxIdx, high, err := book.ChooseIndexed(c, prev)
			if err != nil {
				return nil, err
			}
			rec := q.Map(line[c])
			state := q.StateIndex(rec)
			if state == alphabet.NotFound {
				return nil, fmt.Errorf("coder: reproduction %d missing from output alphabet at column %d", rec, c)
			}
			if m := bank.get(c, ctxIdx, high); m != nil {
				cum, freq, total := m.Interval(state)
				if err := enc.Encode(cum, freq, total); err != nil {
					return nil, err
				}
				m.Update(state)
			}
			out[c] = rec
			prev = rec
		}
		lossy[i] = out
	}
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	return lines.FromLines(lossy)
}

// DecodeLines reverses EncodeLines: it must be handed the same codebook,
// seed, line count and width the encoder used.
func DecodeLines(r io.Reader, book *codebook.CondQuantizerList, lineCount int, seed uint32) (*lines.Corpus, error) {
	book.SeedRNG(seed)
	bank := newModelBank(book)
	dec := newArithDecoder(r)

	columns := book.Columns()
	data := make([][]alphabet.Symbol, lineCount)
	for i := 0; i < lineCount; i++ {
		out := make([]alphabet.Symbol, columns)
		var prev alphabet.Symbol
		for c := 0; c < columns; c++ {
			q, ctxIdx, high, err := book.ChooseIndexed(c, prev)
			if err != nil {
				return nil, err
			}
			var state int
			if m := bank.get(c, ctxIdx, high); m != nil {
				target := dec.Target(m.total)
				s, cum, freq := m.Lookup(target)
				dec.Consume(cum, freq, m.total)
				m.Update(s)
				state = s
			}
			rec := q.OutputAlphabet().At(state)
			out[c] = rec
			prev = rec
		}
		data[i] = out
	}
	return lines.FromLines(data)
}
