package codebook

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krlucete/qvz/alphabet"
)

func TestWrite_Layout(t *testing.T) {
	res := generateScenario(t, 0.5)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res.Quantizers))

	lines := strings.Split(buf.String(), "\n")
	// 3 header lines + 2 column-0 lines + 2 per remaining column, plus
	// the trailing empty split element.
	require.Len(t, lines, 3+2+2*2+1)

	// Reserved lines keep column width.
	assert.Equal(t, strings.Repeat(" ", 3), lines[0])
	assert.Equal(t, strings.Repeat(" ", 3), lines[1])
	assert.Len(t, lines[2], 3)

	// Column-0 quantizer lines are alphabet width.
	assert.Len(t, lines[3], 4)
	assert.Len(t, lines[4], 4)

	// Conditional lines are A blocks of A bytes.
	assert.Len(t, lines[5], 16)
	assert.Len(t, lines[6], 16)

	// Ratio byte encodes floor(ratio*100)+33; column 0 ratio is 0.25.
	assert.Equal(t, byte(25+33), lines[2][0])
}

func TestRoundTrip(t *testing.T) {
	a := alphabet.Trivial(4)
	for _, comp := range []float64{0, 0.5, 1} {
		res := generateScenario(t, comp)
		orig := res.Quantizers

		var buf bytes.Buffer
		require.NoError(t, Write(&buf, orig))

		got, err := Read(bytes.NewReader(buf.Bytes()), a)
		require.NoError(t, err)
		require.Equal(t, orig.Columns(), got.Columns())

		for c := 0; c < orig.Columns(); c++ {
			require.True(t, orig.InputAlphabet(c).Equal(got.InputAlphabet(c)),
				"comp=%v column %d input alphabet", comp, c)

			for idx := 0; idx < orig.ContextCount(c); idx++ {
				wlo := orig.GetIndexed(c, 2*idx)
				whi := orig.GetIndexed(c, 2*idx+1)
				if wlo == nil {
					continue
				}
				glo := got.GetIndexed(c, 2*idx)
				ghi := got.GetIndexed(c, 2*idx+1)
				require.NotNil(t, glo)
				require.NotNil(t, ghi)
				assert.True(t, wlo.MappingEqual(glo))
				assert.True(t, whi.MappingEqual(ghi))
				assert.True(t, wlo.OutputAlphabet().Equal(glo.OutputAlphabet()))
				assert.True(t, whi.OutputAlphabet().Equal(ghi.OutputAlphabet()))
			}

			// The format stores one centiquantized ratio per column
			// (context 0's), applied to every context on read.
			want := math.Floor(orig.RatioIndexed(c, 0)*100+1e-9) / 100
			for idx := 0; idx < got.ContextCount(c); idx++ {
				assert.InDelta(t, want, got.RatioIndexed(c, idx), 1e-12)
			}
		}
	}
}

func TestRoundTrip_Twice(t *testing.T) {
	// A reread codebook survives a second write/read unchanged: the
	// ratio quantization is idempotent.
	a := alphabet.Trivial(4)
	res := generateScenario(t, 0.5)

	var first bytes.Buffer
	require.NoError(t, Write(&first, res.Quantizers))
	got1, err := Read(bytes.NewReader(first.Bytes()), a)
	require.NoError(t, err)

	var second bytes.Buffer
	require.NoError(t, Write(&second, got1))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestRead_Garbage(t *testing.T) {
	a := alphabet.Trivial(4)
	_, err := Read(strings.NewReader(""), a)
	assert.Error(t, err)

	_, err = Read(strings.NewReader("   \n   \n"), a)
	assert.Error(t, err)
}
