package distortion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableValues(t *testing.T) {
	tests := []struct {
		measure Measure
		i, j    int
		want    float64
	}{
		{MSE, 0, 3, 9},
		{MSE, 3, 0, 9},
		{Manhattan, 1, 4, 3},
		{Lorentz, 0, 1, 1},
		{Lorentz, 0, 3, 2},
		{Lorentz, 0, 7, 3},
	}

	for _, tt := range tests {
		tbl, err := NewTable(8, tt.measure)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, tbl.At(tt.i, tt.j), 1e-12, "%v d(%d,%d)", tt.measure, tt.i, tt.j)
	}
}

func TestTableSymmetricZeroDiagonal(t *testing.T) {
	for _, m := range []Measure{MSE, Manhattan, Lorentz} {
		tbl, err := NewTable(16, m)
		require.NoError(t, err)
		for i := 0; i < 16; i++ {
			assert.Zero(t, tbl.At(i, i))
			for j := 0; j < 16; j++ {
				assert.Equal(t, tbl.At(i, j), tbl.At(j, i))
				assert.GreaterOrEqual(t, tbl.At(i, j), 0.0)
			}
		}
	}
}

func TestUnknownMeasure(t *testing.T) {
	_, err := NewTable(4, Measure(42))
	assert.Error(t, err)
}

func TestMeasureString(t *testing.T) {
	assert.Equal(t, "MSE", MSE.String())
	assert.Equal(t, "L1", Manhattan.String())
	assert.Equal(t, "log(1+L1)", Lorentz.String())
}
