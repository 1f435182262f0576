package codebook

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindStates_Degenerate(t *testing.T) {
	low, high, ratio, err := FindStates(0)
	require.NoError(t, err)
	assert.Equal(t, 1, low)
	assert.Equal(t, 1, high)
	assert.Equal(t, 1.0, ratio)
}

func TestFindStates_IntegerLog(t *testing.T) {
	low, high, ratio, err := FindStates(1)
	require.NoError(t, err)
	assert.Equal(t, 2, low)
	assert.Equal(t, 2, high)
	assert.Equal(t, 1.0, ratio)

	low, high, ratio, err = FindStates(2)
	require.NoError(t, err)
	assert.Equal(t, 4, low)
	assert.Equal(t, 4, high)
	assert.Equal(t, 1.0, ratio)
}

func TestFindStates_Fractional(t *testing.T) {
	// 2^0.75 ~ 1.68: one- and two-state quantizers mixed so that
	// 0.25*log2(1) + 0.75*log2(2) = 0.75.
	low, high, ratio, err := FindStates(0.75)
	require.NoError(t, err)
	assert.Equal(t, 1, low)
	assert.Equal(t, 2, high)
	assert.InDelta(t, 0.25, ratio, 1e-12)

	// 2^1.5 ~ 2.83.
	low, high, ratio, err = FindStates(1.5)
	require.NoError(t, err)
	assert.Equal(t, 2, low)
	assert.Equal(t, 3, high)
	want := (1.5 - math.Log2(3)) / (1 - math.Log2(3))
	assert.InDelta(t, want, ratio, 1e-12)
}

func TestFindStates_Identity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		h := rng.Float64() * 5.5
		low, high, ratio, err := FindStates(h)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ratio, 0.0)
		assert.LessOrEqual(t, ratio, 1.0)
		if low != high {
			got := ratio*math.Log2(float64(low)) + (1-ratio)*math.Log2(float64(high))
			assert.InDelta(t, h, got, 1e-12)
		}
	}
}

func TestFindStates_Invalid(t *testing.T) {
	_, _, _, err := FindStates(-0.1)
	assert.Error(t, err)
	_, _, _, err = FindStates(math.NaN())
	assert.Error(t, err)
}
