package codebook

import (
	"fmt"
	"math"
)

// FindStates converts an entropy target in bits/symbol into an integer
// state-count pair and the mixing ratio between them:
//
//	low = floor(2^H), high = ceil(2^H)
//	H = r*log2(low) + (1-r)*log2(high)
//
// When 2^H is an integer the low quantizer alone meets the budget and
// r = 1. H = 0 degenerates to a single-point quantizer.
func FindStates(entropy float64) (low, high int, ratio float64, err error) {
	if entropy < 0 || math.IsNaN(entropy) || math.IsInf(entropy, 0) {
		return 0, 0, 0, fmt.Errorf("codebook: entropy target %v out of range", entropy)
	}
	target := math.Pow(2, entropy)
	low = int(math.Floor(target))
	high = int(math.Ceil(target))
	if low == high {
		return low, high, 1, nil
	}
	hLo := math.Log2(float64(low))
	hHi := math.Log2(float64(high))
	ratio = (entropy - hHi) / (hLo - hHi)
	return low, high, ratio, nil
}
