// Package threshold converts a selectivity quantile into an absolute score cutoff.
package threshold

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/corner-detector/pkg/types"
)

// ValidateQuantile rejects quantiles outside the open interval (0, 1)
func ValidateQuantile(q float64) error {
	if !(q > 0 && q < 1) {
		return fmt.Errorf("threshold: quantile %v outside (0, 1): %w", q, types.ErrInvalidParameter)
	}
	return nil
}

// SelectCount is the number of cells the quantile asks for out of total,
// clamped to [1, available].
func SelectCount(q float64, total, available int) int {
	k := int(math.Floor(q * float64(total)))
	if k < 1 {
		k = 1
	}
	if k > available {
		k = available
	}
	return k
}

// Compute returns the k-th largest finite score, where k = floor(q*total)
// clamped to [1, number of finite scores]. total is the frame size, so the
// quantile refers to the whole frame rather than only scored cells.
//
// Equal scores are ranked by raster index, lower first. This only decides
// which equal pixel the suppressor keeps; the cutoff depends on values alone
// and is therefore bit-reproducible.
//
// ok is false when no score is finite.
func Compute(scores []float64, total int, q float64) (t float64, ok bool, err error) {
	if err := ValidateQuantile(q); err != nil {
		return 0, false, err
	}

	finite := make([]float64, 0, len(scores))
	for _, v := range scores {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, false, nil
	}

	n := len(finite)
	k := SelectCount(q, total, n)
	sort.Float64s(finite)

	// Empirical returns the first sorted value whose cumulative count reaches
	// p*n; aiming half a sample below n-k+1 lands on index n-k without
	// depending on how p*n rounds.
	p := (float64(n-k) + 0.5) / float64(n)
	return stat.Quantile(p, stat.Empirical, finite, nil), true, nil
}
