// Package suppress keeps local score maxima above a threshold and collects
// them in raster order.
package suppress

import (
	"math"

	"github.com/menta2k/corner-detector/pkg/response"
	"github.com/menta2k/corner-detector/pkg/types"
)

// Radius is the Chebyshev radius of the suppression window (7x7 cells)
const Radius = 3

// Collect returns every cell whose score is at least t and which wins its
// neighbourhood: each other cell within Radius scores strictly lower, or
// equal and later in raster order. Among equal neighbours the first in raster
// order survives. Output is in ascending raster order.
func Collect(sm *response.ScoreMap, t float64) types.CornerSet {
	m, n := sm.Rows(), sm.Cols()
	corners := types.CornerSet{}
	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			s := sm.At(r, c)
			if math.IsInf(s, 0) || math.IsNaN(s) || s < t {
				continue
			}
			if isLocalMax(sm, r, c, s) {
				corners = append(corners, types.Corner{Row: r, Col: c})
			}
		}
	}
	return corners
}

// Candidates counts cells at or above t before suppression
func Candidates(sm *response.ScoreMap, t float64) int {
	count := 0
	for _, v := range sm.Finite() {
		if v >= t {
			count++
		}
	}
	return count
}

func isLocalMax(sm *response.ScoreMap, r, c int, s float64) bool {
	m, n := sm.Rows(), sm.Cols()
	r0, r1 := max(0, r-Radius), min(m-1, r+Radius)
	c0, c1 := max(0, c-Radius), min(n-1, c+Radius)
	for u := r0; u <= r1; u++ {
		for v := c0; v <= c1; v++ {
			if u == r && v == c {
				continue
			}
			o := sm.At(u, v)
			if o > s {
				return false
			}
			// equal neighbour earlier in raster order wins
			if o == s && (u < r || (u == r && v < c)) {
				return false
			}
		}
	}
	return true
}
