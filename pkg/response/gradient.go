package response

import (
	"math"

	"github.com/menta2k/corner-detector/pkg/frame"
)

// sobelRow writes the horizontal and vertical Sobel responses of row r.
// gx uses [-1 0 1; -2 0 2; -1 0 1] and gy its transpose, so both are positive
// when intensity grows towards higher column or row indices. Only columns with
// a full neighbourhood are written; the rest stay zero.
func sobelRow(f *frame.Frame, r int, gx, gy []float64) {
	n := f.Cols()
	up, mid, down := f.Row(r-1), f.Row(r), f.Row(r+1)
	for c := 1; c < n-1; c++ {
		gx[r*n+c] = (up[c+1] + 2*mid[c+1] + down[c+1]) - (up[c-1] + 2*mid[c-1] + down[c-1])
		gy[r*n+c] = (down[c-1] + 2*down[c] + down[c+1]) - (up[c-1] + 2*up[c] + up[c+1])
	}
}

// minEigenvalue returns the smaller eigenvalue of [sxx sxy; sxy syy].
func minEigenvalue(sxx, sxy, syy float64) float64 {
	half := (sxx - syy) / 2
	l := (sxx+syy)/2 - math.Sqrt(half*half+sxy*sxy)
	// The tensor is positive semi-definite; rounding can push a flat cell below zero.
	if l < 0 {
		return 0
	}
	return l
}

func harris(sxx, sxy, syy, k float64) float64 {
	det := sxx*syy - sxy*sxy
	tr := sxx + syy
	return det - k*tr*tr
}

func harmonicMean(sxx, sxy, syy float64) float64 {
	tr := sxx + syy
	if tr == 0 {
		return 0
	}
	return (sxx*syy - sxy*sxy) / tr
}
