package response

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/corner-detector/pkg/types"
)

// ScoreMap holds one cornerness score per frame cell, row-major.
// Cells without a full neighbourhood hold Sentinel.
type ScoreMap struct {
	rows int
	cols int
	data []float64
}

func newScoreMap(m, n int) *ScoreMap {
	data := make([]float64, m*n)
	for i := range data {
		data[i] = Sentinel
	}
	return &ScoreMap{rows: m, cols: n, data: data}
}

// NewScoreMap wraps precomputed scores. It is intended for tests and tools
// that feed the thresholder and suppressor directly.
func NewScoreMap(data []float64, m, n int) *ScoreMap {
	return &ScoreMap{rows: m, cols: n, data: data}
}

// Rows returns the map height
func (s *ScoreMap) Rows() int { return s.rows }

// Cols returns the map width
func (s *ScoreMap) Cols() int { return s.cols }

// Len returns rows*cols
func (s *ScoreMap) Len() int { return len(s.data) }

// At returns the score at (r, c)
func (s *ScoreMap) At(r, c int) float64 {
	return s.data[r*s.cols+c]
}

// Scored reports whether (r, c) carries a real score rather than Sentinel
func (s *ScoreMap) Scored(r, c int) bool {
	return !math.IsInf(s.data[r*s.cols+c], 0) && !math.IsNaN(s.data[r*s.cols+c])
}

// Finite returns the scored cells in raster order
func (s *ScoreMap) Finite() []float64 {
	out := make([]float64, 0, len(s.data))
	for _, v := range s.data {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Dense returns a copy of the map as a gonum matrix with sentinels replaced
// by the lowest real score (0 when nothing was scored). It returns nil for an
// empty map.
func (s *ScoreMap) Dense() *mat.Dense {
	if s.rows == 0 || s.cols == 0 {
		return nil
	}
	fill := 0.0
	if finite := s.Finite(); len(finite) > 0 {
		fill = floats.Min(finite)
	}
	data := make([]float64, len(s.data))
	for i, v := range s.data {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			v = fill
		}
		data[i] = v
	}
	return mat.NewDense(s.rows, s.cols, data)
}

// Summary describes the distribution of scored cells
func (s *ScoreMap) Summary() types.Summary {
	finite := s.Finite()
	sum := types.Summary{
		Scored:   len(finite),
		Excluded: len(s.data) - len(finite),
	}
	if len(finite) == 0 {
		return sum
	}
	sum.Min = floats.Min(finite)
	sum.Max = floats.Max(finite)
	if len(finite) > 1 {
		sum.Mean, sum.StdDev = stat.MeanStdDev(finite, nil)
	} else {
		sum.Mean = finite[0]
	}
	return sum
}
