// Package response computes per-pixel cornerness scores from a greyscale frame.
//
// Gradients come from 3x3 Sobel kernels and are folded into a structure tensor
// summed over a 3x3 window. A cell is scored only when every gradient in its
// window is itself backed by a full 3x3 neighbourhood, so the outer Border
// rows and columns hold Sentinel and never become candidates.
package response

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/corner-detector/pkg/frame"
	"github.com/menta2k/corner-detector/pkg/types"
)

// Kind selects how the structure tensor is reduced to a score
type Kind string

const (
	// MinEigenvalue is the Shi-Tomasi score: the smaller tensor eigenvalue
	MinEigenvalue Kind = "min-eigenvalue"
	// Harris is det - K*trace^2
	Harris Kind = "harris"
	// HarmonicMean is det/trace, the harmonic mean of the two eigenvalues halved
	HarmonicMean Kind = "harmonic-mean"
)

const (
	// Border is the number of unscored rows/columns on each edge
	Border = 2
	// DefaultHarrisK is the conventional Harris sensitivity
	DefaultHarrisK = 0.04
)

// Sentinel marks cells without a full neighbourhood
var Sentinel = math.Inf(-1)

// Config holds the estimator tunables
type Config struct {
	Kind    Kind
	HarrisK float64
	// Workers is the number of goroutines scoring rows; values below 2 run inline
	Workers int
}

// DefaultConfig returns the Shi-Tomasi estimator running on the calling goroutine
func DefaultConfig() Config {
	return Config{
		Kind:    MinEigenvalue,
		HarrisK: DefaultHarrisK,
		Workers: 1,
	}
}

// Validate checks the tunables
func (c Config) Validate() error {
	switch c.Kind {
	case MinEigenvalue, HarmonicMean:
	case Harris:
		if !(c.HarrisK > 0 && c.HarrisK < 0.25) {
			return fmt.Errorf("response: harris k %v outside (0, 0.25): %w", c.HarrisK, types.ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("response: unknown kind %q: %w", c.Kind, types.ErrInvalidParameter)
	}
	if c.Workers < 0 {
		return fmt.Errorf("response: workers %d is negative: %w", c.Workers, types.ErrInvalidParameter)
	}
	return nil
}

// Estimator scores frames. It holds configuration only and is safe for concurrent use.
type Estimator struct {
	config Config
	score  func(sxx, sxy, syy float64) float64
}

// New creates an Estimator with the default configuration
func New() *Estimator {
	e, _ := NewWithConfig(DefaultConfig())
	return e
}

// NewWithConfig creates an Estimator with a custom configuration
func NewWithConfig(config Config) (*Estimator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{config: config}
	switch config.Kind {
	case MinEigenvalue:
		e.score = minEigenvalue
	case Harris:
		k := config.HarrisK
		e.score = func(sxx, sxy, syy float64) float64 { return harris(sxx, sxy, syy, k) }
	case HarmonicMean:
		e.score = harmonicMean
	}
	return e, nil
}

// Config returns the estimator configuration
func (e *Estimator) Config() Config {
	return e.config
}

// Compute returns the score map of f. A nil or empty frame yields an empty map.
func (e *Estimator) Compute(f *frame.Frame) *ScoreMap {
	if f.Empty() {
		return &ScoreMap{}
	}
	m, n := f.Rows(), f.Cols()
	sm := newScoreMap(m, n)
	if m <= 2*Border || n <= 2*Border {
		return sm
	}

	gx := make([]float64, m*n)
	gy := make([]float64, m*n)
	e.forRows(1, m-1, func(r int) {
		sobelRow(f, r, gx, gy)
	})
	e.forRows(Border, m-Border, func(r int) {
		e.scoreRow(sm, gx, gy, r)
	})
	return sm
}

// scoreRow fills the interior cells of row r
func (e *Estimator) scoreRow(sm *ScoreMap, gx, gy []float64, r int) {
	n := sm.cols
	for c := Border; c < n-Border; c++ {
		var sxx, sxy, syy float64
		for u := r - 1; u <= r+1; u++ {
			base := u * n
			for v := c - 1; v <= c+1; v++ {
				dx, dy := gx[base+v], gy[base+v]
				sxx += dx * dx
				sxy += dx * dy
				syy += dy * dy
			}
		}
		s := e.score(sxx, sxy, syy)
		if math.IsNaN(s) || math.IsInf(s, 0) {
			panic(fmt.Sprintf("response: non-finite score %v at (%d, %d)", s, r, c))
		}
		sm.data[r*n+c] = s
	}
}

// forRows runs fn for every row in [from, to). Each row is handled by exactly
// one goroutine, so the output does not depend on the worker count.
func (e *Estimator) forRows(from, to int, fn func(r int)) {
	if e.config.Workers < 2 || to-from < 2 {
		for r := from; r < to; r++ {
			fn(r)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(e.config.Workers)
	for r := from; r < to; r++ {
		g.Go(func() error {
			fn(r)
			return nil
		})
	}
	_ = g.Wait()
}
