package response

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/corner-detector/pkg/frame"
	"github.com/menta2k/corner-detector/pkg/types"
)

// quadrantFrame is an 8x8 frame, bright where row >= 3 and col >= 4
func quadrantFrame(t testing.TB) *frame.Frame {
	t.Helper()
	data := make([]float64, 64)
	for r := 3; r < 8; r++ {
		for c := 4; c < 8; c++ {
			data[r*8+c] = 1
		}
	}
	f, err := frame.New(data, 8, 8)
	require.NoError(t, err)
	return f
}

func randomFrame(t testing.TB, m, n int, seed uint64) *frame.Frame {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]float64, m*n)
	for i := range data {
		data[i] = rng.Float64()
	}
	f, err := frame.New(data, m, n)
	require.NoError(t, err)
	return f
}

func TestComputeBorderIsSentinel(t *testing.T) {
	t.Parallel()

	f := randomFrame(t, 12, 15, 1)
	sm := New().Compute(f)
	require.Equal(t, 12, sm.Rows())
	require.Equal(t, 15, sm.Cols())

	for r := 0; r < sm.Rows(); r++ {
		for c := 0; c < sm.Cols(); c++ {
			interior := r >= Border && r < sm.Rows()-Border && c >= Border && c < sm.Cols()-Border
			if interior {
				assert.True(t, sm.Scored(r, c), "(%d, %d) should be scored", r, c)
				assert.GreaterOrEqual(t, sm.At(r, c), 0.0)
			} else {
				assert.Equal(t, Sentinel, sm.At(r, c), "(%d, %d) should be sentinel", r, c)
			}
		}
	}
	assert.Len(t, sm.Finite(), (12-2*Border)*(15-2*Border))
}

func TestComputeSmallFrames(t *testing.T) {
	t.Parallel()

	e := New()

	sm := e.Compute(nil)
	assert.Zero(t, sm.Len())
	assert.Nil(t, sm.Dense())

	for _, size := range [][2]int{{1, 1}, {4, 4}, {4, 9}, {9, 3}} {
		sm := e.Compute(randomFrame(t, size[0], size[1], 7))
		assert.Equal(t, size[0]*size[1], sm.Len())
		assert.Empty(t, sm.Finite(), "%dx%d has no full neighbourhood", size[0], size[1])
	}

	sm = e.Compute(randomFrame(t, 5, 5, 3))
	require.Len(t, sm.Finite(), 1)
	assert.True(t, sm.Scored(2, 2))
}

func TestComputeUniformIsZero(t *testing.T) {
	t.Parallel()

	data := make([]float64, 100)
	for i := range data {
		data[i] = 0.42
	}
	f, err := frame.New(data, 10, 10)
	require.NoError(t, err)

	for _, kind := range []Kind{MinEigenvalue, Harris, HarmonicMean} {
		e, err := NewWithConfig(Config{Kind: kind, HarrisK: DefaultHarrisK})
		require.NoError(t, err)
		for _, v := range e.Compute(f).Finite() {
			assert.Zero(t, v, "kind %s", kind)
		}
	}
}

func TestComputeQuadrant(t *testing.T) {
	t.Parallel()

	sm := New().Compute(quadrantFrame(t))

	want := [][]float64{
		{0.343, 4, 13.373, 8.053},
		{1.351, 13.373, 36, 23.537},
		{0.776, 8.053, 23.537, 32},
		{0, 0, 0, 0},
	}
	for i, row := range want {
		for j, v := range row {
			assert.InDelta(t, v, sm.At(i+2, j+2), 1e-3, "score at (%d, %d)", i+2, j+2)
		}
	}

	sum := sm.Summary()
	assert.Equal(t, 16, sum.Scored)
	assert.Equal(t, 48, sum.Excluded)
	assert.InDelta(t, 36.0, sum.Max, 1e-9)
	assert.Equal(t, 0.0, sum.Min)
	assert.Greater(t, sum.StdDev, 0.0)
}

func TestComputeStraightEdge(t *testing.T) {
	t.Parallel()

	// vertical step between columns 5 and 6
	data := make([]float64, 8*12)
	for r := 0; r < 8; r++ {
		for c := 6; c < 12; c++ {
			data[r*12+c] = 1
		}
	}
	f, err := frame.New(data, 8, 12)
	require.NoError(t, err)

	for _, v := range New().Compute(f).Finite() {
		assert.Zero(t, v)
	}

	harris, err := NewWithConfig(Config{Kind: Harris, HarrisK: DefaultHarrisK})
	require.NoError(t, err)
	hs := harris.Compute(f)
	// cells whose window touches the step respond negatively, the rest not at all
	assert.Less(t, hs.At(3, 5), 0.0)
	assert.Less(t, hs.At(3, 6), 0.0)
	assert.Zero(t, hs.At(3, 2))
	assert.Zero(t, hs.At(3, 9))
}

// tensorAt recomputes the 3x3 summed structure tensor at (r, c) directly
func tensorAt(f *frame.Frame, r, c int) (sxx, sxy, syy float64) {
	kx := [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	for u := r - 1; u <= r+1; u++ {
		for v := c - 1; v <= c+1; v++ {
			var gx, gy float64
			for i := -1; i <= 1; i++ {
				for j := -1; j <= 1; j++ {
					p := f.At(u+i, v+j)
					gx += kx[i+1][j+1] * p
					gy += kx[j+1][i+1] * p
				}
			}
			sxx += gx * gx
			sxy += gx * gy
			syy += gy * gy
		}
	}
	return sxx, sxy, syy
}

func eigenvalues(t *testing.T, sxx, sxy, syy float64) (lo, hi float64) {
	t.Helper()
	var eig mat.EigenSym
	ok := eig.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), false)
	require.True(t, ok)
	vals := eig.Values(nil)
	return math.Min(vals[0], vals[1]), math.Max(vals[0], vals[1])
}

func TestComputeMatchesEigenDecomposition(t *testing.T) {
	t.Parallel()

	f := randomFrame(t, 14, 11, 42)
	sm := New().Compute(f)

	for r := Border; r < f.Rows()-Border; r++ {
		for c := Border; c < f.Cols()-Border; c++ {
			sxx, sxy, syy := tensorAt(f, r, c)
			lo, _ := eigenvalues(t, sxx, sxy, syy)
			assert.InDelta(t, math.Max(lo, 0), sm.At(r, c), 1e-9, "cell (%d, %d)", r, c)
		}
	}
}

func TestScoreKinds(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 200; i++ {
		a, b := rng.Float64()*50, rng.Float64()*50
		// keep the tensor positive semi-definite: sxy^2 <= sxx*syy
		sxy := (rng.Float64()*2 - 1) * math.Sqrt(a*b)

		lo, hi := eigenvalues(t, a, sxy, b)
		tol := 1e-9 * (1 + hi*hi)

		assert.InDelta(t, math.Max(lo, 0), minEigenvalue(a, sxy, b), tol)
		assert.InDelta(t, lo*hi-0.05*(lo+hi)*(lo+hi), harris(a, sxy, b, 0.05), tol)
		if lo+hi > 1e-6 {
			assert.InDelta(t, lo*hi/(lo+hi), harmonicMean(a, sxy, b), tol)
		}
	}

	assert.Zero(t, harmonicMean(0, 0, 0))
	assert.Zero(t, minEigenvalue(0, 0, 0))
}

func TestComputeWorkersDeterministic(t *testing.T) {
	t.Parallel()

	f := randomFrame(t, 61, 47, 9)
	for _, kind := range []Kind{MinEigenvalue, Harris, HarmonicMean} {
		serial, err := NewWithConfig(Config{Kind: kind, HarrisK: DefaultHarrisK, Workers: 1})
		require.NoError(t, err)
		parallel, err := NewWithConfig(Config{Kind: kind, HarrisK: DefaultHarrisK, Workers: 8})
		require.NoError(t, err)

		a, b := serial.Compute(f), parallel.Compute(f)
		assert.Equal(t, a.data, b.data, "kind %s", kind)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"min eigenvalue ignores k", Config{Kind: MinEigenvalue}, false},
		{"harmonic mean", Config{Kind: HarmonicMean, Workers: 4}, false},
		{"harris default k", Config{Kind: Harris, HarrisK: DefaultHarrisK}, false},
		{"harris zero k", Config{Kind: Harris}, true},
		{"harris k too large", Config{Kind: Harris, HarrisK: 0.25}, true},
		{"unknown kind", Config{Kind: "fast"}, true},
		{"negative workers", Config{Kind: MinEigenvalue, Workers: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidParameter)
				_, nerr := NewWithConfig(tt.config)
				assert.Error(t, nerr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDense(t *testing.T) {
	t.Parallel()

	sm := New().Compute(quadrantFrame(t))
	d := sm.Dense()
	require.NotNil(t, d)

	r, c := d.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 8, c)
	// sentinels take the lowest real score
	assert.Equal(t, 0.0, d.At(0, 0))
	assert.Equal(t, sm.At(3, 4), d.At(3, 4))
	assert.False(t, math.IsInf(mat.Min(d), 0))
}

func BenchmarkCompute(b *testing.B) {
	f := randomFrame(b, 240, 320, 1)
	e := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Compute(f)
	}
}

func BenchmarkComputeParallel(b *testing.B) {
	f := randomFrame(b, 240, 320, 1)
	e, err := NewWithConfig(Config{Kind: MinEigenvalue, Workers: 4})
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Compute(f)
	}
}
